package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t ", ""},
		{"single", "openid", "openid"},
		{"collapses whitespace", "  openid   profile ", "openid profile"},
		{"dedupes preserving order", "profile openid profile", "profile openid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeScope(tt.in))
		})
	}
}

func TestIntersectScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		granted   string
		requested string
		want      string
	}{
		{"full overlap", "openid profile", "openid profile", "openid profile"},
		{"narrowing", "openid profile email", "profile", "profile"},
		{"cannot widen", "openid", "openid profile admin", "openid"},
		{"granted order wins", "a b c", "c a", "a c"},
		{"no overlap", "openid", "admin", ""},
		{"empty requested", "openid profile", "", ""},
		{"empty granted", "", "openid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IntersectScopes(tt.granted, tt.requested))
		})
	}
}
