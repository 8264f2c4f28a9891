package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoleMap(t *testing.T) {
	t.Parallel()

	m, err := ParseRoleMap("1:user, 2:admin,4:auditor")
	require.NoError(t, err)
	require.Equal(t, RoleMap{1: "user", 2: "admin", 4: "auditor"}, m)

	m, err = ParseRoleMap("")
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestParseRoleMap_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"missing colon", "1user"},
		{"bad number", "x:user"},
		{"zero bit", "0:user"},
		{"not a power of two", "3:user"},
		{"empty name", "1:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoleMap(tt.input)
			require.Error(t, err)
		})
	}
}

func TestRoleMap_Resolve(t *testing.T) {
	t.Parallel()

	m := RoleMap{1: "user", 2: "admin", 8: "auditor"}

	require.Nil(t, m.Resolve(0))
	require.Equal(t, []string{"user"}, m.Resolve(1))
	require.Equal(t, []string{"user", "admin"}, m.Resolve(3))
	require.Equal(t, []string{"user", "admin", "auditor"}, m.Resolve(11))

	// Unmapped bits are ignored rather than failing.
	require.Equal(t, []string{"user"}, m.Resolve(1|4))
	require.Nil(t, RoleMap{}.Resolve(7))
}
