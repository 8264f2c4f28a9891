package http

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phoenixiam/phoenix/pkg/cryptox"
)

func TestMain(m *testing.M) {
	// The flow tests hash passwords while seeding fixtures; give the
	// pepper loader a throwaway file.
	tmpDir, err := os.MkdirTemp("", "iam-http-test")
	if err != nil {
		os.Exit(1)
	}
	cryptox.SetPepperPath(filepath.Join(tmpDir, "pepper"))

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}
