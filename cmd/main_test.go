package main

import (
	"path/filepath"
	"testing"

	"github.com/enjoys-in/airsend-calc/config"
	"github.com/stretchr/testify/assert"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--env", filepath.Join(t.TempDir(), "missing.env")))
	return cmd.Execute()
}

func TestRootCmd_RejectsPrivilegedPort(t *testing.T) {
	assert.ErrorIs(t, execute(t, "--port", "80"), config.ErrInvalidPort)
	assert.ErrorIs(t, execute(t, "-p", "1023"), config.ErrInvalidPort)
	assert.ErrorIs(t, execute(t, "-p", "70000"), config.ErrInvalidPort)
}

func TestRootCmd_RejectsBadArguments(t *testing.T) {
	assert.Error(t, execute(t, "-p", "eighty"))
	assert.Error(t, execute(t, "--colour"))
	assert.Error(t, execute(t, "extra"))
}
