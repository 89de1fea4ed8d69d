package locate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdp-inject/launcher/src/options"
)

func TestFindExplicitPath(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "target")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	got, err := Find(options.ElectronProfile, exe)
	require.NoError(t, err)
	assert.Equal(t, exe, got)
}

func TestFindExplicitPathMissing(t *testing.T) {
	_, err := Find(options.ChromiumProfile, filepath.Join(t.TempDir(), "gone"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestFindElectronHasNoDefault(t *testing.T) {
	_, err := Find(options.ElectronProfile, "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "pass the executable")
}

func TestFindNodeOnPath(t *testing.T) {
	dir := t.TempDir()
	name := "node"
	if filepath.Separator == '\\' {
		name = "node.exe"
	}
	exe := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	got, err := Find(options.NodeProfile, "")
	require.NoError(t, err)
	assert.Equal(t, exe, got)
}
