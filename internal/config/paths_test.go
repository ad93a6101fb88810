package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaths(t *testing.T) {
	paths, err := GetPaths()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(paths.ExecutableDir))
	assert.Equal(t, filepath.Join(paths.ExecutableDir, "logs"), paths.LogsDir)
	assert.Equal(t, filepath.Join(paths.LogsDir, LogFileName), paths.LogFile)
}

func TestPaths_EnsureDirectories(t *testing.T) {
	paths := PathsFor(t.TempDir())

	require.NoError(t, paths.EnsureDirectories())

	info, err := os.Stat(paths.LogsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPaths_ResolveLogFile(t *testing.T) {
	base := t.TempDir()
	paths := PathsFor(base)
	abs := filepath.Join(t.TempDir(), "custom.log")

	tests := []struct {
		name       string
		configured string
		want       string
	}{
		{name: "default", configured: "", want: paths.LogFile},
		{name: "relative", configured: "out/app.log", want: filepath.Join(base, "out", "app.log")},
		{name: "absolute", configured: abs, want: abs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paths.ResolveLogFile(tt.configured))
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(filepath.Join(dir, "missing.txt")))
}
