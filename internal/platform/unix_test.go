//go:build !windows

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixPlatform_Name(t *testing.T) {
	assert.Equal(t, "unix", New().Name())
}

func TestUnixPlatform_WrapCommand(t *testing.T) {
	p := New()
	cmd := p.WrapCommand([]string{"sudo", "sd-mux-ctrl", "-e", "sdw1", "-u"}, nil)

	assert.Equal(t, "sh", filepath.Base(cmd.Path))
	assert.Equal(t, []string{"sh", "-c", "sudo sd-mux-ctrl -e sdw1 -u"}, cmd.Args)
	assert.Nil(t, cmd.Env)
}

func TestUnixPlatform_WrapCommand_WithEnv(t *testing.T) {
	env := []string{"FOO=bar", "PATH=/usr/bin"}
	cmd := New().WrapCommand([]string{"true"}, env)
	assert.Equal(t, env, cmd.Env)
}

func TestUnixPlatform_Resolve(t *testing.T) {
	resolved, err := New().Resolve("sh", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
}

func TestUnixPlatform_Resolve_ExcludeDir(t *testing.T) {
	dir := t.TempDir()
	decoy := filepath.Join(dir, "sh")
	require.NoError(t, os.WriteFile(decoy, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	resolved, err := New().Resolve("sh", dir)
	require.NoError(t, err)
	assert.NotEqual(t, decoy, resolved)
}

func TestUnixPlatform_Resolve_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "sd-mux-ctrl")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755))

	resolved, err := New().Resolve(tool, "")
	require.NoError(t, err)
	assert.Equal(t, tool, resolved)

	plain := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))
	_, err = New().Resolve(plain, "")
	require.Error(t, err)
}

func TestUnixPlatform_Resolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantErr string
	}{
		{"empty", "", "command must be non-empty"},
		{"missing", "nonexistent-command-xyz-12345", "command not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Resolve(tt.command, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilterPath(t *testing.T) {
	sep := string(os.PathListSeparator)
	assert.Equal(t, "/a"+sep+"/c", filterPath("/a"+sep+"/b"+sep+"/c", "/b"))
	assert.Equal(t, "/a"+sep+"/b", filterPath("/a"+sep+"/b", ""))
}
