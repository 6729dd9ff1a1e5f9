package archive

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecFor(t *testing.T) {
	tests := []struct {
		path string
		want Codec
	}{
		{"session.cast", CodecNone},
		{"session.cast.zst", CodecZstd},
		{"session.log.ZSTD", CodecZstd},
		{"session.log.lz4", CodecLZ4},
		{"noext", CodecNone},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, CodecFor(tt.path))
		})
	}
}

func TestWriteFileReadFile(t *testing.T) {
	payload := []byte(strings.Repeat("[0.5, \"o\", \"login: \"]\n", 200))

	for _, name := range []string{"t.cast", "t.cast.zst", "t.cast.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, WriteFile(path, payload, 0o644))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			if CodecFor(name) != CodecNone {
				assert.Less(t, len(raw), len(payload))
			}

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
		})
	}
}

func TestWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, WriteFile(path, []byte("{}"), 0o600))
	require.NoError(t, WriteFile(path, []byte(`{"a":1}`), 0o600))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestCreateOpenStreaming(t *testing.T) {
	for _, name := range []string{"tee.log", "tee.log.zst", "tee.log.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			w, err := Create(path)
			require.NoError(t, err)
			for _, chunk := range []string{"U-Boot 2024.01\r\n", "Starting kernel ...\r\n", "login: "} {
				_, err := io.WriteString(w, chunk)
				require.NoError(t, err)
			}
			require.NoError(t, w.Close())

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close() //nolint:errcheck
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "U-Boot 2024.01\r\nStarting kernel ...\r\nlogin: ", string(got))
		})
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("steps: []"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest([]byte("steps: []")))
	assert.NotEqual(t, a, Digest([]byte("steps: [ ]")))

	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps: []"), 0o600))
	fromFile, err := DigestFile(path)
	require.NoError(t, err)
	assert.Equal(t, a, fromFile)

	_, err = DigestFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
