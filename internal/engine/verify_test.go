package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile(t *testing.T) {
	for _, algo := range []HashAlgo{HashBLAKE3, HashXXHash} {
		t.Run(string(algo), func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "test.txt")
			require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

			h1, err := HashFile(path, algo)
			require.NoError(t, err)
			assert.NotEmpty(t, h1)

			// Same content should produce the same hash.
			path2 := filepath.Join(dir, "test2.txt")
			require.NoError(t, os.WriteFile(path2, []byte("hello world"), 0o644))
			h2, err := HashFile(path2, algo)
			require.NoError(t, err)
			assert.Equal(t, h1, h2)

			// Different content should produce a different hash.
			path3 := filepath.Join(dir, "test3.txt")
			require.NoError(t, os.WriteFile(path3, []byte("different content"), 0o644))
			h3, err := HashFile(path3, algo)
			require.NoError(t, err)
			assert.NotEqual(t, h1, h3)
		})
	}
}

func TestHashFileDigestLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	b3, err := HashFile(path, HashBLAKE3)
	require.NoError(t, err)
	assert.Len(t, b3, 64) // 32-byte digest

	xx, err := HashFile(path, HashXXHash)
	require.NoError(t, err)
	assert.Len(t, xx, 16) // 8-byte digest
}

func TestHashFileNotExist(t *testing.T) {
	_, err := HashFile("/nonexistent/file", HashBLAKE3)
	assert.Error(t, err)
}

func TestParseHashAlgo(t *testing.T) {
	tests := []struct {
		in   string
		want HashAlgo
	}{
		{"", HashBLAKE3},
		{"blake3", HashBLAKE3},
		{"xxhash", HashXXHash},
	}
	for _, tt := range tests {
		got, err := ParseHashAlgo(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseHashAlgo("md5")
	assert.Error(t, err)
}

func TestVerifyCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	same := filepath.Join(dir, "same")
	diff := filepath.Join(dir, "diff")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(same, []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(diff, []byte("payloaX"), 0o644))

	require.NoError(t, verifyCopy(src, same, HashBLAKE3))

	err := verifyCopy(src, diff, HashXXHash)
	require.Error(t, err)
	assert.ErrorIs(t, err, VerifyFailed)
	assert.Contains(t, err.Error(), "checksum mismatch")

	err = verifyCopy(src, filepath.Join(dir, "missing"), HashBLAKE3)
	assert.ErrorIs(t, err, VerifyFailed)
}
