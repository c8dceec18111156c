package checksum

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/factorio-up/internal/apperr"
)

// TestDigest checks known vectors, determinism and sensitivity to a changed byte.
func TestDigest(t *testing.T) {
	t.Parallel()

	empty, err := Digest(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", empty)

	abc, err := Digest(strings.NewReader("abc"))
	require.NoError(t, err)
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", abc)

	// Larger than one buffer so the digest spans several chunks.
	content := bytes.Repeat([]byte("factorio"), BufferSize/4)

	first, err := Digest(bytes.NewReader(content))
	require.NoError(t, err)

	second, err := Digest(bytes.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, first, second)

	content[len(content)/2] ^= 0xff

	changed, err := Digest(bytes.NewReader(content))
	require.NoError(t, err)
	require.NotEqual(t, first, changed)
}

// TestFindHash covers matching, first-match-wins and the error kinds.
func TestFindHash(t *testing.T) {
	t.Parallel()

	manifest := []byte("abc123  foo/bar.tar.xz\ndeadbeef  foo/baz.tar.xz\n")

	hash, err := FindHash(manifest, "baz.tar.xz")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", hash)

	_, err = FindHash(manifest, "nomatch.tar.xz")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// The filename must end the line, not merely appear in it.
	_, err = FindHash([]byte("abc123  baz.tar.xz.sig\n"), "baz.tar.xz")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	hash, err = FindHash([]byte("111  a.tar.xz\r\n222  a.tar.xz\r\n"), "a.tar.xz")
	require.NoError(t, err)
	require.Equal(t, "111", hash)

	_, err = FindHash([]byte{0xff, 0xfe, 'x'}, "x")
	require.ErrorIs(t, err, apperr.ErrInvalidData)
}

// TestVerify checks success on a matching digest and invalid data otherwise.
func TestVerify(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.tar.xz")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	expected, err := DigestFile(path)
	require.NoError(t, err)

	require.NoError(t, Verify(path, expected))

	err = Verify(path, "zzz999")
	require.ErrorIs(t, err, apperr.ErrInvalidData)
	require.Contains(t, err.Error(), "file hash does not match")

	// Comparison is exact, so an uppercase digest is rejected.
	require.ErrorIs(t, Verify(path, strings.ToUpper(expected)), apperr.ErrInvalidData)

	err = Verify(filepath.Join(t.TempDir(), "missing"), expected)
	require.ErrorIs(t, err, os.ErrNotExist)
}
