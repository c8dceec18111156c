package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/factorio-up/internal/apperr"
	"github.com/oshokin/factorio-up/internal/archive/archivetest"
)

// TestUnpackFormats extracts the same payload from every supported compression.
func TestUnpackFormats(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"server.tar.xz", "server.tar.gz", "server.tar.zst", "server.tar"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			archivePath := filepath.Join(dir, name)
			archivetest.Write(t, archivePath, archivetest.Payload()...)

			dest := filepath.Join(dir, "out")
			require.NoError(t, os.Mkdir(dest, 0o755))
			require.NoError(t, Unpack(context.Background(), archivePath, dest))

			info, err := os.Stat(filepath.Join(dest, "factorio", "bin", "x64", "factorio"))
			require.NoError(t, err)
			require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

			data, err := os.ReadFile(filepath.Join(dest, "factorio", "data", "base", "info.json"))
			require.NoError(t, err)
			require.JSONEq(t, `{"name":"base"}`, string(data))
		})
	}
}

// TestUnpackSymlink keeps symlinks as links.
func TestUnpackSymlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "links.tar.xz")
	archivetest.Write(t, archivePath,
		archivetest.Entry{Name: "factorio/data/core.txt", Body: "core"},
		archivetest.Entry{Name: "factorio/current", Linkname: "data"},
	)

	require.NoError(t, Unpack(context.Background(), archivePath, dir))

	target, err := os.Readlink(filepath.Join(dir, "factorio", "current"))
	require.NoError(t, err)
	require.Equal(t, "data", target)
}

// TestUnpackRejects covers unknown formats, traversal and corrupt streams.
func TestUnpackRejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	zipPath := filepath.Join(dir, "server.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("PK"), 0o600))
	require.ErrorIs(t, Unpack(context.Background(), zipPath, dir), apperr.ErrInvalidData)

	evilPath := filepath.Join(dir, "evil.tar")
	archivetest.Write(t, evilPath, archivetest.Entry{Name: "../escape.txt", Body: "x"})

	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.Mkdir(dest, 0o755))
	require.ErrorIs(t, Unpack(context.Background(), evilPath, dest), apperr.ErrInvalidData)

	_, err := os.Stat(filepath.Join(dir, "escape.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)

	corruptPath := filepath.Join(dir, "corrupt.tar.xz")
	require.NoError(t, os.WriteFile(corruptPath, []byte("definitely not xz"), 0o600))
	require.ErrorIs(t, Unpack(context.Background(), corruptPath, dest), apperr.ErrInvalidData)
}

// TestUnpackRejectsWritesThroughSymlinks keeps entries behind an archive symlink inside dest.
func TestUnpackRejectsWritesThroughSymlinks(t *testing.T) {
	t.Parallel()

	unpack := func(t *testing.T, entries []archivetest.Entry, exact bool) (string, error) {
		t.Helper()

		dir := t.TempDir()
		archivePath := filepath.Join(dir, "links.tar")

		if exact {
			archivetest.WriteExact(t, archivePath, entries...)
		} else {
			archivetest.Write(t, archivePath, entries...)
		}

		dest := filepath.Join(dir, "dest")
		require.NoError(t, os.Mkdir(dest, 0o755))

		return dest, Unpack(context.Background(), archivePath, dest)
	}

	t.Run("directory", func(t *testing.T) {
		t.Parallel()

		outside := t.TempDir()
		_, err := unpack(t, []archivetest.Entry{
			{Name: "factorio/"},
			{Name: "factorio/escape", Linkname: outside},
			{Name: "factorio/escape/pwned.txt", Body: "x"},
		}, true)
		require.ErrorIs(t, err, apperr.ErrInvalidData)

		_, err = os.Stat(filepath.Join(outside, "pwned.txt"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		victim := filepath.Join(t.TempDir(), "victim.txt")
		require.NoError(t, os.WriteFile(victim, []byte("original"), 0o600))

		_, err := unpack(t, []archivetest.Entry{
			{Name: "factorio/config", Linkname: victim},
			{Name: "factorio/config", Body: "overwritten"},
		}, false)
		require.ErrorIs(t, err, apperr.ErrInvalidData)

		data, err := os.ReadFile(victim)
		require.NoError(t, err)
		require.Equal(t, "original", string(data))
	})

	t.Run("hard link", func(t *testing.T) {
		t.Parallel()

		outside := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0o600))

		dest, err := unpack(t, []archivetest.Entry{
			{Name: "factorio/escape", Linkname: outside},
			{Name: "factorio/stolen", Hardlink: "factorio/escape/secret.txt"},
		}, false)
		require.ErrorIs(t, err, apperr.ErrInvalidData)

		_, err = os.Lstat(filepath.Join(dest, "factorio", "stolen"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

// TestUnpackCanceled stops before the first entry when the context is done.
func TestUnpackCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "server.tar.gz")
	archivetest.Write(t, archivePath, archivetest.Payload()...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, Unpack(ctx, archivePath, dir), context.Canceled)
}
