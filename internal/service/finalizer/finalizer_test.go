package finalizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/factorio-up/internal/identity"
)

func newRoot(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "factorio")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin", "x64"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin", "x64", "factorio"), nil, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigPathFile), []byte("config-path=x"), 0o644))

	return root
}

// TestApplyOwnershipNoIdentity leaves the payload untouched.
func TestApplyOwnershipNoIdentity(t *testing.T) {
	t.Parallel()

	root := newRoot(t)

	require.NoError(t, ApplyOwnership(context.Background(), root, nil))
	require.FileExists(t, filepath.Join(root, ConfigPathFile))
}

// TestApplyOwnership chowns to the current user, which needs no privileges, and drops the config file.
func TestApplyOwnership(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	//nolint:gosec // Test ids come from the running process.
	id := &identity.Identity{UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}

	require.NoError(t, ApplyOwnership(context.Background(), root, id))
	require.NoFileExists(t, filepath.Join(root, ConfigPathFile))

	// Running again fails because the config file is already gone.
	err := ApplyOwnership(context.Background(), root, id)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestApplyOwnershipMissingRoot surfaces the chown failure.
func TestApplyOwnershipMissingRoot(t *testing.T) {
	t.Parallel()

	//nolint:gosec // Test ids come from the running process.
	id := &identity.Identity{UID: uint32(os.Getuid()), GID: uint32(os.Getgid())}
	err := ApplyOwnership(context.Background(), filepath.Join(t.TempDir(), "missing"), id)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestCreateLinks creates the requested links and refuses to overwrite.
func TestCreateLinks(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	out := t.TempDir()
	links := Links{
		ExePath: filepath.Join(out, "factorio"),
		DataDir: filepath.Join(out, "data"),
	}

	require.NoError(t, CreateLinks(context.Background(), root, links))

	target, err := os.Readlink(links.ExePath)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "bin", "x64", "factorio"), target)

	target, err = os.Readlink(links.DataDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "data"), target)

	require.ErrorIs(t, CreateLinks(context.Background(), root, links), os.ErrExist)
}

// TestCreateLinksPartial handles a single destination and no destinations.
func TestCreateLinksPartial(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	out := t.TempDir()

	require.NoError(t, CreateLinks(context.Background(), root, Links{}))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Empty(t, entries)

	dataLink := filepath.Join(out, "data")
	require.NoError(t, CreateLinks(context.Background(), root, Links{DataDir: dataLink}))

	info, err := os.Stat(dataLink)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.NoFileExists(t, filepath.Join(out, "factorio"))
}
