package finalizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/factorio-up/internal/identity"
	"github.com/oshokin/factorio-up/internal/logger"
)

const (
	// ConfigPathFile pins the server to a system-wide write path.
	// Without it the server discovers configuration in the user's home.
	ConfigPathFile = "config-path.cfg"

	// ExecutablePath is the server binary relative to the install root.
	ExecutablePath = "bin/x64/factorio"

	// DataPath is the data directory relative to the install root.
	DataPath = "data"
)

// Links lists optional symlink destinations. Empty fields are skipped.
type Links struct {
	// ExePath receives a link to the server binary.
	ExePath string
	// DataDir receives a link to the data directory.
	DataDir string
}

// ApplyOwnership gives root to id and removes ConfigPathFile from it.
// Only the root entry itself changes owner. A nil id leaves everything as is.
func ApplyOwnership(ctx context.Context, root string, id *identity.Identity) error {
	if id == nil {
		return nil
	}

	if err := os.Chown(root, int(id.UID), int(id.GID)); err != nil {
		return fmt.Errorf("change owner of %s: %w", root, err)
	}

	configPath := filepath.Join(root, ConfigPathFile)
	if err := os.Remove(configPath); err != nil {
		return fmt.Errorf("remove %s: %w", configPath, err)
	}

	logger.InfoKV(ctx, "Install root handed over", "path", root, "owner", id.String())

	return nil
}

// CreateLinks symlinks the server binary and data directory under root to
// the destinations in links. An existing destination is an error.
func CreateLinks(ctx context.Context, root string, links Links) error {
	pairs := []struct {
		source string
		link   string
	}{
		{source: filepath.Join(root, filepath.FromSlash(ExecutablePath)), link: links.ExePath},
		{source: filepath.Join(root, DataPath), link: links.DataDir},
	}

	for _, pair := range pairs {
		if pair.link == "" {
			continue
		}

		if err := os.Symlink(pair.source, pair.link); err != nil {
			return fmt.Errorf("link %s: %w", pair.link, err)
		}

		logger.InfoKV(ctx, "Created symlink", "link", pair.link, "target", pair.source)
	}

	return nil
}
