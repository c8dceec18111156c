package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/factorio-up/internal/apperr"
	"github.com/oshokin/factorio-up/internal/archive"
	"github.com/oshokin/factorio-up/internal/checksum"
	"github.com/oshokin/factorio-up/internal/logger"
)

const (
	// RedirectURL points at the latest stable headless Linux build.
	RedirectURL = "https://factorio.com/get-download/stable/headless/linux64"

	// ChecksumURL serves the sha256 manifest of every published build.
	ChecksumURL = "https://www.factorio.com/download/sha256sums/"

	// PayloadDir is the directory inside the archive that holds the server.
	PayloadDir = "factorio"

	// installDirPrefix names the per-run extraction directory.
	installDirPrefix = "factorio-"

	// installDirMode is the permission of the extraction directory.
	installDirMode os.FileMode = 0o755
)

// Fetcher is the transport the installer needs.
type Fetcher interface {
	// RedirectTarget returns where rawURL redirects to.
	RedirectTarget(ctx context.Context, rawURL string) (string, error)
	// Fetch returns the body of rawURL.
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
	// FetchToFile streams the body of rawURL into filename.
	FetchToFile(ctx context.Context, rawURL, filename string) error
}

// Target is the resolved download.
type Target struct {
	// URL is the final download address.
	URL string
	// Filename is the last path segment of URL, without query.
	Filename string
}

// Installer downloads, verifies and unpacks the server archive.
type Installer struct {
	fetcher     Fetcher
	redirectURL string
	checksumURL string
	// tempDir is the parent of per-run extraction directories.
	tempDir string
	// now stamps extraction directories.
	now func() time.Time
}

// Option configures the installer.
type Option func(*Installer)

// WithEndpoints overrides the redirect and manifest addresses.
func WithEndpoints(redirectURL, checksumURL string) Option {
	return func(i *Installer) {
		i.redirectURL = redirectURL
		i.checksumURL = checksumURL
	}
}

// WithTempDir sets the parent directory of extraction directories.
func WithTempDir(dir string) Option {
	return func(i *Installer) {
		i.tempDir = dir
	}
}

// New creates an installer that talks to the official endpoints.
func New(fetcher Fetcher, opts ...Option) *Installer {
	i := &Installer{
		fetcher:     fetcher,
		redirectURL: RedirectURL,
		checksumURL: ChecksumURL,
		tempDir:     os.TempDir(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// ResolveDownload follows the stable redirect and derives the archive filename.
func (i *Installer) ResolveDownload(ctx context.Context) (*Target, error) {
	location, err := i.fetcher.RedirectTarget(ctx, i.redirectURL)
	if err != nil {
		return nil, err
	}

	filename, err := ParseFilename(location)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Resolved download", "url", location, "filename", filename)

	return &Target{URL: location, Filename: filename}, nil
}

// ParseFilename returns the last path segment of rawURL with query and fragment removed.
func ParseFilename(rawURL string) (string, error) {
	withoutQuery, _, _ := strings.Cut(rawURL, "?")
	withoutQuery, _, _ = strings.Cut(withoutQuery, "#")

	slash := strings.LastIndex(withoutQuery, "/")
	if slash < 0 {
		return "", apperr.NotFoundf("no '/' found in %s", rawURL)
	}

	filename := withoutQuery[slash+1:]
	if filename == "" || filename == "." || filename == ".." || strings.ContainsRune(filename, '\\') {
		return "", apperr.NotFoundf("no filename found in %s", rawURL)
	}

	return filename, nil
}

// FetchChecksum downloads the manifest and returns the expected hash of filename.
func (i *Installer) FetchChecksum(ctx context.Context, filename string) (string, error) {
	manifest, err := i.fetcher.Fetch(ctx, i.checksumURL)
	if err != nil {
		return "", err
	}

	return checksum.FindHash(manifest, filename)
}

// EnsureArchive downloads target unless a file with its name already exists,
// then verifies the file against hash in both cases.
// A stale file that fails verification is reported, not downloaded again.
func (i *Installer) EnsureArchive(ctx context.Context, target *Target, hash string) error {
	_, err := os.Stat(target.Filename)

	switch {
	case err == nil:
		logger.Infof(ctx, "%s already exists", target.Filename)
	case errors.Is(err, os.ErrNotExist):
		logger.InfoKV(ctx, "Downloading archive", "url", target.URL, "filename", target.Filename)

		if err = i.fetcher.FetchToFile(ctx, target.URL, target.Filename); err != nil {
			return err
		}
	default:
		return err
	}

	logger.DebugKV(ctx, "Verifying archive checksum", "filename", target.Filename, "sha256", hash)

	return checksum.Verify(target.Filename, hash)
}

// Extract unpacks filename into a new directory under the temp dir and
// returns the path of the server payload inside it.
// A failed extraction leaves the partial directory behind.
func (i *Installer) Extract(ctx context.Context, filename string) (string, error) {
	dest := filepath.Join(i.tempDir, fmt.Sprintf("%s%d", installDirPrefix, i.now().UnixMilli()))

	if err := os.Mkdir(dest, installDirMode); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", apperr.AlreadyExists(fmt.Sprintf("install directory %s already exists", dest))
		}

		return "", err
	}

	if err := archive.Unpack(ctx, filename, dest); err != nil {
		return "", fmt.Errorf("unpack %s: %w", filename, err)
	}

	return filepath.Join(dest, PayloadDir), nil
}
