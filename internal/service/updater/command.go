package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/factorio-up/internal/apperr"
	"github.com/oshokin/factorio-up/internal/config"
	"github.com/oshokin/factorio-up/internal/fetch"
	"github.com/oshokin/factorio-up/internal/identity"
	"github.com/oshokin/factorio-up/internal/logger"
	"github.com/oshokin/factorio-up/internal/service/finalizer"
	"github.com/oshokin/factorio-up/internal/service/installer"
	"github.com/oshokin/factorio-up/internal/service/launcher"
	"github.com/oshokin/factorio-up/internal/service/mapgen"
)

var errSettingsNotInitialized = errors.New("settings are not initialized")

// Options are inputs accepted by the updater entry point.
type Options struct {
	// Settings describe the install and the command to launch.
	Settings *config.Settings
}

// processLauncher replaces the current process with a command.
type processLauncher interface {
	Launch(ctx context.Context, argv []string, id *identity.Identity) error
}

// runner holds the collaborators of a single install-and-launch run.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	settings     *config.Settings
	installer    *installer.Installer
	bootstrapper *mapgen.Bootstrapper
	launcher     processLauncher
	// resolveIdentity maps the configured account name to ids.
	resolveIdentity func(ctx context.Context, name string) *identity.Identity
}

// Run installs the latest stable server and launches the configured command.
// On a successful launch it does not return.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "factorio-up")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	return r.execute(ctx)
}

// newRunner wires the production collaborators. The fetch client lives for the whole run.
func newRunner(opts *Options) (*runner, error) {
	if opts == nil || opts.Settings == nil {
		return nil, errSettingsNotInitialized
	}

	if err := config.Validate(opts.Settings); err != nil {
		return nil, err
	}

	client := fetch.New(opts.Settings.Timeout)

	return &runner{
		settings:        opts.Settings,
		installer:       installer.New(client),
		bootstrapper:    mapgen.New(nil),
		launcher:        launcher.New(),
		resolveIdentity: identity.Resolve,
	}, nil
}

// execute runs the pipeline and logs a failure with its error kind.
func (r *runner) execute(ctx context.Context) error {
	err := r.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Run failed", "kind", string(apperr.KindOf(err)), "error", err)
	}

	return err
}

// Run executes the pipeline in order and stops at the first failure:
// 1) Resolve the download target.
// 2) Fetch its checksum.
// 3) Download the archive unless present, then verify it.
// 4) Extract it.
// 5) Hand the install root to the configured user.
// 6) Create symlinks.
// 7) Create the save if requested.
// 8) Replace this process with the command.
func (r *runner) Run(ctx context.Context) error {
	id := r.resolveIdentity(ctx, r.settings.User)

	root, err := r.install(ctx, id)
	if err != nil {
		return err
	}

	links := finalizer.Links{
		ExePath: r.settings.ExePath,
		DataDir: r.settings.DataDir,
	}
	if err = finalizer.CreateLinks(ctx, root, links); err != nil {
		return fmt.Errorf("create links: %w", err)
	}

	mapOptions := mapgen.Options{
		Enabled:        r.settings.InitMap,
		SaveFile:       r.settings.SaveFile,
		MapGenSettings: r.settings.MapGenSettings,
		MapSettings:    r.settings.MapSettings,
	}
	if err = r.bootstrapper.Bootstrap(ctx, root, mapOptions, id); err != nil {
		return fmt.Errorf("initialize map: %w", err)
	}

	if err = r.launcher.Launch(ctx, r.settings.Command, id); err != nil {
		return fmt.Errorf("launch command: %w", err)
	}

	return nil
}

// install fetches, verifies and unpacks the archive and returns the install root.
func (r *runner) install(ctx context.Context, id *identity.Identity) (string, error) {
	target, err := r.installer.ResolveDownload(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve download: %w", err)
	}

	hash, err := r.installer.FetchChecksum(ctx, target.Filename)
	if err != nil {
		return "", fmt.Errorf("fetch checksum: %w", err)
	}

	if err = r.installer.EnsureArchive(ctx, target, hash); err != nil {
		return "", fmt.Errorf("fetch archive: %w", err)
	}

	root, err := r.installer.Extract(ctx, target.Filename)
	if err != nil {
		return "", fmt.Errorf("extract archive: %w", err)
	}

	if err = finalizer.ApplyOwnership(ctx, root, id); err != nil {
		return "", fmt.Errorf("apply ownership: %w", err)
	}

	logger.Infof(ctx, "%s extracted to %s", target.Filename, root)

	return root, nil
}
