package mapgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/oshokin/factorio-up/internal/apperr"
	"github.com/oshokin/factorio-up/internal/identity"
	"github.com/oshokin/factorio-up/internal/logger"
	"github.com/oshokin/factorio-up/internal/service/finalizer"
)

// Options describe the save to create.
type Options struct {
	// Enabled turns map creation on.
	Enabled bool
	// SaveFile is the save to create.
	SaveFile string
	// MapGenSettings is passed as --map-gen-settings.
	MapGenSettings string
	// MapSettings is passed as --map-settings.
	MapSettings string
}

// Bootstrapper creates a new save with the installed server binary.
type Bootstrapper struct {
	// out receives the server's standard output.
	out io.Writer
	// output runs cmd and returns its standard output.
	output func(cmd *exec.Cmd) ([]byte, error)
}

// New returns a bootstrapper that relays server output to out.
func New(out io.Writer) *Bootstrapper {
	if out == nil {
		out = os.Stdout
	}

	return &Bootstrapper{
		out:    out,
		output: (*exec.Cmd).Output,
	}
}

// Bootstrap creates opts.SaveFile from the settings files by running the
// server binary under root as id.
//
// It does nothing when creation is disabled or the save already exists.
// Missing settings files are reported before anything is spawned.
// A non-zero exit of the server is logged, not returned, unless ctx ended.
func (b *Bootstrapper) Bootstrap(ctx context.Context, root string, opts Options, id *identity.Identity) error {
	if !opts.Enabled {
		return nil
	}

	exists, err := pathExists(opts.SaveFile)
	if err != nil {
		return err
	}

	if exists {
		logger.Infof(ctx, "%s already exists", opts.SaveFile)
		return nil
	}

	for _, settingsFile := range []string{opts.MapGenSettings, opts.MapSettings} {
		exists, err = pathExists(settingsFile)
		if err != nil {
			return err
		}

		if !exists {
			return apperr.NotFoundf("%s not found", settingsFile)
		}
	}

	executable := filepath.Join(root, filepath.FromSlash(finalizer.ExecutablePath))

	//nolint:gosec // The binary comes from the verified archive.
	cmd := exec.CommandContext(ctx, executable,
		"--map-gen-settings", opts.MapGenSettings,
		"--map-settings", opts.MapSettings,
		"--create", opts.SaveFile,
	)
	cmd.Stderr = os.Stderr

	if credential := id.Credential(); credential != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: credential}
	}

	logger.InfoKV(ctx, "Creating save", "save_file", opts.SaveFile, "user", id.String())

	stdout, err := b.output(cmd)

	// A child killed on cancellation is not a best-effort failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("create %s: %w", opts.SaveFile, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.WarnKV(ctx, "Save creation exited with an error", "exit_code", exitErr.ExitCode())
	} else if err != nil {
		return fmt.Errorf("run %s: %w", executable, err)
	}

	if _, err = fmt.Fprintln(b.out, string(stdout)); err != nil {
		return err
	}

	return nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
