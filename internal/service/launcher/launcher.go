package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"

	"github.com/oshokin/factorio-up/internal/identity"
	"github.com/oshokin/factorio-up/internal/logger"
)

// Launcher replaces the current process with the server command.
type Launcher struct {
	// lookPath resolves the program name against PATH.
	lookPath func(file string) (string, error)
	// switchIdentity drops to the given identity.
	switchIdentity func(id *identity.Identity) error
	// exec replaces the process image. It only returns on failure.
	exec func(argv0 string, argv, envv []string) error
	// processes lists running processes.
	processes func() ([]ps.Process, error)
}

// New returns a launcher that really replaces the process.
func New() *Launcher {
	return &Launcher{
		lookPath:       exec.LookPath,
		switchIdentity: switchIdentity,
		exec:           unix.Exec,
		processes:      ps.Processes,
	}
}

// Launch runs argv in place of the current process, as id when id is set.
// An empty argv does nothing. On success Launch never returns; any returned
// error means the process could not be replaced.
func (l *Launcher) Launch(ctx context.Context, argv []string, id *identity.Identity) error {
	if len(argv) == 0 {
		logger.Debug(ctx, "No command to launch")
		return nil
	}

	program, err := l.lookPath(argv[0])
	if err != nil {
		return fmt.Errorf("find %s: %w", argv[0], err)
	}

	l.warnIfRunning(ctx, program)

	// An interrupt during the earlier steps must not start the server.
	if err = ctx.Err(); err != nil {
		return err
	}

	// Identity changes and exec happen on one OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if id != nil {
		if err = l.switchIdentity(id); err != nil {
			return fmt.Errorf("switch to %s: %w", id, err)
		}
	}

	logger.InfoKV(ctx, "Launching command", "program", program, "args", argv[1:], "user", id.String())
	logger.Sync()

	if err = l.exec(program, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", program, err)
	}

	return nil
}

// warnIfRunning logs when another process runs the same executable.
// A second server on the same save and port usually fails late and obscurely.
func (l *Launcher) warnIfRunning(ctx context.Context, program string) {
	processList, err := l.processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	name := filepath.Base(program)
	self := os.Getpid()

	for _, process := range processList {
		if process.Pid() == self || process.Executable() != name {
			continue
		}

		logger.WarnKV(ctx, "Another instance is already running", "executable", name, "pid", process.Pid())
	}
}

// switchIdentity drops supplementary groups when allowed, then sets gid and uid.
// The order matters: after setuid the process may no longer change its group.
// The syscall package applies each change to every thread of the process.
func switchIdentity(id *identity.Identity) error {
	if os.Getuid() == 0 {
		if err := syscall.Setgroups([]int{}); err != nil {
			return fmt.Errorf("setgroups: %w", err)
		}
	}

	if err := syscall.Setgid(int(id.GID)); err != nil {
		return fmt.Errorf("setgid %d: %w", id.GID, err)
	}

	if err := syscall.Setuid(int(id.UID)); err != nil {
		return fmt.Errorf("setuid %d: %w", id.UID, err)
	}

	return nil
}
