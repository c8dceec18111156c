package identity

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/oshokin/factorio-up/internal/logger"
)

// Identity is the user and group a privileged step runs as.
// A nil *Identity means "keep the invoking identity".
type Identity struct {
	// UID is the numeric user id.
	UID uint32
	// GID is the numeric primary group id.
	GID uint32
}

// Lookup maps an account name to its ids.
type Lookup func(name string) (*user.User, error)

// Resolve returns the identity of the named account, or nil when name is empty.
// An unknown account or a failed lookup also yields nil: the run continues as
// the invoking user, and a warning records the account that was skipped.
func Resolve(ctx context.Context, name string) *Identity {
	return ResolveWith(ctx, name, user.Lookup)
}

// ResolveWith is Resolve with a custom account lookup.
func ResolveWith(ctx context.Context, name string, lookup Lookup) *Identity {
	if name == "" {
		return nil
	}

	account, err := lookup(name)
	if err != nil {
		logger.WarnKV(ctx, "Unable to resolve user, running as the current user", "user", name, "error", err)
		return nil
	}

	id, err := fromAccount(account)
	if err != nil {
		logger.WarnKV(ctx, "Unable to parse user ids, running as the current user", "user", name, "error", err)
		return nil
	}

	logger.DebugKV(ctx, "Resolved user", "user", name, "uid", id.UID, "gid", id.GID)

	return id
}

// Credential converts the identity for use in exec.Cmd.SysProcAttr.
// A nil identity yields nil, which keeps the invoking identity.
func (id *Identity) Credential() *syscall.Credential {
	if id == nil {
		return nil
	}

	// Only root may drop supplementary groups; anyone else keeps them.
	return &syscall.Credential{
		Uid:         id.UID,
		Gid:         id.GID,
		Groups:      []uint32{},
		NoSetGroups: os.Getuid() != 0,
	}
}

// String renders the identity as uid:gid.
func (id *Identity) String() string {
	if id == nil {
		return "current"
	}

	return fmt.Sprintf("%d:%d", id.UID, id.GID)
}

func fromAccount(account *user.User) (*Identity, error) {
	uid, err := strconv.ParseUint(account.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("uid %q: %w", account.Uid, err)
	}

	gid, err := strconv.ParseUint(account.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("gid %q: %w", account.Gid, err)
	}

	return &Identity{UID: uint32(uid), GID: uint32(gid)}, nil
}
