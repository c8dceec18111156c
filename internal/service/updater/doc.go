// Package updater runs the whole install-and-launch pipeline.
//
// It resolves the latest stable archive, verifies it against the published
// checksums, unpacks it into a fresh directory, prepares ownership and
// symlinks, optionally creates a save and finally replaces the process with
// the configured command. The first failing step aborts the run.
package updater
