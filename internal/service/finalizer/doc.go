// Package finalizer prepares an unpacked server payload for use: it hands
// the install root to the configured account and publishes symlinks to the
// binary and data directory.
package finalizer
