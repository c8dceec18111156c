// Package installer fetches the latest stable server archive, checks it
// against the published sha256 manifest and unpacks it into a fresh
// directory.
//
// A file already present under the archive name is reused instead of being
// downloaded, but it is always verified before extraction.
package installer
