// Package checksum computes streaming sha256 digests and looks up expected
// hashes in published "hash  filename" manifests.
package checksum
