// Package identity maps an OS account name to the uid and gid that the
// installer applies to files and processes.
package identity
