// Package fetch is the HTTP side of the installer.
//
// It resolves redirect targets, reads small documents into memory and
// streams large artifacts to disk. Failures are reported as transport errors
// and are never retried here.
package fetch
