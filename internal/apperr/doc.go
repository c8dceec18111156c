// Package apperr defines the error kinds shared by the installer pipeline.
//
// Synthesized conditions (not found, invalid data, already exists) keep a
// human-readable message naming the resource and still match their sentinel
// with errors.Is. Fetch failures are wrapped as transport errors.
package apperr
