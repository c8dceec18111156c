package apperr

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound marks a missing resource: a file, a manifest entry or a redirect.
	ErrNotFound = errors.New("not found")
	// ErrInvalidData marks content that failed validation, e.g. a checksum mismatch.
	ErrInvalidData = errors.New("invalid data")
	// ErrAlreadyExists marks a path that was expected to be fresh.
	ErrAlreadyExists = errors.New("already exists")
	// ErrTransport marks a network or protocol failure of the fetch client.
	ErrTransport = errors.New("transport failure")
)

// Kind classifies errors for the exit path.
type Kind string

const (
	// KindIO covers filesystem and process failures, including synthesized conditions.
	KindIO Kind = "io"
	// KindTransport covers fetch failures.
	KindTransport Kind = "transport"
)

// condition is a synthesized I/O error carrying a human-readable message.
type condition struct {
	// kind is one of the package sentinels.
	kind error
	// message describes the specific resource involved.
	message string
}

func (e *condition) Error() string {
	return e.message
}

// Is matches the sentinel kind and its io/fs equivalent.
func (e *condition) Is(target error) bool {
	switch target {
	case e.kind:
		return true
	case fs.ErrNotExist:
		return e.kind == ErrNotFound
	case fs.ErrExist:
		return e.kind == ErrAlreadyExists
	default:
		return false
	}
}

// NotFound returns an error reporting a missing resource.
func NotFound(message string) error {
	return &condition{kind: ErrNotFound, message: message}
}

// NotFoundf is NotFound with formatting.
func NotFoundf(format string, args ...any) error {
	return NotFound(fmt.Sprintf(format, args...))
}

// InvalidData returns an error reporting content that failed validation.
func InvalidData(message string) error {
	return &condition{kind: ErrInvalidData, message: message}
}

// InvalidDataf is InvalidData with formatting.
func InvalidDataf(format string, args ...any) error {
	return InvalidData(fmt.Sprintf(format, args...))
}

// AlreadyExists returns an error reporting a path that should not exist yet.
func AlreadyExists(message string) error {
	return &condition{kind: ErrAlreadyExists, message: message}
}

// TransportError wraps a failure of the fetch client.
type TransportError struct {
	// URL is the address being fetched.
	URL string
	// Err is the underlying cause.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports a match against ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Transport wraps err as a fetch failure for url. A nil err stays nil.
func Transport(url string, err error) error {
	if err == nil {
		return nil
	}

	return &TransportError{URL: url, Err: err}
}

// KindOf classifies err. Anything that is not a transport failure is I/O.
func KindOf(err error) Kind {
	if errors.Is(err, ErrTransport) {
		return KindTransport
	}

	return KindIO
}
