package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound is returned when a configured root or file is missing.
	ErrSourceNotFound = errors.New("source not found")
	// ErrRead is returned when a source can't be listed or read.
	ErrRead = errors.New("read error")
	// ErrDuplicateEntry is returned when an archive path is submitted twice.
	ErrDuplicateEntry = errors.New("duplicate archive entry")
	// ErrWrite is returned when the output can't be written.
	ErrWrite = errors.New("write error")
	// ErrInvalidState is returned for writer operations issued in the wrong
	// state, e.g. after finalize or abort.
	ErrInvalidState = errors.New("invalid archive writer state")
)

// Errorf wraps err with the kind sentinel and a formatted context message.
// The result matches both kind and err with errors.Is.
func Errorf(kind error, err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if err == nil {
		return fmt.Errorf("%w: %s", kind, msg)
	}

	return fmt.Errorf("%w: %s: %w", kind, msg, err)
}
