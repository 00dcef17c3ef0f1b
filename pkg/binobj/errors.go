package binobj

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrConfig matches every *ConfigError.
	ErrConfig = errors.New("binobj: invalid layout configuration")

	// ErrEndOfStream is wrapped by reads that run past the end of the source.
	ErrEndOfStream = errors.New("binobj: end of stream")
)

// ConfigError reports a malformed layout: an unsupported primitive kind, a
// missing or invalid array length, an invalid string size or an unresolved
// sibling reference. It is raised when the offending field is decoded.
type ConfigError struct {
	Type   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("binobj: type %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("binobj: type %s field %s: %s", e.Type, e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func configErrorf(typ, field, format string, args ...any) *ConfigError {
	return &ConfigError{Type: typ, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// streamError tags io exhaustion with ErrEndOfStream and leaves other errors alone.
func streamError(err error, pos int64, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s at offset %d: %w", ErrEndOfStream, what, pos, err)
	}
	return fmt.Errorf("reading %s at offset %d: %w", what, pos, err)
}
