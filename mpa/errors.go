package mpa

import (
	"errors"
	"fmt"
)

// Retry signals. Neither indicates malformed input.
var (
	// ErrNoFrame indicates the buffer is empty.
	ErrNoFrame = errors.New("no frame available")

	// ErrInsufficientData indicates a tag or frame is only partially buffered.
	ErrInsufficientData = errors.New("insufficient data")
)

// Usage errors.
var (
	// ErrTagOrder indicates ExtractTag was called twice or after a frame.
	ErrTagOrder = errors.New("tag must be extracted once, before any frame")
)

// Format error kinds, carried in FormatError.Kind.
var (
	// ErrUnsupportedTag indicates the stream does not begin with an ID3v2 tag.
	ErrUnsupportedTag = errors.New("unsupported tag")

	// ErrUnsupportedHeader indicates a reserved or undefined header code.
	ErrUnsupportedHeader = errors.New("unsupported frame header")

	// ErrLostSync indicates the buffer front is not a frame sync marker.
	ErrLostSync = errors.New("frame sync not found")

	// ErrInvalidFrameLength indicates a supported header produced an
	// impossible frame length.
	ErrInvalidFrameLength = errors.New("invalid frame length")
)

// FormatError reports malformed input at a stream offset.
type FormatError struct {
	Kind   error  // one of the format error kinds above
	Offset uint64 // stream offset of the offending tag or header
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("mpa: %v at offset %d: %s", e.Kind, e.Offset, e.Detail)
	}
	return fmt.Sprintf("mpa: %v at offset %d", e.Kind, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Kind
}

// newFormatError creates a new FormatError
func newFormatError(kind error, offset uint64, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Kind:   kind,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
	}
}

// IsRecoverable reports whether err only asks the caller to ingest more data.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNoFrame) || errors.Is(err, ErrInsufficientData)
}
