package rtsp

import (
	"errors"
	"fmt"
)

// Kinds of ProtocolError.
var (
	// ErrNoResponse indicates the server closed the connection before sending
	// any byte of a response
	ErrNoResponse = errors.New("no response")

	// ErrNoSession indicates RECORD was attempted without a session identifier
	ErrNoSession = errors.New("no session identifier")

	// ErrTimeout indicates the read deadline passed while waiting for a response
	ErrTimeout = errors.New("response timed out")

	// ErrUnexpectedStatus indicates a response with a non-2xx status code
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrInvalidState indicates an operation not allowed in the current state
	ErrInvalidState = errors.New("invalid session state")

	// ErrMalformedResponse indicates bytes that do not parse as an RTSP response
	ErrMalformedResponse = errors.New("malformed response")
)

// ProtocolError reports a failed RTSP exchange.
type ProtocolError struct {
	Method string // request method, or "RTP" for streamed data
	Kind   error  // one of the Err* kinds above
	Err    error  // detail, may be nil
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rtsp %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("rtsp %s: %v", e.Method, e.Kind)
}

// Is reports whether target is the error's kind.
func (e *ProtocolError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func newProtocolError(method string, kind, err error) *ProtocolError {
	return &ProtocolError{
		Method: method,
		Kind:   kind,
		Err:    err,
	}
}

// ConnectionError reports a transport-level failure to connect, read or
// write.
type ConnectionError struct {
	Op   string // "dial", "read", "write"
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("rtsp %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("rtsp %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func newConnectionError(op, addr string, err error) *ConnectionError {
	return &ConnectionError{
		Op:   op,
		Addr: addr,
		Err:  err,
	}
}
