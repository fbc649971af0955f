package rtsp

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ProtocolError
		message string
	}{
		{
			name:    "Kind only",
			err:     newProtocolError(MethodRecord, ErrNoSession, nil),
			message: "rtsp RECORD: no session identifier",
		},
		{
			name:    "With detail",
			err:     newProtocolError(MethodSetup, ErrUnexpectedStatus, errors.New("454 Session Not Found")),
			message: "rtsp SETUP: 454 Session Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.ErrorIs(t, tt.err, tt.err.Kind)
			assert.NotErrorIs(t, tt.err, ErrTimeout)

			wrapped := fmt.Errorf("handshake: %w", tt.err)
			var perr *ProtocolError
			require.ErrorAs(t, wrapped, &perr)
			assert.Equal(t, tt.err.Method, perr.Method)
			assert.ErrorIs(t, wrapped, tt.err.Kind)
		})
	}
}

func TestConnectionError(t *testing.T) {
	err := newConnectionError("write", "10.0.0.1:554", io.ErrClosedPipe)
	assert.Equal(t, "rtsp write 10.0.0.1:554: io: read/write on closed pipe", err.Error())
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	noAddr := newConnectionError("read", "", io.EOF)
	assert.Equal(t, "rtsp read: EOF", noAddr.Error())
}

func TestClassifyReadError(t *testing.T) {
	timeout := &timeoutError{}

	tests := []struct {
		name     string
		err      error
		wantKind error
		wantConn bool
	}{
		{name: "EOF before response", err: io.EOF, wantKind: ErrNoResponse},
		{name: "Malformed", err: fmt.Errorf("%w: status line", ErrMalformedResponse), wantKind: ErrMalformedResponse},
		{name: "Deadline", err: timeout, wantKind: ErrTimeout},
		{name: "Reset", err: errors.New("connection reset by peer"), wantConn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyReadError(MethodOptions, "127.0.0.1:554", tt.err)
			if tt.wantConn {
				var cerr *ConnectionError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, "read", cerr.Op)
				return
			}
			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, MethodOptions, perr.Method)
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}
}

type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }
