package rtsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opd-ai/rtsppush/transport"
	"github.com/sirupsen/logrus"
)

// Session publishes one audio stream over a single TCP connection: the
// handshake requests and the interleaved packets that follow share it.
//
// All methods are safe for concurrent use; requests and packet writes are
// serialized.
type Session struct {
	mu        sync.Mutex
	config    Config
	dialer    transport.Dialer
	conn      net.Conn
	reader    *bufio.Reader
	state     State
	cseq      int // last CSeq sent
	sessionID string

	// handshake is the context of a running ConnectAndStart.
	handshake context.Context
}

// NewSession creates an unconnected session. The dialer is built from
// config.DialTimeout and config.Proxy.
func NewSession(config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	dialer, err := transport.NewDialer(config.DialTimeout, config.Proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialer: %w", err)
	}
	return NewSessionWithDialer(config, dialer)
}

// NewSessionWithDialer creates an unconnected session that connects
// through dialer.
func NewSessionWithDialer(config Config, dialer transport.Dialer) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if dialer == nil {
		return nil, fmt.Errorf("dialer cannot be nil")
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewSession",
		"url":      config.URL(),
		"proxy":    config.Proxy != nil,
	}).Info("RTSP session created")

	return &Session{
		config: config,
		dialer: dialer,
		state:  StateUnconnected,
	}, nil
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the identifier captured from the SETUP response.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// CSeq returns the sequence number of the last request sent, zero before
// the first one.
func (s *Session) CSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cseq
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.config
}

// Connect opens the TCP connection.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnconnected {
		return newProtocolError("CONNECT", ErrInvalidState, fmt.Errorf("cannot connect in state %s", s.state))
	}

	addr := s.config.Address()
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Connect",
			"address":  addr,
			"error":    err.Error(),
		}).Error("Failed to connect to RTSP server")
		return newConnectionError("dial", addr, err)
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.state = StateConnected

	logrus.WithFields(logrus.Fields{
		"function": "Session.Connect",
		"address":  addr,
	}).Info("Connected to RTSP server")

	return nil
}

// SendOptions sends OPTIONS.
func (s *Session) SendOptions() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStateLocked(MethodOptions, StateConnected); err != nil {
		return err
	}
	req := s.newRequestLocked(MethodOptions, s.config.URL())
	if _, err := s.roundTripLocked(req); err != nil {
		return err
	}
	s.state = StateOptionsAcked
	return nil
}

// SendAnnounce sends ANNOUNCE with sdpBody as an application/sdp body.
func (s *Session) SendAnnounce(sdpBody []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStateLocked(MethodAnnounce, StateOptionsAcked); err != nil {
		return err
	}
	if len(sdpBody) == 0 {
		return newProtocolError(MethodAnnounce, ErrInvalidState, errors.New("empty session description"))
	}

	req := s.newRequestLocked(MethodAnnounce, s.config.URL())
	req.Add("Content-Type", "application/sdp")
	req.Body = sdpBody
	if _, err := s.roundTripLocked(req); err != nil {
		return err
	}
	s.state = StateAnnounced
	return nil
}

// SendSetup sends SETUP requesting TCP-interleaved record mode on channels
// 0 and 1, and stores the session identifier from the response.
//
// A successful response without a Session header still advances the
// state; RECORD then fails with ErrNoSession.
func (s *Session) SendSetup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStateLocked(MethodSetup, StateAnnounced); err != nil {
		return err
	}

	req := s.newRequestLocked(MethodSetup, s.config.StreamURL())
	req.Add("Transport", "RTP/AVP/TCP;unicast;interleaved=0-1;mode=record")
	resp, err := s.roundTripLocked(req)
	if err != nil {
		return err
	}

	if id, ok := resp.SessionID(); ok {
		s.sessionID = id
	} else {
		logrus.WithFields(logrus.Fields{
			"function": "Session.SendSetup",
			"status":   resp.StatusCode,
		}).Warn("SETUP response carried no Session header")
	}
	s.state = StateSetUp
	return nil
}

// SendRecord sends RECORD. It fails with ErrNoSession, without writing
// anything, when SETUP produced no session identifier.
func (s *Session) SendRecord() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStateLocked(MethodRecord, StateSetUp); err != nil {
		return err
	}
	if s.sessionID == "" {
		logrus.WithFields(logrus.Fields{
			"function": "Session.SendRecord",
		}).Error("No session identifier for RECORD")
		return newProtocolError(MethodRecord, ErrNoSession, nil)
	}

	req := s.newRequestLocked(MethodRecord, s.config.URL())
	req.Add("Range", "npt=0.000-")
	req.Add("Session", s.sessionID)
	if _, err := s.roundTripLocked(req); err != nil {
		return err
	}
	s.state = StateRecording

	logrus.WithFields(logrus.Fields{
		"function":   "Session.SendRecord",
		"url":        s.config.URL(),
		"session_id": s.sessionID,
	}).Info("RTSP session recording")

	return nil
}

// SendTeardown sends TEARDOWN and closes the connection whether or not a
// response arrives. An empty Session header is sent when SETUP produced no
// identifier.
func (s *Session) SendTeardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.teardownLocked()
}

func (s *Session) teardownLocked() error {
	if !s.state.hasConnection() {
		return newProtocolError(MethodTeardown, ErrInvalidState, fmt.Errorf("cannot tear down in state %s", s.state))
	}

	req := s.newRequestLocked(MethodTeardown, s.config.URL())
	req.Add("Session", s.sessionID)
	_, err := s.roundTripLocked(req)

	if closeErr := s.closeConnLocked(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// ConnectAndStart runs OPTIONS, ANNOUNCE, SETUP and RECORD in order,
// connecting first if needed. It stops at the first failure; nothing is
// retried. Cancelling ctx interrupts a pending response read.
func (s *Session) ConnectAndStart(ctx context.Context) error {
	if s.State() == StateUnconnected {
		if err := s.Connect(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return newProtocolError("CONNECT", ErrInvalidState, fmt.Errorf("no connection in state %s", s.State()))
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	s.mu.Lock()
	s.handshake = ctx
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.handshake = nil
		s.mu.Unlock()
	}()

	sdpBody, err := AnnounceSDP(s.config.Path, s.config.Host, s.config.Bandwidth)
	if err != nil {
		return err
	}

	steps := []struct {
		method string
		run    func() error
	}{
		{MethodOptions, s.SendOptions},
		{MethodAnnounce, func() error { return s.SendAnnounce(sdpBody) }},
		{MethodSetup, s.SendSetup},
		{MethodRecord, s.SendRecord},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("handshake cancelled before %s: %w", step.method, err)
		}
		if err := step.run(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("handshake cancelled during %s: %w", step.method, ctxErr)
			}
			logrus.WithFields(logrus.Fields{
				"function": "Session.ConnectAndStart",
				"method":   step.method,
				"error":    err.Error(),
			}).Error("RTSP handshake failed")
			return err
		}
	}

	if !stop() {
		return fmt.Errorf("handshake cancelled: %w", ctx.Err())
	}
	return nil
}

// WritePacket writes one interleaved envelope. It is only allowed while
// recording.
func (s *Session) WritePacket(envelope []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return newProtocolError("RTP", ErrInvalidState, fmt.Errorf("cannot stream in state %s", s.state))
	}

	if err := s.setWriteDeadlineLocked(); err != nil {
		return newConnectionError("write", s.config.Address(), err)
	}
	if _, err := s.conn.Write(envelope); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.WritePacket",
			"size":     len(envelope),
			"error":    err.Error(),
		}).Error("Failed to write interleaved packet")
		return newConnectionError("write", s.config.Address(), err)
	}
	return nil
}

// Close tears the session down if a connection is open and then closes the
// socket. Failures of the TEARDOWN exchange are logged, not returned.
// Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	if !s.state.hasConnection() {
		s.state = StateClosed
		return nil
	}

	if err := s.teardownLocked(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.Close",
			"session_id": s.sessionID,
			"error":      err.Error(),
		}).Warn("TEARDOWN failed")
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Session.Close",
		"session_id": s.sessionID,
	}).Info("RTSP session closed")

	return nil
}

func (s *Session) closeConnLocked() error {
	s.state = StateClosed
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	if err != nil {
		return newConnectionError("close", s.config.Address(), err)
	}
	return nil
}

func (s *Session) requireStateLocked(method string, want State) error {
	if s.state != want {
		logrus.WithFields(logrus.Fields{
			"function": "Session.requireState",
			"method":   method,
			"state":    s.state.String(),
			"expected": want.String(),
		}).Error("Request not allowed in current state")
		return newProtocolError(method, ErrInvalidState, fmt.Errorf("%s requires state %s, session is %s", method, want, s.state))
	}
	return nil
}

// newRequestLocked builds a request carrying the next CSeq and the
// User-Agent.
func (s *Session) newRequestLocked(method, url string) *Request {
	s.cseq++
	req := &Request{Method: method, URL: url}
	req.Add("CSeq", strconv.Itoa(s.cseq))
	if s.config.UserAgent != "" {
		req.Add("User-Agent", s.config.UserAgent)
	}
	return req
}

// roundTripLocked writes req and reads one response.
func (s *Session) roundTripLocked(req *Request) (*Response, error) {
	addr := s.config.Address()
	data := req.Marshal()

	logrus.WithFields(logrus.Fields{
		"function": "Session.roundTrip",
		"method":   req.Method,
		"url":      req.URL,
		"cseq":     s.cseq,
	}).Info("Sending RTSP request")

	if err := s.setWriteDeadlineLocked(); err != nil {
		return nil, newConnectionError("write", addr, err)
	}
	if _, err := s.conn.Write(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.roundTrip",
			"method":   req.Method,
			"error":    err.Error(),
		}).Error("Failed to write RTSP request")
		return nil, newConnectionError("write", addr, err)
	}

	if s.config.ReadTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
			return nil, newConnectionError("read", addr, err)
		}
		// A cancellation that fired before this point had its deadline
		// overwritten above.
		if s.handshake != nil && s.handshake.Err() != nil {
			s.conn.SetReadDeadline(time.Now())
		}
	}
	resp, err := ReadResponse(s.reader)
	if s.config.ReadTimeout > 0 {
		s.conn.SetReadDeadline(time.Time{})
	}
	if err != nil {
		perr := classifyReadError(req.Method, addr, err)
		logrus.WithFields(logrus.Fields{
			"function": "Session.roundTrip",
			"method":   req.Method,
			"error":    perr.Error(),
		}).Error("Failed to read RTSP response")
		return nil, perr
	}

	if cseq, ok := resp.Get("CSeq"); ok && cseq != strconv.Itoa(s.cseq) {
		logrus.WithFields(logrus.Fields{
			"function":      "Session.roundTrip",
			"method":        req.Method,
			"cseq":          s.cseq,
			"response_cseq": cseq,
		}).Warn("Response CSeq does not match request")
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.roundTrip",
		"method":   req.Method,
		"status":   resp.StatusCode,
		"reason":   resp.Reason,
	}).Info("Received RTSP response")

	if !resp.IsSuccess() {
		return resp, newProtocolError(req.Method, ErrUnexpectedStatus,
			fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(resp.Reason)))
	}
	return resp, nil
}

func (s *Session) setWriteDeadlineLocked() error {
	if s.config.WriteTimeout <= 0 {
		return nil
	}
	return s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
}

// classifyReadError maps a ReadResponse failure onto the error taxonomy.
func classifyReadError(method, addr string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		return newProtocolError(method, ErrNoResponse, nil)
	case errors.Is(err, ErrMalformedResponse):
		return newProtocolError(method, ErrMalformedResponse, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newProtocolError(method, ErrTimeout, err)
	default:
		return newConnectionError("read", addr, err)
	}
}
