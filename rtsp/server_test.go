package rtsp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/opd-ai/rtsppush/av/rtp"
	"github.com/stretchr/testify/require"
)

// recordedRequest is a request as the fake server received it.
type recordedRequest struct {
	Method  string
	URL     string
	Headers []HeaderField
	Body    []byte
}

func (r recordedRequest) Get(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// replyFunc returns the raw response for a request. Returning "" closes the
// connection without replying; returning hangUp leaves the request
// unanswered.
type replyFunc func(req recordedRequest) string

const hangUp = "\x00hang"

// fakeServer is an in-process RTSP server accepting one publisher.
type fakeServer struct {
	t        *testing.T
	ln       net.Listener
	mu       sync.Mutex
	requests []recordedRequest
	frames   []rtp.InterleavedFrame
	replies  map[string]replyFunc
	done     chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{
		t:       t,
		ln:      ln,
		replies: make(map[string]replyFunc),
		done:    make(chan struct{}),
	}
	t.Cleanup(func() { ln.Close() })

	go s.serve()
	return s
}

// okReply answers with 200 and echoes CSeq; SETUP also gets a Session.
func okReply(req recordedRequest) string {
	extra := ""
	if req.Method == MethodSetup {
		extra = "Session: 4CA5A733;timeout=60\r\n"
	}
	return fmt.Sprintf("RTSP/1.0 200 OK\r\nCSeq: %s\r\n%s\r\n", req.Get("CSeq"), extra)
}

func (s *fakeServer) setReply(method string, reply replyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[method] = reply
}

func (s *fakeServer) config() Config {
	c := DefaultConfig()
	addr := s.ln.Addr().(*net.TCPAddr)
	c.Host = "127.0.0.1"
	c.Port = addr.Port
	c.Path = "live/radio"
	c.UserAgent = "rtsppush-test"
	return c
}

func (s *fakeServer) serve() {
	defer close(s.done)

	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	br := bufio.NewReader(conn)
	for {
		head, err := br.Peek(1)
		if err != nil {
			return
		}
		if head[0] == rtp.InterleavedMagic {
			var frame rtp.InterleavedFrame
			if err := frame.Unmarshal(br); err != nil {
				return
			}
			s.mu.Lock()
			s.frames = append(s.frames, frame)
			s.mu.Unlock()
			continue
		}

		req, err := readRecordedRequest(br)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		reply, ok := s.replies[req.Method]
		s.mu.Unlock()
		if !ok {
			reply = okReply
		}

		raw := reply(req)
		switch raw {
		case "":
			return
		case hangUp:
			io.Copy(io.Discard, br)
			return
		}
		if _, err := conn.Write([]byte(raw)); err != nil {
			return
		}
	}
}

func readRecordedRequest(br *bufio.Reader) (recordedRequest, error) {
	var req recordedRequest

	line, err := br.ReadString('\n')
	if err != nil {
		return req, err
	}
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), " ", 3)
	if len(parts) != 3 || parts[2] != "RTSP/1.0" {
		return req, fmt.Errorf("bad request line %q", line)
	}
	req.Method, req.URL = parts[0], parts[1]

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return req, err
		}
		if !strings.HasSuffix(line, "\r\n") {
			return req, fmt.Errorf("line without CRLF: %q", line)
		}
		line = strings.TrimSuffix(line, "\r\n")
		if line == "" {
			break
		}
		name, value, _ := strings.Cut(line, ":")
		req.Headers = append(req.Headers, HeaderField{Name: name, Value: strings.TrimSpace(value)})
	}

	if cl := req.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err != nil {
			return req, err
		}
		req.Body = make([]byte, n)
		if _, err := io.ReadFull(br, req.Body); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (s *fakeServer) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func (s *fakeServer) Frames() []rtp.InterleavedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rtp.InterleavedFrame(nil), s.frames...)
}

// wait blocks until the client connection has been fully read.
func (s *fakeServer) wait() {
	<-s.done
}
