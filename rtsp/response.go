package rtsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opd-ai/rtsppush/av/rtp"
	"github.com/opd-ai/rtsppush/limits"
	"github.com/sirupsen/logrus"
)

// Response is an RTSP response.
type Response struct {
	StatusCode int
	Reason     string
	Header     []HeaderField
	Body       []byte
}

// Get returns the value of the first header named name, compared
// case-insensitively.
func (r *Response) Get(name string) (string, bool) {
	for _, h := range r.Header {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// SessionID returns the value of the Session header: everything after the
// first colon of the header line, trimmed. Parameters such as ";timeout=60"
// are kept.
func (r *Response) SessionID() (string, bool) {
	id, ok := r.Get("Session")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ReadResponse reads one response from br. Interleaved frames that arrive
// before the status line are discarded.
//
// io.EOF is returned only when the stream ends before the first byte of a
// response; truncated or unparsable responses wrap ErrMalformedResponse.
func ReadResponse(br *bufio.Reader) (*Response, error) {
	for {
		head, err := br.Peek(1)
		if err != nil {
			return nil, err
		}
		if head[0] != rtp.InterleavedMagic {
			break
		}
		var frame rtp.InterleavedFrame
		if err := frame.Unmarshal(br); err != nil {
			return nil, truncated(err)
		}
		logrus.WithFields(logrus.Fields{
			"function": "ReadResponse",
			"channel":  frame.Channel,
			"size":     len(frame.Payload),
		}).Debug("Skipped interleaved frame while awaiting response")
	}

	r := &response{br: br}
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}

	resp := &Response{}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "RTSP/") {
		return nil, fmt.Errorf("%w: status line %q", ErrMalformedResponse, line)
	}
	resp.StatusCode, err = strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 3 {
		return nil, fmt.Errorf("%w: status code %q", ErrMalformedResponse, parts[1])
	}
	if len(parts) == 3 {
		resp.Reason = parts[2]
	}

	for {
		line, err := r.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformedResponse, line)
		}
		resp.Header = append(resp.Header, HeaderField{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}

	if cl, ok := resp.Get("Content-Length"); ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: Content-Length %q", ErrMalformedResponse, cl)
		}
		if err := limits.ValidateResponseSize(r.size + n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		resp.Body = make([]byte, n)
		if _, err := io.ReadFull(br, resp.Body); err != nil {
			return nil, truncated(err)
		}
	}

	return resp, nil
}

// response tracks the size of the response being read.
type response struct {
	br   *bufio.Reader
	size int
}

// readLine reads one line without its CRLF or LF terminator.
func (r *response) readLine() (string, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		r.size += len(chunk)
		if sizeErr := limits.ValidateResponseSize(r.size); sizeErr != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, sizeErr)
		}
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && r.size == 0 {
			return "", io.EOF
		}
		return "", truncated(err)
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// truncated maps an EOF inside a response to ErrMalformedResponse and
// passes other errors through.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated: %v", ErrMalformedResponse, err)
	}
	return err
}
