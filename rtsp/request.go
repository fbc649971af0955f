package rtsp

import (
	"bytes"
	"strconv"
)

// RTSP methods used by a publisher.
const (
	MethodOptions  = "OPTIONS"
	MethodAnnounce = "ANNOUNCE"
	MethodSetup    = "SETUP"
	MethodRecord   = "RECORD"
	MethodTeardown = "TEARDOWN"
)

const protocolVersion = "RTSP/1.0"

// HeaderField is one request or response header line. Order is preserved
// on the wire.
type HeaderField struct {
	Name  string
	Value string
}

// Request is an RTSP request.
type Request struct {
	Method string
	URL    string
	Header []HeaderField
	Body   []byte
}

// Add appends a header.
func (r *Request) Add(name, value string) {
	r.Header = append(r.Header, HeaderField{Name: name, Value: value})
}

// Marshal encodes the request with CRLF line endings.
//
// A non-empty body is followed by CRLF and Content-Length counts those two
// bytes, so the declared length matches what is written.
func (r *Request) Marshal() []byte {
	var b bytes.Buffer
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL)
	b.WriteByte(' ')
	b.WriteString(protocolVersion)
	b.WriteString("\r\n")

	for _, h := range r.Header {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	if len(r.Body) > 0 {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body) + 2))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	if len(r.Body) > 0 {
		b.Write(r.Body)
		b.WriteString("\r\n")
	}
	return b.Bytes()
}
