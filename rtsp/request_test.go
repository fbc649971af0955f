package rtsp

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMarshalWithoutBody(t *testing.T) {
	req := &Request{Method: MethodOptions, URL: "rtsp://10.0.0.1:554/live"}
	req.Add("CSeq", "1")
	req.Add("User-Agent", "test")

	want := "OPTIONS rtsp://10.0.0.1:554/live RTSP/1.0\r\n" +
		"CSeq: 1\r\n" +
		"User-Agent: test\r\n" +
		"\r\n"
	assert.Equal(t, want, string(req.Marshal()))
}

func TestRequestMarshalContentLengthMatchesWire(t *testing.T) {
	body := []byte("v=0\r\ns=live\r\n")
	req := &Request{Method: MethodAnnounce, URL: "rtsp://10.0.0.1:554/live", Body: body}
	req.Add("CSeq", "2")
	req.Add("Content-Type", "application/sdp")

	data := req.Marshal()
	head, rest, ok := bytes.Cut(data, []byte("\r\n\r\n"))
	require.True(t, ok)

	var contentLength int
	for _, line := range strings.Split(string(head), "\r\n") {
		if value, found := strings.CutPrefix(line, "Content-Length: "); found {
			n, err := strconv.Atoi(value)
			require.NoError(t, err)
			contentLength = n
		}
	}

	assert.Equal(t, len(body)+2, contentLength)
	assert.Len(t, rest, contentLength)
	assert.Equal(t, append(append([]byte{}, body...), '\r', '\n'), rest)
}
