package rtp

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/opd-ai/rtsppush/limits"
	"github.com/pion/rtp"
)

const (
	// InterleavedMagic is the first byte of an interleaved frame.
	InterleavedMagic = 0x24

	// AudioChannel carries RTP packets.
	AudioChannel uint8 = 0

	// ControlChannel carries RTCP packets.
	ControlChannel uint8 = 1
)

// ErrInvalidEnvelope indicates bytes that are not a well-formed envelope.
var ErrInvalidEnvelope = errors.New("invalid interleaved envelope")

// InterleavedFrame carries one RTP or RTCP packet over the RTSP connection.
type InterleavedFrame struct {
	Channel uint8
	Payload []byte
}

// MarshalSize returns the encoded size of the frame.
func (f InterleavedFrame) MarshalSize() int {
	return limits.InterleavedHeaderSize + len(f.Payload)
}

// Marshal encodes the frame.
func (f InterleavedFrame) Marshal() ([]byte, error) {
	if err := limits.ValidateInterleavedPayload(f.Payload); err != nil {
		return nil, fmt.Errorf("failed to marshal interleaved frame: %w", err)
	}

	buf := make([]byte, f.MarshalSize())
	buf[0] = InterleavedMagic
	buf[1] = f.Channel
	buf[2] = byte(len(f.Payload) >> 8)
	buf[3] = byte(len(f.Payload))
	copy(buf[limits.InterleavedHeaderSize:], f.Payload)
	return buf, nil
}

// Unmarshal reads one frame from br.
func (f *InterleavedFrame) Unmarshal(br *bufio.Reader) error {
	var header [limits.InterleavedHeaderSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return err
	}
	if header[0] != InterleavedMagic {
		return fmt.Errorf("%w: magic byte 0x%02x", ErrInvalidEnvelope, header[0])
	}

	f.Channel = header[1]
	f.Payload = make([]byte, int(header[2])<<8|int(header[3]))
	_, err := io.ReadFull(br, f.Payload)
	return err
}

// Envelope is a decoded audio envelope.
type Envelope struct {
	Channel uint8
	Packet  *rtp.Packet
	Frame   []byte // RTP payload with the MPEG audio-specific header removed
}

// ParseEnvelope decodes one complete envelope produced by Wrap.
func ParseEnvelope(b []byte) (*Envelope, error) {
	if len(b) < limits.InterleavedHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidEnvelope, len(b))
	}
	if b[0] != InterleavedMagic {
		return nil, fmt.Errorf("%w: magic byte 0x%02x", ErrInvalidEnvelope, b[0])
	}
	length := int(b[2])<<8 | int(b[3])
	if len(b)-limits.InterleavedHeaderSize != length {
		return nil, fmt.Errorf("%w: length field %d, payload %d", ErrInvalidEnvelope, length, len(b)-limits.InterleavedHeaderSize)
	}

	packet := &rtp.Packet{}
	if err := packet.Unmarshal(b[limits.InterleavedHeaderSize:]); err != nil {
		return nil, fmt.Errorf("failed to unmarshal RTP packet: %w", err)
	}
	if len(packet.Payload) < limits.MPAHeaderSize {
		return nil, fmt.Errorf("%w: payload shorter than MPEG audio header", ErrInvalidEnvelope)
	}

	return &Envelope{
		Channel: b[1],
		Packet:  packet,
		Frame:   packet.Payload[limits.MPAHeaderSize:],
	}, nil
}
