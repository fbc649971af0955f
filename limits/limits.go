// Package limits provides centralized size limits for the RTSP push pipeline.
// This ensures consistent validation across different components of the system.
package limits

import (
	"errors"
	"fmt"
)

const (
	// InterleavedHeaderSize is the "$", channel and 16-bit length prefix.
	InterleavedHeaderSize = 4

	// MaxInterleavedPayload is the largest packet an interleaved frame can carry.
	MaxInterleavedPayload = 0xFFFF

	// RTPHeaderSize is the fixed RTP header with no CSRC list or extension.
	RTPHeaderSize = 12

	// MPAHeaderSize is the MPEG audio-specific header (MBZ + fragment offset)
	// placed between the RTP header and the frame.
	MPAHeaderSize = 4

	// MaxRTPPayload is the largest audio frame that fits in one envelope.
	MaxRTPPayload = MaxInterleavedPayload - RTPHeaderSize - MPAHeaderSize

	// MaxResponseSize bounds a single RTSP response read during the handshake.
	MaxResponseSize = 64 * 1024

	// MaxTagSize is the largest synchsafe-encoded ID3v2 tag body (28 bits).
	MaxTagSize = 1<<28 - 1
)

var (
	// ErrPayloadEmpty indicates an empty payload was provided
	ErrPayloadEmpty = errors.New("empty payload")

	// ErrPayloadTooLarge indicates payload exceeds maximum size
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ValidatePayloadSize validates a payload against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidatePayloadSize(payload []byte, maxSize int) error {
	if len(payload) == 0 {
		return ErrPayloadEmpty
	}
	if len(payload) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPayloadTooLarge, len(payload), maxSize)
	}
	return nil
}

// ValidateRTPPayload validates an audio frame against MaxRTPPayload.
func ValidateRTPPayload(payload []byte) error {
	if err := ValidatePayloadSize(payload, MaxRTPPayload); err != nil {
		return fmt.Errorf("rtp payload: %w", err)
	}
	return nil
}

// ValidateInterleavedPayload validates a packet against MaxInterleavedPayload.
func ValidateInterleavedPayload(packet []byte) error {
	if err := ValidatePayloadSize(packet, MaxInterleavedPayload); err != nil {
		return fmt.Errorf("interleaved payload: %w", err)
	}
	return nil
}

// ValidateResponseSize reports whether n bytes of response are still within
// MaxResponseSize.
func ValidateResponseSize(n int) error {
	if n > MaxResponseSize {
		return fmt.Errorf("%w: response size %d exceeds limit %d", ErrPayloadTooLarge, n, MaxResponseSize)
	}
	return nil
}
