package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/rtsppush/limits"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// PayloadTypeMPA is the static RTP payload type for MPEG audio.
const PayloadTypeMPA uint8 = 14

// GenerateSSRC returns a random synchronization source identifier.
func GenerateSSRC() (uint32, error) {
	ssrcBytes := make([]byte, 4)
	if _, err := rand.Read(ssrcBytes); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "GenerateSSRC",
			"error":    err.Error(),
		}).Error("Failed to generate SSRC")
		return 0, fmt.Errorf("failed to generate SSRC: %w", err)
	}
	return binary.BigEndian.Uint32(ssrcBytes), nil
}

// MPAPacketizer wraps MPEG audio frames into RTP packets and interleaved
// envelopes.
//
// The SSRC is fixed for the packetizer's lifetime; the sequence number and
// the sample clock are the only mutable state.
type MPAPacketizer struct {
	mu           sync.Mutex
	ssrc         uint32
	sequencer    rtp.Sequencer
	lastSequence uint16
	mode         TimestampMode
	timeProvider TimeProvider
	elapsed      time.Duration // media time already packetized
	lastStamp    uint32
	packetCount  uint32
	octetCount   uint32
}

// NewMPAPacketizer creates a packetizer whose first packet carries
// initialSequence.
//
// Parameters:
//   - ssrc: Synchronization source identifier, see GenerateSSRC
//   - initialSequence: Sequence number of the first packet
//   - mode: Timestamp source
//
// Returns:
//   - *MPAPacketizer: New packetizer instance
//   - error: Any error that occurred during setup
func NewMPAPacketizer(ssrc uint32, initialSequence uint16, mode TimestampMode) (*MPAPacketizer, error) {
	return NewMPAPacketizerWithTimeProvider(ssrc, initialSequence, mode, nil)
}

// NewMPAPacketizerWithTimeProvider is NewMPAPacketizer with an injectable
// clock for the wall-clock timestamp mode and sender reports.
func NewMPAPacketizerWithTimeProvider(ssrc uint32, initialSequence uint16, mode TimestampMode, tp TimeProvider) (*MPAPacketizer, error) {
	if mode != TimestampSampleClock && mode != TimestampWallClock {
		logrus.WithFields(logrus.Fields{
			"function": "NewMPAPacketizer",
			"mode":     int(mode),
		}).Error("Invalid timestamp mode")
		return nil, fmt.Errorf("invalid timestamp mode %d", mode)
	}

	packetizer := &MPAPacketizer{
		ssrc:         ssrc,
		sequencer:    rtp.NewFixedSequencer(initialSequence),
		mode:         mode,
		timeProvider: getTimeProvider(tp),
	}

	logrus.WithFields(logrus.Fields{
		"function":         "NewMPAPacketizer",
		"ssrc":             ssrc,
		"initial_sequence": initialSequence,
		"timestamp_mode":   mode.String(),
	}).Info("MPEG audio packetizer created")

	return packetizer, nil
}

// SSRC returns the synchronization source identifier.
func (p *MPAPacketizer) SSRC() uint32 {
	return p.ssrc
}

// Packetize builds the RTP packet for one frame and advances the sequence
// number and the sample clock.
func (p *MPAPacketizer) Packetize(frame []byte, duration time.Duration) (*rtp.Packet, error) {
	if err := limits.ValidateRTPPayload(frame); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "MPAPacketizer.Packetize",
			"data_size": len(frame),
			"error":     err.Error(),
		}).Error("Invalid audio frame")
		return nil, fmt.Errorf("invalid audio frame: %w", err)
	}
	if duration < 0 {
		return nil, fmt.Errorf("frame duration cannot be negative: %v", duration)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	payload := make([]byte, limits.MPAHeaderSize+len(frame))
	copy(payload[limits.MPAHeaderSize:], frame)

	timestamp := p.timestampLocked()
	packet := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Padding:        false,
			Extension:      false,
			Marker:         false,
			PayloadType:    PayloadTypeMPA,
			SequenceNumber: p.sequencer.NextSequenceNumber(),
			Timestamp:      timestamp,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}

	p.lastSequence = packet.SequenceNumber
	p.lastStamp = timestamp
	p.elapsed += duration
	p.packetCount++
	p.octetCount += uint32(len(payload))

	logrus.WithFields(logrus.Fields{
		"function":        "MPAPacketizer.Packetize",
		"sequence_number": packet.SequenceNumber,
		"timestamp":       timestamp,
		"payload_size":    len(payload),
	}).Debug("Created RTP packet")

	return packet, nil
}

// Wrap packetizes one frame and returns the interleaved envelope for the
// audio channel.
func (p *MPAPacketizer) Wrap(frame []byte, duration time.Duration) ([]byte, error) {
	packet, err := p.Packetize(frame, duration)
	if err != nil {
		return nil, err
	}

	rtpData, err := packet.Marshal()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "MPAPacketizer.Wrap",
			"error":    err.Error(),
		}).Error("Failed to marshal RTP packet")
		return nil, fmt.Errorf("failed to marshal RTP packet: %w", err)
	}

	return InterleavedFrame{Channel: AudioChannel, Payload: rtpData}.Marshal()
}

// timestampLocked returns the RTP timestamp for the next packet.
func (p *MPAPacketizer) timestampLocked() uint32 {
	if p.mode == TimestampWallClock {
		return uint32(p.timeProvider.Now().Unix())
	}
	return mediaTicks(p.elapsed, MPAClockRate)
}

// PacketizerState is a snapshot of the packetizer's counters.
type PacketizerState struct {
	SSRC          uint32
	LastSequence  uint16
	LastTimestamp uint32
	RollOverCount uint64
	PacketCount   uint32
	OctetCount    uint32 // RTP payload octets, as reported in RTCP
	MediaTime     time.Duration
}

// State returns the current packetizer counters.
func (p *MPAPacketizer) State() PacketizerState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PacketizerState{
		SSRC:          p.ssrc,
		LastSequence:  p.lastSequence,
		LastTimestamp: p.lastStamp,
		RollOverCount: p.sequencer.RollOverCount(),
		PacketCount:   p.packetCount,
		OctetCount:    p.octetCount,
		MediaTime:     p.elapsed,
	}
}
