// Package rtp packetizes MPEG audio frames for RTSP TCP-interleaved delivery.
//
// Each frame becomes one RTP packet (payload type 14, MPEG audio) built with
// the pion/rtp library, and each packet is wrapped in an RTSP interleaved
// envelope so it can share the TCP connection that carries the RTSP control
// messages.
//
// # Architecture Overview
//
//   - MPAPacketizer: frame bytes → RTP packet → interleaved envelope
//   - InterleavedFrame: the "$", channel, length framing used on the wire
//   - Stream: packetizer plus a PacketWriter, with statistics and optional
//     RTCP sender reports on the control channel
//
// # Wire Format
//
// One envelope per frame:
//
//	0x24 | channel (0) | length (2 bytes BE) | RTP header (12) | 0x00000000 | frame
//
// The four zero bytes are the MPEG audio-specific header (MBZ plus a zero
// fragment offset); frames are never fragmented.
//
// # Packetization
//
//	packetizer, err := rtp.NewMPAPacketizer(ssrc, 1, rtp.TimestampSampleClock)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	envelope, err := packetizer.Wrap(frame.Data, frame.Duration)
//
// Sequence numbers start at the caller's seed, increase by one per packet and
// wrap from 65535 to 0.
//
// # Timestamps
//
// TimestampSampleClock advances a 90 kHz clock by each frame's duration, as
// the RTP audio/video profile requires for payload type 14.
// TimestampWallClock writes Unix seconds into the timestamp field, which is
// what some legacy receivers expect.
//
// # Deterministic Testing
//
// Time-dependent operations accept an injectable TimeProvider:
//
//	type MockTimeProvider struct {
//	    currentTime time.Time
//	}
//	func (m *MockTimeProvider) Now() time.Time { return m.currentTime }
//
//	packetizer, _ := rtp.NewMPAPacketizerWithTimeProvider(ssrc, 1, rtp.TimestampWallClock, &MockTimeProvider{})
//
// # Thread Safety
//
// MPAPacketizer and Stream are safe for concurrent use; state is guarded by
// a sync.Mutex. The extractor feeding them is not.
package rtp
