package rtp

import (
	"fmt"
	"time"

	"github.com/pion/rtcp"
	"github.com/sirupsen/logrus"
)

// SenderReport builds an RTCP sender report for the packets wrapped so far
// and returns it as an interleaved envelope on the control channel.
func (p *MPAPacketizer) SenderReport(now time.Time) ([]byte, error) {
	p.mu.Lock()
	report := &rtcp.SenderReport{
		SSRC:        p.ssrc,
		NTPTime:     toNTP(now),
		RTPTime:     p.reportTimestampLocked(now),
		PacketCount: p.packetCount,
		OctetCount:  p.octetCount,
	}
	p.mu.Unlock()

	data, err := report.Marshal()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "MPAPacketizer.SenderReport",
			"error":    err.Error(),
		}).Error("Failed to marshal sender report")
		return nil, fmt.Errorf("failed to marshal sender report: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "MPAPacketizer.SenderReport",
		"ssrc":         report.SSRC,
		"rtp_time":     report.RTPTime,
		"packet_count": report.PacketCount,
		"octet_count":  report.OctetCount,
	}).Debug("Created RTCP sender report")

	return InterleavedFrame{Channel: ControlChannel, Payload: data}.Marshal()
}

// reportTimestampLocked maps now onto the RTP timeline used for data packets.
func (p *MPAPacketizer) reportTimestampLocked(now time.Time) uint32 {
	if p.mode == TimestampWallClock {
		return uint32(now.Unix())
	}
	return mediaTicks(p.elapsed, MPAClockRate)
}
