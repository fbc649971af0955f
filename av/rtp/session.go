package rtp

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PacketWriter delivers encoded envelopes to the peer.
type PacketWriter interface {
	WritePacket(envelope []byte) error
}

// Statistics tracks what a Stream has sent.
type Statistics struct {
	PacketsSent uint64
	BytesSent   uint64 // envelope bytes, framing included
	ReportsSent uint64
	MediaTime   time.Duration
}

// Stream couples a packetizer with the connection that carries its output.
//
// When reportInterval is positive, an RTCP sender report is written on the
// control channel before the first packet and then whenever the interval
// has elapsed.
type Stream struct {
	mu             sync.Mutex
	packetizer     *MPAPacketizer
	writer         PacketWriter
	timeProvider   TimeProvider
	reportInterval time.Duration
	lastReport     time.Time

	stats Statistics
}

// NewStream creates a stream writing through w.
func NewStream(packetizer *MPAPacketizer, w PacketWriter, reportInterval time.Duration) (*Stream, error) {
	return NewStreamWithTimeProvider(packetizer, w, reportInterval, nil)
}

// NewStreamWithTimeProvider is NewStream with an injectable clock.
func NewStreamWithTimeProvider(packetizer *MPAPacketizer, w PacketWriter, reportInterval time.Duration, tp TimeProvider) (*Stream, error) {
	if packetizer == nil {
		return nil, fmt.Errorf("packetizer cannot be nil")
	}
	if w == nil {
		return nil, fmt.Errorf("packet writer cannot be nil")
	}
	if reportInterval < 0 {
		return nil, fmt.Errorf("report interval cannot be negative")
	}

	return &Stream{
		packetizer:     packetizer,
		writer:         w,
		timeProvider:   getTimeProvider(tp),
		reportInterval: reportInterval,
	}, nil
}

// SendFrame wraps one frame and writes it.
func (s *Stream) SendFrame(frame []byte, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reportDueLocked() {
		if err := s.sendReportLocked(); err != nil {
			return err
		}
	}

	envelope, err := s.packetizer.Wrap(frame, duration)
	if err != nil {
		return fmt.Errorf("failed to wrap audio frame: %w", err)
	}

	if err := s.writer.WritePacket(envelope); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.SendFrame",
			"size":     len(envelope),
			"error":    err.Error(),
		}).Error("Failed to write audio envelope")
		return fmt.Errorf("failed to send audio packet: %w", err)
	}

	s.stats.PacketsSent++
	s.stats.BytesSent += uint64(len(envelope))
	s.stats.MediaTime += duration

	return nil
}

// SendReport writes an RTCP sender report immediately.
func (s *Stream) SendReport() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sendReportLocked()
}

func (s *Stream) reportDueLocked() bool {
	if s.reportInterval <= 0 {
		return false
	}
	if s.lastReport.IsZero() {
		return true
	}
	return s.timeProvider.Now().Sub(s.lastReport) >= s.reportInterval
}

func (s *Stream) sendReportLocked() error {
	now := s.timeProvider.Now()
	envelope, err := s.packetizer.SenderReport(now)
	if err != nil {
		return err
	}
	if err := s.writer.WritePacket(envelope); err != nil {
		return fmt.Errorf("failed to send sender report: %w", err)
	}

	s.lastReport = now
	s.stats.ReportsSent++
	s.stats.BytesSent += uint64(len(envelope))
	return nil
}

// GetStatistics returns current stream statistics.
func (s *Stream) GetStatistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Packetizer returns the stream's packetizer.
func (s *Stream) Packetizer() *MPAPacketizer {
	return s.packetizer
}
