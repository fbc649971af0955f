package pusher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/opd-ai/rtsppush/av/rtp"
	"github.com/opd-ai/rtsppush/mpa"
	"github.com/sirupsen/logrus"
)

// Publisher is the RTSP side of a push. *rtsp.Session implements it.
type Publisher interface {
	ConnectAndStart(ctx context.Context) error
	WritePacket(envelope []byte) error
	Close() error
}

// Statistics summarizes a Run.
type Statistics struct {
	BytesRead     uint64 // from the source
	TagSize       int    // ID3v2 tag bytes skipped, header included
	Frames        uint64
	DiscardedSync uint64 // bytes skipped by resynchronization
	Stream        rtp.Statistics
	Elapsed       time.Duration
}

// Pusher streams one source to one publisher.
type Pusher struct {
	config    Config
	source    io.Reader
	publisher Publisher
	sleeper   Sleeper
	extractor *mpa.Extractor

	eof   bool
	stats Statistics
}

// New creates a pusher that sleeps on real timers.
func New(source io.Reader, publisher Publisher, config Config) (*Pusher, error) {
	return NewWithSleeper(source, publisher, config, TimerSleeper{})
}

// NewWithSleeper creates a pusher with an injectable sleeper.
func NewWithSleeper(source io.Reader, publisher Publisher, config Config, sleeper Sleeper) (*Pusher, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if sleeper == nil {
		return nil, fmt.Errorf("sleeper cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pusher config: %w", err)
	}

	return &Pusher{
		config:    config,
		source:    source,
		publisher: publisher,
		sleeper:   sleeper,
		extractor: mpa.NewExtractor(),
	}, nil
}

// Run performs the handshake and streams until the source is exhausted,
// ctx is cancelled, or an error occurs. The publisher is closed on return
// in every case.
func (p *Pusher) Run(ctx context.Context) (stats Statistics, err error) {
	start := time.Now()
	var stream *rtp.Stream

	defer func() {
		if closeErr := p.publisher.Close(); closeErr != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Pusher.Run",
				"error":    closeErr.Error(),
			}).Warn("Failed to close publisher")
		}
		if stream != nil {
			p.stats.Stream = stream.GetStatistics()
		}
		p.stats.Elapsed = time.Since(start)
		stats = p.stats

		logrus.WithFields(logrus.Fields{
			"function":     "Pusher.Run",
			"frames":       stats.Frames,
			"bytes_read":   stats.BytesRead,
			"packets_sent": stats.Stream.PacketsSent,
			"media_time":   stats.Stream.MediaTime.String(),
			"elapsed":      stats.Elapsed.String(),
		}).Info("Push finished")
	}()

	if err := p.publisher.ConnectAndStart(ctx); err != nil {
		return p.stats, fmt.Errorf("failed to start RTSP session: %w", err)
	}

	stream, err = p.newStream()
	if err != nil {
		return p.stats, err
	}

	if err := p.skipTag(); err != nil {
		return p.stats, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return p.stats, err
		}

		frame, err := p.extractor.NextFrame()
		if mpa.IsRecoverable(err) {
			if p.eof {
				p.logTrailingBytes()
				return p.stats, nil
			}
			if err := p.fill(); err != nil {
				return p.stats, err
			}
			continue
		}
		if err != nil {
			if !p.resync(err) {
				return p.stats, fmt.Errorf("failed to extract frame: %w", err)
			}
			continue
		}

		if err := stream.SendFrame(frame.Data, frame.Duration); err != nil {
			return p.stats, fmt.Errorf("failed to send frame %d: %w", p.stats.Frames, err)
		}
		p.stats.Frames++

		if err := p.sleeper.Sleep(ctx, frame.Duration-p.config.ProcessingOverhead); err != nil {
			return p.stats, err
		}
	}
}

func (p *Pusher) newStream() (*rtp.Stream, error) {
	ssrc := p.config.SSRC
	if ssrc == 0 {
		var err error
		if ssrc, err = rtp.GenerateSSRC(); err != nil {
			return nil, err
		}
	}

	packetizer, err := rtp.NewMPAPacketizer(ssrc, p.config.InitialSequence, p.config.TimestampMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create packetizer: %w", err)
	}
	return rtp.NewStream(packetizer, p.publisher, p.config.ReportInterval)
}

// skipTag removes a leading ID3v2 tag, reading as much input as the tag
// needs. Streams without a tag are left untouched.
func (p *Pusher) skipTag() error {
	for {
		hasTag, err := p.extractor.HasTag()
		if err == nil && !hasTag {
			return nil
		}
		if err == nil {
			var tag *mpa.Tag
			tag, err = p.extractor.ExtractTag()
			if err == nil {
				p.stats.TagSize = mpa.TagHeaderSize + tag.Size
				p.logTag(tag)
				return nil
			}
		}
		if !errors.Is(err, mpa.ErrInsufficientData) {
			return fmt.Errorf("failed to extract tag: %w", err)
		}
		if p.eof {
			if p.extractor.Buffered() == 0 {
				return nil
			}
			return fmt.Errorf("failed to extract tag: source ended inside tag: %w", err)
		}
		if err := p.fill(); err != nil {
			return err
		}
	}
}

func (p *Pusher) logTag(tag *mpa.Tag) {
	fields := logrus.Fields{
		"function": "Pusher.skipTag",
		"version":  tag.MajorVersion,
		"tag_size": tag.Size,
	}
	if meta, err := tag.Metadata(); err == nil {
		fields["title"] = meta.Title
		fields["artist"] = meta.Artist
		fields["album"] = meta.Album
	} else {
		fields["metadata_error"] = err.Error()
	}
	logrus.WithFields(fields).Info("Skipped ID3v2 tag")
}

// fill reads one chunk from the source into the extractor.
func (p *Pusher) fill() error {
	buf := make([]byte, p.config.ChunkSize)
	n, err := p.source.Read(buf)
	if n > 0 {
		p.extractor.Ingest(buf[:n])
		p.stats.BytesRead += uint64(n)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		p.eof = true
		logrus.WithFields(logrus.Fields{
			"function":   "Pusher.fill",
			"bytes_read": p.stats.BytesRead,
		}).Info("Source exhausted")
		return nil
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Pusher.fill",
			"error":    err.Error(),
		}).Error("Failed to read source")
		return fmt.Errorf("failed to read source: %w", err)
	}
}

// resync skips garbage after a sync or header error when enabled.
func (p *Pusher) resync(err error) bool {
	if !p.config.Resync {
		return false
	}
	if !errors.Is(err, mpa.ErrLostSync) && !errors.Is(err, mpa.ErrUnsupportedHeader) {
		return false
	}
	n := p.extractor.Resync()
	p.stats.DiscardedSync += uint64(n)
	return n > 0
}

func (p *Pusher) logTrailingBytes() {
	if n := p.extractor.Buffered(); n > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Pusher.Run",
			"bytes":    n,
		}).Warn("Discarding incomplete frame at end of input")
	}
}
