package pusher

import (
	"fmt"
	"time"

	"github.com/opd-ai/rtsppush/av/rtp"
)

// Config controls pacing and packetization.
type Config struct {
	// ChunkSize is the number of bytes read from the source at a time.
	ChunkSize int

	// ProcessingOverhead is subtracted from each frame's duration before
	// sleeping.
	ProcessingOverhead time.Duration

	// ReportInterval enables RTCP sender reports when positive.
	ReportInterval time.Duration

	// Resync skips garbage between frames instead of stopping.
	Resync bool

	// SSRC of the stream; zero picks a random one.
	SSRC uint32

	InitialSequence uint16
	TimestampMode   rtp.TimestampMode
}

// DefaultConfig returns the standard pacing settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:          2048,
		ProcessingOverhead: 2 * time.Millisecond,
		InitialSequence:    1,
		TimestampMode:      rtp.TimestampSampleClock,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ProcessingOverhead < 0 {
		return fmt.Errorf("processing overhead cannot be negative")
	}
	if c.ReportInterval < 0 {
		return fmt.Errorf("report interval cannot be negative")
	}
	if c.TimestampMode != rtp.TimestampSampleClock && c.TimestampMode != rtp.TimestampWallClock {
		return fmt.Errorf("invalid timestamp mode %d", c.TimestampMode)
	}
	return nil
}
