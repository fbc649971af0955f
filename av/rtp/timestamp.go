package rtp

import (
	"fmt"
	"strings"
	"time"
)

// MPAClockRate is the RTP clock rate for payload type 14.
const MPAClockRate = 90000

// TimeProvider abstracts time operations to enable deterministic testing.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider implements TimeProvider using the system clock.
type DefaultTimeProvider struct{}

// Now returns the current system time.
func (DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

// getTimeProvider returns the provided TimeProvider or the default if nil.
func getTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return DefaultTimeProvider{}
}

// TimestampMode selects what is written into the RTP timestamp field.
type TimestampMode int

const (
	// TimestampSampleClock counts 90 kHz ticks of media time.
	TimestampSampleClock TimestampMode = iota
	// TimestampWallClock writes Unix seconds at packetization time.
	TimestampWallClock
)

// String returns a string representation of the timestamp mode.
func (m TimestampMode) String() string {
	switch m {
	case TimestampSampleClock:
		return "sample"
	case TimestampWallClock:
		return "wallclock"
	default:
		return "unknown"
	}
}

// ParseTimestampMode parses the names produced by TimestampMode.String.
func ParseTimestampMode(s string) (TimestampMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sample", "":
		return TimestampSampleClock, nil
	case "wallclock", "wall":
		return TimestampWallClock, nil
	default:
		return 0, fmt.Errorf("unknown timestamp mode %q", s)
	}
}

// mediaTicks converts elapsed media time to clock ticks without overflowing
// on long streams.
func mediaTicks(elapsed time.Duration, clockRate int64) uint32 {
	secs := int64(elapsed / time.Second)
	rem := int64(elapsed % time.Second)
	return uint32(secs*clockRate + rem*clockRate/int64(time.Second))
}

// ntpEpochOffset is the number of seconds from 1900-01-01 to 1970-01-01.
const ntpEpochOffset = 2208988800

// toNTP converts t to a 64-bit NTP timestamp.
func toNTP(t time.Time) uint64 {
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return secs<<32 | frac
}
