package pusher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/opd-ai/rtsppush/av/rtp"
	"github.com/opd-ai/rtsppush/mpa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPublisher records what a Pusher sends.
type MockPublisher struct {
	mu         sync.Mutex
	startErr   error
	writeErr   error
	failAfter  int // writes accepted before writeErr applies; <0 never
	envelopes  [][]byte
	starts     int
	closes     int
	writeCalls int
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{failAfter: -1}
}

func (m *MockPublisher) ConnectAndStart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.startErr
}

func (m *MockPublisher) WritePacket(envelope []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.failAfter >= 0 && len(m.envelopes) >= m.failAfter {
		return m.writeErr
	}
	m.envelopes = append(m.envelopes, append([]byte(nil), envelope...))
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// audioFrames returns the decoded payloads of the audio-channel envelopes.
func (m *MockPublisher) audioFrames(t *testing.T) [][]byte {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var frames [][]byte
	for _, envelope := range m.envelopes {
		if envelope[1] != rtp.AudioChannel {
			continue
		}
		parsed, err := rtp.ParseEnvelope(envelope)
		require.NoError(t, err)
		frames = append(frames, parsed.Frame)
	}
	return frames
}

// MockSleeper records requested sleeps and never blocks.
type MockSleeper struct {
	durations []time.Duration
	onSleep   func(n int)
}

func (m *MockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	m.durations = append(m.durations, d)
	if m.onSleep != nil {
		m.onSleep(len(m.durations))
	}
	return ctx.Err()
}

// mp3Frame builds a 417-byte MPEG-1 Layer III frame (128 kbps, 44.1 kHz)
// whose body is filled with marker.
func mp3Frame(marker byte) []byte {
	frame := bytes.Repeat([]byte{marker}, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
	return frame
}

const mp3FrameDuration = 1152 * time.Second / 44100

func id3Tag(bodySize int) []byte {
	tag := []byte{'I', 'D', '3', 3, 0, 0,
		byte(bodySize>>21) & 0x7F, byte(bodySize>>14) & 0x7F, byte(bodySize>>7) & 0x7F, byte(bodySize) & 0x7F}
	return append(tag, make([]byte, bodySize)...)
}

func testConfig() Config {
	c := DefaultConfig()
	c.SSRC = 0x1234
	c.ChunkSize = 100
	return c
}

func buildStream(tag []byte, frames ...[]byte) []byte {
	out := append([]byte(nil), tag...)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func TestRunStreamsAllFrames(t *testing.T) {
	frames := [][]byte{mp3Frame(1), mp3Frame(2), mp3Frame(3), mp3Frame(4), mp3Frame(5)}

	tests := []struct {
		name    string
		tag     []byte
		tagSize int
	}{
		{name: "With ID3v2 tag", tag: id3Tag(300), tagSize: 310},
		{name: "Without tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := buildStream(tt.tag, frames...)
			publisher := NewMockPublisher()
			sleeper := &MockSleeper{}

			p, err := NewWithSleeper(bytes.NewReader(input), publisher, testConfig(), sleeper)
			require.NoError(t, err)

			stats, err := p.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, frames, publisher.audioFrames(t))
			assert.Equal(t, 1, publisher.starts)
			assert.Equal(t, 1, publisher.closes)

			assert.Equal(t, uint64(5), stats.Frames)
			assert.Equal(t, uint64(len(input)), stats.BytesRead)
			assert.Equal(t, tt.tagSize, stats.TagSize)
			assert.Equal(t, uint64(5), stats.Stream.PacketsSent)
			assert.Equal(t, 5*mp3FrameDuration, stats.Stream.MediaTime)

			require.Len(t, sleeper.durations, 5)
			for _, d := range sleeper.durations {
				assert.Equal(t, mp3FrameDuration-2*time.Millisecond, d)
			}
		})
	}
}

func TestRunOneByteReads(t *testing.T) {
	input := buildStream(id3Tag(20), mp3Frame(7), mp3Frame(8))
	publisher := NewMockPublisher()

	p, err := NewWithSleeper(iotest.OneByteReader(bytes.NewReader(input)), publisher, testConfig(), &MockSleeper{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, [][]byte{mp3Frame(7), mp3Frame(8)}, publisher.audioFrames(t))
}

func TestRunSequenceNumbers(t *testing.T) {
	input := buildStream(nil, mp3Frame(1), mp3Frame(2), mp3Frame(3))
	publisher := NewMockPublisher()
	config := testConfig()
	config.InitialSequence = 65535

	p, err := NewWithSleeper(bytes.NewReader(input), publisher, config, &MockSleeper{})
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	var sequences []uint16
	for _, envelope := range publisher.envelopes {
		parsed, err := rtp.ParseEnvelope(envelope)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x1234), parsed.Packet.SSRC)
		sequences = append(sequences, parsed.Packet.SequenceNumber)
	}
	assert.Equal(t, []uint16{65535, 0, 1}, sequences)
}

func TestRunDiscardsTrailingPartialFrame(t *testing.T) {
	input := buildStream(nil, mp3Frame(1), mp3Frame(2), mp3Frame(3)[:200])
	publisher := NewMockPublisher()

	p, err := NewWithSleeper(bytes.NewReader(input), publisher, testConfig(), &MockSleeper{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Frames)
}

func TestRunEmptySource(t *testing.T) {
	publisher := NewMockPublisher()
	p, err := NewWithSleeper(bytes.NewReader(nil), publisher, testConfig(), &MockSleeper{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.Frames)
	assert.Equal(t, 1, publisher.closes)
}

func TestRunLostSync(t *testing.T) {
	garbage := bytes.Repeat([]byte{0x00}, 7)
	input := buildStream(nil, mp3Frame(1), garbage, mp3Frame(2))

	t.Run("Stops without resync", func(t *testing.T) {
		publisher := NewMockPublisher()
		p, err := NewWithSleeper(bytes.NewReader(input), publisher, testConfig(), &MockSleeper{})
		require.NoError(t, err)

		stats, err := p.Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, mpa.ErrLostSync)

		var formatErr *mpa.FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, uint64(417), formatErr.Offset)
		assert.Equal(t, uint64(1), stats.Frames)
		assert.Equal(t, 1, publisher.closes)
	})

	t.Run("Skips garbage with resync", func(t *testing.T) {
		publisher := NewMockPublisher()
		config := testConfig()
		config.Resync = true
		p, err := NewWithSleeper(bytes.NewReader(input), publisher, config, &MockSleeper{})
		require.NoError(t, err)

		stats, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(2), stats.Frames)
		assert.Equal(t, uint64(len(garbage)), stats.DiscardedSync)
		assert.Equal(t, [][]byte{mp3Frame(1), mp3Frame(2)}, publisher.audioFrames(t))
	})
}

func TestRunStartFailure(t *testing.T) {
	publisher := NewMockPublisher()
	publisher.startErr = errors.New("connection refused")

	p, err := NewWithSleeper(bytes.NewReader(mp3Frame(1)), publisher, testConfig(), &MockSleeper{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	assert.ErrorIs(t, err, publisher.startErr)
	assert.Equal(t, uint64(0), stats.Frames)
	assert.Equal(t, uint64(0), stats.BytesRead)
	assert.Equal(t, 1, publisher.closes)
}

func TestRunWriteFailureStops(t *testing.T) {
	publisher := NewMockPublisher()
	publisher.failAfter = 2
	publisher.writeErr = errors.New("broken pipe")

	input := buildStream(nil, mp3Frame(1), mp3Frame(2), mp3Frame(3), mp3Frame(4))
	p, err := NewWithSleeper(bytes.NewReader(input), publisher, testConfig(), &MockSleeper{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	assert.ErrorIs(t, err, publisher.writeErr)
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, 3, publisher.writeCalls)
	assert.Equal(t, 1, publisher.closes)
}

func TestRunSourceError(t *testing.T) {
	readErr := errors.New("disk on fire")
	source := io.MultiReader(bytes.NewReader(mp3Frame(1)), iotest.ErrReader(readErr))
	publisher := NewMockPublisher()

	p, err := NewWithSleeper(source, publisher, testConfig(), &MockSleeper{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, uint64(1), stats.Frames)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeper := &MockSleeper{onSleep: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	publisher := NewMockPublisher()
	input := buildStream(nil, mp3Frame(1), mp3Frame(2), mp3Frame(3), mp3Frame(4))

	p, err := NewWithSleeper(bytes.NewReader(input), publisher, testConfig(), sleeper)
	require.NoError(t, err)

	stats, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, 1, publisher.closes)
}

func TestRunSenderReports(t *testing.T) {
	publisher := NewMockPublisher()
	config := testConfig()
	config.ReportInterval = time.Hour

	input := buildStream(nil, mp3Frame(1), mp3Frame(2))
	p, err := NewWithSleeper(bytes.NewReader(input), publisher, config, &MockSleeper{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, publisher.envelopes, 3)
	assert.Equal(t, rtp.ControlChannel, publisher.envelopes[0][1])
	assert.Equal(t, rtp.AudioChannel, publisher.envelopes[1][1])
	assert.Equal(t, uint64(1), stats.Stream.ReportsSent)
}

func TestNewValidation(t *testing.T) {
	publisher := NewMockPublisher()
	source := bytes.NewReader(nil)

	_, err := New(nil, publisher, DefaultConfig())
	assert.Error(t, err)
	_, err = New(source, nil, DefaultConfig())
	assert.Error(t, err)
	_, err = NewWithSleeper(source, publisher, DefaultConfig(), nil)
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.ChunkSize = 0
	_, err = New(source, publisher, bad)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "Defaults", mutate: func(*Config) {}, valid: true},
		{name: "Wall clock", mutate: func(c *Config) { c.TimestampMode = rtp.TimestampWallClock }, valid: true},
		{name: "Zero chunk", mutate: func(c *Config) { c.ChunkSize = 0 }},
		{name: "Negative overhead", mutate: func(c *Config) { c.ProcessingOverhead = -time.Millisecond }},
		{name: "Negative report interval", mutate: func(c *Config) { c.ReportInterval = -time.Second }},
		{name: "Unknown timestamp mode", mutate: func(c *Config) { c.TimestampMode = rtp.TimestampMode(9) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			if tt.valid {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestTimerSleeper(t *testing.T) {
	var s TimerSleeper

	start := time.Now()
	require.NoError(t, s.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, s.Sleep(context.Background(), -time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	assert.ErrorIs(t, s.Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
