// Package main provides the command-line publisher that pushes an MP3 file
// or stream to an RTSP media server.
//
// The input is split into MPEG audio frames, each frame is sent as one RTP
// packet over the RTSP connection (TCP interleaved), and transmission is
// paced at playback speed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opd-ai/rtsppush/av/rtp"
	"github.com/opd-ai/rtsppush/pusher"
	"github.com/opd-ai/rtsppush/rtsp"
	"github.com/opd-ai/rtsppush/transport"
	"github.com/sirupsen/logrus"
)

// CLI configuration
type CLIConfig struct {
	input         string
	host          string
	port          uint
	path          string
	userAgent     string
	dialTimeout   time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration
	bandwidth     int
	proxyURL      string
	proxyUser     string
	proxyPass     string
	ssrc          uint
	seqStart      uint
	timestampMode string
	chunkSize     int
	overhead      time.Duration
	rtcpInterval  time.Duration
	resync        bool
	logLevel      string
	logFile       string
	help          bool
}

// parseCLIFlags parses command-line arguments into a configuration.
func parseCLIFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	config := &CLIConfig{}
	sessionDefaults := rtsp.DefaultConfig()
	pusherDefaults := pusher.DefaultConfig()

	// Input
	fs.StringVar(&config.input, "input", "", "MP3 file to publish, or - for stdin")

	// Server configuration
	fs.StringVar(&config.host, "host", "", "RTSP server host")
	fs.UintVar(&config.port, "port", uint(sessionDefaults.Port), "RTSP server port")
	fs.StringVar(&config.path, "path", "", "Resource path on the server, e.g. live/radio")
	fs.StringVar(&config.userAgent, "user-agent", sessionDefaults.UserAgent, "User-Agent header value")
	fs.IntVar(&config.bandwidth, "bandwidth", sessionDefaults.Bandwidth, "Bandwidth advertised in SDP, kbit/s")

	// Timeout configuration
	fs.DurationVar(&config.dialTimeout, "dial-timeout", sessionDefaults.DialTimeout, "TCP connect timeout")
	fs.DurationVar(&config.readTimeout, "read-timeout", sessionDefaults.ReadTimeout, "Timeout waiting for each RTSP response (0 = none)")
	fs.DurationVar(&config.writeTimeout, "write-timeout", sessionDefaults.WriteTimeout, "Timeout for each write (0 = none)")

	// Proxy configuration
	fs.StringVar(&config.proxyURL, "proxy", "", "Proxy URL, socks5://host:port or http://host:port")
	fs.StringVar(&config.proxyUser, "proxy-user", "", "Proxy username (overrides the URL)")
	fs.StringVar(&config.proxyPass, "proxy-pass", "", "Proxy password (overrides the URL)")

	// Stream configuration
	fs.UintVar(&config.ssrc, "ssrc", 0, "RTP SSRC (0 = random)")
	fs.UintVar(&config.seqStart, "seq-start", uint(pusherDefaults.InitialSequence), "First RTP sequence number")
	fs.StringVar(&config.timestampMode, "timestamp", pusherDefaults.TimestampMode.String(), "RTP timestamp source: sample or wallclock")
	fs.IntVar(&config.chunkSize, "chunk-size", pusherDefaults.ChunkSize, "Bytes read from the input at a time")
	fs.DurationVar(&config.overhead, "overhead", pusherDefaults.ProcessingOverhead, "Subtracted from each frame's duration when pacing")
	fs.DurationVar(&config.rtcpInterval, "rtcp-interval", 0, "RTCP sender report interval (0 = off)")
	fs.BoolVar(&config.resync, "resync", false, "Skip garbage between frames instead of stopping")

	// Logging configuration
	fs.StringVar(&config.logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	fs.StringVar(&config.logFile, "log-file", "", "Log file path (default: stderr)")

	// Help
	fs.BoolVar(&config.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return config, nil
}

// printUsage prints the usage information.
func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "RTSP MP3 Publisher")
	fmt.Fprintln(w, "==================")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Publishes an MPEG audio stream to an RTSP server using")
	fmt.Fprintln(w, "ANNOUNCE/SETUP/RECORD and RTP over the RTSP connection.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s -input FILE -host HOST -path PATH [options]\n", fs.Name())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintf(w, "  # Publish a file\n")
	fmt.Fprintf(w, "  %s -input song.mp3 -host 192.168.1.163 -path live/radio\n", fs.Name())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  # Read from stdin through a SOCKS5 proxy with sender reports\n")
	fmt.Fprintf(w, "  %s -input - -host media.example.com -path radio -proxy socks5://127.0.0.1:1080 -rtcp-interval 5s\n", fs.Name())
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(config *CLIConfig) error {
	if config.input == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if config.host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if config.port == 0 || config.port > 65535 {
		return fmt.Errorf("invalid port: must be between 1 and 65535")
	}

	if strings.Trim(config.path, "/") == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if config.ssrc > 0xFFFFFFFF {
		return fmt.Errorf("invalid ssrc: must fit in 32 bits")
	}

	if config.seqStart > 0xFFFF {
		return fmt.Errorf("invalid seq-start: must be between 0 and 65535")
	}

	if config.chunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}

	if config.bandwidth <= 0 {
		return fmt.Errorf("bandwidth must be positive")
	}

	if config.overhead < 0 || config.rtcpInterval < 0 {
		return fmt.Errorf("durations cannot be negative")
	}

	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

// createSessionConfig converts CLI configuration to the RTSP session
// configuration.
func createSessionConfig(cliConfig *CLIConfig) (rtsp.Config, error) {
	config := rtsp.DefaultConfig()
	config.Host = cliConfig.host
	config.Port = int(cliConfig.port)
	config.Path = strings.Trim(cliConfig.path, "/")
	config.UserAgent = cliConfig.userAgent
	config.DialTimeout = cliConfig.dialTimeout
	config.ReadTimeout = cliConfig.readTimeout
	config.WriteTimeout = cliConfig.writeTimeout
	config.Bandwidth = cliConfig.bandwidth

	proxyConfig, err := transport.ParseProxyURL(cliConfig.proxyURL)
	if err != nil {
		return rtsp.Config{}, err
	}
	if proxyConfig != nil {
		if cliConfig.proxyUser != "" {
			proxyConfig.Username = cliConfig.proxyUser
		}
		if cliConfig.proxyPass != "" {
			proxyConfig.Password = cliConfig.proxyPass
		}
	}
	config.Proxy = proxyConfig

	return config, config.Validate()
}

// createPusherConfig converts CLI configuration to the driver configuration.
func createPusherConfig(cliConfig *CLIConfig) (pusher.Config, error) {
	mode, err := rtp.ParseTimestampMode(cliConfig.timestampMode)
	if err != nil {
		return pusher.Config{}, err
	}

	config := pusher.DefaultConfig()
	config.ChunkSize = cliConfig.chunkSize
	config.ProcessingOverhead = cliConfig.overhead
	config.ReportInterval = cliConfig.rtcpInterval
	config.Resync = cliConfig.resync
	config.SSRC = uint32(cliConfig.ssrc)
	config.InitialSequence = uint16(cliConfig.seqStart)
	config.TimestampMode = mode

	return config, config.Validate()
}

// configureLogging applies the log level and output. The returned file is
// nil when logging to stderr.
func configureLogging(level, file string) (*os.File, error) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if file == "" {
		logrus.SetOutput(os.Stderr)
		return nil, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logrus.SetOutput(f)
	return f, nil
}

// openInput opens the input file, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// setupSignalHandling sets up graceful shutdown on interrupt signals.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithFields(logrus.Fields{
			"function": "setupSignalHandling",
			"signal":   sig.String(),
		}).Info("Received signal, tearing down session")
		cancel()
	}()
}

// run publishes the input and returns the process exit code.
func run(ctx context.Context, cliConfig *CLIConfig, stdout io.Writer) int {
	sessionConfig, err := createSessionConfig(cliConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	pusherConfig, err := createPusherConfig(cliConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	input, err := openInput(cliConfig.input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
		return 1
	}
	defer input.Close()

	session, err := rtsp.NewSession(sessionConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create RTSP session: %v\n", err)
		return 1
	}

	p, err := pusher.New(input, session, pusherConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create pusher: %v\n", err)
		return 1
	}

	stats, err := p.Run(ctx)

	fmt.Fprintf(stdout, "Sent %d frames (%d packets, %d bytes), %v of audio in %v\n",
		stats.Frames, stats.Stream.PacketsSent, stats.Stream.BytesSent,
		stats.Stream.MediaTime.Round(time.Millisecond), stats.Elapsed.Round(time.Millisecond))

	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stdout, "Stopped by signal")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Push failed: %v\n", err)
		return 1
	}
}

// main is the entry point for the publisher.
func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cliConfig, err := parseCLIFlags(fs, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if cliConfig.help {
		printUsage(os.Stdout, fs)
		os.Exit(0)
	}

	if err := validateCLIConfig(cliConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}

	logFile, err := configureLogging(cliConfig.logLevel, cliConfig.logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	setupSignalHandling(cancel)

	exitCode := run(ctx, cliConfig, os.Stdout)

	cancel()
	if logFile != nil {
		logFile.Close()
	}
	os.Exit(exitCode)
}
