package rtsp

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/rtsppush/transport"
)

// DefaultUserAgent identifies this publisher in requests.
const DefaultUserAgent = "rtsppush/1.0"

// Config describes the server a Session publishes to.
type Config struct {
	Host      string
	Port      int
	Path      string // resource path, without the leading slash
	UserAgent string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration // per response; zero waits forever
	WriteTimeout time.Duration // per request or packet; zero waits forever

	// Bandwidth is advertised in the SDP b=AS line, in kbit/s.
	Bandwidth int

	// Proxy routes the connection through SOCKS5 or HTTP CONNECT when set.
	Proxy *transport.ProxyConfig
}

// DefaultConfig returns a Config with the standard RTSP port and timeouts.
// Host and Path must still be set.
func DefaultConfig() Config {
	return Config{
		Port:         554,
		UserAgent:    DefaultUserAgent,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Bandwidth:    320,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if strings.Trim(c.Path, "/") == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsAny(c.Path, " \r\n") {
		return fmt.Errorf("path cannot contain whitespace")
	}
	if strings.ContainsAny(c.UserAgent, "\r\n") {
		return fmt.Errorf("user agent cannot contain line breaks")
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	if c.Bandwidth <= 0 {
		return fmt.Errorf("bandwidth must be positive, got %d", c.Bandwidth)
	}
	return nil
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the presentation URL, rtsp://host:port/path.
func (c Config) URL() string {
	return "rtsp://" + c.Address() + "/" + strings.Trim(c.Path, "/")
}

// StreamURL returns the URL SETUP targets.
func (c Config) StreamURL() string {
	return c.URL() + "/" + StreamControl
}
