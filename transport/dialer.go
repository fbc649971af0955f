package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Dialer opens the TCP connection an RTSP session runs over.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DirectDialer connects without a proxy.
type DirectDialer struct {
	dialer net.Dialer
}

// NewDirectDialer creates a dialer with the given connect timeout. Zero
// means no timeout beyond the context's.
func NewDirectDialer(timeout time.Duration) *DirectDialer {
	return &DirectDialer{dialer: net.Dialer{Timeout: timeout}}
}

// DialContext connects to address.
func (d *DirectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, address)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DirectDialer.DialContext",
			"address":  address,
			"error":    err.Error(),
		}).Error("Failed to dial")
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "DirectDialer.DialContext",
				"error":    err.Error(),
			}).Warn("Failed to disable Nagle's algorithm")
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "DirectDialer.DialContext",
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Connection established")

	return conn, nil
}

// String describes the dialer for logging.
func (d *DirectDialer) String() string {
	return "direct"
}

// NewDialer returns a DirectDialer when proxyConfig is nil and a
// ProxyDialer otherwise.
func NewDialer(timeout time.Duration, proxyConfig *ProxyConfig) (Dialer, error) {
	if timeout < 0 {
		return nil, fmt.Errorf("dial timeout cannot be negative")
	}
	if proxyConfig == nil {
		return NewDirectDialer(timeout), nil
	}
	return NewProxyDialer(proxyConfig, timeout)
}
