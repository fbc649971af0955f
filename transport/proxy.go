package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// ProxyConfig contains configuration for proxy connections.
type ProxyConfig struct {
	Type     string // "socks5" or "http"
	Host     string
	Port     uint16
	Username string
	Password string
}

// Address returns the proxy's host:port.
func (c *ProxyConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// ParseProxyURL parses "socks5://[user:pass@]host:port" or
// "http://[user:pass@]host:port". An empty string yields a nil config.
func ParseProxyURL(raw string) (*ProxyConfig, error) {
	if raw == "" {
		return nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", raw, err)
	}

	config := &ProxyConfig{Type: u.Scheme, Host: u.Hostname()}
	switch config.Type {
	case "socks5", "socks5h":
		config.Type = "socks5"
	case "http":
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s (must be 'socks5' or 'http')", u.Scheme)
	}

	if config.Host == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", raw)
	}
	port, err := strconv.ParseUint(u.Port(), 10, 16)
	if err != nil || port == 0 {
		return nil, fmt.Errorf("proxy URL %q has an invalid port", raw)
	}
	config.Port = uint16(port)

	if u.User != nil {
		config.Username = u.User.Username()
		config.Password, _ = u.User.Password()
	}
	return config, nil
}

// ProxyDialer opens TCP connections through a SOCKS5 or HTTP CONNECT proxy.
type ProxyDialer struct {
	proxyDialer proxy.Dialer
	proxyType   string
	proxyAddr   string
}

// NewProxyDialer creates a dialer for the given proxy. timeout bounds the
// connection to the proxy itself.
func NewProxyDialer(config *ProxyConfig, timeout time.Duration) (*ProxyDialer, error) {
	if config == nil {
		return nil, fmt.Errorf("proxy config cannot be nil")
	}

	proxyAddr := config.Address()

	logrus.WithFields(logrus.Fields{
		"function":   "NewProxyDialer",
		"proxy_type": config.Type,
		"proxy_addr": proxyAddr,
	}).Info("Creating proxy dialer")

	forward := &net.Dialer{Timeout: timeout}

	var dialer proxy.Dialer
	switch config.Type {
	case "socks5":
		var auth *proxy.Auth
		if config.Username != "" || config.Password != "" {
			auth = &proxy.Auth{
				User:     config.Username,
				Password: config.Password,
			}
		}

		var err error
		dialer, err = proxy.SOCKS5("tcp", proxyAddr, auth, forward)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "NewProxyDialer",
				"proxy_type": config.Type,
				"proxy_addr": proxyAddr,
				"error":      err.Error(),
			}).Error("Failed to create SOCKS5 dialer")
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}

	case "http":
		var userInfo *url.Userinfo
		if config.Username != "" {
			if config.Password != "" {
				userInfo = url.UserPassword(config.Username, config.Password)
			} else {
				userInfo = url.User(config.Username)
			}
		}

		dialer = &httpProxyDialer{
			proxyURL: &url.URL{Scheme: "http", Host: proxyAddr, User: userInfo},
			forward:  forward,
			timeout:  timeout,
		}

	default:
		return nil, fmt.Errorf("unsupported proxy type: %s (must be 'socks5' or 'http')", config.Type)
	}

	return &ProxyDialer{
		proxyDialer: dialer,
		proxyType:   config.Type,
		proxyAddr:   proxyAddr,
	}, nil
}

// DialContext connects to address through the proxy.
func (d *ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	logrus.WithFields(logrus.Fields{
		"function":   "ProxyDialer.DialContext",
		"address":    address,
		"proxy_type": d.proxyType,
		"proxy_addr": d.proxyAddr,
	}).Debug("Dialing via proxy")

	var conn net.Conn
	var err error
	if cd, ok := d.proxyDialer.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, network, address)
	} else {
		conn, err = d.proxyDialer.Dial(network, address)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "ProxyDialer.DialContext",
			"address":    address,
			"proxy_type": d.proxyType,
			"error":      err.Error(),
		}).Error("Failed to dial via proxy")
		return nil, fmt.Errorf("proxy dial failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "ProxyDialer.DialContext",
		"address":     address,
		"proxy_type":  d.proxyType,
		"local_addr":  conn.LocalAddr().String(),
		"remote_addr": conn.RemoteAddr().String(),
	}).Info("Proxy connection established")

	return conn, nil
}

// String describes the dialer for logging.
func (d *ProxyDialer) String() string {
	return d.proxyType + "://" + d.proxyAddr
}

// httpProxyDialer implements proxy.Dialer and proxy.ContextDialer for HTTP
// CONNECT proxies.
type httpProxyDialer struct {
	proxyURL *url.URL
	forward  *net.Dialer
	timeout  time.Duration
}

// Dial connects to the address via HTTP CONNECT proxy.
func (d *httpProxyDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

// DialContext connects to the address via HTTP CONNECT proxy.
func (d *httpProxyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network != "tcp" {
		return nil, fmt.Errorf("HTTP CONNECT proxy only supports TCP, got: %s", network)
	}

	proxyConn, err := d.forward.DialContext(ctx, "tcp", d.proxyURL.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to proxy: %w", err)
	}

	connectReq := &http.Request{
		Method: "CONNECT",
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}

	if d.proxyURL.User != nil {
		username := d.proxyURL.User.Username()
		password, _ := d.proxyURL.User.Password()
		connectReq.SetBasicAuth(username, password)
	}

	if err := connectReq.Write(proxyConn); err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("failed to write CONNECT request: %w", err)
	}

	timeout := d.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := proxyConn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	br := bufio.NewReader(proxyConn)
	resp, err := http.ReadResponse(br, connectReq)
	if err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		proxyConn.Close()
		return nil, fmt.Errorf("proxy returned non-200 status: %s", resp.Status)
	}
	if br.Buffered() > 0 {
		proxyConn.Close()
		return nil, fmt.Errorf("proxy sent %d unexpected bytes after CONNECT response", br.Buffered())
	}

	if err := proxyConn.SetReadDeadline(time.Time{}); err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("failed to clear read deadline: %w", err)
	}

	return proxyConn, nil
}
