package okx

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Stage names the connection step that failed.
type Stage string

const (
	StageDial      Stage = "dial"       // direct TCP connect
	StageProxyDial Stage = "proxy_dial" // TCP connect to the proxy
	StageTunnel    Stage = "tunnel"     // HTTP CONNECT refused or malformed
	StageTLS       Stage = "tls"
	StageUpgrade   Stage = "upgrade" // websocket handshake
)

// ConnectError reports which stage of Connect failed.
type ConnectError struct {
	Stage Stage
	Addr  string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("okx connect %s (%s): %v", e.Addr, e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DialOptions tune Connect.
type DialOptions struct {
	// ProxyURL is an optional http:// proxy used through HTTP CONNECT.
	// Certificate verification is disabled when a proxy is set.
	ProxyURL string
	// Simulated adds the demo-trading header to the upgrade request.
	Simulated bool
	// TLSConfig overrides the default client TLS config (tests, pinned roots).
	TLSConfig        *tls.Config
	HandshakeTimeout time.Duration
	// Name labels the channel in logs; defaults to the URL path.
	Name string
}

const (
	defaultHandshakeTimeout = 10 * time.Second
	tcpKeepAlive            = 30 * time.Second
)

var dialLog = logrus.WithField("component", "okx-dialer")

// Connect opens a websocket to rawURL: TCP (no delay), optional HTTP CONNECT
// tunnel, TLS for wss, then the websocket upgrade.
func Connect(ctx context.Context, rawURL string, opts DialOptions) (*Channel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ConnectError{Stage: StageDial, Addr: rawURL, Err: err}
	}

	var proxy *url.URL
	if opts.ProxyURL != "" {
		proxy, err = url.Parse(opts.ProxyURL)
		if err != nil || proxy.Host == "" {
			if err == nil {
				err = errors.New("proxy url has no host")
			}
			return nil, &ConnectError{Stage: StageProxyDial, Addr: opts.ProxyURL, Err: err}
		}
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	d := websocket.Dialer{
		HandshakeTimeout: timeout,
		NetDialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialTCP(ctx, addr, proxy)
		},
		NetDialTLSContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			conn, err := dialTCP(ctx, addr, proxy)
			if err != nil {
				return nil, err
			}
			return handshakeTLS(ctx, conn, addr, u.Hostname(), proxy != nil, opts.TLSConfig)
		},
	}

	conn, resp, err := d.DialContext(ctx, rawURL, Headers(opts.Simulated))
	if err != nil {
		var ce *ConnectError
		if errors.As(err, &ce) {
			return nil, ce
		}
		if resp != nil {
			err = fmt.Errorf("%w (http %d)", err, resp.StatusCode)
		}
		return nil, &ConnectError{Stage: StageUpgrade, Addr: rawURL, Err: err}
	}

	name := opts.Name
	if name == "" {
		name = u.Path
	}
	dialLog.WithFields(logrus.Fields{
		"channel": name,
		"proxied": proxy != nil,
	}).Info("websocket connected")
	return newChannel(conn, name), nil
}

func dialTCP(ctx context.Context, addr string, proxy *url.URL) (net.Conn, error) {
	d := net.Dialer{KeepAlive: tcpKeepAlive}

	target, stage := addr, StageDial
	if proxy != nil {
		target, stage = proxyHostPort(proxy), StageProxyDial
	}

	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, &ConnectError{Stage: stage, Addr: target, Err: err}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	if proxy != nil {
		if err := tunnel(ctx, conn, addr, proxy); err != nil {
			conn.Close()
			return nil, &ConnectError{Stage: StageTunnel, Addr: target, Err: err}
		}
	}
	return conn, nil
}

// tunnel issues CONNECT addr over conn and expects a 200 reply.
func tunnel(ctx context.Context, conn net.Conn, addr string, proxy *url.URL) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if u := proxy.User; u != nil {
		pass, _ := u.Password()
		creds := base64.StdEncoding.EncodeToString([]byte(u.Username() + ":" + pass))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}
	if err := req.Write(conn); err != nil {
		return fmt.Errorf("write CONNECT: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return fmt.Errorf("read CONNECT reply: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy refused CONNECT: %s", resp.Status)
	}
	if br.Buffered() > 0 {
		return errors.New("proxy sent data before tunnel was used")
	}
	return nil
}

func handshakeTLS(ctx context.Context, conn net.Conn, addr, host string, proxied bool, base *tls.Config) (net.Conn, error) {
	cfg := &tls.Config{}
	if base != nil {
		cfg = base.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if proxied {
		// Intercepting proxies re-sign upstream certificates.
		cfg.InsecureSkipVerify = true
	}

	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, &ConnectError{Stage: StageTLS, Addr: addr, Err: err}
	}
	return tc, nil
}

func proxyHostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}
