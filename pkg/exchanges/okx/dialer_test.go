package okx

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type wsServer struct {
	srv       *httptest.Server
	simHeader chan string
	gotPong   chan string
}

// newWSServer answers "ping" with a protocol ping followed by a "pong" text frame.
func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	ws := &wsServer{simHeader: make(chan string, 4), gotPong: make(chan string, 4)}
	upgrader := websocket.Upgrader{}

	ws.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/v5/public" {
			http.NotFound(w, r)
			return
		}
		ws.simHeader <- r.Header.Get("x-simulated-trading")
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.SetPongHandler(func(data string) error {
			ws.gotPong <- data
			return nil
		})
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "ping" {
				_ = c.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
				_ = c.WriteMessage(websocket.TextMessage, []byte("pong"))
			}
		}
	}))
	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) url(path string) string {
	return "wss://" + ws.srv.Listener.Addr().String() + path
}

func (ws *wsServer) tlsConfig() *tls.Config {
	return ws.srv.Client().Transport.(*http.Transport).TLSClientConfig
}

// startConnectProxy answers CONNECT with status. When userinfo is set the
// proxy demands matching Basic credentials and replies 407 otherwise.
func startConnectProxy(t *testing.T, status int, userinfo string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				br := bufio.NewReader(c)
				req, err := http.ReadRequest(br)
				if err != nil || req.Method != http.MethodConnect {
					return
				}
				if userinfo != "" && proxyUser(req) != userinfo {
					fmt.Fprint(c, "HTTP/1.1 407 Proxy Authentication Required\r\nContent-Length: 0\r\n\r\n")
					return
				}
				if status != http.StatusOK {
					fmt.Fprintf(c, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\n\r\n", status, http.StatusText(status))
					return
				}
				up, err := net.Dial("tcp", req.Host)
				if err != nil {
					fmt.Fprint(c, "HTTP/1.1 502 Bad Gateway\r\nContent-Length: 0\r\n\r\n")
					return
				}
				defer up.Close()
				fmt.Fprint(c, "HTTP/1.1 200 Connection established\r\n\r\n")
				go io.Copy(up, br)
				io.Copy(c, up)
			}(c)
		}
	}()
	return "http://" + ln.Addr().String()
}

func proxyUser(req *http.Request) string {
	h, ok := strings.CutPrefix(req.Header.Get("Proxy-Authorization"), "Basic ")
	if !ok {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(h)
	if err != nil {
		return ""
	}
	return string(raw)
}

// withUser puts userinfo into a proxy URL.
func withUser(proxy, userinfo string) string {
	return "http://" + userinfo + "@" + strings.TrimPrefix(proxy, "http://")
}

func ctxTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func exercisePingPong(t *testing.T, ch *Channel, ws *wsServer) {
	t.Helper()
	require.NoError(t, ch.WriteText([]byte("ping")))
	frame, err := ch.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, "pong", string(frame))
	select {
	case data := <-ws.gotPong:
		require.Equal(t, "hb", data)
	case <-time.After(2 * time.Second):
		t.Fatal("protocol ping was not answered")
	}
}

func TestConnectDirect(t *testing.T) {
	ws := newWSServer(t)
	ch, err := Connect(ctxTimeout(t), ws.url("/ws/v5/public"), DialOptions{
		Simulated: true,
		TLSConfig: ws.tlsConfig(),
	})
	require.NoError(t, err)
	defer ch.Close()

	require.Equal(t, "1", <-ws.simHeader)
	require.Equal(t, "/ws/v5/public", ch.Name())
	exercisePingPong(t, ch, ws)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
}

func TestConnectThroughProxy(t *testing.T) {
	ws := newWSServer(t)
	proxy := startConnectProxy(t, http.StatusOK, "")

	// No roots supplied: proxied connections skip verification.
	ch, err := Connect(ctxTimeout(t), ws.url("/ws/v5/public"), DialOptions{ProxyURL: proxy, Name: "market"})
	require.NoError(t, err)
	defer ch.Close()

	require.Equal(t, "", <-ws.simHeader)
	require.Equal(t, "market", ch.Name())
	exercisePingPong(t, ch, ws)
}

func TestConnectThroughAuthenticatedProxy(t *testing.T) {
	ws := newWSServer(t)
	proxy := startConnectProxy(t, http.StatusOK, "u:p")

	ch, err := Connect(ctxTimeout(t), ws.url("/ws/v5/private"), DialOptions{ProxyURL: withUser(proxy, "u:p")})
	require.NoError(t, err)
	defer ch.Close()
	exercisePingPong(t, ch, ws)
}

func TestConnectFailureStages(t *testing.T) {
	ws := newWSServer(t)

	deadLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := deadLn.Addr().String()
	deadLn.Close()

	tests := []struct {
		name  string
		url   string
		opts  DialOptions
		stage Stage
	}{
		{
			name:  "proxy unreachable",
			url:   ws.url("/ws/v5/public"),
			opts:  DialOptions{ProxyURL: "http://" + deadAddr},
			stage: StageProxyDial,
		},
		{
			name:  "proxy refuses tunnel",
			url:   ws.url("/ws/v5/public"),
			opts:  DialOptions{ProxyURL: startConnectProxy(t, http.StatusForbidden, "")},
			stage: StageTunnel,
		},
		{
			name:  "proxy credentials missing",
			url:   ws.url("/ws/v5/public"),
			opts:  DialOptions{ProxyURL: startConnectProxy(t, http.StatusOK, "u:p")},
			stage: StageTunnel,
		},
		{
			name:  "proxy credentials wrong",
			url:   ws.url("/ws/v5/public"),
			opts:  DialOptions{ProxyURL: withUser(startConnectProxy(t, http.StatusOK, "u:p"), "u:nope")},
			stage: StageTunnel,
		},
		{
			name:  "direct dial refused",
			url:   "wss://" + deadAddr + "/ws/v5/public",
			stage: StageDial,
		},
		{
			name:  "untrusted certificate",
			url:   ws.url("/ws/v5/public"),
			stage: StageTLS,
		},
		{
			name:  "upgrade rejected",
			url:   ws.url("/nope"),
			opts:  DialOptions{TLSConfig: ws.tlsConfig()},
			stage: StageUpgrade,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Connect(ctxTimeout(t), tt.url, tt.opts)
			require.Error(t, err)
			var ce *ConnectError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			require.Equal(t, tt.stage, ce.Stage, ce.Error())
		})
	}
}
