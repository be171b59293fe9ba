package okx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// scriptedConn replays frames and honours read deadlines.
type scriptedConn struct {
	frames chan []byte
	kick   chan struct{}

	mu       sync.Mutex
	deadline time.Time
	written  [][]byte
}

func newScriptedConn(frames ...string) *scriptedConn {
	c := &scriptedConn{
		frames: make(chan []byte, len(frames)+1),
		kick:   make(chan struct{}, 1),
	}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *scriptedConn) ReadFrame() ([]byte, error) {
	for {
		c.mu.Lock()
		d := c.deadline
		c.mu.Unlock()

		var timer <-chan time.Time
		if !d.IsZero() {
			timer = time.After(time.Until(d))
		}
		select {
		case f, ok := <-c.frames:
			if !ok {
				return nil, io.EOF
			}
			return f, nil
		case <-timer:
			return nil, os.ErrDeadlineExceeded
		case <-c.kick:
		}
	}
}

func (c *scriptedConn) WriteText(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), p...))
	return nil
}

func (c *scriptedConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	select {
	case c.kick <- struct{}{}:
	default:
	}
	return nil
}

func (c *scriptedConn) Close() error { return nil }

var testCreds = Credentials{APIKey: "key", SecretKey: "secret", Passphrase: "pass"}

func TestLoginSuccess(t *testing.T) {
	conn := newScriptedConn(
		"pong",
		`{"event":"subscribe","arg":{"channel":"account","ccy":"USDT"}}`,
		`garbage`,
		`{"event":"login","code":"0","msg":"","connId":"abc"}`,
	)
	require.NoError(t, Login(context.Background(), conn, testCreds, time.Second))

	require.Len(t, conn.written, 1)
	var msg struct {
		Op   string     `json:"op"`
		Args []loginArg `json:"args"`
	}
	require.NoError(t, json.Unmarshal(conn.written[0], &msg))
	require.Equal(t, "login", msg.Op)
	require.Equal(t, Sign("secret", msg.Args[0].Timestamp), msg.Args[0].Sign)
	require.True(t, conn.deadline.IsZero(), "deadline must be cleared after login")
}

func TestLoginWarnsOnDiscardedFrames(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	prev := authLog
	authLog = logrus.NewEntry(logger)
	t.Cleanup(func() { authLog = prev })

	conn := newScriptedConn(
		"pong",
		`{"event":"subscribe","arg":{"channel":"account","ccy":"USDT"}}`,
		`{"arg":{"channel":"account","ccy":"USDT"},"data":[]}`,
		`garbage`,
		`{"event":"login","code":"0","msg":"","connId":"abc"}`,
	)
	require.NoError(t, Login(context.Background(), conn, testCreds, time.Second))

	var warnings []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 3)
	require.Equal(t, "subscribe", warnings[0].Data["event"])
	require.Equal(t, KindData, warnings[1].Data["kind"])
	var de *DecodeError
	require.ErrorAs(t, warnings[2].Data[logrus.ErrorKey].(error), &de)
}

func TestLoginRejected(t *testing.T) {
	conn := newScriptedConn(`{"event":"error","code":"60009","msg":"Login failed."}`)
	err := Login(context.Background(), conn, testCreds, time.Second)

	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, "60009", ae.Code)
	require.Equal(t, "Login failed.", ae.Msg)
}

func TestLoginEventWithFailureCode(t *testing.T) {
	conn := newScriptedConn(`{"event":"login","code":"60024","msg":"Wrong passphrase"}`)
	err := Login(context.Background(), conn, testCreds, time.Second)

	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	require.Equal(t, "60024", ae.Code)
}

func TestLoginClosed(t *testing.T) {
	conn := newScriptedConn("pong")
	close(conn.frames)
	err := Login(context.Background(), conn, testCreds, time.Second)
	require.ErrorIs(t, err, ErrClosedDuringAuth)
}

func TestLoginTimeout(t *testing.T) {
	conn := newScriptedConn()
	start := time.Now()
	err := Login(context.Background(), conn, testCreds, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrAuthTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestLoginCancelled(t *testing.T) {
	conn := newScriptedConn()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Login(ctx, conn, testCreds, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
}
