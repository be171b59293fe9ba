package okx

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the frame-level view of a channel used by auth and the engine.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteText(p []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

const (
	writeWait    = 5 * time.Second
	maxFrameSize = 1 << 20
)

// Channel is one authenticated or public websocket to OKX.
// Reads must come from a single goroutine; writes are serialized internally.
type Channel struct {
	conn *websocket.Conn
	name string

	wmu       sync.Mutex
	closeOnce sync.Once
}

func newChannel(conn *websocket.Conn, name string) *Channel {
	c := &Channel{conn: conn, name: name}
	conn.SetReadLimit(maxFrameSize)
	conn.SetPingHandler(func(data string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == nil || errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
	return c
}

// Name is the log label of the channel.
func (c *Channel) Name() string { return c.name }

// ReadFrame blocks for the next text or binary message payload.
func (c *Channel) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// WriteText sends one text frame.
func (c *Channel) WriteText(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, p)
}

// SetReadDeadline bounds the next ReadFrame; zero clears it.
func (c *Channel) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close sends a close frame (best effort) and closes the socket. Safe to call twice.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
