package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"flash-sniper/pkg/exchanges/okx"
)

var (
	// ErrNotAttached means no trading channel is connected.
	ErrNotAttached = errors.New("no trading channel attached")
	// ErrEntryRateLimited means the entry budget is exhausted.
	ErrEntryRateLimited = errors.New("entry rate limit exceeded")
)

// OrderSendError reports an order that was not written.
type OrderSendError struct {
	InstID string
	Side   okx.Side
	Err    error
}

func (e *OrderSendError) Error() string {
	return fmt.Sprintf("send %s %s: %v", e.Side, e.InstID, e.Err)
}

func (e *OrderSendError) Unwrap() error { return e.Err }

// FrameWriter is the trading channel's write side.
type FrameWriter interface {
	WriteText(p []byte) error
}

// OrderSender encodes and writes fire-and-forget orders. Entries draw
// from a token bucket; exits are never throttled.
type OrderSender struct {
	codec   *okx.Codec
	entries *rate.Limiter

	mu sync.RWMutex
	w  FrameWriter
}

// NewOrderSender allows burst entries, refilled one per interval.
func NewOrderSender(codec *okx.Codec, burst int, interval time.Duration) *OrderSender {
	return &OrderSender{
		codec:   codec,
		entries: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Attach switches the sender to a new trading channel; nil detaches.
func (s *OrderSender) Attach(w FrameWriter) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// Send writes req and returns the encoded frame ids.
func (s *OrderSender) Send(req okx.OrderRequest) (okx.Encoded, error) {
	s.mu.RLock()
	w := s.w
	s.mu.RUnlock()
	if w == nil {
		return okx.Encoded{}, &OrderSendError{InstID: req.InstID, Side: req.Side, Err: ErrNotAttached}
	}

	if req.Side == okx.SideBuy && !s.entries.Allow() {
		return okx.Encoded{}, &OrderSendError{InstID: req.InstID, Side: req.Side, Err: ErrEntryRateLimited}
	}

	enc, err := s.codec.EncodeOrder(req)
	if err != nil {
		return okx.Encoded{}, &OrderSendError{InstID: req.InstID, Side: req.Side, Err: err}
	}
	if err := w.WriteText(enc.Payload); err != nil {
		return okx.Encoded{}, &OrderSendError{InstID: req.InstID, Side: req.Side, Err: err}
	}
	return enc, nil
}
