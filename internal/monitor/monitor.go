package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"flash-sniper/internal/events"
)

// Monitor watches trading events and emits alerts for the ones an
// operator should see: lost sessions, stop-losses and rejected orders.
type Monitor struct {
	Bus  *events.Bus
	Sink AlertSink
	Now  func() time.Time
}

var watched = []events.Event{
	events.EventSession,
	events.EventPositionClosed,
	events.EventOrderAck,
}

// Start consumes events until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	log := logrus.WithField("component", "monitor")
	if m.Bus == nil || m.Sink == nil {
		log.Warn("monitor not fully configured; skipping")
		return
	}
	if m.Now == nil {
		m.Now = time.Now
	}
	stream, unsub := m.Bus.SubscribeMany(watched, 50)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				text, alert := describe(msg)
				if !alert {
					continue
				}
				if err := m.Sink.Send(formatAlert(m.Now(), text)); err != nil {
					log.WithError(err).Warn("alert delivery failed")
				}
			}
		}
	}()
}

func formatAlert(at time.Time, text string) string {
	return "[" + at.Format(time.RFC3339) + "] " + text
}

func describe(v any) (string, bool) {
	switch e := v.(type) {
	case events.Session:
		if e.State != "disconnected" {
			return "", false
		}
		return fmt.Sprintf("session lost (attempt %d): %s", e.Attempt, e.Err), true
	case events.PositionClosed:
		if e.Reason != "stop_loss" {
			return "", false
		}
		return fmt.Sprintf("stop loss on %s: net %.2f%% after %s", e.InstID, e.NetPct, e.Held.Truncate(time.Second)), true
	case events.OrderAck:
		if e.Code == "0" {
			return "", false
		}
		return fmt.Sprintf("order %s rejected: %s %s", e.ClOrdID, e.Code, e.Msg), true
	default:
		return "", false
	}
}
