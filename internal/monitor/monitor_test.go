package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flash-sniper/internal/events"
)

type memorySink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *memorySink) Send(m string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *memorySink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.msgs...)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		event any
		want  string
	}{
		{"connected is quiet", events.Session{State: "connected"}, ""},
		{"disconnect", events.Session{State: "disconnected", Attempt: 2, Err: "EOF"}, "session lost (attempt 2): EOF"},
		{"take profit is quiet", events.PositionClosed{Reason: "take_profit"}, ""},
		{"stop loss", events.PositionClosed{InstID: "X-USDT", Reason: "stop_loss", NetPct: -3.4, Held: 90 * time.Second}, "stop loss on X-USDT: net -3.40% after 1m30s"},
		{"accepted ack", events.OrderAck{Code: "0"}, ""},
		{"rejected ack", events.OrderAck{ClOrdID: "snip1", Code: "51008", Msg: "Insufficient balance"}, "order snip1 rejected: 51008 Insufficient balance"},
		{"other", "noise", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, alert := describe(tt.event)
			require.Equal(t, tt.want != "", alert)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMonitorSendsAlerts(t *testing.T) {
	bus := events.NewBus()
	sink := &memorySink{}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &Monitor{Bus: bus, Sink: sink, Now: func() time.Time { return at }}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	bus.Publish(events.EventSession, events.Session{State: "connected"})
	bus.Publish(events.EventSession, events.Session{State: "disconnected", Attempt: 1, Err: "EOF"})

	require.Eventually(t, func() bool { return len(sink.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "[2024-01-02T03:04:05Z] session lost (attempt 1): EOF", sink.Messages()[0])
}
