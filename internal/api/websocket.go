package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"flash-sniper/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var streamed = []events.Event{
	events.EventOrderSent,
	events.EventOrderAck,
	events.EventPositionOpened,
	events.EventPositionClosed,
	events.EventRiskRejected,
	events.EventSession,
}

type streamMessage struct {
	Type events.Event `json:"type"`
	Data any          `json:"data"`
}

func eventType(payload any) events.Event {
	switch payload.(type) {
	case events.OrderSent:
		return events.EventOrderSent
	case events.OrderAck:
		return events.EventOrderAck
	case events.PositionOpened:
		return events.EventPositionOpened
	case events.PositionClosed:
		return events.EventPositionClosed
	case events.RiskRejected:
		return events.EventRiskRejected
	case events.Session:
		return events.EventSession
	default:
		return ""
	}
}

// websocket streams trading events to the client until it disconnects.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	stream, unsub := s.Bus.SubscribeMany(streamed, 100)
	defer unsub()

	// The read side only detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case payload, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(streamMessage{Type: eventType(payload), Data: payload}); err != nil {
				s.log.WithError(err).Debug("ws write failed")
				return
			}
		}
	}
}
