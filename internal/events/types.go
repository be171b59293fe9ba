package events

import "time"

// Event enumerates topics published by the trading loop.
type Event string

const (
	EventOrderSent      Event = "order.sent"
	EventOrderAck       Event = "order.ack"
	EventPositionOpened Event = "position.opened"
	EventPositionClosed Event = "position.closed"
	EventRiskRejected   Event = "risk.rejected"
	EventSession        Event = "session"
)

// OrderSent is published after an order frame was written to the trading channel.
type OrderSent struct {
	ClOrdID string
	ReqID   string
	InstID  string
	Side    string
	Size    string
	TgtCcy  string
	TdMode  string
	Reason  string // "entry" or the exit reason
	At      time.Time
}

// OrderAck mirrors an exchange acknowledgement for the journal.
type OrderAck struct {
	ReqID   string
	ClOrdID string
	OrdID   string
	Code    string
	Msg     string
	At      time.Time
}

// PositionOpened is published when a buy was sent and the position recorded.
type PositionOpened struct {
	InstID     string
	ClOrdID    string
	EntryPrice float64
	QuoteSize  string
	BaseSize   string
	At         time.Time
}

// PositionClosed is published when an exit decision was taken.
type PositionClosed struct {
	InstID     string
	ClOrdID    string
	EntryPrice float64
	ExitBid    float64
	NetPct     float64
	Reason     string
	Held       time.Duration
	At         time.Time
}

// RiskRejected records a signal that the gate refused.
type RiskRejected struct {
	InstID string
	Reason string
	At     time.Time
}

// Session reports connection lifecycle changes.
type Session struct {
	State   string // "connected", "disconnected"
	Attempt int
	Err     string
	At      time.Time
}
