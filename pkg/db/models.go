package db

import (
	"database/sql"
	"time"
)

// OrderRecord is a journaled order frame and its acknowledgement.
type OrderRecord struct {
	ClOrdID   string         `json:"cl_ord_id"`
	ReqID     string         `json:"req_id"`
	InstID    string         `json:"inst_id"`
	Side      string         `json:"side"`
	Size      string         `json:"size"`
	TgtCcy    sql.NullString `json:"-"`
	TdMode    string         `json:"td_mode"`
	Reason    string         `json:"reason"`
	OrdID     sql.NullString `json:"-"`
	AckCode   sql.NullString `json:"-"`
	AckMsg    sql.NullString `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

// PositionRecord is a journaled round trip; exit fields are null while open.
type PositionRecord struct {
	ID          int64           `json:"id"`
	InstID      string          `json:"inst_id"`
	EntryClOrd  string          `json:"entry_cl_ord_id"`
	EntryPrice  float64         `json:"entry_price"`
	QuoteSize   string          `json:"quote_size"`
	BaseSize    string          `json:"base_size"`
	OpenedAt    time.Time       `json:"opened_at"`
	ExitBid     sql.NullFloat64 `json:"-"`
	NetPct      sql.NullFloat64 `json:"-"`
	ExitReason  sql.NullString  `json:"-"`
	HeldMs      sql.NullInt64   `json:"-"`
	ClosedAt    sql.NullTime    `json:"-"`
	ExitClOrdID sql.NullString  `json:"-"`
}

// Open reports whether the round trip has not been closed yet.
func (p PositionRecord) Open() bool { return !p.ClosedAt.Valid }
