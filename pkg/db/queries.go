package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Journal statements. Writes go through the persistence batch writer.
const (
	InsertOrderSQL = `INSERT OR IGNORE INTO orders
		(cl_ord_id, req_id, inst_id, side, size, tgt_ccy, td_mode, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	AckOrderSQL = `UPDATE orders SET ord_id = ?, ack_code = ?, ack_msg = ?, acked_at = ?
		WHERE cl_ord_id = ? OR (? = '' AND req_id = ?)`

	OpenPositionSQL = `INSERT INTO positions
		(inst_id, entry_cl_ord_id, entry_price, quote_size, base_size, opened_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	ClosePositionSQL = `UPDATE positions
		SET exit_bid = ?, net_pct = ?, exit_reason = ?, held_ms = ?, closed_at = ?, exit_cl_ord_id = ?
		WHERE inst_id = ? AND closed_at IS NULL`

	InsertSessionSQL = `INSERT INTO sessions (state, attempt, error, created_at) VALUES (?, ?, ?, ?)`
)

// Queries reads the journal.
type Queries struct {
	db *sql.DB
}

// Queries returns a reader over the journal.
func (d *Database) Queries() *Queries {
	return &Queries{db: d.DB}
}

// RecentOrders returns the newest orders first.
func (q *Queries) RecentOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT cl_ord_id, req_id, inst_id, side, size, tgt_ccy, td_mode, reason,
		       ord_id, ack_code, ack_msg, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ClOrdID, &o.ReqID, &o.InstID, &o.Side, &o.Size, &o.TgtCcy, &o.TdMode,
			&o.Reason, &o.OrdID, &o.AckCode, &o.AckMsg, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecentPositions returns the newest round trips first.
func (q *Queries) RecentPositions(ctx context.Context, limit int) ([]PositionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, inst_id, entry_cl_ord_id, entry_price, quote_size, base_size, opened_at,
		       exit_bid, net_pct, exit_reason, held_ms, closed_at, exit_cl_ord_id
		FROM positions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var p PositionRecord
		if err := rows.Scan(&p.ID, &p.InstID, &p.EntryClOrd, &p.EntryPrice, &p.QuoteSize, &p.BaseSize,
			&p.OpenedAt, &p.ExitBid, &p.NetPct, &p.ExitReason, &p.HeldMs, &p.ClosedAt, &p.ExitClOrdID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
