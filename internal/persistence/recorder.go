package persistence

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"flash-sniper/internal/events"
	"flash-sniper/pkg/db"
)

// Recorder journals bus events through a BatchWriter. The journal is
// audit-only; nothing reads it back into trading state.
type Recorder struct {
	bus    *events.Bus
	writer *BatchWriter
	log    *logrus.Entry
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder writing through w.
func NewRecorder(bus *events.Bus, w *BatchWriter) *Recorder {
	return &Recorder{
		bus:    bus,
		writer: w,
		log:    logrus.WithField("component", "journal"),
	}
}

var journaled = []events.Event{
	events.EventOrderSent,
	events.EventOrderAck,
	events.EventPositionOpened,
	events.EventPositionClosed,
	events.EventSession,
}

// Start consumes journaled events until ctx is done. A single ordered
// subscription keeps a close from overtaking its open.
func (r *Recorder) Start(ctx context.Context) {
	ch, unsub := r.bus.SubscribeMany(journaled, 1024)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				r.record(payload)
			}
		}
	}()
}

// Wait blocks until the consumer goroutine exits.
func (r *Recorder) Wait() { r.wg.Wait() }

func (r *Recorder) record(payload any) {
	switch p := payload.(type) {
	case events.OrderSent:
		r.writer.WriteQuery(db.InsertOrderSQL,
			p.ClOrdID, p.ReqID, p.InstID, p.Side, p.Size, p.TgtCcy, p.TdMode, p.Reason, p.At)
	case events.OrderAck:
		r.writer.WriteQuery(db.AckOrderSQL,
			p.OrdID, p.Code, p.Msg, p.At, p.ClOrdID, p.ClOrdID, p.ReqID)
	case events.PositionOpened:
		r.writer.WriteQuery(db.OpenPositionSQL,
			p.InstID, p.ClOrdID, p.EntryPrice, p.QuoteSize, p.BaseSize, p.At)
	case events.PositionClosed:
		r.writer.WriteQuery(db.ClosePositionSQL,
			p.ExitBid, p.NetPct, p.Reason, p.Held.Milliseconds(), p.At, p.ClOrdID, p.InstID)
	case events.Session:
		r.writer.WriteQuery(db.InsertSessionSQL, p.State, p.Attempt, p.Err, p.At)
	default:
		r.log.Warnf("unexpected journal payload %T", payload)
	}
}
