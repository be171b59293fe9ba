package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flash-sniper/internal/events"
	"flash-sniper/pkg/db"
)

func newJournal(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))
	return database
}

func countRows(t *testing.T, database *db.Database, table string) int {
	t.Helper()
	var n int
	require.NoError(t, database.DB.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestBatchWriterFlushOnSize(t *testing.T) {
	database := newJournal(t)
	bw := NewBatchWriter(database.DB, 2, time.Hour)
	defer bw.Close()

	bw.WriteQuery(db.InsertSessionSQL, "connected", 1, "", time.Now())
	require.Equal(t, 1, bw.Pending())
	bw.WriteQuery(db.InsertSessionSQL, "disconnected", 1, "eof", time.Now())
	require.Zero(t, bw.Pending())
	require.Equal(t, 2, countRows(t, database, "sessions"))

	m := bw.GetMetrics()
	require.Equal(t, uint64(2), m.TotalWrites)
	require.Equal(t, uint64(1), m.TotalBatches)
	require.Equal(t, 2, m.LastBatchSize)
}

func TestBatchWriterRollsBackBadBatch(t *testing.T) {
	database := newJournal(t)
	bw := NewBatchWriter(database.DB, 100, time.Hour)
	defer bw.Close()

	bw.WriteQuery(db.InsertSessionSQL, "connected", 1, "", time.Now())
	bw.WriteQuery("INSERT INTO nope VALUES (1)")
	require.Error(t, bw.Flush())
	require.Zero(t, countRows(t, database, "sessions"))
	require.Equal(t, uint64(1), bw.GetMetrics().TotalErrors)
}

func TestBatchWriterCloseFlushes(t *testing.T) {
	database := newJournal(t)
	bw := NewBatchWriter(database.DB, 100, time.Hour)
	bw.WriteQuery(db.InsertSessionSQL, "connected", 1, "", time.Now())
	require.NoError(t, bw.Close())
	require.NoError(t, bw.Close())
	require.Equal(t, 1, countRows(t, database, "sessions"))
}

func TestRecorderJournalsRoundTrip(t *testing.T) {
	database := newJournal(t)
	bus := events.NewBus()
	bw := NewBatchWriter(database.DB, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	rec := NewRecorder(bus, bw)
	rec.Start(ctx)

	now := time.Now()
	bus.Publish(events.EventOrderSent, events.OrderSent{
		ClOrdID: "snip1", ReqID: "r1", InstID: "X-USDT", Side: "buy", Size: "25",
		TgtCcy: "quote_ccy", TdMode: "cash", Reason: "entry", At: now,
	})
	bus.Publish(events.EventPositionOpened, events.PositionOpened{
		InstID: "X-USDT", ClOrdID: "snip1", EntryPrice: 96.2, QuoteSize: "25", BaseSize: "0.259", At: now,
	})

	require.Eventually(t, func() bool {
		_ = bw.Flush()
		var orders, positions int
		_ = database.DB.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orders)
		_ = database.DB.QueryRow("SELECT COUNT(*) FROM positions").Scan(&positions)
		return orders == 1 && positions == 1
	}, 2*time.Second, 10*time.Millisecond)

	bus.Publish(events.EventPositionClosed, events.PositionClosed{
		InstID: "X-USDT", ClOrdID: "snip2", EntryPrice: 96.2, ExitBid: 98, NetPct: 1.47,
		Reason: "take_profit", Held: 500 * time.Millisecond, At: now.Add(time.Second),
	})
	require.Eventually(t, func() bool {
		_ = bw.Flush()
		var open int
		err := database.DB.QueryRow("SELECT COUNT(*) FROM positions WHERE closed_at IS NULL").Scan(&open)
		return err == nil && open == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	rec.Wait()
	require.NoError(t, bw.Close())

	positions, err := database.Queries().RecentPositions(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "snip2", positions[0].ExitClOrdID.String)
	require.Equal(t, int64(500), positions[0].HeldMs.Int64)
}
