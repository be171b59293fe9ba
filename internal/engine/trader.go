package engine

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"flash-sniper/internal/balance"
	"flash-sniper/internal/events"
	"flash-sniper/internal/monitor"
	"flash-sniper/internal/position"
	"flash-sniper/internal/risk"
	"flash-sniper/internal/strategy"
	"flash-sniper/pkg/exchanges/okx"
)

// Config wires the trader to the strategy modules.
type Config struct {
	Signals   *strategy.FlashCrash
	Gate      *risk.Gate
	Positions *position.Manager
	Balance   *balance.Manager
	Sender    *OrderSender
	Bus       *events.Bus
	Metrics   *monitor.SystemMetrics

	// Now is the exchange-aligned clock; defaults to time.Now.
	Now func() time.Time

	// TakerFeePct is deducted from the base estimate of an entry.
	TakerFeePct float64
	// SizeDecimals truncates base sizes of exits.
	SizeDecimals int32
}

// Trader turns decoded frames into orders. It is driven by the session
// loop only; none of its methods may run concurrently with each other.
type Trader struct {
	signals   *strategy.FlashCrash
	gate      *risk.Gate
	positions *position.Manager
	balance   *balance.Manager
	sender    *OrderSender
	bus       *events.Bus
	metrics   *monitor.SystemMetrics
	now       func() time.Time

	takerFee     decimal.Decimal
	sizeDecimals int32

	log *logrus.Entry
}

// NewTrader creates a trader from cfg.
func NewTrader(cfg Config) *Trader {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Trader{
		signals:      cfg.Signals,
		gate:         cfg.Gate,
		positions:    cfg.Positions,
		balance:      cfg.Balance,
		sender:       cfg.Sender,
		bus:          cfg.Bus,
		metrics:      cfg.Metrics,
		now:          now,
		takerFee:     decimal.NewFromFloat(cfg.TakerFeePct).Div(decimal.NewFromInt(100)),
		sizeDecimals: cfg.SizeDecimals,
		log:          logrus.WithField("component", "trader"),
	}
}

// Sender exposes the order sender so the session can attach channels.
func (t *Trader) Sender() *OrderSender { return t.sender }

// OnMarketFrame handles one frame from the public channel.
func (t *Trader) OnMarketFrame(raw []byte) {
	env, err := okx.Decode(raw)
	if err != nil {
		t.metrics.RecordDecodeError("market")
		t.log.WithError(err).Warn("skipping market frame")
		return
	}

	switch env.Kind {
	case okx.KindPong:
	case okx.KindEvent:
		t.onEvent("market", env.Event)
	case okx.KindData:
		if env.Push.Arg.Channel != okx.ChannelTickers {
			t.log.WithField("channel", env.Push.Arg.Channel).Debug("ignoring market push")
			return
		}
		tickers, err := okx.DecodeTickers(env.Push.Data)
		if err != nil {
			for i := okx.SkippedTickers(err); i > 0; i-- {
				t.metrics.RecordDecodeError(okx.ChannelTickers)
			}
			t.log.WithError(err).Warn("skipping ticker entries")
		}
		for _, tk := range tickers {
			t.OnTicker(tk)
		}
	default:
		t.log.Debugf("unhandled market frame: %s", raw)
	}
}

// OnTradingFrame handles one frame from the private channel.
func (t *Trader) OnTradingFrame(raw []byte) {
	env, err := okx.Decode(raw)
	if err != nil {
		t.metrics.RecordDecodeError("trading")
		t.log.WithError(err).Warn("skipping trading frame")
		return
	}

	switch env.Kind {
	case okx.KindPong:
	case okx.KindEvent:
		t.onEvent("trading", env.Event)
	case okx.KindOrderAck:
		t.onAck(env.Ack)
	case okx.KindData:
		if env.Push.Arg.Channel != okx.ChannelAccount {
			t.log.WithField("channel", env.Push.Arg.Channel).Debug("ignoring trading push")
			return
		}
		if err := t.balance.OnAccountUpdate(env.Push.Data); err != nil {
			t.metrics.RecordDecodeError(okx.ChannelAccount)
			t.log.WithError(err).Warn("skipping account push")
		}
	default:
		t.log.Debugf("unhandled trading frame: %s", raw)
	}
}

// OnTicker runs one ticker through exits or entries. A held instrument
// is only evaluated for exit; its price does not feed the detector.
func (t *Trader) OnTicker(tk okx.Ticker) {
	defer t.recoverTick(tk.InstID)

	now := t.now()
	latency := now.Sub(tk.TS)
	t.metrics.RecordTick(tk.InstID, latency)

	if t.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		t.log.WithFields(logrus.Fields{
			"inst":    tk.InstID,
			"bid":     tk.Bid,
			"ask":     tk.Ask,
			"spread":  fmt.Sprintf("%.3f%%", tk.SpreadPct()),
			"latency": latency.Milliseconds(),
		}).Debug("ticker")
	}

	if t.positions.Has(tk.InstID) {
		if t.signals.Stale(tk, now) {
			return
		}
		if d := t.positions.Evaluate(tk.InstID, tk.Bid, now); d != nil {
			t.exit(d, now)
		}
		return
	}

	if sig := t.signals.OnTick(tk, now); sig != nil {
		t.enter(sig, now)
	}
}

func (t *Trader) enter(sig *strategy.Signal, at time.Time) {
	t.metrics.RecordSignal(sig.InstID)
	log := t.log.WithFields(logrus.Fields{
		"inst":   sig.InstID,
		"change": fmt.Sprintf("%.2f%%", sig.ChangePct),
		"floor":  sig.Floor,
		"ask":    sig.Ask,
	})
	log.Info("flash crash detected")

	dec := t.gate.Admit(sig.InstID, t.balance.Available())
	if !dec.Allowed {
		t.metrics.RecordRejection(string(dec.Reason))
		t.bus.Publish(events.EventRiskRejected, events.RiskRejected{
			InstID: sig.InstID,
			Reason: string(dec.Reason),
			At:     at,
		})
		log.WithField("reason", dec.Reason).Debug("entry rejected")
		return
	}
	defer t.gate.Release(sig.InstID)

	req := okx.OrderRequest{InstID: sig.InstID, Side: okx.SideBuy, Size: dec.Size}
	enc, err := t.sender.Send(req)
	if err != nil {
		t.metrics.RecordOrderError(string(okx.SideBuy))
		log.WithError(err).Error("buy not sent")
		return
	}
	t.metrics.RecordOrder(sig.InstID, string(okx.SideBuy), t.now().Sub(at))
	t.publishSent(req, enc, "entry", at)

	pos := position.Position{
		InstID:     sig.InstID,
		EntryPrice: sig.Ask,
		EntryTime:  at,
		QuoteSize:  dec.Size,
		BaseSize:   t.baseEstimate(dec.Size, sig.Ask),
		ClOrdID:    enc.ClOrdID,
	}
	if !t.positions.Open(pos) {
		log.Warn("position already open after buy")
		return
	}
	t.metrics.SetOpenPositions(t.positions.Count())
	t.bus.Publish(events.EventPositionOpened, events.PositionOpened{
		InstID:     pos.InstID,
		ClOrdID:    pos.ClOrdID,
		EntryPrice: pos.EntryPrice,
		QuoteSize:  pos.QuoteSize.String(),
		BaseSize:   pos.BaseSize.String(),
		At:         at,
	})
	log.WithFields(logrus.Fields{
		"clOrdId": enc.ClOrdID,
		"size":    dec.Size.String(),
	}).Info("buy sent")
}

func (t *Trader) exit(d *position.ExitDecision, at time.Time) {
	pos := d.Position
	log := t.log.WithFields(logrus.Fields{
		"inst":   pos.InstID,
		"reason": d.Reason,
		"net":    fmt.Sprintf("%.2f%%", d.NetPct),
		"held":   d.Held.Truncate(time.Millisecond),
	})
	t.metrics.SetOpenPositions(t.positions.Count())

	req := okx.OrderRequest{InstID: pos.InstID, Side: okx.SideSell, Size: pos.BaseSize}
	enc, err := t.sender.Send(req)
	if err != nil {
		t.metrics.RecordOrderError(string(okx.SideSell))
		log.WithError(err).Error("sell not sent; position dropped from book")
		return
	}
	t.metrics.RecordOrder(pos.InstID, string(okx.SideSell), t.now().Sub(at))
	t.publishSent(req, enc, string(d.Reason), at)
	t.bus.Publish(events.EventPositionClosed, events.PositionClosed{
		InstID:     pos.InstID,
		ClOrdID:    enc.ClOrdID,
		EntryPrice: pos.EntryPrice,
		ExitBid:    d.Bid,
		NetPct:     d.NetPct,
		Reason:     string(d.Reason),
		Held:       d.Held,
		At:         at,
	})
	log.WithField("clOrdId", enc.ClOrdID).Info("sell sent")
}

// baseEstimate is quote/ask less the taker fee, truncated to lot precision.
func (t *Trader) baseEstimate(quote decimal.Decimal, ask float64) decimal.Decimal {
	if ask <= 0 {
		return decimal.Zero
	}
	base := quote.Div(decimal.NewFromFloat(ask))
	return base.Mul(decimal.NewFromInt(1).Sub(t.takerFee)).Truncate(t.sizeDecimals)
}

func (t *Trader) publishSent(req okx.OrderRequest, enc okx.Encoded, reason string, at time.Time) {
	tgt := req.TgtCcy
	if enc.TdMode == "cash" && tgt == "" {
		tgt = okx.TgtBase
		if req.Side == okx.SideBuy {
			tgt = okx.TgtQuote
		}
	}
	t.bus.Publish(events.EventOrderSent, events.OrderSent{
		ClOrdID: enc.ClOrdID,
		ReqID:   enc.ReqID,
		InstID:  req.InstID,
		Side:    string(req.Side),
		Size:    req.Size.String(),
		TgtCcy:  tgt,
		TdMode:  enc.TdMode,
		Reason:  reason,
		At:      at,
	})
}

func (t *Trader) onAck(ack *okx.OrderAck) {
	at := t.now()
	log := t.log.WithFields(logrus.Fields{"id": ack.ID, "code": ack.Code})
	if len(ack.Results) == 0 {
		log.WithField("msg", ack.Msg).Warn("order ack without results")
		t.bus.Publish(events.EventOrderAck, events.OrderAck{
			ReqID: ack.ID, Code: ack.Code, Msg: ack.Msg, At: at,
		})
		return
	}
	for _, r := range ack.Results {
		fields := logrus.Fields{"clOrdId": r.ClOrdID, "ordId": r.OrdID, "sCode": r.SCode}
		if r.SCode == "0" {
			log.WithFields(fields).Info("order accepted")
		} else {
			log.WithFields(fields).WithField("sMsg", r.SMsg).Warn("order rejected")
		}
		t.bus.Publish(events.EventOrderAck, events.OrderAck{
			ReqID:   ack.ID,
			ClOrdID: r.ClOrdID,
			OrdID:   r.OrdID,
			Code:    r.SCode,
			Msg:     r.SMsg,
			At:      at,
		})
	}
}

func (t *Trader) onEvent(channel string, ev *okx.Event) {
	log := t.log.WithFields(logrus.Fields{"channel": channel, "event": ev.Event})
	switch ev.Event {
	case "error":
		log.WithFields(logrus.Fields{"code": ev.Code, "msg": ev.Msg}).Error("exchange error")
	case "subscribe":
		if ev.Arg != nil {
			log = log.WithField("arg", ev.Arg.Channel+":"+ev.Arg.InstID+ev.Arg.Ccy)
		}
		log.Info("subscribed")
	default:
		log.Debug("event")
	}
}

func (t *Trader) recoverTick(instID string) {
	if r := recover(); r != nil {
		t.log.WithFields(logrus.Fields{
			"inst":  instID,
			"panic": r,
		}).Errorf("ticker handler panicked\n%s", debug.Stack())
	}
}

// Status is a read-only view of trading state.
type Status struct {
	Positions []position.Position `json:"positions"`
	Balance   balance.Balance     `json:"balance"`
	Entering  []string            `json:"entering"`
	Risk      risk.Metrics        `json:"risk"`
}

// Status snapshots state for the status API; it is safe to call from
// any goroutine.
func (t *Trader) Status() Status {
	return Status{
		Positions: t.positions.Snapshot(),
		Balance:   t.balance.Snapshot(),
		Entering:  t.gate.Entering(),
		Risk:      t.gate.GetMetrics(),
	}
}
