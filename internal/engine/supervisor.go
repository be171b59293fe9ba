package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"flash-sniper/internal/events"
	"flash-sniper/internal/monitor"
	"flash-sniper/pkg/exchanges/okx"
)

// Dialer opens one OKX channel.
type Dialer interface {
	Dial(ctx context.Context, ep okx.Endpoint) (okx.Conn, error)
}

type okxDialer struct {
	opts okx.DialOptions
}

// NewDialer dials the live or demo endpoints, optionally through an HTTP proxy.
func NewDialer(proxyURL string, simulated bool) Dialer {
	return &okxDialer{opts: okx.DialOptions{ProxyURL: proxyURL, Simulated: simulated}}
}

func (d *okxDialer) Dial(ctx context.Context, ep okx.Endpoint) (okx.Conn, error) {
	opts := d.opts
	opts.Name = ep.String()
	ch, err := okx.Connect(ctx, ep.URL(opts.Simulated), opts)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// SupervisorConfig holds session and reconnect settings.
type SupervisorConfig struct {
	Credentials okx.Credentials
	Watchlist   []string
	QuoteCcy    string

	PingInterval   time.Duration
	AuthTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultSupervisorConfig returns keep-alive and backoff defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		QuoteCcy:       "USDT",
		PingInterval:   15 * time.Second,
		AuthTimeout:    okx.DefaultAuthTimeout,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  1.8,
	}
}

var ping = []byte("ping")

// Supervisor owns the market and trading channels and the event loop.
// Trading state lives in the Trader and survives reconnects.
type Supervisor struct {
	cfg     SupervisorConfig
	dialer  Dialer
	trader  *Trader
	bus     *events.Bus
	metrics *monitor.SystemMetrics
	log     *logrus.Entry
}

// NewSupervisor creates a supervisor.
func NewSupervisor(cfg SupervisorConfig, dialer Dialer, trader *Trader, bus *events.Bus, metrics *monitor.SystemMetrics) *Supervisor {
	def := DefaultSupervisorConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.QuoteCcy == "" {
		cfg.QuoteCcy = def.QuoteCcy
	}
	return &Supervisor{
		cfg:     cfg,
		dialer:  dialer,
		trader:  trader,
		bus:     bus,
		metrics: metrics,
		log:     logrus.WithField("component", "supervisor"),
	}
}

// Run keeps a session alive until ctx is done. It returns an error when
// the first session cannot be established or authentication is refused;
// later disconnects are retried with exponential backoff.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.cfg.InitialBackoff
	everConnected := false

	for attempt := 1; ; attempt++ {
		connected, err := s.session(ctx, attempt)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			everConnected = true
			backoff = s.cfg.InitialBackoff
		}

		var authErr *okx.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("authentication refused: %w", err)
		}
		if !everConnected {
			return fmt.Errorf("initial connection: %w", err)
		}

		s.metrics.RecordReconnect()
		s.bus.Publish(events.EventSession, events.Session{
			State:   "disconnected",
			Attempt: attempt,
			Err:     errString(err),
			At:      time.Now(),
		})
		s.log.WithError(err).WithField("backoff", backoff).Warn("session ended, reconnecting")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = s.nextBackoff(backoff)
	}
}

func (s *Supervisor) nextBackoff(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * s.cfg.BackoffFactor)
	if next > s.cfg.MaxBackoff {
		return s.cfg.MaxBackoff
	}
	return next
}

// session connects, authenticates and subscribes, then runs the loop.
// connected reports whether the loop was reached.
func (s *Supervisor) session(ctx context.Context, attempt int) (connected bool, err error) {
	market, err := s.dialer.Dial(ctx, okx.EndpointPublic)
	if err != nil {
		return false, fmt.Errorf("connect market: %w", err)
	}
	defer market.Close()

	trading, err := s.dialer.Dial(ctx, okx.EndpointPrivate)
	if err != nil {
		return false, fmt.Errorf("connect trading: %w", err)
	}
	defer trading.Close()

	if err := okx.Login(ctx, trading, s.cfg.Credentials, s.cfg.AuthTimeout); err != nil {
		return false, err
	}

	sub, err := okx.EncodeSubscribe(okx.TickerArgs(s.cfg.Watchlist)...)
	if err != nil {
		return false, err
	}
	if err := market.WriteText(sub); err != nil {
		return false, fmt.Errorf("subscribe tickers: %w", err)
	}
	sub, err = okx.EncodeSubscribe(okx.Arg{Channel: okx.ChannelAccount, Ccy: s.cfg.QuoteCcy})
	if err != nil {
		return false, err
	}
	if err := trading.WriteText(sub); err != nil {
		return false, fmt.Errorf("subscribe account: %w", err)
	}

	sender := s.trader.Sender()
	sender.Attach(trading)
	defer sender.Attach(nil)

	s.bus.Publish(events.EventSession, events.Session{State: "connected", Attempt: attempt, At: time.Now()})
	s.log.WithFields(logrus.Fields{
		"attempt":     attempt,
		"instruments": len(s.cfg.Watchlist),
	}).Info("session established")

	return true, s.loop(ctx, market, trading)
}

type frame struct {
	trading bool
	raw     []byte
}

// loop is the only place trading state is touched while connected.
func (s *Supervisor) loop(ctx context.Context, market, trading okx.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan frame, 256)
	errc := make(chan error, 2)
	go s.pump(ctx, market, false, frames, errc)
	go s.pump(ctx, trading, true, frames, errc)

	keepalive := time.NewTicker(s.cfg.PingInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-frames:
			if f.trading {
				s.trader.OnTradingFrame(f.raw)
			} else {
				s.trader.OnMarketFrame(f.raw)
			}
		case <-keepalive.C:
			if err := market.WriteText(ping); err != nil {
				return fmt.Errorf("ping market: %w", err)
			}
			if err := trading.WriteText(ping); err != nil {
				return fmt.Errorf("ping trading: %w", err)
			}
		case err := <-errc:
			return err
		}
	}
}

// pump forwards frames from conn until a read fails or ctx is done.
func (s *Supervisor) pump(ctx context.Context, conn okx.Conn, trading bool, out chan<- frame, errc chan<- error) {
	name := "market"
	if trading {
		name = "trading"
	}
	for {
		raw, err := conn.ReadFrame()
		if err != nil {
			errc <- fmt.Errorf("read %s: %w", name, err)
			return
		}
		select {
		case out <- frame{trading: trading, raw: raw}:
		case <-ctx.Done():
			return
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
