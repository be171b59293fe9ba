package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"flash-sniper/internal/api"
	"flash-sniper/internal/balance"
	"flash-sniper/internal/engine"
	"flash-sniper/internal/events"
	"flash-sniper/internal/monitor"
	"flash-sniper/internal/persistence"
	"flash-sniper/internal/position"
	"flash-sniper/internal/risk"
	"flash-sniper/internal/strategy"
	"flash-sniper/pkg/config"
	"flash-sniper/pkg/db"
	"flash-sniper/pkg/exchanges/okx"
	"flash-sniper/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Error("sniper stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, OutputFile: cfg.LogFile, Compress: true}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logrus.WithField("component", "main")

	fileCfg, err := strategy.LoadConfig(cfg.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "v1.0-dev"
	}
	mode := "LIVE"
	if cfg.SimulationMode {
		mode = "DEMO"
	}
	log.WithFields(logrus.Fields{
		"mode":        mode,
		"instruments": len(fileCfg.Watchlist),
		"sizing":      cfg.SizingMode,
		"proxy":       cfg.ProxyURL != "",
		"version":     version,
	}).Info("starting flash sniper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Journal
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}

	bus := events.NewBus()
	writer := persistence.NewBatchWriter(database.DB, 50, time.Second)
	defer writer.Close()
	journalCtx, stopJournal := context.WithCancel(context.Background())
	recorder := persistence.NewRecorder(bus, writer)
	recorder.Start(journalCtx)
	defer func() {
		stopJournal()
		recorder.Wait()
	}()

	alerts := &monitor.Monitor{Bus: bus, Sink: monitor.LogSink{}}
	alerts.Start(ctx)

	// Clock
	now := time.Now
	if cfg.TimeSync {
		ts := okx.NewTimeSync(okx.RESTBaseURL, cfg.ProxyURL)
		ts.Start(ctx)
		now = ts.Now
		log.WithField("offset", ts.Offset()).Info("exchange clock offset")
	}

	// Strategy state
	metrics := monitor.NewSystemMetrics()
	positions := position.NewManager(position.Config{
		TakeProfitPct:    fileCfg.Exit.TakeProfitPct,
		StopLossPct:      fileCfg.Exit.StopLossPct,
		RoundTripCostPct: fileCfg.Exit.RoundTripCostPct,
		MaxHold:          fileCfg.Exit.MaxHold,
	})
	riskCfg := risk.DefaultConfig()
	riskCfg.MaxPositions = fileCfg.Risk.MaxPositions
	riskCfg.Sizing = cfg.SizingMode
	riskCfg.BetSize = fileCfg.Risk.BetSize
	riskCfg.MinBalance = fileCfg.Risk.MinBalance
	gate := risk.NewGate(riskCfg, positions)

	trader := engine.NewTrader(engine.Config{
		Signals:      strategy.NewFlashCrash(fileCfg.Params()),
		Gate:         gate,
		Positions:    positions,
		Balance:      balance.NewManager(fileCfg.QuoteCcy),
		Sender:       engine.NewOrderSender(okx.NewCodec(), fileCfg.Risk.EntryBurst, fileCfg.Risk.EntryInterval),
		Bus:          bus,
		Metrics:      metrics,
		Now:          now,
		TakerFeePct:  fileCfg.Risk.TakerFeePct,
		SizeDecimals: fileCfg.Risk.SizeDecimals,
	})

	// Status API
	var server *api.Server
	if cfg.HTTPAddr != "" {
		server = api.NewServer(trader, bus, database, metrics, api.SystemMeta{
			Simulated: cfg.SimulationMode,
			Watchlist: fileCfg.Watchlist,
			Sizing:    cfg.SizingMode,
			Version:   version,
			Started:   time.Now(),
		})
		go func() {
			if err := server.Start(cfg.HTTPAddr); err != nil {
				log.WithError(err).Error("status API stopped")
			}
		}()
	}

	supCfg := engine.DefaultSupervisorConfig()
	supCfg.Credentials = okx.Credentials{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		Passphrase: cfg.Passphrase,
	}
	supCfg.Watchlist = fileCfg.Watchlist
	supCfg.QuoteCcy = fileCfg.QuoteCcy
	supCfg.MaxBackoff = cfg.ReconnectMaxBackoff

	sup := engine.NewSupervisor(supCfg, engine.NewDialer(cfg.ProxyURL, cfg.SimulationMode), trader, bus, metrics)
	runErr := sup.Run(ctx)

	log.Info("shutting down")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("status API shutdown")
		}
	}
	if open := positions.Snapshot(); len(open) > 0 {
		log.WithField("positions", len(open)).Warn("exiting with open positions")
	}
	return runErr
}
