package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sniper_ticks_total", Help: "Tickers processed"},
		[]string{"inst"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sniper_signals_total", Help: "Flash-crash signals"},
		[]string{"inst"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sniper_orders_total", Help: "Order frames written"},
		[]string{"inst", "side"},
	)
	OrderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sniper_order_errors_total", Help: "Orders that could not be sent"},
		[]string{"side"},
	)
	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sniper_decode_errors_total", Help: "Inbound frames that failed to decode"},
		[]string{"channel"},
	)
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sniper_risk_rejections_total", Help: "Signals refused by the risk gate"},
		[]string{"reason"},
	)
	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sniper_reconnects_total", Help: "Session restarts"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sniper_open_positions", Help: "Open positions"},
	)
	TickLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sniper_tick_latency_seconds",
		Help:    "Exchange timestamp to local processing",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
	})
)

func init() {
	prometheus.MustRegister(
		TicksTotal, SignalsTotal, OrdersTotal, OrderErrorsTotal,
		DecodeErrorsTotal, RiskRejectionsTotal, ReconnectsTotal,
		OpenPositions, TickLatencySeconds,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
