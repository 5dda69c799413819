package host

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 热路径只做 counter 自增，gauge 由秒级定时器从快照刷
var (
	MetricTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairarb_ticks_total",
		Help: "Market data records dispatched, by symbol.",
	}, []string{"symbol"})

	MetricResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairarb_responses_total",
		Help: "Order responses accepted after client-id filtering.",
	})

	MetricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairarb_requests_total",
		Help: "Order requests written to the shared-memory ring, by type.",
	}, []string{"type"})

	MetricQueueFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairarb_queue_full_total",
		Help: "Requests rejected locally because the request ring stayed full.",
	})

	MetricFills = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairarb_fills_total",
		Help: "Fills applied, by leg.",
	}, []string{"leg"})

	MetricExposure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairarb_exposure",
		Help: "Current pair exposure (net_pass1 + net_agg2 + pending_agg2).",
	})

	MetricNetPNL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairarb_net_pnl",
		Help: "Combined net PnL across both legs.",
	})

	MetricDeviation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairarb_deviation",
		Help: "Spread z-score deviation.",
	})

	MetricState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairarb_state",
		Help: "Controller state as its numeric enum value.",
	})
)
