package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_signals_total",
			Help: "Signals generated, by strategy and action",
		},
		[]string{"strategy", "action"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_orders_total",
			Help: "Order outcomes at the gateway, by status",
		},
		[]string{"instrument", "status"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_gate_rejections_total",
			Help: "Gate rejections, by the cap that fired",
		},
		[]string{"instrument", "code"},
	)

	dropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_sizing_drops_total",
			Help: "Signals dropped by the position sizer",
		},
		[]string{"strategy", "reason"},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_open_positions",
			Help: "Currently open positions across instruments",
		},
	)

	committedNotional = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_committed_notional",
			Help: "Committed notional per instrument, positions plus reservations",
		},
		[]string{"instrument"},
	)

	exitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_position_exits_total",
			Help: "Position exits, by reason",
		},
		[]string{"strategy", "reason"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_errors_total",
			Help: "Errors surfaced during evaluation, by category",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(dropsTotal)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(committedNotional)
	prometheus.MustRegister(exitsTotal)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func RecordSignal(strategy, action string) {
	signalsTotal.WithLabelValues(strategy, action).Inc()
}

func RecordOrder(instrument, status string) {
	ordersTotal.WithLabelValues(instrument, status).Inc()
}

func RecordRejection(instrument, code string) {
	rejectionsTotal.WithLabelValues(instrument, code).Inc()
}

func RecordDrop(strategy, reason string) {
	dropsTotal.WithLabelValues(strategy, reason).Inc()
}

func RecordExit(strategy, reason string) {
	exitsTotal.WithLabelValues(strategy, reason).Inc()
}

func SetOpenPositions(count int) {
	openPositions.Set(float64(count))
}

func SetCommittedNotional(instrument string, notional float64) {
	committedNotional.WithLabelValues(instrument).Set(notional)
}

func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
