package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksIngested *prometheus.CounterVec
	signalsFired  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	alertDelivery *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickwatch_ticks_ingested_total",
				Help: "Total number of ticks stored",
			},
			[]string{"symbol"},
		),
		signalsFired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickwatch_signals_fired_total",
				Help: "Total number of anomaly signals fired",
			},
			[]string{"kind", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickwatch_last_price",
				Help: "Last recorded close price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tickwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		alertDelivery: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickwatch_alert_deliveries_total",
				Help: "Alert deliveries by channel and result",
			},
			[]string{"channel", "result"},
		),
	}
}

// RecordTickIngested records one stored tick.
func (r *Recorder) RecordTickIngested(symbol string) {
	r.ticksIngested.WithLabelValues(symbol).Inc()
}

// RecordSignal records a fired anomaly signal.
func (r *Recorder) RecordSignal(kind, symbol string) {
	r.signalsFired.WithLabelValues(kind, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordAlertDelivery records one alert delivery attempt.
func (r *Recorder) RecordAlertDelivery(channel, result string) {
	r.alertDelivery.WithLabelValues(channel, result).Inc()
}
