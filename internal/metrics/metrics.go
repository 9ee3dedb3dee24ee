// Package metrics exposes engine host counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

const namespace = "marketengine"

// Recorder owns a private registry and the engine instruments.
type Recorder struct {
	reg *prometheus.Registry

	opTotal    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	events     *prometheus.CounterVec
	fees       prometheus.Counter
	resolved   *prometheus.CounterVec
	archived   prometheus.Counter
}

// New registers the engine instruments plus the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by name and error category (ok on success).",
		}, []string{"op", "result"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of engine operations including lock wait and persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events committed, by kind.",
		}, []string{"kind"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taker_fees_total",
			Help:      "Curve taker fees collected, in collateral base units.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markets_resolved_total",
			Help:      "Markets leaving Active, by terminal event kind.",
		}, []string{"kind"}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_archived_total",
			Help:      "Events written to object storage.",
		}),
	}
	r.reg.MustRegister(
		r.opTotal, r.opDuration, r.events, r.fees, r.resolved, r.archived,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveOp records one operation attempt.
func (r *Recorder) ObserveOp(op string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = string(domain.CategoryOf(err))
	}
	r.opTotal.WithLabelValues(op, result).Inc()
	r.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveEvents records committed events.
func (r *Recorder) ObserveEvents(events []domain.Event) {
	for _, e := range events {
		r.events.WithLabelValues(string(e.Kind)).Inc()
		if e.IsTerminal() {
			r.resolved.WithLabelValues(string(e.Kind)).Inc()
		}
		if p, ok := e.Payload.(domain.TradingFeeCollected); ok {
			r.fees.Add(float64(p.TakerFee))
		}
	}
}

// ObserveArchived records n archived events.
func (r *Recorder) ObserveArchived(n int) {
	r.archived.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}
