package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/sharedstate/query"
	"github.com/IvanBrykalov/sharedstate/state"
)

// Adapter implements state.Metrics and query.Metrics and exports Prometheus
// counters, gauges and a settlement latency histogram. Pass the same Adapter
// as Options.Metrics and Options.QueryMetrics of a store.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	resolutions *prometheus.CounterVec
	reads       *prometheus.CounterVec
	writes      *prometheus.CounterVec
	records     prometheus.Gauge

	fetches     prometheus.Counter
	settlements *prometheus.CounterVec
	settleTime  prometheus.Histogram
	discards    prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "resolutions_total",
				Help:        "Records created, by default outcome",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		reads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "reads_total",
				Help:        "Reads by value kind",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "writes_total",
				Help:        "Writes by outcome",
				ConstLabels: constLabels,
			},
			[]string{"outcome"},
		),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "records",
			Help:        "Number of shadow records",
			ConstLabels: constLabels,
		}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "fetches_total",
			Help:        "Query fetch function invocations",
			ConstLabels: constLabels,
		}),
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "settlements_total",
				Help:        "Pending values settled for the current fetch, by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		settleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "settle_seconds",
			Help:        "Time from fetch to settlement of pending values",
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
			ConstLabels: constLabels,
		}),
		discards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "discards_total",
			Help:        "Settlements of superseded fetches that were dropped",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(
		a.resolutions, a.reads, a.writes, a.records,
		a.fetches, a.settlements, a.settleTime, a.discards,
	)
	return a
}

// Resolve counts a record creation.
func (a *Adapter) Resolve(failed bool) { a.resolutions.WithLabelValues(result(failed)).Inc() }

// Read counts a read with a kind label.
func (a *Adapter) Read(pending bool) {
	kind := "concrete"
	if pending {
		kind = "pending"
	}
	a.reads.WithLabelValues(kind).Inc()
}

// Write counts a write with its outcome label.
func (a *Adapter) Write(o state.WriteOutcome) { a.writes.WithLabelValues(o.String()).Inc() }

// Records updates the record gauge.
func (a *Adapter) Records(n int) { a.records.Set(float64(n)) }

// Fetch counts a fetch function invocation.
func (a *Adapter) Fetch() { a.fetches.Inc() }

// Settle counts a settlement and observes its latency.
func (a *Adapter) Settle(failed bool, took time.Duration) {
	a.settlements.WithLabelValues(result(failed)).Inc()
	a.settleTime.Observe(took.Seconds())
}

// Discard counts a dropped stale settlement.
func (a *Adapter) Discard() { a.discards.Inc() }

func result(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

// Compile-time checks: Adapter serves both the store and its query client.
var (
	_ state.Metrics = (*Adapter)(nil)
	_ query.Metrics = (*Adapter)(nil)
)
