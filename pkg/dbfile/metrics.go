package dbfile

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the optional Prometheus instruments a File reports through
// (spec §9's note that observability is a caller concern, not a package
// global). Construct with NewMetrics and register the result; a nil
// *Metrics on Options disables collection entirely.
type Metrics struct {
	CommitsTotal     prometheus.Counter
	CompactionsTotal prometheus.Counter
	LogBytes         prometheus.Gauge
	SnapshotBytes    prometheus.Gauge
}

// NewMetrics builds and registers the standard instrument set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opsdb_commits_total",
			Help: "Number of transaction commits appended to the log.",
		}),
		CompactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opsdb_compactions_total",
			Help: "Number of times the log was compacted into a fresh snapshot.",
		}),
		LogBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsdb_log_bytes",
			Help: "Current size in bytes of the open database log.",
		}),
		SnapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsdb_snapshot_bytes",
			Help: "Size in bytes of the log immediately after the last compaction.",
		}),
	}
	reg.MustRegister(m.CommitsTotal, m.CompactionsTotal, m.LogBytes, m.SnapshotBytes)
	return m
}
