package reports

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records report generation outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	warnings *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the report collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usage_center_report_warnings_total",
				Help: "Warnings raised while building reports, by report and warning kind.",
			},
			[]string{"report", "kind"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usage_center_report_rows_total",
				Help: "Rows emitted by report builds.",
			},
			[]string{"report"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usage_center_report_duration_seconds",
				Help:    "Time spent building a report including upstream calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"report"},
		),
	}
	reg.MustRegister(m.warnings, m.rows, m.duration)
	return m
}

func (m *Metrics) observe(report string, started time.Time, rows int, warnings []error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(report).Observe(time.Since(started).Seconds())
	m.rows.WithLabelValues(report).Add(float64(rows))
	for _, w := range warnings {
		m.warnings.WithLabelValues(report, WarningKind(w)).Inc()
	}
}
