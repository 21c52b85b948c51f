// Package metrics records build counters for export to a node-exporter
// textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/saeedalam/promptforge/pkg/types"
)

const namespace = "promptforge"

// Metrics holds the build collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	BuildsTotal    *prometheus.CounterVec
	RepairAttempts *prometheus.CounterVec
	Truncations    *prometheus.CounterVec
	BuildDuration  *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		BuildsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Terminal builds by framework and status",
			},
			[]string{"framework", "status"},
		),
		RepairAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repair_attempts_total",
				Help:      "Regenerations performed by the repair loop",
			},
			[]string{"framework"},
		),
		Truncations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "truncations_total",
				Help:      "Generations cut off by the output token ceiling",
			},
			[]string{"framework"},
		),
		BuildDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Wall-clock build duration",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"framework"},
		),
	}
}

// ObserveBuild records a terminal build.
func (m *Metrics) ObserveBuild(rec *types.BuildRecord) {
	if m == nil || rec == nil {
		return
	}
	fw := string(rec.Framework)
	m.BuildsTotal.WithLabelValues(fw, rec.Status).Inc()
	m.BuildDuration.WithLabelValues(fw).Observe(rec.BuildTime)
}

// ObserveRepair adds n repair attempts for fw.
func (m *Metrics) ObserveRepair(fw types.Framework, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RepairAttempts.WithLabelValues(string(fw)).Add(float64(n))
}

// ObserveTruncation counts n truncated generations for fw.
func (m *Metrics) ObserveTruncation(fw types.Framework, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Truncations.WithLabelValues(string(fw)).Add(float64(n))
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
