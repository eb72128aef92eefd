// Package metrics exposes ingestion counters to Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"radarsync/internal/geocode"
	"radarsync/internal/models"
)

// Outcome label values of radarsync_records_total.
const (
	OutcomeCreated     = "created"
	OutcomeUpdated     = "updated"
	OutcomeUnchanged   = "unchanged"
	OutcomeDeactivated = "deactivated"
	OutcomeDropped     = "dropped"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	observations *prometheus.CounterVec
	records      *prometheus.CounterVec
	tiers        *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	lastRun      *prometheus.GaugeVec
	imports      *prometheus.CounterVec
	geocoder     *prometheus.GaugeVec
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radarsync_observations_total",
			Help: "Unique observations handed to reconciliation",
		}, []string{"source"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radarsync_records_total",
			Help: "Reconciliation outcomes per record",
		}, []string{"source", "outcome"}),
		tiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radarsync_write_tier_total",
			Help: "Records created per write tier",
		}, []string{"source", "tier"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radarsync_run_duration_seconds",
			Help:    "Duration of one source reconciliation",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"source"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radarsync_last_run_timestamp_seconds",
			Help: "Unix time the last run of a source finished",
		}, []string{"source"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radarsync_imports_total",
			Help: "User CSV imports by result",
		}, []string{"result"}),
		geocoder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "radarsync_geocoder_requests",
			Help: "Geocoder lookups since start by result",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{
		m.observations, m.records, m.tiers, m.runDuration, m.lastRun, m.imports, m.geocoder,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSummary records one reconciliation run.
func (m *Metrics) ObserveSummary(s models.Summary) {
	src := s.Source.String()
	m.observations.WithLabelValues(src).Add(float64(s.Total))
	for outcome, n := range map[string]int{
		OutcomeCreated:     s.Created,
		OutcomeUpdated:     s.Updated,
		OutcomeUnchanged:   s.Unchanged,
		OutcomeDeactivated: s.Deactivated,
		OutcomeDropped:     s.Dropped,
	} {
		m.records.WithLabelValues(src, outcome).Add(float64(n))
	}
	m.tiers.WithLabelValues(src, "bulk").Add(float64(s.Tiers.Bulk))
	m.tiers.WithLabelValues(src, "sub_batch").Add(float64(s.Tiers.SubBatch))
	m.tiers.WithLabelValues(src, "sequential").Add(float64(s.Tiers.Sequential))
	if !s.FinishedAt.IsZero() {
		m.runDuration.WithLabelValues(src).Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
		m.lastRun.WithLabelValues(src).Set(float64(s.FinishedAt.Unix()))
	}
}

// ObserveImport counts one user CSV import, labelled "imported" or by its
// reason code.
func (m *Metrics) ObserveImport(r models.ImportResult) {
	result := r.Reason
	if r.Imported {
		result = "imported"
	}
	if result == "" {
		result = "error"
	}
	m.imports.WithLabelValues(result).Inc()
}

// ObserveGeocoder copies the geocoder's running totals.
func (m *Metrics) ObserveGeocoder(s geocode.Stats) {
	m.geocoder.WithLabelValues("call").Set(float64(s.Calls))
	m.geocoder.WithLabelValues("cache_hit").Set(float64(s.Hits))
	m.geocoder.WithLabelValues("miss").Set(float64(s.Misses))
	m.geocoder.WithLabelValues("failure").Set(float64(s.Failures))
}

// Push sends every collector to a Pushgateway, replacing the job's previous
// push.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
