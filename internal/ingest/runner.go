// Package ingest runs the official sources through fetch, deduplication and
// reconciliation. Sources that only need the network are fetched in
// parallel; sources that geocode run afterwards, one at a time, so the
// geocoder's call spacing is never shared.
package ingest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"radarsync/internal/dedupe"
	"radarsync/internal/geocode"
	"radarsync/internal/logging"
	"radarsync/internal/models"
	"radarsync/internal/pipeline"
	"radarsync/internal/reconcile"
	"radarsync/internal/source"
)

var logger = logging.For("ingest")

// Publisher delivers run summaries, e.g. to a Kafka topic.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Recorder receives run outcomes, e.g. Prometheus metrics.
type Recorder interface {
	ObserveSummary(models.Summary)
	ObserveGeocoder(geocode.Stats)
}

// Run collects the summaries of one pass over all sources.
type Run struct {
	StartedAt time.Time

	mu        sync.Mutex
	summaries []models.Summary
}

func NewRun(now time.Time) *Run { return &Run{StartedAt: now} }

func (r *Run) add(s models.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
}

// Summaries returns the finished sources in source order.
func (r *Run) Summaries() []models.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.summaries)
	order := models.Sources()
	slices.SortFunc(out, func(a, b models.Summary) int {
		return slices.Index(order, a.Source) - slices.Index(order, b.Source)
	})
	return out
}

// Totals adds up all summaries.
func (r *Run) Totals() models.Summary {
	var t models.Summary
	for _, s := range r.Summaries() {
		t.Add(s)
	}
	return t
}

// Runner owns the staged pipeline.
type Runner struct {
	engine    *reconcile.Engine
	publisher Publisher
	recorder  Recorder
	geoStats  func() geocode.Stats
	pipeline  *pipeline.Pipeline[Run]
}

type Option func(*Runner)

// WithPublisher publishes every source summary, keyed by source.
func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }

// WithRecorder reports summaries and geocoder totals to rec. stats may be
// nil when no source geocodes.
func WithRecorder(rec Recorder, stats func() geocode.Stats) Option {
	return func(r *Runner) {
		r.recorder = rec
		r.geoStats = stats
	}
}

// NewRunner builds the stages for adapters.
func NewRunner(engine *reconcile.Engine, adapters []source.Adapter, opts ...Option) *Runner {
	r := &Runner{engine: engine}
	for _, o := range opts {
		o(r)
	}

	var (
		parallel []pipeline.Named[Run]
		stages   []pipeline.Stage[Run]
	)
	for _, a := range adapters {
		step := pipeline.Named[Run]{Name: a.Source().String(), Step: r.sourceStep(a)}
		if a.Capabilities().Has(source.Geocoding) {
			// One stage each: geocoding sources never overlap.
			stages = append(stages, pipeline.NewNamedStage(step))
			continue
		}
		parallel = append(parallel, step)
	}
	if len(parallel) > 0 {
		stages = append([]pipeline.Stage[Run]{pipeline.NewNamedStage(parallel...)}, stages...)
	}
	stages = append(stages, pipeline.NewNamedStage(pipeline.Named[Run]{Name: "report", Step: r.report}))

	r.pipeline = pipeline.NewPipeline(stages...)
	logger.Info("runner ready", "sources", len(adapters), "parallel", len(parallel), "stages", len(stages))
	return r
}

// RunOnce processes all sources once.
func (r *Runner) RunOnce(ctx context.Context) *Run {
	run := NewRun(time.Now())
	r.pipeline.Run(ctx, run)
	return run
}

// Process runs every pass read from runs until the channel closes.
func (r *Runner) Process(ctx context.Context, runs <-chan *Run) {
	r.pipeline.Process(ctx, runs)
}

func (r *Runner) sourceStep(a source.Adapter) pipeline.Step[Run] {
	return func(ctx context.Context, run *Run) error {
		src := a.Source()
		obs := dedupe.Stream(a.Fetch(ctx))
		logger.Info("source fetched", "source", src, "observations", len(obs), "capabilities", a.Capabilities())
		run.add(r.engine.Reconcile(ctx, src, obs))
		return nil
	}
}

func (r *Runner) report(ctx context.Context, run *Run) error {
	var errs []error
	for _, s := range run.Summaries() {
		if r.recorder != nil {
			r.recorder.ObserveSummary(s)
		}
		if r.publisher != nil {
			if err := r.publisher.PublishJSON(ctx, s.Source.String(), s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if r.recorder != nil && r.geoStats != nil {
		r.recorder.ObserveGeocoder(r.geoStats())
	}
	t := run.Totals()
	logger.Info("sync finished", "sources", len(run.Summaries()), "total", t.Total,
		"created", t.Created, "updated", t.Updated, "unchanged", t.Unchanged, "dropped", t.Dropped,
		"duration", time.Since(run.StartedAt))
	return errors.Join(errs...)
}

// Ticks emits a new Run immediately and then every interval until ctx is
// done. A pass still in progress delays the next one rather than overlapping
// it.
func Ticks(ctx context.Context, interval time.Duration) <-chan *Run {
	out := make(chan *Run)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case out <- NewRun(time.Now()):
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
