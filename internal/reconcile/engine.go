// Package reconcile merges deduplicated observations into the persisted
// store. It decides create or update per coordinate, applies the precedence
// rules between official and crowd-corrected values, and degrades batch
// writes to smaller ones when the store rejects them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"radarsync/internal/dedupe"
	"radarsync/internal/keys"
	"radarsync/internal/logging"
	"radarsync/internal/models"
	"radarsync/internal/store"
	"radarsync/internal/tally"
)

var logger = logging.For("reconcile")

// Config tunes batching and trust levels.
type Config struct {
	// BatchSize is how many observations share one existence query and one
	// bulk insert.
	BatchSize int
	// SubBatchSize is the chunk size of the second write tier.
	SubBatchSize int
	// Parallelism bounds concurrent sub-batch writes.
	Parallelism int
	// OfficialConfirmCount is the confirm count a record created from an
	// official source starts with. User uploads start at zero.
	OfficialConfirmCount int
	// PromotionThreshold is the vote count that makes a crowd value
	// effective.
	PromotionThreshold int
}

func DefaultConfig() Config {
	return Config{
		BatchSize:            500,
		SubBatchSize:         50,
		Parallelism:          4,
		OfficialConfirmCount: 10,
		PromotionThreshold:   tally.DefaultThreshold,
	}
}

// Validate rejects non-positive sizes.
func (c Config) Validate() error {
	if c.BatchSize <= 0 || c.SubBatchSize <= 0 || c.Parallelism <= 0 {
		return fmt.Errorf("reconcile: batch size, sub-batch size and parallelism must be positive")
	}
	if c.PromotionThreshold <= 0 {
		return fmt.Errorf("reconcile: promotion threshold must be positive")
	}
	return nil
}

// Engine reconciles observations of one source at a time. It is safe for
// concurrent use by runs of different sources; the store's unique coordinate
// key is what keeps two runs from creating the same record twice.
type Engine struct {
	store store.Store
	cfg   Config
	now   func() time.Time
	newID func() string
}

func NewEngine(s store.Store, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{store: s, cfg: cfg, now: time.Now, newID: uuid.NewString}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// candidate pairs an observation with the record that would be created from
// it.
type candidate struct {
	obs models.RawObservation
	rec models.CanonicalRecord
}

// Reconcile merges obs into the store and reports what happened. It never
// fails: lookup and write errors are logged and the affected records are
// counted as dropped, to be retried by the next run.
func (e *Engine) Reconcile(ctx context.Context, src models.Source, obs []models.RawObservation) models.Summary {
	sum := models.Summary{Source: src, StartedAt: e.now()}
	unique := dedupe.Observations(obs)
	sum.Total = len(unique)
	if len(unique) == 0 {
		sum.Reason = models.ReasonNoObservations
		sum.FinishedAt = e.now()
		return sum
	}

	for start := 0; start < len(unique); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(unique))
		batch := e.reconcileBatch(ctx, src, unique[start:end])
		sum.Add(batch)
		logger.Debug("batch reconciled", "source", src, "from", start, "to", end,
			"created", batch.Created, "updated", batch.Updated, "unchanged", batch.Unchanged, "dropped", batch.Dropped)
	}

	sum.FinishedAt = e.now()
	logger.Info("reconciliation finished", "source", src, "total", sum.Total,
		"created", sum.Created, "updated", sum.Updated, "unchanged", sum.Unchanged, "dropped", sum.Dropped,
		"tier_bulk", sum.Tiers.Bulk, "tier_sub_batch", sum.Tiers.SubBatch, "tier_sequential", sum.Tiers.Sequential,
		"duration", sum.FinishedAt.Sub(sum.StartedAt))
	return sum
}

func (e *Engine) reconcileBatch(ctx context.Context, src models.Source, batch []models.RawObservation) models.Summary {
	var sum models.Summary

	ks := make([]keys.Coordinate, len(batch))
	for i, o := range batch {
		ks[i] = o.Key()
	}
	existing, err := e.store.FindByCoordinates(ctx, ks)
	if err != nil {
		logger.Warn("existence check failed, processing batch record by record", "source", src, "size", len(batch), "error", err)
		pending := make([]candidate, len(batch))
		for i, o := range batch {
			pending[i] = e.candidate(src, o)
		}
		e.sequential(ctx, pending, &sum)
		return sum
	}

	var (
		absent  []candidate
		present []models.CanonicalRecord
		seen    []models.RawObservation
	)
	for _, o := range batch {
		o.Source = src
		if rec, ok := existing[o.Key()]; ok {
			present = append(present, rec)
			seen = append(seen, o)
			continue
		}
		absent = append(absent, e.candidate(src, o))
	}

	if len(present) > 0 {
		e.updateAll(ctx, present, seen, &sum)
	}
	if len(absent) > 0 {
		e.createAll(ctx, absent, &sum)
	}
	return sum
}

// updateAll merges each observation into its stored record. Votes for the
// whole set are read in one query; without them the crowd rule cannot be
// honoured, so the updates are skipped rather than risk overwriting a
// promoted value.
func (e *Engine) updateAll(ctx context.Context, recs []models.CanonicalRecord, obs []models.RawObservation, sum *models.Summary) {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	votes, err := e.store.VotesFor(ctx, ids)
	if err != nil {
		logger.Error("could not read votes, skipping updates", "records", len(recs), "error", err)
		sum.Dropped += len(recs)
		return
	}
	for i, rec := range recs {
		e.update(ctx, rec, obs[i], tally.Tally(votes[rec.ID]), sum)
	}
}

func (e *Engine) update(ctx context.Context, rec models.CanonicalRecord, o models.RawObservation, votes tally.Result, sum *models.Summary) bool {
	p := Merge(rec, o, votes, e.cfg.PromotionThreshold, e.now())
	if p.Empty() {
		sum.Unchanged++
		return true
	}
	if err := e.store.Update(ctx, rec.ID, p); err != nil {
		logger.Error("update failed", "id", rec.ID, "key", rec.Key().String(), "error", err)
		sum.Dropped++
		return false
	}
	logger.Debug("record updated", "id", rec.ID, "changes", p.Changes())
	sum.Updated++
	return true
}

// candidate builds the record an absent observation would become.
func (e *Engine) candidate(src models.Source, o models.RawObservation) candidate {
	o.Source = src
	now := e.now()
	confirms := 0
	if src.Official() {
		confirms = e.cfg.OfficialConfirmCount
	}
	rec := models.CanonicalRecord{
		ID:                 e.newID(),
		Latitude:           o.Latitude,
		Longitude:          o.Longitude,
		Source:             src,
		Metadata:           o.Fields.Metadata,
		OriginalSpeedLight: copyInt(o.Fields.SpeedLimitLight),
		OriginalSpeedHeavy: copyInt(o.Fields.SpeedLimitHeavy),
		SpeedLight:         copyInt(o.Fields.SpeedLimitLight),
		SpeedHeavy:         copyInt(o.Fields.SpeedLimitHeavy),
		ConfirmCount:       confirms,
		CreatedAt:          now,
		UpdatedAt:          now,
		Active:             true,
	}
	return candidate{obs: o, rec: rec}
}

// resolveExisting handles a candidate whose key turned out to exist: when the
// stored record is the candidate itself (an earlier tier persisted it despite
// reporting failure) it counts as created, otherwise the observation is
// merged into it.
func (e *Engine) resolveExisting(ctx context.Context, c candidate, rec models.CanonicalRecord, sum *models.Summary) bool {
	if rec.ID == c.rec.ID {
		sum.Created++
		return true
	}
	votes, err := e.store.VotesFor(ctx, []string{rec.ID})
	if err != nil {
		logger.Error("could not read votes", "id", rec.ID, "error", err)
		sum.Dropped++
		return false
	}
	return e.update(ctx, rec, c.obs, tally.Tally(votes[rec.ID]), sum)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
