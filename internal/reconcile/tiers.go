package reconcile

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"radarsync/internal/keys"
	"radarsync/internal/models"
)

// createAll writes absent records through up to three tiers: one bulk
// insert, then bounded-parallel sub-batches, then record by record. A record
// reaches a lower tier only when the tier above failed for it.
func (e *Engine) createAll(ctx context.Context, pending []candidate, sum *models.Summary) {
	recs := records(pending)
	n, err := e.store.CreateMany(ctx, recs)
	if err == nil && n == len(recs) {
		sum.Created += n
		sum.Tiers.Bulk += n
		return
	}
	logger.Warn("bulk insert failed, retrying in sub-batches",
		"records", len(recs), "inserted", n, "error", err)

	leftover := e.subBatches(ctx, pending, sum)
	if len(leftover) > 0 {
		logger.Warn("sub-batches failed, retrying record by record", "records", len(leftover))
		e.sequential(ctx, leftover, sum)
	}
}

// subBatches splits pending into chunks written concurrently, at most
// Parallelism at a time. Each chunk re-checks existence first, since the bulk
// insert may have partly succeeded or another run may have created some keys.
// It returns the candidates of chunks that still failed.
func (e *Engine) subBatches(ctx context.Context, pending []candidate, sum *models.Summary) []candidate {
	var (
		sem      = semaphore.NewWeighted(int64(e.cfg.Parallelism))
		wg       sync.WaitGroup
		mu       sync.Mutex
		leftover []candidate
	)
	for start := 0; start < len(pending); start += e.cfg.SubBatchSize {
		chunk := pending[start:min(start+e.cfg.SubBatchSize, len(pending))]
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			leftover = append(leftover, chunk...)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(chunk []candidate) {
			defer wg.Done()
			defer sem.Release(1)

			var local models.Summary
			failed := e.writeChunk(ctx, chunk, &local)

			mu.Lock()
			defer mu.Unlock()
			sum.Add(local)
			leftover = append(leftover, failed...)
		}(chunk)
	}
	wg.Wait()
	return leftover
}

// writeChunk is one sub-batch. Keys that already exist are settled here;
// the rest are inserted together. On failure the not-yet-settled candidates
// are returned for the sequential tier.
func (e *Engine) writeChunk(ctx context.Context, chunk []candidate, sum *models.Summary) []candidate {
	ks := make([]keys.Coordinate, len(chunk))
	for i, c := range chunk {
		ks[i] = c.obs.Key()
	}
	existing, err := e.store.FindByCoordinates(ctx, ks)
	if err != nil {
		logger.Warn("sub-batch existence check failed", "records", len(chunk), "error", err)
		return chunk
	}

	var fresh []candidate
	for _, c := range chunk {
		rec, ok := existing[c.obs.Key()]
		if !ok {
			fresh = append(fresh, c)
			continue
		}
		var settled models.Summary
		switch ok := e.resolveExisting(ctx, c, rec, &settled); {
		case ok && rec.ID == c.rec.ID:
			settled.Tiers.Bulk++
		case ok:
			settled.Tiers.SubBatch++
		}
		sum.Add(settled)
	}
	if len(fresh) == 0 {
		return nil
	}

	n, err := e.store.CreateMany(ctx, records(fresh))
	if err != nil || n != len(fresh) {
		logger.Warn("sub-batch insert failed", "records", len(fresh), "inserted", n, "error", err)
		return fresh
	}
	sum.Created += n
	sum.Tiers.SubBatch += n
	return nil
}

// sequential handles candidates one at a time: check, create, and when the
// create still fails re-check and update the record that won the race. A
// candidate that fails every step is dropped from this run.
func (e *Engine) sequential(ctx context.Context, pending []candidate, sum *models.Summary) {
	for _, c := range pending {
		if ctx.Err() != nil {
			sum.Dropped++
			continue
		}
		var local models.Summary
		if e.writeOne(ctx, c, &local) {
			local.Tiers.Sequential++
		}
		sum.Add(local)
	}
}

func (e *Engine) writeOne(ctx context.Context, c candidate, sum *models.Summary) bool {
	key := c.obs.Key()
	rec, err := e.store.FindByCoordinate(ctx, key)
	switch {
	case err == nil:
		return e.resolveExisting(ctx, c, *rec, sum)
	case !isNotFound(err):
		logger.Error("existence check failed, dropping record", "key", key.String(), "error", err)
		sum.Dropped++
		return false
	}

	n, err := e.store.CreateMany(ctx, []models.CanonicalRecord{c.rec})
	if err == nil && n == 1 {
		sum.Created++
		return true
	}
	logger.Warn("create failed, re-checking", "key", key.String(), "error", err)

	rec, rerr := e.store.FindByCoordinate(ctx, key)
	if rerr != nil {
		logger.Error("record dropped after all write tiers failed", "key", key.String(), "create_error", err, "recheck_error", rerr)
		sum.Dropped++
		return false
	}
	return e.resolveExisting(ctx, c, *rec, sum)
}

func records(cs []candidate) []models.CanonicalRecord {
	out := make([]models.CanonicalRecord, len(cs))
	for i, c := range cs {
		out[i] = c.rec
	}
	return out
}
