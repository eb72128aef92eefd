package reconcile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"radarsync/internal/dedupe"
	"radarsync/internal/keys"
	"radarsync/internal/models"
	"radarsync/internal/parse"
	"radarsync/internal/source"
	"radarsync/internal/store"
)

// Archiver keeps a copy of accepted uploads.
type Archiver interface {
	ArchiveUpload(ctx context.Context, contentHash, fileName string, content []byte) error
}

// Importer applies user CSV snapshots. Each upload is the operator's full
// current list: records from an earlier upload that are missing from the new
// one are deactivated.
type Importer struct {
	engine   *Engine
	store    store.Store
	parser   *parse.Parser
	archiver Archiver
}

// NewImporter builds an Importer. archiver may be nil.
func NewImporter(engine *Engine, s store.Store, parser *parse.Parser, archiver Archiver) *Importer {
	return &Importer{engine: engine, store: s, parser: parser, archiver: archiver}
}

// ContentHash is the hex SHA-256 of an upload.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Import parses content and reconciles it. Unless force is set, content
// identical to the previous import is not processed again. Non-error outcomes
// that write nothing are reported through ImportResult.Reason.
func (im *Importer) Import(ctx context.Context, content []byte, fileName string, force bool) (models.ImportResult, error) {
	hash := ContentHash(content)
	if len(bytes.TrimSpace(content)) == 0 {
		logger.Info("upload is empty", "file", fileName)
		return models.ImportResult{Reason: models.ReasonEmptyCSV}, nil
	}

	prev, err := im.store.ImportState(ctx)
	switch {
	case err == nil:
	case isNotFound(err):
		prev = nil
	default:
		return models.ImportResult{}, fmt.Errorf("read import state: %w", err)
	}
	if prev != nil && prev.ContentHash == hash && !force {
		logger.Info("upload unchanged since last import", "file", fileName, "hash", hash, "imported_at", prev.ImportedAt)
		return models.ImportResult{Reason: models.ReasonUnchangedCSV, State: prev}, nil
	}

	obs, stats := source.ParseUserCSV(content, im.parser)
	if len(obs) == 0 {
		logger.Info("upload has no valid rows", "file", fileName, "lines", stats.Lines)
		return models.ImportResult{Reason: models.ReasonNoValidRows}, nil
	}

	unique := dedupe.Observations(obs)
	sum := im.engine.Reconcile(ctx, models.SourceUserUpload, unique)

	deactivated, err := im.deactivateMissing(ctx, unique)
	if err != nil {
		return models.ImportResult{Summary: sum}, err
	}
	sum.Deactivated = deactivated

	// Only complete imports record the hash; dropped rows are retried by the
	// next upload of the same file.
	stateHash := hash
	if sum.Dropped > 0 {
		logger.Warn("upload partly dropped, content hash not recorded", "file", fileName, "dropped", sum.Dropped)
		stateHash = ""
	}
	state := models.ImportState{
		ContentHash: stateHash,
		ImportedAt:  im.engine.now(),
		FileName:    fileName,
		TotalRows:   len(unique),
		Created:     sum.Created,
		Updated:     sum.Updated,
		Deactivated: deactivated,
	}
	if err := im.store.SaveImportState(ctx, state); err != nil {
		return models.ImportResult{Summary: sum}, fmt.Errorf("save import state: %w", err)
	}

	if im.archiver != nil {
		if err := im.archiver.ArchiveUpload(ctx, hash, fileName, content); err != nil {
			logger.Warn("could not archive upload", "file", fileName, "error", err)
		}
	}

	logger.Info("upload imported", "file", fileName, "rows", len(unique),
		"created", sum.Created, "updated", sum.Updated, "deactivated", deactivated, "dropped", sum.Dropped)
	return models.ImportResult{Imported: true, Summary: sum, State: &state}, nil
}

// deactivateMissing marks active upload-sourced records whose key is absent
// from present as inactive, in chunks of the engine batch size.
func (im *Importer) deactivateMissing(ctx context.Context, present []models.RawObservation) (int, error) {
	keep := make(map[keys.Coordinate]struct{}, len(present))
	for _, o := range present {
		keep[o.Key()] = struct{}{}
	}

	active, err := im.store.List(ctx, store.Filter{Source: models.SourceUserUpload, Active: store.Bool(true)})
	if err != nil {
		return 0, fmt.Errorf("list active uploads: %w", err)
	}
	var gone []string
	for _, r := range active {
		if _, ok := keep[r.Key()]; !ok {
			gone = append(gone, r.ID)
		}
	}

	total := 0
	size := im.engine.cfg.BatchSize
	for start := 0; start < len(gone); start += size {
		ids := gone[start:min(start+size, len(gone))]
		n, err := im.store.UpdateMany(ctx,
			store.Filter{Source: models.SourceUserUpload, Active: store.Bool(true), IDs: ids},
			models.Patch{Active: store.Bool(false)})
		if err != nil {
			return total, fmt.Errorf("deactivate records: %w", err)
		}
		total += n
	}
	if total > 0 {
		logger.Info("deactivated records missing from upload", "count", total)
	}
	return total, nil
}

// Status is the answer to an import status query.
type Status struct {
	State        *models.ImportState `json:"state,omitempty"`
	ActiveTotal  int                 `json:"activeTotal"`
	ActiveUpload int                 `json:"activeUpload"`
}

// Status returns the last import snapshot and the active record counts.
func (im *Importer) Status(ctx context.Context) (Status, error) {
	var st Status
	state, err := im.store.ImportState(ctx)
	switch {
	case err == nil:
		st.State = state
	case !isNotFound(err):
		return st, fmt.Errorf("read import state: %w", err)
	}
	if st.ActiveTotal, err = im.store.Count(ctx, store.Filter{Active: store.Bool(true)}); err != nil {
		return st, fmt.Errorf("count active records: %w", err)
	}
	if st.ActiveUpload, err = im.store.Count(ctx, store.Filter{Source: models.SourceUserUpload, Active: store.Bool(true)}); err != nil {
		return st, fmt.Errorf("count active uploads: %w", err)
	}
	return st, nil
}
