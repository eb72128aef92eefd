// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"radarsync/internal/keys"
	"radarsync/internal/logging"
	"radarsync/internal/models"
	"radarsync/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

var logger = logging.For("store.postgres")

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store is a store.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected", "host", pool.Config().ConnConfig.Host, "database", pool.Config().ConnConfig.Database)
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const selectRecord = `SELECT id, latitude, longitude, source, highway, region, municipality,
	distance_along_route, radar_kind, direction, status, operator, license, attribution,
	original_speed_light, original_speed_heavy, speed_light, speed_heavy,
	confirm_count, deny_count, last_confirmed_at, created_at, updated_at, active
	FROM canonical_records`

func (s *Store) FindByCoordinate(ctx context.Context, key keys.Coordinate) (*models.CanonicalRecord, error) {
	return s.findOne(ctx, selectRecord+" WHERE coord_key = $1", key.String())
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.CanonicalRecord, error) {
	return s.findOne(ctx, selectRecord+" WHERE id = $1", id)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*models.CanonicalRecord, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return &r, nil
}

func (s *Store) FindByCoordinates(ctx context.Context, ks []keys.Coordinate) (map[keys.Coordinate]models.CanonicalRecord, error) {
	out := make(map[keys.Coordinate]models.CanonicalRecord, len(ks))
	if len(ks) == 0 {
		return out, nil
	}
	strs := make([]string, len(ks))
	for i, k := range ks {
		strs[i] = k.String()
	}
	rows, err := s.pool.Query(ctx, selectRecord+" WHERE coord_key = ANY($1)", strs)
	if err != nil {
		return nil, fmt.Errorf("query coordinates: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan coordinates: %w", err)
	}
	for _, r := range recs {
		out[r.Key()] = r
	}
	return out, nil
}

// CreateMany copies records inside one transaction, so a unique violation on
// any row leaves the table untouched.
func (s *Store) CreateMany(ctx context.Context, records []models.CanonicalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"canonical_records"}, store.RecordColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return store.Values(records[i]), nil
		}))
	if err != nil {
		return 0, translate("copy records", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, translate("commit create", err)
	}
	return int(n), nil
}

func (s *Store) Update(ctx context.Context, id string, p models.Patch) error {
	set, args := store.Assignments(p, store.Dollar, 1, s.now())
	args = append(args, id)
	tag, err := s.pool.Exec(ctx, "UPDATE canonical_records SET "+set+" WHERE id = "+store.Dollar(len(args)), args...)
	if err != nil {
		return translate("update "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, f store.Filter, p models.Patch) (int, error) {
	set, args := store.Assignments(p, store.Dollar, 1, s.now())
	where, wargs := store.Where(f, store.Dollar, len(args)+1)
	tag, err := s.pool.Exec(ctx, "UPDATE canonical_records SET "+set+where, append(args, wargs...)...)
	if err != nil {
		return 0, translate("update many", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int, error) {
	where, args := store.Where(f, store.Dollar, 1)
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM canonical_records"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]models.CanonicalRecord, error) {
	where, args := store.Where(f, store.Dollar, 1)
	rows, err := s.pool.Query(ctx, selectRecord+where+" ORDER BY coord_key", args...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan list: %w", err)
	}
	return recs, nil
}

func (s *Store) UpsertVote(ctx context.Context, v models.SpeedVote) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO speed_votes (user_id, record_id, speed_light, speed_heavy, voted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, record_id) DO UPDATE SET
			speed_light = EXCLUDED.speed_light,
			speed_heavy = EXCLUDED.speed_heavy,
			voted_at = EXCLUDED.voted_at`,
		v.UserID, v.RecordID, v.SpeedLight, v.SpeedHeavy, v.VotedAt)
	if err != nil {
		return translate("upsert vote "+v.UserID+"/"+v.RecordID, err)
	}
	return nil
}

func (s *Store) VotesFor(ctx context.Context, recordIDs []string) (map[string][]models.SpeedVote, error) {
	out := make(map[string][]models.SpeedVote)
	if len(recordIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT user_id, record_id, speed_light, speed_heavy, voted_at
		FROM speed_votes WHERE record_id = ANY($1) ORDER BY voted_at, user_id`, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	votes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SpeedVote, error) {
		var v models.SpeedVote
		err := row.Scan(&v.UserID, &v.RecordID, &v.SpeedLight, &v.SpeedHeavy, &v.VotedAt)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan votes: %w", err)
	}
	for _, v := range votes {
		out[v.RecordID] = append(out[v.RecordID], v)
	}
	return out, nil
}

func (s *Store) ImportState(ctx context.Context) (*models.ImportState, error) {
	var st models.ImportState
	err := s.pool.QueryRow(ctx, `SELECT content_hash, imported_at, file_name, total_rows, created, updated, deactivated
		FROM import_state WHERE id = 1`).
		Scan(&st.ContentHash, &st.ImportedAt, &st.FileName, &st.TotalRows, &st.Created, &st.Updated, &st.Deactivated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query import state: %w", err)
	}
	return &st, nil
}

func (s *Store) SaveImportState(ctx context.Context, st models.ImportState) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO import_state (id, content_hash, imported_at, file_name, total_rows, created, updated, deactivated)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			imported_at = EXCLUDED.imported_at,
			file_name = EXCLUDED.file_name,
			total_rows = EXCLUDED.total_rows,
			created = EXCLUDED.created,
			updated = EXCLUDED.updated,
			deactivated = EXCLUDED.deactivated`,
		st.ContentHash, st.ImportedAt, st.FileName, st.TotalRows, st.Created, st.Updated, st.Deactivated)
	if err != nil {
		return fmt.Errorf("save import state: %w", err)
	}
	return nil
}

func scanRecord(row pgx.CollectableRow) (models.CanonicalRecord, error) {
	var (
		r                                                      models.CanonicalRecord
		source                                                 string
		highway, region, municipality, kind, direction, status *string
		operator, license, attribution                         *string
	)
	err := row.Scan(&r.ID, &r.Latitude, &r.Longitude, &source, &highway, &region, &municipality,
		&r.DistanceAlongRoute, &kind, &direction, &status, &operator, &license, &attribution,
		&r.OriginalSpeedLight, &r.OriginalSpeedHeavy, &r.SpeedLight, &r.SpeedHeavy,
		&r.ConfirmCount, &r.DenyCount, &r.LastConfirmedAt, &r.CreatedAt, &r.UpdatedAt, &r.Active)
	if err != nil {
		return r, err
	}
	r.Source = models.Source(source)
	r.Highway, r.Region, r.Municipality = deref(highway), deref(region), deref(municipality)
	r.RadarKind, r.Direction, r.Status = deref(kind), deref(direction), deref(status)
	r.Operator, r.License, r.Attribution = deref(operator), deref(license), deref(attribution)
	return r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// translate maps Postgres constraint violations onto store sentinels.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, strings.TrimSpace(pgErr.Detail), store.ErrDuplicate)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
