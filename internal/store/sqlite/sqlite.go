// Package sqlite implements store.Store on modernc.org/sqlite. It backs local
// runs and the end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"radarsync/internal/keys"
	"radarsync/internal/logging"
	"radarsync/internal/models"
	"radarsync/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

var logger = logging.For("store.sqlite")

// Times are written with a fixed-width fraction so that text order is
// chronological. Parsing accepts any fraction.
const (
	storedLayout = "2006-01-02T15:04:05.000000000Z07:00"
	timeLayout   = time.RFC3339Nano
)

// Store is a store.Store over a single SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens dsn (a file path or "file::memory:") and applies pending
// migrations. SQLite allows a single writer, so the pool is capped at one
// connection; this also keeps an in-memory database alive for the life of the
// Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dsn, err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// WithClock replaces the time source used for updated_at.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return s.db.Close() }

const selectRecord = `SELECT id, latitude, longitude, source, highway, region, municipality,
	distance_along_route, radar_kind, direction, status, operator, license, attribution,
	original_speed_light, original_speed_heavy, speed_light, speed_heavy,
	confirm_count, deny_count, last_confirmed_at, created_at, updated_at, active
	FROM canonical_records`

func (s *Store) FindByCoordinate(ctx context.Context, key keys.Coordinate) (*models.CanonicalRecord, error) {
	return s.findOne(ctx, selectRecord+" WHERE coord_key = ?1", key.String())
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.CanonicalRecord, error) {
	return s.findOne(ctx, selectRecord+" WHERE id = ?1", id)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*models.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return &recs[0], nil
}

func (s *Store) FindByCoordinates(ctx context.Context, ks []keys.Coordinate) (map[keys.Coordinate]models.CanonicalRecord, error) {
	out := make(map[keys.Coordinate]models.CanonicalRecord, len(ks))
	if len(ks) == 0 {
		return out, nil
	}
	recs, err := s.List(ctx, store.Filter{Keys: ks})
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.Key()] = r
	}
	return out, nil
}

func (s *Store) CreateMany(ctx context.Context, records []models.CanonicalRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	ps := make([]string, len(store.RecordColumns))
	for i := range ps {
		ps[i] = store.Question(i + 1)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO canonical_records ("+
		strings.Join(store.RecordColumns, ", ")+") VALUES ("+strings.Join(ps, ", ")+")")
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, bind(store.Values(r))...); err != nil {
			if isUnique(err) {
				return 0, fmt.Errorf("insert %s: %w", r.Key(), store.ErrDuplicate)
			}
			return 0, fmt.Errorf("insert %s: %w", r.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create: %w", err)
	}
	return len(records), nil
}

func (s *Store) Update(ctx context.Context, id string, p models.Patch) error {
	set, args := store.Assignments(p, store.Question, 1, s.now())
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, "UPDATE canonical_records SET "+set+
		" WHERE id = "+store.Question(len(args)), bind(args)...)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, f store.Filter, p models.Patch) (int, error) {
	set, args := store.Assignments(p, store.Question, 1, s.now())
	where, wargs := store.Where(f, store.Question, len(args)+1)
	res, err := s.db.ExecContext(ctx, "UPDATE canonical_records SET "+set+where, bind(append(args, wargs...))...)
	if err != nil {
		return 0, fmt.Errorf("update many: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update many rows affected: %w", err)
	}
	return int(n), nil
}

func (s *Store) Count(ctx context.Context, f store.Filter) (int, error) {
	where, args := store.Where(f, store.Question, 1)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM canonical_records"+where, bind(args)...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]models.CanonicalRecord, error) {
	where, args := store.Where(f, store.Question, 1)
	rows, err := s.db.QueryContext(ctx, selectRecord+where+" ORDER BY coord_key", bind(args)...)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return scanRecords(rows)
}

func (s *Store) UpsertVote(ctx context.Context, v models.SpeedVote) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM canonical_records WHERE id = ?1", v.RecordID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("vote on %s: %w", v.RecordID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("vote on %s: %w", v.RecordID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO speed_votes (user_id, record_id, speed_light, speed_heavy, voted_at)
		VALUES (?1, ?2, ?3, ?4, ?5)
		ON CONFLICT (user_id, record_id) DO UPDATE SET
			speed_light = excluded.speed_light,
			speed_heavy = excluded.speed_heavy,
			voted_at = excluded.voted_at`,
		bind([]any{v.UserID, v.RecordID, v.SpeedLight, v.SpeedHeavy, v.VotedAt})...)
	if err != nil {
		return fmt.Errorf("upsert vote %s/%s: %w", v.UserID, v.RecordID, err)
	}
	return nil
}

func (s *Store) VotesFor(ctx context.Context, recordIDs []string) (map[string][]models.SpeedVote, error) {
	out := make(map[string][]models.SpeedVote)
	if len(recordIDs) == 0 {
		return out, nil
	}
	ps := make([]string, len(recordIDs))
	args := make([]any, len(recordIDs))
	for i, id := range recordIDs {
		ps[i] = store.Question(i + 1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, record_id, speed_light, speed_heavy, voted_at
		FROM speed_votes WHERE record_id IN (`+strings.Join(ps, ", ")+`)
		ORDER BY voted_at, user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			v            models.SpeedVote
			light, heavy sql.NullInt64
			votedAt      string
		)
		if err := rows.Scan(&v.UserID, &v.RecordID, &light, &heavy, &votedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.SpeedLight, v.SpeedHeavy = intPtr(light), intPtr(heavy)
		if v.VotedAt, err = time.Parse(timeLayout, votedAt); err != nil {
			return nil, fmt.Errorf("parse voted_at %q: %w", votedAt, err)
		}
		out[v.RecordID] = append(out[v.RecordID], v)
	}
	return out, rows.Err()
}

func (s *Store) ImportState(ctx context.Context) (*models.ImportState, error) {
	var (
		st         models.ImportState
		importedAt string
	)
	err := s.db.QueryRowContext(ctx, `SELECT content_hash, imported_at, file_name, total_rows, created, updated, deactivated
		FROM import_state WHERE id = 1`).
		Scan(&st.ContentHash, &importedAt, &st.FileName, &st.TotalRows, &st.Created, &st.Updated, &st.Deactivated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query import state: %w", err)
	}
	if st.ImportedAt, err = time.Parse(timeLayout, importedAt); err != nil {
		return nil, fmt.Errorf("parse imported_at %q: %w", importedAt, err)
	}
	return &st, nil
}

func (s *Store) SaveImportState(ctx context.Context, st models.ImportState) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO import_state (id, content_hash, imported_at, file_name, total_rows, created, updated, deactivated)
		VALUES (1, ?1, ?2, ?3, ?4, ?5, ?6, ?7)
		ON CONFLICT (id) DO UPDATE SET
			content_hash = excluded.content_hash,
			imported_at = excluded.imported_at,
			file_name = excluded.file_name,
			total_rows = excluded.total_rows,
			created = excluded.created,
			updated = excluded.updated,
			deactivated = excluded.deactivated`,
		bind([]any{st.ContentHash, st.ImportedAt, st.FileName, st.TotalRows, st.Created, st.Updated, st.Deactivated})...)
	if err != nil {
		return fmt.Errorf("save import state: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]models.CanonicalRecord, error) {
	defer rows.Close()
	var out []models.CanonicalRecord
	for rows.Next() {
		var (
			r                                                      models.CanonicalRecord
			source                                                 string
			highway, region, municipality, kind, direction, status sql.NullString
			operator, license, attribution                         sql.NullString
			distance                                               sql.NullFloat64
			origLight, origHeavy, light, heavy                     sql.NullInt64
			lastConfirmed                                          sql.NullString
			createdAt, updatedAt                                   string
			active                                                 int64
		)
		err := rows.Scan(&r.ID, &r.Latitude, &r.Longitude, &source, &highway, &region, &municipality,
			&distance, &kind, &direction, &status, &operator, &license, &attribution,
			&origLight, &origHeavy, &light, &heavy,
			&r.ConfirmCount, &r.DenyCount, &lastConfirmed, &createdAt, &updatedAt, &active)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Source = models.Source(source)
		r.Highway, r.Region, r.Municipality = highway.String, region.String, municipality.String
		r.RadarKind, r.Direction, r.Status = kind.String, direction.String, status.String
		r.Operator, r.License, r.Attribution = operator.String, license.String, attribution.String
		if distance.Valid {
			d := distance.Float64
			r.DistanceAlongRoute = &d
		}
		r.OriginalSpeedLight, r.OriginalSpeedHeavy = intPtr(origLight), intPtr(origHeavy)
		r.SpeedLight, r.SpeedHeavy = intPtr(light), intPtr(heavy)
		r.Active = active != 0
		if lastConfirmed.Valid {
			t, err := time.Parse(timeLayout, lastConfirmed.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_confirmed_at %q: %w", lastConfirmed.String, err)
			}
			r.LastConfirmedAt = &t
		}
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// bind converts values to what the columns store: pointers are dereferenced
// (nil becomes NULL), times become RFC 3339 text and booleans become 0/1.
func bind(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = bindValue(a)
	}
	return out
}

func bindValue(a any) any {
	switch v := a.(type) {
	case time.Time:
		return v.UTC().Format(storedLayout)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(storedLayout)
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case *string:
		if v == nil {
			return nil
		}
		return *v
	case *int:
		if v == nil {
			return nil
		}
		return int64(*v)
	case int:
		return int64(v)
	case *float64:
		if v == nil {
			return nil
		}
		return *v
	}
	return a
}

func isUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
