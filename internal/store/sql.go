package store

import (
	"strconv"
	"strings"
	"time"

	"radarsync/internal/models"
)

// Placeholder renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholder func(n int) string

// Dollar renders $1, $2, ... as Postgres expects.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question renders ?1, ?2, ... which SQLite binds by position.
func Question(n int) string { return "?" + strconv.Itoa(n) }

// RecordColumns lists canonical_records columns in the order Values returns
// them.
var RecordColumns = []string{
	"id", "coord_key", "latitude", "longitude", "source",
	"highway", "region", "municipality", "distance_along_route", "radar_kind",
	"direction", "status", "operator", "license", "attribution",
	"original_speed_light", "original_speed_heavy", "speed_light", "speed_heavy",
	"confirm_count", "deny_count", "last_confirmed_at", "created_at", "updated_at", "active",
}

// Values flattens r in RecordColumns order. Empty metadata strings become
// NULL.
func Values(r models.CanonicalRecord) []any {
	return []any{
		r.ID, r.Key().String(), r.Latitude, r.Longitude, string(r.Source),
		nullString(r.Highway), nullString(r.Region), nullString(r.Municipality), r.DistanceAlongRoute, nullString(r.RadarKind),
		nullString(r.Direction), nullString(r.Status), nullString(r.Operator), nullString(r.License), nullString(r.Attribution),
		r.OriginalSpeedLight, r.OriginalSpeedHeavy, r.SpeedLight, r.SpeedHeavy,
		r.ConfirmCount, r.DenyCount, r.LastConfirmedAt, r.CreatedAt, r.UpdatedAt, r.Active,
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Assignments returns the SET clause for p (column = placeholder, ...) with
// updated_at appended, and the bind values starting at parameter start.
func Assignments(p models.Patch, ph Placeholder, start int, now time.Time) (string, []any) {
	cols := p.Changes()
	vals := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		vals = append(vals, patchValue(p, c))
	}
	cols = append(cols, "updated_at")
	vals = append(vals, now)

	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = " + ph(start+i)
	}
	return strings.Join(parts, ", "), vals
}

func patchValue(p models.Patch, column string) any {
	switch column {
	case "highway":
		return *p.Highway
	case "region":
		return *p.Region
	case "municipality":
		return *p.Municipality
	case "distance_along_route":
		return *p.DistanceAlongRoute
	case "radar_kind":
		return *p.RadarKind
	case "direction":
		return *p.Direction
	case "status":
		return *p.Status
	case "operator":
		return *p.Operator
	case "license":
		return *p.License
	case "attribution":
		return *p.Attribution
	case "original_speed_light":
		return *p.OriginalSpeedLight
	case "original_speed_heavy":
		return *p.OriginalSpeedHeavy
	case "speed_light":
		return *p.SpeedLight
	case "speed_heavy":
		return *p.SpeedHeavy
	case "confirm_count":
		return *p.ConfirmCount
	case "last_confirmed_at":
		return *p.LastConfirmedAt
	case "active":
		return *p.Active
	}
	panic("store: unknown patch column " + column)
}

// Where renders f as a WHERE clause (empty when f selects everything) with
// bind values starting at parameter start.
func Where(f Filter, ph Placeholder, start int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return ph(start + len(args) - 1)
	}
	if f.Source != "" {
		conds = append(conds, "source = "+next(string(f.Source)))
	}
	if f.Active != nil {
		conds = append(conds, "active = "+next(*f.Active))
	}
	if f.IDs != nil {
		conds = append(conds, in("id", len(f.IDs), func(i int) string { return next(f.IDs[i]) }))
	}
	if f.Keys != nil {
		conds = append(conds, in("coord_key", len(f.Keys), func(i int) string { return next(f.Keys[i].String()) }))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func in(column string, n int, bind func(i int) string) string {
	if n == 0 {
		return "1 = 0"
	}
	ps := make([]string, n)
	for i := range ps {
		ps[i] = bind(i)
	}
	return column + " IN (" + strings.Join(ps, ", ") + ")"
}
