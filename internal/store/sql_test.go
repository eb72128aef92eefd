package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"radarsync/internal/keys"
	"radarsync/internal/models"
)

func TestAssignments(t *testing.T) {
	hw := "BR-116"
	light := 80
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	set, args := Assignments(models.Patch{Highway: &hw, SpeedLight: &light}, Dollar, 1, now)
	assert.Equal(t, "highway = $1, speed_light = $2, updated_at = $3", set)
	assert.Equal(t, []any{"BR-116", 80, now}, args)

	set, _ = Assignments(models.Patch{Active: Bool(true)}, Question, 1, now)
	assert.Equal(t, "active = ?1, updated_at = ?2", set)
}

func TestWhere(t *testing.T) {
	where, args := Where(Filter{}, Dollar, 1)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = Where(Filter{
		Source: models.SourceUserUpload,
		Active: Bool(true),
		IDs:    []string{"a", "b"},
	}, Dollar, 3)
	assert.Equal(t, " WHERE source = $3 AND active = $4 AND id IN ($5, $6)", where)
	assert.Equal(t, []any{"user-upload", true, "a", "b"}, args)

	where, args = Where(Filter{Keys: []keys.Coordinate{keys.For(-23.5, -46.6)}}, Question, 1)
	assert.Equal(t, " WHERE coord_key IN (?1)", where)
	assert.Equal(t, []any{"-23.50000000,-46.60000000"}, args)

	where, _ = Where(Filter{IDs: []string{}}, Question, 1)
	assert.Equal(t, " WHERE 1 = 0", where)
}

func TestFilterMatches(t *testing.T) {
	r := models.CanonicalRecord{ID: "a", Latitude: -23.5, Longitude: -46.6, Source: models.SourceOfficialA, Active: true}
	assert.True(t, Filter{}.Matches(r))
	assert.True(t, Filter{Keys: []keys.Coordinate{keys.For(-23.5, -46.6)}}.Matches(r))
	assert.False(t, Filter{Source: models.SourceUserUpload}.Matches(r))
	assert.False(t, Filter{Active: Bool(false)}.Matches(r))
	assert.False(t, Filter{IDs: []string{}}.Matches(r))
}
