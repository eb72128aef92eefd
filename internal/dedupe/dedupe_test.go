package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radarsync/internal/models"
)

func obs(lat, lon float64, highway string, speed int) models.RawObservation {
	o := models.RawObservation{Latitude: lat, Longitude: lon, Source: models.SourceOfficialA}
	o.Fields.Highway = highway
	if speed > 0 {
		o.Fields.SpeedLimitLight = &speed
	}
	return o
}

func TestObservationsKeepsRicher(t *testing.T) {
	poor := obs(-23.5, -46.6, "", 0)
	rich := obs(-23.500000001, -46.6, "BR-116", 80)

	got := Observations([]models.RawObservation{poor, rich})
	require.Len(t, got, 1)
	assert.Equal(t, "BR-116", got[0].Fields.Highway)

	got = Observations([]models.RawObservation{rich, poor})
	require.Len(t, got, 1)
	assert.Equal(t, "BR-116", got[0].Fields.Highway, "order does not matter for the richer record")
}

func TestObservationsTieKeepsFirst(t *testing.T) {
	a := obs(-23.5, -46.6, "BR-116", 0)
	b := obs(-23.5, -46.6, "SP-070", 0)

	got := Observations([]models.RawObservation{a, b})
	require.Len(t, got, 1)
	assert.Equal(t, "BR-116", got[0].Fields.Highway)
}

func TestObservationsDistinctKeys(t *testing.T) {
	in := []models.RawObservation{
		obs(-23.5, -46.6, "", 0),
		obs(-23.50000002, -46.6, "", 0),
		obs(-22.9, -43.2, "", 0),
		obs(-23.5, -46.6, "BR-116", 0),
	}
	got := Observations(in)
	require.Len(t, got, 3)
	assert.InDelta(t, -23.5, got[0].Latitude, 1e-12)
	assert.Equal(t, "BR-116", got[0].Fields.Highway)
	assert.InDelta(t, -23.50000002, got[1].Latitude, 1e-12)
	assert.InDelta(t, -22.9, got[2].Latitude, 1e-12)
}

func TestStream(t *testing.T) {
	ch := make(chan models.RawObservation, 3)
	ch <- obs(-23.5, -46.6, "", 0)
	ch <- obs(-23.5, -46.6, "", 60)
	ch <- obs(-20.0, -40.0, "", 0)
	close(ch)

	got := Stream(ch)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].Fields.SpeedLimitLight)
	assert.Equal(t, 60, *got[0].Fields.SpeedLimitLight)
}

func TestObservationsEmpty(t *testing.T) {
	assert.Empty(t, Observations(nil))
}
