package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"comma decimal", "-23,401335", -23.401335, true},
		{"dot decimal", "-46.6333", -46.6333, true},
		{"thousands dot", "1.234,5", 1234.5, true},
		{"thousands comma", "1,234.5", 1234.5, true},
		{"degree sign", "-23.5°", -23.5, true},
		{"nbsp", " -10,25 ", -10.25, true},
		{"placeholder", "N/A", 0, false},
		{"dash", "-", 0, false},
		{"two commas", "1,2,3", 0, false},
		{"text", "abc", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Float(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestParserCoordinates(t *testing.T) {
	p := New(Brazil())

	lat, ok := p.Latitude("-23,401335")
	require.True(t, ok)
	assert.InDelta(t, -23.401335, lat, 1e-9)

	_, ok = p.Latitude("10.5")
	assert.False(t, ok, "10.5 is north of the configured box")

	_, ok = p.Longitude("-46,5")
	assert.True(t, ok)
	_, ok = p.Longitude("-23,5")
	assert.False(t, ok, "-23.5 is east of the configured box")

	_, ok = p.Latitude("-35")
	assert.True(t, ok, "edges are inclusive")
}

func TestParserCoordinateSwapped(t *testing.T) {
	p := New(Brazil())
	lat, lon, ok := p.Coordinate("-46.6", "-23.5")
	require.True(t, ok)
	assert.InDelta(t, -23.5, lat, 1e-9)
	assert.InDelta(t, -46.6, lon, 1e-9)

	_, _, ok = p.Coordinate("48.85", "2.35")
	assert.False(t, ok)
}

func TestConfigurableBounds(t *testing.T) {
	portugal, err := NewBounds(36.8, 42.2, -9.6, -6.1)
	require.NoError(t, err)
	p := New(portugal)

	_, ok := p.Latitude("38,72")
	assert.True(t, ok)
	_, ok = p.Latitude("-23,4")
	assert.False(t, ok)

	_, err = NewBounds(10, -10, 0, 1)
	assert.Error(t, err)
}

func TestParseSpeed(t *testing.T) {
	cases := []struct {
		raw   string
		light int
		heavy int // 0 means absent
		ok    bool
	}{
		{"100/080 Km/h", 100, 80, true},
		{"21 - 50 KM", 35, 0, true},
		{"1 21-50 KM Comercial", 35, 0, true},
		{"121-140", 130, 0, true},
		{"<= 20 KM/h", 20, 0, true},
		{"≤ 40", 40, 0, true},
		{"80", 80, 0, true},
		{"60km/h", 60, 0, true},
		{"80,0", 80, 0, true},
		{"9999", 0, 0, false},
		{"0", 0, 0, false},
		{"250/300", 0, 0, false},
		{"110/999", 110, 0, true},
		{"", 0, 0, false},
		{"sem informação", 0, 0, false},
		{"lombada", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := ParseSpeed(tc.raw)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			require.NotNil(t, got.Light)
			assert.Equal(t, tc.light, *got.Light)
			if tc.heavy == 0 {
				assert.Nil(t, got.Heavy)
			} else {
				require.NotNil(t, got.Heavy)
				assert.Equal(t, tc.heavy, *got.Heavy)
			}
		})
	}
}

func TestFindSpeed(t *testing.T) {
	got, ok := FindSpeed("Radar fixo - 60 km/h sentido centro")
	require.True(t, ok)
	assert.Equal(t, 60, *got.Light)

	_, ok = FindSpeed("Semáforo")
	assert.False(t, ok)

	_, ok = FindSpeed("ROD. SP-070 KM 20")
	assert.False(t, ok)

	got, ok = FindSpeed("80/60km caminhões")
	require.True(t, ok)
	assert.Equal(t, 80, *got.Light)
	assert.Equal(t, 60, *got.Heavy)
}

func TestDistance(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"Km 123 + 400 m", 123.4, true},
		{"KM 12+050", 12.05, true},
		{"Km 45", 45, true},
		{"km 45,5", 45.5, true},
		{"233,7", 233.7, true},
		{"perímetro urbano", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := Distance(tc.raw)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestInt(t *testing.T) {
	v, ok := Int("80,0")
	require.True(t, ok)
	assert.Equal(t, 80, v)
	_, ok = Int("80,5")
	assert.False(t, ok)
}
