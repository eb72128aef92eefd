package geocode

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimResolve(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://geo.test/search",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Av. Paulista 1000, São Paulo", req.URL.Query().Get("q"))
			assert.Equal(t, "br", req.URL.Query().Get("countrycodes"))
			assert.Equal(t, "radarsync-test", req.Header.Get("User-Agent"))
			return httpmock.NewStringResponse(200, `[{"lat":"-23.5646","lon":"-46.6527",
				"display_name":"Avenida Paulista, São Paulo",
				"address":{"road":"Avenida Paulista","city":"São Paulo","state":"São Paulo"}}]`), nil
		})

	n := NewNominatim(client, "https://geo.test/", "radarsync-test", "br")
	p, err := n.Resolve(context.Background(), "Av. Paulista 1000, São Paulo")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, -23.5646, p.Latitude, 1e-9)
	assert.InDelta(t, -46.6527, p.Longitude, 1e-9)
	assert.Equal(t, "São Paulo", p.City)
	assert.Equal(t, "Avenida Paulista", p.Road)
}

func TestNominatimNoResults(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodGet, "https://geo.test/search", httpmock.NewStringResponder(200, `[]`))

	p, err := NewNominatim(client, "https://geo.test", "", "").Resolve(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNominatimHTTPError(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodGet, "https://geo.test/search", httpmock.NewStringResponder(429, `slow down`))

	_, err := NewNominatim(client, "https://geo.test", "", "").Resolve(context.Background(), "Rua A")
	assert.Error(t, err)
}

type fakeGeocoder struct {
	calls []time.Time
	err   error
}

func (f *fakeGeocoder) Resolve(_ context.Context, address string) (*Point, error) {
	f.calls = append(f.calls, time.Now())
	if f.err != nil {
		return nil, f.err
	}
	if address == "unknown" {
		return nil, nil
	}
	return &Point{Latitude: -23, Longitude: -46}, nil
}

func TestLimitedRejectsShortInterval(t *testing.T) {
	_, err := NewLimited(&fakeGeocoder{}, 500*time.Millisecond, time.Minute)
	assert.ErrorIs(t, err, ErrInterval)
}

func TestLimitedCachesAndSpaces(t *testing.T) {
	fake := &fakeGeocoder{}
	l, err := NewLimited(fake, time.Second, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	p, err := l.Resolve(ctx, "Rua A, 10")
	require.NoError(t, err)
	require.NotNil(t, p)

	p, err = l.Resolve(ctx, "  rua a,   10 ")
	require.NoError(t, err)
	require.NotNil(t, p)

	p, err = l.Resolve(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.Len(t, fake.calls, 2, "the second lookup is served from the cache")
	assert.GreaterOrEqual(t, fake.calls[1].Sub(fake.calls[0]), 900*time.Millisecond)

	s := l.Stats()
	assert.Equal(t, Stats{Calls: 2, Hits: 1, Misses: 1}, s)
}

func TestLimitedPropagatesErrors(t *testing.T) {
	fake := &fakeGeocoder{err: errors.New("boom")}
	l, err := NewLimited(fake, time.Second, time.Minute)
	require.NoError(t, err)

	_, err = l.Resolve(context.Background(), "Rua B")
	assert.Error(t, err)
	assert.Equal(t, 1, l.Stats().Failures)
}

func TestLimitedHonoursContext(t *testing.T) {
	l, err := NewLimited(&fakeGeocoder{}, time.Hour, time.Minute)
	require.NoError(t, err)
	_, err = l.Resolve(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Resolve(ctx, "second")
	assert.Error(t, err)
}
