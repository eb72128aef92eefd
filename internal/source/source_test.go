package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"radarsync/internal/geocode"
	"radarsync/internal/models"
	"radarsync/internal/parse"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) PutFeed(_ context.Context, src models.Source, name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[string(src)+"/"+name] = data
	return nil
}

func (c *memCache) GetFeed(_ context.Context, src models.Source, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[string(src)+"/"+name]
	if !ok {
		return nil, errors.New("no cached copy")
	}
	return d, nil
}

func collect(ch <-chan models.RawObservation) []models.RawObservation {
	var out []models.RawObservation
	for o := range ch {
		out = append(out, o)
	}
	return out
}

const semicolonFeed = "Rodovia;UF;Município;Km;Latitude;Longitude;Velocidade (km/h);Sentido\n" +
	"BR-116;SP;Guarulhos;Km 210 + 300 m;-23,45;-46,53;80;Crescente\n" +
	"BR-381;MG;Betim;Km 492;-19,96;-44,19;60;Decrescente\n" +
	"BR-381;MG;Betim;Km 493;não informado;-44,20;60;Decrescente\n"

func TestFetcherCachesAndFallsBack(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(semicolonFeed))
	}))
	defer srv.Close()

	cache := newMemCache()
	f := NewFetcher(srv.Client(), cache)
	loc := Location{URL: srv.URL + "/dados/radares.csv?format=csv"}
	assert.Equal(t, "radares.csv", loc.Name())

	data, err := f.Fetch(context.Background(), models.SourceOfficialB, loc)
	require.NoError(t, err)
	assert.Equal(t, semicolonFeed, string(data))

	fail.Store(true)
	data, err = f.Fetch(context.Background(), models.SourceOfficialB, loc)
	require.NoError(t, err, "served from the cached copy")
	assert.Equal(t, semicolonFeed, string(data))

	_, err = NewFetcher(srv.Client(), nil).Fetch(context.Background(), models.SourceOfficialB, loc)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestCSVFeedWithHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(semicolonFeed))
	}))
	defer srv.Close()

	feed := &CSVFeed{
		Fetcher:  NewFetcher(srv.Client(), nil),
		Location: Location{URL: srv.URL + "/radares.csv"},
		Parser:   parse.New(parse.Brazil()),
		Defaults: models.Metadata{License: "CC-BY"},
	}
	assert.True(t, feed.Capabilities().Has(Network))
	assert.False(t, feed.Capabilities().Has(Geocoding))

	obs := collect(feed.Fetch(context.Background()))
	require.Len(t, obs, 2, "the row without a latitude is skipped")

	first := obs[0]
	assert.Equal(t, models.SourceOfficialB, first.Source)
	assert.InDelta(t, -23.45, first.Latitude, 1e-9)
	assert.InDelta(t, -46.53, first.Longitude, 1e-9)
	assert.Equal(t, "BR-116", first.Fields.Highway)
	assert.Equal(t, "SP", first.Fields.Region)
	assert.Equal(t, "Guarulhos", first.Fields.Municipality)
	assert.Equal(t, "Crescente", first.Fields.Direction)
	assert.Equal(t, "CC-BY", first.Fields.License)
	require.NotNil(t, first.Fields.SpeedLimitLight)
	assert.Equal(t, 80, *first.Fields.SpeedLimitLight)
	require.NotNil(t, first.Fields.DistanceAlongRoute)
	assert.InDelta(t, 210.3, *first.Fields.DistanceAlongRoute, 1e-9)
}

func TestCSVFeedHeaderless(t *testing.T) {
	data := []byte("12;-46,633308;-23,550520;60\n13;-46,640000;-23,560000;70\n\n")
	feed := &CSVFeed{Parser: parse.New(parse.Brazil())}
	obs := feed.Decode(data)
	require.Len(t, obs, 2)
	assert.InDelta(t, -23.550520, obs[0].Latitude, 1e-9)
	assert.InDelta(t, -46.633308, obs[0].Longitude, 1e-9)
}

func TestCSVFeedLatin1(t *testing.T) {
	// "Município" encoded as ISO 8859-1.
	data := []byte("Munic\xedpio;Latitude;Longitude\nS\xe3o Carlos;-22,01;-47,89\nAraraquara;-21,79;-48,17\n")
	obs := (&CSVFeed{Parser: parse.New(parse.Brazil())}).Decode(data)
	require.Len(t, obs, 2)
	assert.Equal(t, "São Carlos", obs[0].Fields.Municipality)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ';', detectDelimiter("a;b;c\n1,5;2,5;3"))
	assert.Equal(t, ',', detectDelimiter("\nlat,lon,desc\n"))
	assert.Equal(t, ';', detectDelimiter(""))
}

func TestJSONFeedDecode(t *testing.T) {
	doc := `{
		"meta": {"updated": "2026-01-01"},
		"radares": [
			{"latitude": "-23,45", "longitude": "-46,53", "rodovia": "BR-116", "velocidade": "80", "extra": {"a": 1}},
			{"latitude": -19.96, "longitude": -44.19, "rodovia": null, "velocidade": "100/080"},
			{"latitude": "", "longitude": "-44,19", "rodovia": "BR-040", "velocidade": "60"}
		]
	}`
	feed := &JSONFeed{Parser: parse.New(parse.Brazil())}
	obs, err := feed.Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "BR-116", obs[0].Fields.Highway)
	assert.Equal(t, 80, *obs[0].Fields.SpeedLimitLight)
	assert.Equal(t, "", obs[1].Fields.Highway)
	assert.Equal(t, 100, *obs[1].Fields.SpeedLimitLight)
	assert.Equal(t, 80, *obs[1].Fields.SpeedLimitHeavy)

	feed.ArrayField = "missing"
	_, err = feed.Decode([]byte(doc))
	assert.Error(t, err)
}

func TestWorkbookDecode(t *testing.T) {
	f := excelize.NewFile()
	header := []interface{}{"Rodovia", "UF", "Município", "Km", "Latitude", "Longitude", "Velocidade (km/h)", "Sentido"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Relação de radares"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &header))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{"BR-116", "SP", "Guarulhos", "Km 210", "-23,45", "-46,53", "80", "Crescente"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A5", &[]interface{}{"BR-381", "MG", "Betim", "Km 492", "-19,96", "-44,19", "60", "Decrescente"}))
	_, err := f.NewSheet("Sheet2")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Sheet2", "A1", &header))
	require.NoError(t, f.SetSheetRow("Sheet2", "A2", &[]interface{}{"BR-101", "SC", "Joinville", "Km 40", "-26,30", "-48,84", "110", "Norte"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	obs, err := (&Workbook{Parser: parse.New(parse.Brazil())}).Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, models.SourceOfficialC, obs[2].Source)
	assert.Equal(t, "Joinville", obs[2].Fields.Municipality)
	assert.Equal(t, 110, *obs[2].Fields.SpeedLimitLight)

	_, err = (&Workbook{Parser: parse.New(parse.Brazil())}).Decode([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestParseUserCSV(t *testing.T) {
	content := []byte("longitude,latitude,descricao\n" +
		"-46.6333,-23.5505,Radar fixo 60 km/h\n" +
		"-46.6400,-23.5600,Lombada eletrônica@40\n" +
		"-46.6500,-23.5700,Semáforo\n" +
		"bad,line,here\n" +
		"-23.5800,-46.6600,Radar móvel@100/080\n")
	obs, stats := ParseUserCSV(content, parse.New(parse.Brazil()))
	require.Len(t, obs, 4)
	assert.Equal(t, UserCSVStats{Lines: 6, Valid: 4, Skipped: 2}, stats)

	assert.Equal(t, "Radar fixo 60 km/h", obs[0].Fields.RadarKind)
	assert.Equal(t, 60, *obs[0].Fields.SpeedLimitLight)
	assert.Equal(t, "Lombada eletrônica", obs[1].Fields.RadarKind)
	assert.Equal(t, 40, *obs[1].Fields.SpeedLimitLight)
	assert.Nil(t, obs[2].Fields.SpeedLimitLight)

	// Latitude and longitude were swapped on the last line.
	assert.InDelta(t, -23.58, obs[3].Latitude, 1e-9)
	assert.InDelta(t, -46.66, obs[3].Longitude, 1e-9)
	assert.Equal(t, 80, *obs[3].Fields.SpeedLimitHeavy)
	for _, o := range obs {
		assert.Equal(t, models.SourceUserUpload, o.Source)
	}
}

func TestAssembleRows(t *testing.T) {
	lines := []string{
		"RELAÇÃO DE EQUIPAMENTOS",
		"Município: Campinas/SP",
		"Nº Tipo Local Velocidade",
		"1 FIXO AV. BRASIL, 1500 SENTIDO CENTRO 60 KM/H",
		"2 LOMBADA ELETRONICA 40 KM/H",
		"RUA DAS FLORES, 200",
		"Página 1 de 2",
		"Município: Valinhos",
		"3 FIXO ROD. SP-070 KM 20 SENTIDO INTERIOR",
	}
	rows := assembleRows(lines)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Seq)
	assert.Equal(t, "FIXO", rows[0].Kind)
	assert.Equal(t, "AV. BRASIL, 1500", rows[0].Address)
	assert.Equal(t, "CENTRO", rows[0].Direction)
	assert.Equal(t, "Campinas", rows[0].Municipality)
	assert.Equal(t, "SP", rows[0].Region)
	require.True(t, rows[0].HasSpeed)
	assert.Equal(t, 60, *rows[0].Speed.Light)
	assert.Equal(t, "AV. BRASIL, 1500, Campinas, SP, Brasil", rows[0].Query())

	assert.Equal(t, "LOMBADA ELETRONICA", rows[1].Kind)
	assert.Equal(t, "RUA DAS FLORES, 200", rows[1].Address)
	assert.Equal(t, 40, *rows[1].Speed.Light)

	assert.Equal(t, "Valinhos", rows[2].Municipality)
	assert.Equal(t, "ROD. SP-070 KM 20", rows[2].Address)
	assert.Equal(t, "INTERIOR", rows[2].Direction)
	assert.False(t, rows[2].HasSpeed)
	assert.Equal(t, "SP-070", highwayOf(rows[2].Address))
}

type stubGeocoder map[string]*geocode.Point

func (s stubGeocoder) Resolve(_ context.Context, address string) (*geocode.Point, error) {
	return s[address], nil
}

func TestPDFResolveSkipsUnresolved(t *testing.T) {
	p := &PDFGeocoded{
		Parser: parse.New(parse.Brazil()),
		Geocoder: stubGeocoder{
			"AV. BRASIL, 1500, Campinas, SP, Brasil": {Latitude: -22.9, Longitude: -47.06, City: "Campinas"},
			"RUA X, Campinas, SP, Brasil":            {Latitude: 48.8, Longitude: 2.35},
		},
		Fetcher: NewFetcher(nil, nil),
	}
	assert.True(t, p.Capabilities().Has(Geocoding))

	o, ok := p.resolve(context.Background(), tableRow{Address: "AV. BRASIL, 1500", Municipality: "Campinas", Region: "SP", Kind: "FIXO"})
	require.True(t, ok)
	assert.Equal(t, models.SourceOfficialD, o.Source)
	assert.Equal(t, "FIXO", o.Fields.RadarKind)
	assert.Equal(t, "Campinas", o.Fields.Municipality)

	_, ok = p.resolve(context.Background(), tableRow{Address: "RUA X", Municipality: "Campinas", Region: "SP"})
	assert.False(t, ok, "a point outside the bounding box is dropped")

	_, ok = p.resolve(context.Background(), tableRow{Address: "RUA Y"})
	assert.False(t, ok)
}

func TestCapabilityString(t *testing.T) {
	assert.Equal(t, "none", Capability(0).String())
	assert.Equal(t, "cached-copy|network|geocoding", (CachedCopy | Network | Geocoding).String())
}
