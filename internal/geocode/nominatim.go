package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// searchResponse is shaped for the /search API response; only the members
// used here are decoded.
type searchResponse []struct {
	PlaceID     int64   `json:"place_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
	DisplayName string  `json:"display_name"`
	Address     struct {
		Road         string `json:"road"`
		Suburb       string `json:"suburb"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
		Country      string `json:"country"`
		CountryCode  string `json:"country_code"`
	} `json:"address"`
}

// Nominatim resolves addresses with the OpenStreetMap Nominatim search API.
// It does not space its calls; wrap it in Limited for that.
type Nominatim struct {
	client      *http.Client
	baseURL     string
	userAgent   string
	countryCode string
}

// NewNominatim builds a client. An empty baseURL selects DefaultBaseURL;
// countryCode ("br") restricts results when set.
func NewNominatim(client *http.Client, baseURL, userAgent, countryCode string) *Nominatim {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Nominatim{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		userAgent:   userAgent,
		countryCode: countryCode,
	}
}

// Resolve looks up address and returns the best match, or nil when there is
// none.
func (n *Nominatim) Resolve(ctx context.Context, address string) (*Point, error) {
	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	params.Set("accept-language", "pt-BR")
	if n.countryCode != "" {
		params.Set("countrycodes", n.countryCode)
	}
	reqURL := fmt.Sprintf("%s/search?%s", n.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim search: unexpected status: %s", resp.Status)
	}

	var results searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("nominatim search: decode: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim search: latitude %q: %w", first.Lat, err)
	}
	lon, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim search: longitude %q: %w", first.Lon, err)
	}

	city := first.Address.City
	if city == "" {
		city = first.Address.Town
	}
	if city == "" {
		city = first.Address.Village
	}
	if city == "" {
		city = first.Address.Municipality
	}

	return &Point{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: first.DisplayName,
		City:        city,
		State:       first.Address.State,
		Road:        first.Address.Road,
	}, nil
}
