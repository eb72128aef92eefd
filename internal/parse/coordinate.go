package parse

// Parser parses coordinates against a configured bounding box.
type Parser struct {
	bounds Bounds
}

func New(bounds Bounds) *Parser {
	return &Parser{bounds: bounds}
}

func (p *Parser) Bounds() Bounds { return p.bounds }

// Latitude parses raw and checks it against the latitude range.
func (p *Parser) Latitude(raw string) (float64, bool) {
	v, ok := Float(raw)
	if !ok {
		if s, present := Clean(raw); present {
			logger.Debug("unparseable latitude", "raw", s)
		}
		return 0, false
	}
	if !p.bounds.ContainsLat(v) {
		logger.Debug("latitude out of bounds", "raw", raw, "value", v, "bounds", p.bounds.String())
		return 0, false
	}
	return v, true
}

// Longitude parses raw and checks it against the longitude range.
func (p *Parser) Longitude(raw string) (float64, bool) {
	v, ok := Float(raw)
	if !ok {
		if s, present := Clean(raw); present {
			logger.Debug("unparseable longitude", "raw", s)
		}
		return 0, false
	}
	if !p.bounds.ContainsLon(v) {
		logger.Debug("longitude out of bounds", "raw", raw, "value", v, "bounds", p.bounds.String())
		return 0, false
	}
	return v, true
}

// Coordinate parses a latitude/longitude pair. When the pair only fits the
// box with its axes swapped, the swapped reading is returned.
func (p *Parser) Coordinate(latRaw, lonRaw string) (lat, lon float64, ok bool) {
	lat, latOK := p.Latitude(latRaw)
	lon, lonOK := p.Longitude(lonRaw)
	if latOK && lonOK {
		return lat, lon, true
	}
	a, aOK := Float(latRaw)
	b, bOK := Float(lonRaw)
	if aOK && bOK && p.bounds.Contains(b, a) {
		logger.Debug("swapped coordinate axes", "lat_raw", latRaw, "lon_raw", lonRaw)
		return b, a, true
	}
	return 0, 0, false
}
