package models

import "radarsync/internal/keys"

// Metadata holds the descriptive, optional attributes of a radar location.
// An empty string or nil pointer means the value is absent.
type Metadata struct {
	Highway            string   `json:"highway,omitempty"`
	Region             string   `json:"region,omitempty"`
	Municipality       string   `json:"municipality,omitempty"`
	DistanceAlongRoute *float64 `json:"distanceAlongRoute,omitempty"`
	RadarKind          string   `json:"radarKind,omitempty"`
	Direction          string   `json:"direction,omitempty"`
	Status             string   `json:"status,omitempty"`
	Operator           string   `json:"operator,omitempty"`
	License            string   `json:"license,omitempty"`
	Attribution        string   `json:"attribution,omitempty"`
}

// Populated counts the metadata values that are present.
func (m Metadata) Populated() int {
	n := 0
	for _, s := range []string{
		m.Highway, m.Region, m.Municipality, m.RadarKind,
		m.Direction, m.Status, m.Operator, m.License, m.Attribution,
	} {
		if s != "" {
			n++
		}
	}
	if m.DistanceAlongRoute != nil {
		n++
	}
	return n
}

// Fields is the optional part of an observation: metadata plus the speed
// limits the source reported.
type Fields struct {
	Metadata
	SpeedLimitLight *int `json:"speedLimitLight,omitempty"`
	SpeedLimitHeavy *int `json:"speedLimitHeavy,omitempty"`
}

// Populated counts present values, speeds included.
func (f Fields) Populated() int {
	n := f.Metadata.Populated()
	if f.SpeedLimitLight != nil {
		n++
	}
	if f.SpeedLimitHeavy != nil {
		n++
	}
	return n
}

// RawObservation is one normalized row produced by a source adapter during a
// single ingestion run. It is never persisted as is.
type RawObservation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    Source  `json:"source"`
	Fields    Fields  `json:"fields"`
}

// Key returns the coordinate identity of the observation.
func (o RawObservation) Key() keys.Coordinate {
	return keys.For(o.Latitude, o.Longitude)
}
