package models

import (
	"time"

	"radarsync/internal/keys"
)

// CanonicalRecord is the persisted, deduplicated representation of a single
// physical radar location.
//
// SpeedLight/SpeedHeavy are the effective values shown to users. They equal
// OriginalSpeedLight/OriginalSpeedHeavy unless a crowd vote majority promoted a
// different value.
type CanonicalRecord struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Source    Source  `json:"source"`
	Metadata

	OriginalSpeedLight *int `json:"originalSpeedLight,omitempty"`
	OriginalSpeedHeavy *int `json:"originalSpeedHeavy,omitempty"`
	SpeedLight         *int `json:"speedLight,omitempty"`
	SpeedHeavy         *int `json:"speedHeavy,omitempty"`

	ConfirmCount    int        `json:"confirmCount"`
	DenyCount       int        `json:"denyCount"`
	LastConfirmedAt *time.Time `json:"lastConfirmedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Active          bool       `json:"active"`
}

func (r CanonicalRecord) Key() keys.Coordinate {
	return keys.For(r.Latitude, r.Longitude)
}

// Patch lists the columns of a CanonicalRecord that an update changes. Nil
// members are left untouched; there is no way to clear a populated value.
type Patch struct {
	Highway            *string
	Region             *string
	Municipality       *string
	DistanceAlongRoute *float64
	RadarKind          *string
	Direction          *string
	Status             *string
	Operator           *string
	License            *string
	Attribution        *string

	OriginalSpeedLight *int
	OriginalSpeedHeavy *int
	SpeedLight         *int
	SpeedHeavy         *int

	ConfirmCount    *int
	LastConfirmedAt *time.Time
	Active          *bool
}

// Changes names the members set on the patch, in column order.
func (p Patch) Changes() []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(p.Highway != nil, "highway")
	add(p.Region != nil, "region")
	add(p.Municipality != nil, "municipality")
	add(p.DistanceAlongRoute != nil, "distance_along_route")
	add(p.RadarKind != nil, "radar_kind")
	add(p.Direction != nil, "direction")
	add(p.Status != nil, "status")
	add(p.Operator != nil, "operator")
	add(p.License != nil, "license")
	add(p.Attribution != nil, "attribution")
	add(p.OriginalSpeedLight != nil, "original_speed_light")
	add(p.OriginalSpeedHeavy != nil, "original_speed_heavy")
	add(p.SpeedLight != nil, "speed_light")
	add(p.SpeedHeavy != nil, "speed_heavy")
	add(p.ConfirmCount != nil, "confirm_count")
	add(p.LastConfirmedAt != nil, "last_confirmed_at")
	add(p.Active != nil, "active")
	return names
}

func (p Patch) Empty() bool { return len(p.Changes()) == 0 }

// Apply copies the set members of p onto r.
func (p Patch) Apply(r *CanonicalRecord) {
	setString(&r.Highway, p.Highway)
	setString(&r.Region, p.Region)
	setString(&r.Municipality, p.Municipality)
	setString(&r.RadarKind, p.RadarKind)
	setString(&r.Direction, p.Direction)
	setString(&r.Status, p.Status)
	setString(&r.Operator, p.Operator)
	setString(&r.License, p.License)
	setString(&r.Attribution, p.Attribution)
	if p.DistanceAlongRoute != nil {
		v := *p.DistanceAlongRoute
		r.DistanceAlongRoute = &v
	}
	setInt(&r.OriginalSpeedLight, p.OriginalSpeedLight)
	setInt(&r.OriginalSpeedHeavy, p.OriginalSpeedHeavy)
	setInt(&r.SpeedLight, p.SpeedLight)
	setInt(&r.SpeedHeavy, p.SpeedHeavy)
	if p.ConfirmCount != nil {
		r.ConfirmCount = *p.ConfirmCount
	}
	if p.LastConfirmedAt != nil {
		t := *p.LastConfirmedAt
		r.LastConfirmedAt = &t
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst **int, v *int) {
	if v != nil {
		n := *v
		*dst = &n
	}
}
