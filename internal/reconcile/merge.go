package reconcile

import (
	"time"

	"radarsync/internal/models"
	"radarsync/internal/tally"
)

// Merge computes the changes an observation brings to an existing record.
//
// Precedence:
//   - metadata is only ever replaced by a non-empty incoming value;
//   - the original speeds take the freshest official value; a user upload
//     only sets them on records that no official source has created;
//   - the effective speeds follow the crowd value once its vote count reached
//     threshold, and the reported value otherwise;
//   - observing a deactivated record reactivates it.
//
// A non-empty patch also confirms the record once more. An empty patch means
// the observation matches what is stored and nothing must be written.
func Merge(existing models.CanonicalRecord, obs models.RawObservation, votes tally.Result, threshold int, now time.Time) models.Patch {
	var p models.Patch
	in := obs.Fields

	p.Highway = changedString(existing.Highway, in.Highway)
	p.Region = changedString(existing.Region, in.Region)
	p.Municipality = changedString(existing.Municipality, in.Municipality)
	p.RadarKind = changedString(existing.RadarKind, in.RadarKind)
	p.Direction = changedString(existing.Direction, in.Direction)
	p.Status = changedString(existing.Status, in.Status)
	p.Operator = changedString(existing.Operator, in.Operator)
	p.License = changedString(existing.License, in.License)
	p.Attribution = changedString(existing.Attribution, in.Attribution)
	if in.DistanceAlongRoute != nil && (existing.DistanceAlongRoute == nil || *existing.DistanceAlongRoute != *in.DistanceAlongRoute) {
		d := *in.DistanceAlongRoute
		p.DistanceAlongRoute = &d
	}

	reportedLight, reportedHeavy := existing.OriginalSpeedLight, existing.OriginalSpeedHeavy
	if authoritative(existing, obs) {
		p.OriginalSpeedLight = changedInt(existing.OriginalSpeedLight, in.SpeedLimitLight)
		p.OriginalSpeedHeavy = changedInt(existing.OriginalSpeedHeavy, in.SpeedLimitHeavy)
		if in.SpeedLimitLight != nil {
			reportedLight = in.SpeedLimitLight
		}
		if in.SpeedLimitHeavy != nil {
			reportedHeavy = in.SpeedLimitHeavy
		}
	}
	p.SpeedLight = effective(existing.SpeedLight, reportedLight, votes.PromotedLight, threshold)
	p.SpeedHeavy = effective(existing.SpeedHeavy, reportedHeavy, votes.PromotedHeavy, threshold)

	if !existing.Active {
		p.Active = boolPtr(true)
	}

	if !p.Empty() {
		confirms := existing.ConfirmCount + 1
		p.ConfirmCount = &confirms
		t := now
		p.LastConfirmedAt = &t
	}
	return p
}

// Promote re-applies the crowd rule to the effective speeds alone, after a
// vote changed the tally. When the crowd no longer holds a value the
// effective speed falls back to the original one.
func Promote(existing models.CanonicalRecord, votes tally.Result, threshold int) models.Patch {
	var p models.Patch
	p.SpeedLight = effective(existing.SpeedLight, existing.OriginalSpeedLight, votes.PromotedLight, threshold)
	p.SpeedHeavy = effective(existing.SpeedHeavy, existing.OriginalSpeedHeavy, votes.PromotedHeavy, threshold)
	return p
}

// effective picks the crowd value when promoted, else the reported one, and
// returns it only when it differs from current.
func effective(current, reported *int, promoted func(int) (int, bool), threshold int) *int {
	if v, ok := promoted(threshold); ok {
		return changedInt(current, &v)
	}
	return changedInt(current, reported)
}

// authoritative reports whether obs may set the reported speeds of existing.
func authoritative(existing models.CanonicalRecord, obs models.RawObservation) bool {
	return obs.Source.Official() || !existing.Source.Official()
}

func changedString(current, incoming string) *string {
	if incoming == "" || incoming == current {
		return nil
	}
	v := incoming
	return &v
}

func changedInt(current, incoming *int) *int {
	if incoming == nil || (current != nil && *current == *incoming) {
		return nil
	}
	v := *incoming
	return &v
}

func boolPtr(b bool) *bool { return &b }
