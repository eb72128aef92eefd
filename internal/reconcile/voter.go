package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"radarsync/internal/models"
	"radarsync/internal/store"
	"radarsync/internal/tally"
)

// ErrInvalidVote is returned for a vote without a usable speed.
var ErrInvalidVote = errors.New("reconcile: invalid vote")

const maxVoteSpeed = 200

// Voter records crowd votes and keeps effective speeds in line with them.
type Voter struct {
	store     store.Store
	threshold int
	now       func() time.Time
}

func NewVoter(s store.Store, threshold int) *Voter {
	if threshold <= 0 {
		threshold = tally.DefaultThreshold
	}
	return &Voter{store: s, threshold: threshold, now: time.Now}
}

// Cast stores v, replacing the user's previous vote on the record, then
// re-applies the crowd rule so a value that just reached the threshold
// becomes effective at once.
func (vt *Voter) Cast(ctx context.Context, v models.SpeedVote) (tally.Result, error) {
	if v.UserID == "" || v.RecordID == "" {
		return tally.Result{}, fmt.Errorf("%w: user and record are required", ErrInvalidVote)
	}
	if v.SpeedLight == nil && v.SpeedHeavy == nil {
		return tally.Result{}, fmt.Errorf("%w: no speed given", ErrInvalidVote)
	}
	for _, s := range []*int{v.SpeedLight, v.SpeedHeavy} {
		if s != nil && (*s <= 0 || *s > maxVoteSpeed) {
			return tally.Result{}, fmt.Errorf("%w: speed %d out of range", ErrInvalidVote, *s)
		}
	}
	if v.VotedAt.IsZero() {
		v.VotedAt = vt.now()
	}

	if err := vt.store.UpsertVote(ctx, v); err != nil {
		return tally.Result{}, fmt.Errorf("store vote: %w", err)
	}
	result, err := vt.Tally(ctx, v.RecordID)
	if err != nil {
		return tally.Result{}, err
	}

	rec, err := vt.store.FindByID(ctx, v.RecordID)
	if err != nil {
		return result, fmt.Errorf("load record %s: %w", v.RecordID, err)
	}
	p := Promote(*rec, result, vt.threshold)
	if p.Empty() {
		return result, nil
	}
	if err := vt.store.Update(ctx, rec.ID, p); err != nil {
		return result, fmt.Errorf("apply crowd value: %w", err)
	}
	logger.Info("crowd value applied", "id", rec.ID, "changes", p.Changes(),
		"best_light", result.BestLight, "best_light_votes", result.BestLightVotes)
	return result, nil
}

// Tally aggregates the votes of one record.
func (vt *Voter) Tally(ctx context.Context, recordID string) (tally.Result, error) {
	votes, err := vt.store.VotesFor(ctx, []string{recordID})
	if err != nil {
		return tally.Result{}, fmt.Errorf("read votes: %w", err)
	}
	return tally.Tally(votes[recordID]), nil
}
