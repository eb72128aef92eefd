// Package tally aggregates crowd speed votes for a record.
package tally

import (
	"sort"

	"radarsync/internal/models"
)

// DefaultThreshold is the number of identical votes that makes a crowd value
// authoritative.
const DefaultThreshold = 10

// Result is the winning light and heavy values and their vote counts.
type Result struct {
	BestLight      *int `json:"bestLight,omitempty"`
	BestLightVotes int  `json:"bestLightVotes"`
	BestHeavy      *int `json:"bestHeavy,omitempty"`
	BestHeavyVotes int  `json:"bestHeavyVotes"`
	Voters         int  `json:"voters"`
}

// Tally counts votes per distinct value, light and heavy separately. The most
// voted value wins; ties go to the value that was voted first. Votes are
// ordered by VotedAt (then UserID) before counting, so the result does not
// depend on the order the store returned them in.
func Tally(votes []models.SpeedVote) Result {
	ordered := make([]models.SpeedVote, len(votes))
	copy(ordered, votes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].VotedAt.Equal(ordered[j].VotedAt) {
			return ordered[i].VotedAt.Before(ordered[j].VotedAt)
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	var light, heavy counter
	for _, v := range ordered {
		if v.SpeedLight != nil {
			light.add(*v.SpeedLight)
		}
		if v.SpeedHeavy != nil {
			heavy.add(*v.SpeedHeavy)
		}
	}

	r := Result{Voters: len(ordered)}
	r.BestLight, r.BestLightVotes = light.best()
	r.BestHeavy, r.BestHeavyVotes = heavy.best()
	return r
}

// PromotedLight returns the crowd light value when it reached threshold.
func (r Result) PromotedLight(threshold int) (int, bool) {
	if r.BestLight == nil || r.BestLightVotes < threshold {
		return 0, false
	}
	return *r.BestLight, true
}

// PromotedHeavy returns the crowd heavy value when it reached threshold.
func (r Result) PromotedHeavy(threshold int) (int, bool) {
	if r.BestHeavy == nil || r.BestHeavyVotes < threshold {
		return 0, false
	}
	return *r.BestHeavy, true
}

type counter struct {
	counts map[int]int
	order  []int
}

func (c *counter) add(v int) {
	if c.counts == nil {
		c.counts = map[int]int{}
	}
	if _, seen := c.counts[v]; !seen {
		c.order = append(c.order, v)
	}
	c.counts[v]++
}

func (c *counter) best() (*int, int) {
	var (
		winner *int
		votes  int
	)
	for _, v := range c.order {
		if n := c.counts[v]; n > votes {
			value := v
			winner, votes = &value, n
		}
	}
	return winner, votes
}
