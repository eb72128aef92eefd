package models

import "time"

// SpeedVote is one user's proposed correction for a record. There is at most
// one vote per (UserID, RecordID); voting again replaces the previous vote.
type SpeedVote struct {
	UserID     string    `json:"userId"`
	RecordID   string    `json:"recordId"`
	SpeedLight *int      `json:"speedLight,omitempty"`
	SpeedHeavy *int      `json:"speedHeavy,omitempty"`
	VotedAt    time.Time `json:"votedAt"`
}
