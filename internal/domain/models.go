package domain

import (
	"time"
)

type MatchStatus string

const (
	StatusScheduled  MatchStatus = "scheduled"
	StatusInProgress MatchStatus = "in_progress"
	StatusCompleted  MatchStatus = "completed"
	StatusAbandoned  MatchStatus = "abandoned"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Terminal reports whether the match is frozen: no further roster, score or
// stat mutation is accepted once a match reaches a terminal status.
func (s MatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// CanTransitionTo encodes the lifecycle: Scheduled → InProgress → Completed,
// with Abandoned reachable from Scheduled or InProgress. Never backward.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusInProgress || next == StatusAbandoned
	case StatusInProgress:
		return next == StatusInProgress || next == StatusCompleted || next == StatusAbandoned
	}
	return false
}

// Metrics maps a scoring dimension or stat name to its accumulated value.
type Metrics map[string]int64

func (m Metrics) Clone() Metrics {
	if m == nil {
		return Metrics{}
	}
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type Match struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"owner_id"`
	Status     MatchStatus `json:"status"`
	ScoreState Metrics     `json:"score_state"`
	Version    int64       `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type PlayerStat struct {
	MatchID   string    `json:"match_id"`
	PlayerID  string    `json:"player_id"`
	Metrics   Metrics   `json:"metrics"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoreUpdate is the unit of work for a score mutation.
type ScoreUpdate struct {
	Delta           Metrics
	PlayerStatDelta map[string]Metrics
	ExpectedVersion *int64
	ClientRequestID string
}

// MatchSummary is the list-view projection of a match.
type MatchSummary struct {
	ID         string      `json:"id"`
	Status     MatchStatus `json:"status"`
	Version    int64       `json:"version"`
	ScoreTotal int64       `json:"score_total"`
	RosterSize int         `json:"roster_size"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
