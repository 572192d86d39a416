package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchStatusTransitions(t *testing.T) {
	tests := []struct {
		from    MatchStatus
		to      MatchStatus
		allowed bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusAbandoned, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusAbandoned, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusAbandoned, false},
		{StatusAbandoned, StatusInProgress, false},
		{StatusAbandoned, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestMatchStatusTerminal(t *testing.T) {
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusAbandoned.Terminal())
}

func TestMatchStateRosterAndDirtyTracking(t *testing.T) {
	state := NewMatchState(Match{ID: "m1"}, []PlayerStat{
		{MatchID: "m1", PlayerID: "p2", Metrics: Metrics{"runs": 1}},
		{MatchID: "m1", PlayerID: "p1", Metrics: Metrics{}},
	})

	assert.Equal(t, []string{"p1", "p2"}, state.Roster())
	assert.True(t, state.HasPlayer("p1"))
	assert.False(t, state.HasPlayer("p3"))
	assert.Empty(t, state.DirtyStats())
	assert.False(t, state.MatchDirty())

	state.PutStat(PlayerStat{MatchID: "m1", PlayerID: "p3", Metrics: Metrics{}})
	state.PutStat(PlayerStat{MatchID: "m1", PlayerID: "p1", Metrics: Metrics{"runs": 4}})

	assert.Equal(t, []string{"p1", "p3"}, state.DirtyStats())
	assert.True(t, state.HadPlayer("p1"))
	assert.False(t, state.HadPlayer("p3"))

	snap := state.Snapshot()
	assert.Equal(t, []string{"p1", "p2", "p3"}, snap.Roster)

	stat, ok := snap.Stat("p1")
	assert.True(t, ok)
	assert.Equal(t, int64(4), stat.Metrics["runs"])

	_, ok = snap.Stat("p9")
	assert.False(t, ok)
}
