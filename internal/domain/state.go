package domain

import "sort"

// MatchState is the aggregate a compare-and-swap mutator operates on: the
// match record plus every player stat row for it. Stat writes go through
// PutStat so the store knows which rows to persist and version-bump.
type MatchState struct {
	Match Match
	Stats map[string]PlayerStat

	dirty      map[string]bool
	loaded     map[string]bool
	matchDirty bool
}

func NewMatchState(match Match, stats []PlayerStat) *MatchState {
	s := &MatchState{
		Match:  match,
		Stats:  make(map[string]PlayerStat, len(stats)),
		dirty:  make(map[string]bool),
		loaded: make(map[string]bool, len(stats)),
	}
	for _, st := range stats {
		s.Stats[st.PlayerID] = st
		s.loaded[st.PlayerID] = true
	}
	return s
}

// HadPlayer reports whether the player's stat row existed before the current
// mutation started, as opposed to being enrolled by it.
func (s *MatchState) HadPlayer(playerID string) bool {
	return s.loaded[playerID]
}

func (s *MatchState) HasPlayer(playerID string) bool {
	_, ok := s.Stats[playerID]
	return ok
}

// Roster returns the enrolled player IDs in stable order.
func (s *MatchState) Roster() []string {
	roster := make([]string, 0, len(s.Stats))
	for id := range s.Stats {
		roster = append(roster, id)
	}
	sort.Strings(roster)
	return roster
}

// TouchMatch marks the match record itself as mutated. Versions are
// per record: only mutations that touch the match record (score, status)
// advance its version, while enrollment and stat-only updates advance the
// affected player stat's version instead.
func (s *MatchState) TouchMatch() {
	s.matchDirty = true
}

func (s *MatchState) MatchDirty() bool {
	return s.matchDirty
}

func (s *MatchState) PutStat(stat PlayerStat) {
	s.Stats[stat.PlayerID] = stat
	s.dirty[stat.PlayerID] = true
}

// DirtyStats returns the player IDs whose stats were written during the
// current mutation, in stable order.
func (s *MatchState) DirtyStats() []string {
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot is the wire/persisted form of a match state: what a caller gets
// back from any operation, and what the replay bookkeeping stores.
type Snapshot struct {
	Match  Match        `json:"match"`
	Roster []string     `json:"roster"`
	Stats  []PlayerStat `json:"stats"`
}

func (s *MatchState) Snapshot() Snapshot {
	snap := Snapshot{Match: s.Match, Roster: s.Roster()}
	snap.Stats = make([]PlayerStat, 0, len(s.Stats))
	for _, id := range snap.Roster {
		snap.Stats = append(snap.Stats, s.Stats[id])
	}
	return snap
}

// Stat returns the stat row for one player out of a snapshot.
func (s Snapshot) Stat(playerID string) (PlayerStat, bool) {
	for _, st := range s.Stats {
		if st.PlayerID == playerID {
			return st, true
		}
	}
	return PlayerStat{}, false
}
