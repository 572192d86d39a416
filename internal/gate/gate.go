// Package gate serializes mutations per match: one umpire operation holds a
// match at a time, operations on distinct matches never block each other.
package gate

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type MatchGate struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *MatchGate {
	return &MatchGate{entries: make(map[string]*entry)}
}

// Acquire blocks until the caller holds the match's lock and returns the
// release func. Waiters queue in lock-acquisition order, which is the order
// the store's compare-and-swap then observes.
func (g *MatchGate) Acquire(matchID string) func() {
	g.mu.Lock()
	e, ok := g.entries[matchID]
	if !ok {
		e = &entry{}
		g.entries[matchID] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		g.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(g.entries, matchID)
		}
		g.mu.Unlock()
	}
}

// Held reports how many matches currently have live lock entries.
func (g *MatchGate) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
