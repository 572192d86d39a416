package constants

import "time"

const (
	RequestTimeout     = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
	ExternalAPITimeout = 10 * time.Second
)

const (
	// SQLite allows a single writer; the per-match gate already queues
	// writers, the pool just shouldn't fight the driver on top of that.
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// Applied request rows for a match are kept while it can still mutate and
	// for this long after it reaches a terminal status.
	AppliedRequestRetention = 24 * time.Hour

	MatchIDLength = 12

	ListMatchesLimit = 100
)
