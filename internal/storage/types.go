package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled     = errors.New("storage disabled")
	ErrNoOwnerScope = errors.New("storage: owner scope is required")
)

// Config configures storage.
//
// Driver values:
//   - "file": items/accounts JSON files next to Path plus a runs.jsonl history
//   - "sqlite": SQLite database file at Path
//   - "postgres": PostgreSQL reachable via DSN
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
	MaxConns    int32         // postgres only; 0 means pgx default
}

// RunRecord is one line of sweep history.
// Keep it compact and schema-stable.
type RunRecord struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Due        int       `json:"due"`
	Expired    int       `json:"expired"`
	Imminent   int       `json:"imminent"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}
