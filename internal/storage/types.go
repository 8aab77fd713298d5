package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retention   time.Duration // prune runs older than this; 0 means 7 days
}

// RunRecord is one job fire.
// Keep it compact and schema-stable.
type RunRecord struct {
	ID       string // uuid
	Job      string
	Started  time.Time
	Duration time.Duration
	Error    string
}
