package config

import (
	"fmt"
	"strings"

	"tempo/pkg/cronplan"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Jobs      []JobConfig     `json:"jobs"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Sample  LoggingSample `json:"sample"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingSample struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the execution backend.
//
// Loops is the number of shared run loops jobs are spread over; 0 means
// one per CPU.
type SchedulerConfig struct {
	Loops int `json:"loops"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// JobConfig defines one scheduled job.
//
// Schedule accepts the forms cronplan understands: a cron expression
// ("*/5 * * * *", "@hourly", "@every 55m") or an interval duration
// ("90s", "interval:10m").
type JobConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Command  string `json:"command"`
	// Timeout is a Go duration string bounding one run; "0s" disables.
	Timeout string `json:"timeout,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"` // omitted means enabled
}

func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// Validate rejects configs that cannot be scheduled. It is used both at
// startup and before committing a hot reload.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, j := range c.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("jobs[%d]: name required", i)
		}
		if seen[name] {
			return fmt.Errorf("jobs[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
		if strings.TrimSpace(j.Command) == "" {
			return fmt.Errorf("jobs[%d] (%s): command required", i, name)
		}
		if _, err := cronplan.Parse(j.Schedule); err != nil {
			return fmt.Errorf("jobs[%d] (%s): %w", i, name, err)
		}
		if _, err := ParseDurationField(fmt.Sprintf("jobs[%d].timeout", i), j.Timeout); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}
