package scheduler

import (
	"time"
)

// Config controls scheduler intervals and per-job deadlines.
type Config struct {
	RunInterval     time.Duration
	JobTimeout      time.Duration
	EnabledJobs     []string
	ReminderLogging bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Hour,
		JobTimeout:      30 * time.Second,
		ReminderLogging: true,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
