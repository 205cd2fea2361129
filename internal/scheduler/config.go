package scheduler

import "time"

// Config controls billing run cadence. Values refresh from the billing
// config holder on every tick, so a hot-reloaded file takes effect
// without a restart.
type Config struct {
	RunInterval time.Duration
	RunJitter   time.Duration
	RunTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Hour
	}
	if c.RunJitter < 0 {
		c.RunJitter = 0
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Minute
	}
	return c
}
