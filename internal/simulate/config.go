// Package simulate drives a running CryptoHeroes server with concurrent
// battles and checks that the leaderboard agrees with what was played.
package simulate

import (
	"runtime"
	"time"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL string        // Base URL of the service
	Battles int           // Number of battles to play
	Players int           // Number of distinct players
	Workers int           // Number of concurrent clients
	Rate    float64       // Battles per second, 0 for unlimited
	Timeout time.Duration // HTTP request timeout
	Settle  time.Duration // How long to wait for results to reach the leaderboard
	Seed    uint64        // Seed for character and player selection
	Verbose bool
}

// DefaultConfig returns a Config for a local server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:9080",
		Battles: 1000,
		Players: 20,
		Workers: runtime.NumCPU() * 2,
		Timeout: 30 * time.Second,
		Settle:  time.Minute,
		Seed:    1,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Battles <= 0 {
		c.Battles = def.Battles
	}
	if c.Players <= 0 {
		c.Players = def.Players
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Settle <= 0 {
		c.Settle = def.Settle
	}
	return c
}

// Report summarizes a simulation run.
type Report struct {
	Battles    int
	Succeeded  int
	Duplicate  int
	Failed     int
	Wins       int
	Losses     int
	Draws      int
	Players    int
	Mismatches []string
	Duration   time.Duration
}

// OK reports whether every battle succeeded and the leaderboard matched.
func (r Report) OK() bool {
	return r.Failed == 0 && len(r.Mismatches) == 0
}
