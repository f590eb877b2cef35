// Package backoff computes reconnect delays from the reconnect history.
// Delays grow as BaseInterval * PenaltyFactor^attempts and the attempt
// count decays to zero after a long quiet period.
package backoff

import (
	"math"
	"time"

	"github.com/orchestra-mcp/realtime/src/types"
)

// Policy holds the backoff parameters.
type Policy struct {
	BaseInterval  time.Duration
	PenaltyFactor float64
	// DecayAfter resets the attempt count when the previous failure is older.
	DecayAfter time.Duration
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		BaseInterval:  time.Second,
		PenaltyFactor: 2,
		DecayAfter:    time.Hour,
	}
}

// Record returns s updated for a failure observed at now: the attempt count
// is reset if the previous failure is older than DecayAfter, then incremented.
func Record(p Policy, s types.ReconnectState, now time.Time) types.ReconnectState {
	if !s.LastTime.IsZero() && now.Sub(s.LastTime) > p.DecayAfter {
		s.Attempts = 0
	}
	s.Attempts++
	s.LastTime = now
	return s
}

// NextDelay returns the wait before the next reconnect for s.
func NextDelay(p Policy, s types.ReconnectState) time.Duration {
	delay := math.Pow(p.PenaltyFactor, float64(s.Attempts)) * float64(p.BaseInterval)
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
