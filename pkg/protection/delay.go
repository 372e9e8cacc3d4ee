package protection

import (
	"sync"
	"time"

	"github.com/mev-shield/tx-protection-engine/pkg/types"
)

// Base delays per threat type for the delay strategy, in seconds.
const (
	sandwichBaseDelay  = 30 * time.Second
	frontrunBaseDelay  = 15 * time.Second
	arbitrageBaseDelay = 5 * time.Second
)

// RetryDelay computes how long a delayed swap must wait: the per-threat base
// plus one second per 100bp of score.
func RetryDelay(threat types.ThreatType, scoreBp uint64) time.Duration {
	var base time.Duration
	switch threat {
	case types.ThreatSandwich:
		base = sandwichBaseDelay
	case types.ThreatFrontrun:
		base = frontrunBaseDelay
	case types.ThreatArbitrage:
		base = arbitrageBaseDelay
	default:
		base = arbitrageBaseDelay
	}
	return base + time.Duration(scoreBp/100)*time.Second
}

// DelayBook records per-feed retry-not-before timestamps for the delay
// strategy. Retry scheduling is caller-driven; the book only remembers the
// earliest time a retry may be accepted.
type DelayBook struct {
	mu        sync.Mutex
	notBefore map[string]time.Time
}

// NewDelayBook creates an empty delay book.
func NewDelayBook() *DelayBook {
	return &DelayBook{notBefore: make(map[string]time.Time)}
}

// Set records the retry-not-before time for a feed.
func (d *DelayBook) Set(feedID string, t time.Time) {
	d.mu.Lock()
	d.notBefore[feedID] = t
	d.mu.Unlock()
}

// Pending returns the recorded not-before time for the feed if it is still
// in the future relative to now.
func (d *DelayBook) Pending(feedID string, now time.Time) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.notBefore[feedID]
	if !ok {
		return time.Time{}, false
	}
	if !t.After(now) {
		delete(d.notBefore, feedID)
		return time.Time{}, false
	}
	return t, true
}
