package summarizer

import (
	"sync"
	"time"

	"meetsumgo/internal/models"
)

type tierCounters struct {
	attempts     int64
	successes    int64
	latencySumMs int64
}

// FallbackStats aggregates attempt counters across concurrent generations.
// It is an explicit handle passed into the orchestrator, not a package
// global; all access goes through the mutex. Counters persist for the
// process lifetime until an operator reset.
type FallbackStats struct {
	mu             sync.Mutex
	tiers          map[models.ModelTier]*tierCounters
	totalRetries   int64
	served         int64
	fallbackServed int64
}

func NewFallbackStats() *FallbackStats {
	return &FallbackStats{tiers: map[models.ModelTier]*tierCounters{
		models.TierPrimary:  {},
		models.TierFallback: {},
	}}
}

// RecordAttempt tracks one completion attempt for a tier.
func (s *FallbackStats) RecordAttempt(tier models.ModelTier, success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.tiers[tier]
	if !ok {
		c = &tierCounters{}
		s.tiers[tier] = c
	}
	c.attempts++
	c.latencySumMs += latency.Milliseconds()
	if success {
		c.successes++
	}
}

// RecordRetry counts one retry decision (switch or backoff).
func (s *FallbackStats) RecordRetry() {
	s.mu.Lock()
	s.totalRetries++
	s.mu.Unlock()
}

// RecordServed tracks which tier ultimately served a generation.
func (s *FallbackStats) RecordServed(tier models.ModelTier) {
	s.mu.Lock()
	s.served++
	if tier == models.TierFallback {
		s.fallbackServed++
	}
	s.mu.Unlock()
}

// Snapshot returns a consistent read of all counters.
func (s *FallbackStats) Snapshot() models.FallbackStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	perModel := make(map[models.ModelTier]models.TierStats, len(s.tiers))
	for tier, c := range s.tiers {
		ts := models.TierStats{Attempts: c.attempts, Successes: c.successes}
		if c.attempts > 0 {
			ts.SuccessRate = float64(c.successes) / float64(c.attempts)
			ts.AvgLatencyMs = float64(c.latencySumMs) / float64(c.attempts)
		}
		perModel[tier] = ts
	}
	snap := models.FallbackStatistics{
		PerModel:     perModel,
		TotalRetries: s.totalRetries,
	}
	if s.served > 0 {
		snap.FallbackUtilizationRate = float64(s.fallbackServed) / float64(s.served)
	}
	return snap
}

// Reset clears all counters. Operator action only.
func (s *FallbackStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tier := range s.tiers {
		s.tiers[tier] = &tierCounters{}
	}
	s.totalRetries = 0
	s.served = 0
	s.fallbackServed = 0
}
