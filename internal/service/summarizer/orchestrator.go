package summarizer

import (
	"context"
	"math"
	"time"

	"meetsumgo/internal/config"
	"meetsumgo/internal/models"
)

// runState drives the orchestration loop. Terminal states are stateSucceeded
// and stateFailed.
type runState int

const (
	stateAttempting runState = iota
	stateRetrying
	stateSwitching
	stateSucceeded
	stateFailed
)

// RunResult is the orchestrator's terminal success output.
type RunResult struct {
	Completion        *CompletionResult
	ServedBy          models.ModelTier
	FallbackTriggered bool
	AttemptCount      int
	Attempts          []models.AttemptRecord
}

// Orchestrator drives up to maxRetries completion attempts across both
// tiers: single-hop switch from primary to fallback on the first retryable
// failure, exponential backoff between retries on the fallback tier.
type Orchestrator struct {
	completer Completer
	cfg       config.FallbackConfig
	stats     *FallbackStats

	// sleep is swappable so tests do not wait out real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(completer Completer, cfg config.FallbackConfig, stats *FallbackStats) *Orchestrator {
	return &Orchestrator{
		completer: completer,
		cfg:       cfg,
		stats:     stats,
		sleep:     sleepCtx,
	}
}

// Run executes the retry/fallback state machine for one generation. The loop
// is strictly sequential: one in-flight completion call at a time.
func (o *Orchestrator) Run(ctx context.Context, initial models.ModelTier, pkg *models.PromptPackage) (*RunResult, error) {
	var (
		current    = initial
		state      = stateAttempting
		attempt    int
		completion *CompletionResult
		lastErr    error
		attempts   = make([]models.AttemptRecord, 0, o.cfg.MaxRetries)
	)

	for {
		switch state {
		case stateAttempting:
			attempt++
			start := time.Now()
			result, err := o.completer.Complete(ctx, current, pkg)
			latency := time.Since(start)

			if err == nil {
				o.stats.RecordAttempt(current, true, latency)
				attempts = append(attempts, models.AttemptRecord{Model: current, Success: true, Latency: latency})
				completion = result
				state = stateSucceeded
				continue
			}

			pe := Classify(err)
			o.stats.RecordAttempt(current, false, latency)
			attempts = append(attempts, models.AttemptRecord{
				Model:     current,
				Latency:   latency,
				ErrorKind: string(pe.Kind),
			})
			lastErr = pe

			switch {
			case !pe.Kind.Retryable():
				// No point spending attempts on auth/validation failures.
				state = stateFailed
			case ctx.Err() != nil:
				// Cancellation aborts without starting a new attempt.
				state = stateFailed
			case attempt >= o.cfg.MaxRetries:
				lastErr = &RetriesExhaustedError{Attempts: attempt, Last: pe}
				state = stateFailed
			case current == models.TierPrimary:
				state = stateSwitching
			default:
				state = stateRetrying
			}

		case stateSwitching:
			// Single-hop switch; never alternates back to primary.
			o.stats.RecordRetry()
			current = models.TierFallback
			state = stateAttempting

		case stateRetrying:
			o.stats.RecordRetry()
			if err := o.sleep(ctx, o.backoffDelay(attempt)); err != nil {
				lastErr = WrapError(KindTimeout, err, "generation canceled during backoff")
				state = stateFailed
				continue
			}
			state = stateAttempting

		case stateSucceeded:
			o.stats.RecordServed(current)
			return &RunResult{
				Completion:        completion,
				ServedBy:          current,
				FallbackTriggered: current != initial,
				AttemptCount:      attempt,
				Attempts:          attempts,
			}, nil

		case stateFailed:
			return nil, lastErr
		}
	}
}

// backoffDelay computes min(baseDelay * multiplier^(attempt-1), maxDelay).
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	delayMs := float64(o.cfg.BaseDelayMs) * math.Pow(o.cfg.BackoffMultiplier, float64(attempt-1))
	if maxMs := float64(o.cfg.MaxDelayMs); delayMs > maxMs {
		delayMs = maxMs
	}
	return time.Duration(delayMs) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
