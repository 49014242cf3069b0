package summarizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetsumgo/internal/config"
	"meetsumgo/internal/models"
)

// scriptedCompleter replays one outcome per attempt, in order.
type scriptedCompleter struct {
	script []error
	calls  []models.ModelTier
}

func (c *scriptedCompleter) Complete(ctx context.Context, tier models.ModelTier, pkg *models.PromptPackage) (*CompletionResult, error) {
	idx := len(c.calls)
	c.calls = append(c.calls, tier)
	if idx < len(c.script) && c.script[idx] != nil {
		return nil, c.script[idx]
	}
	return &CompletionResult{
		Content:      "# Summary\n\nAll good.",
		InputTokens:  1200,
		OutputTokens: 300,
		ModelName:    "fake-" + string(tier),
	}, nil
}

func newTestOrchestrator(completer Completer, cfg config.FallbackConfig) (*Orchestrator, *FallbackStats, *[]time.Duration) {
	stats := NewFallbackStats()
	orch := NewOrchestrator(completer, cfg, stats)
	var delays []time.Duration
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return orch, stats, &delays
}

func testPackage() *models.PromptPackage {
	return &models.PromptPackage{
		Messages:        []models.PromptMessage{{Role: models.RoleUser, Content: "summarize"}},
		MaxOutputTokens: 512,
	}
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	completer := &scriptedCompleter{}
	orch, stats, delays := newTestOrchestrator(completer, testFallbackConfig())

	res, err := orch.Run(context.Background(), models.TierPrimary, testPackage())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.AttemptCount != 1 || res.FallbackTriggered || res.ServedBy != models.TierPrimary {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(*delays) != 0 {
		t.Fatalf("no backoff expected, got %v", *delays)
	}
	snap := stats.Snapshot()
	if snap.PerModel[models.TierPrimary].Attempts != 1 || snap.PerModel[models.TierPrimary].Successes != 1 {
		t.Fatalf("stats not recorded: %+v", snap)
	}
}

func TestPrimaryFailureSwitchesToFallbackOnce(t *testing.T) {
	unavailable := NewError(KindServiceUnavailable, "upstream overloaded")
	completer := &scriptedCompleter{script: []error{unavailable, nil}}
	orch, stats, _ := newTestOrchestrator(completer, testFallbackConfig())

	res, err := orch.Run(context.Background(), models.TierPrimary, testPackage())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.AttemptCount != 2 {
		t.Fatalf("attemptCount = %d, want 2", res.AttemptCount)
	}
	if !res.FallbackTriggered || res.ServedBy != models.TierFallback {
		t.Fatalf("fallback not triggered: %+v", res)
	}
	if completer.calls[0] != models.TierPrimary || completer.calls[1] != models.TierFallback {
		t.Fatalf("unexpected tier sequence: %v", completer.calls)
	}
	snap := stats.Snapshot()
	if snap.TotalRetries != 1 {
		t.Fatalf("totalRetries = %d, want 1", snap.TotalRetries)
	}
	if snap.FallbackUtilizationRate != 1.0 {
		t.Fatalf("utilization = %f, want 1.0", snap.FallbackUtilizationRate)
	}
}

func TestNonRetryableFailsAfterSingleAttempt(t *testing.T) {
	authErr := NewError(KindAuth, "bad credentials")
	completer := &scriptedCompleter{script: []error{authErr, authErr, authErr}}
	orch, _, delays := newTestOrchestrator(completer, testFallbackConfig())

	_, err := orch.Run(context.Background(), models.TierPrimary, testPackage())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(completer.calls) != 1 {
		t.Fatalf("attempts = %d, want 1", len(completer.calls))
	}
	if KindOf(err) != KindAuth {
		t.Fatalf("kind = %s, want AUTHENTICATION_ERROR", KindOf(err))
	}
	if len(*delays) != 0 {
		t.Fatalf("no backoff expected for non-retryable, got %v", *delays)
	}
}

func TestRetriesExhaustedAcrossBothTiers(t *testing.T) {
	unavailable := NewError(KindServiceUnavailable, "upstream overloaded")
	completer := &scriptedCompleter{script: []error{unavailable, unavailable, unavailable, unavailable}}
	cfg := testFallbackConfig()
	cfg.MaxRetries = 3
	orch, _, _ := newTestOrchestrator(completer, cfg)

	_, err := orch.Run(context.Background(), models.TierPrimary, testPackage())
	if err == nil {
		t.Fatal("expected error")
	}
	var exhausted *RetriesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetriesExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", exhausted.Attempts)
	}
	if KindOf(err) != KindServiceUnavailable {
		t.Fatalf("last kind = %s", KindOf(err))
	}
	// Attempt 1 on primary, attempts 2 and 3 on fallback.
	want := []models.ModelTier{models.TierPrimary, models.TierFallback, models.TierFallback}
	for i, tier := range want {
		if completer.calls[i] != tier {
			t.Fatalf("call %d on %s, want %s", i, completer.calls[i], tier)
		}
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := testFallbackConfig()
	cfg.BaseDelayMs = 500
	cfg.BackoffMultiplier = 10
	cfg.MaxDelayMs = 2000
	orch := NewOrchestrator(nil, cfg, NewFallbackStats())

	if d := orch.backoffDelay(1); d != 500*time.Millisecond {
		t.Fatalf("delay(1) = %v", d)
	}
	if d := orch.backoffDelay(2); d != 2*time.Second {
		t.Fatalf("delay(2) should cap at max: %v", d)
	}
	if d := orch.backoffDelay(5); d != 2*time.Second {
		t.Fatalf("delay(5) should cap at max: %v", d)
	}
}

func TestCancellationDuringBackoffAborts(t *testing.T) {
	unavailable := NewError(KindServiceUnavailable, "upstream overloaded")
	// Failures land on the fallback tier so the orchestrator backs off.
	completer := &scriptedCompleter{script: []error{unavailable, unavailable, unavailable}}
	cfg := testFallbackConfig()
	cfg.MaxRetries = 5
	orch, _, _ := newTestOrchestrator(completer, cfg)
	orch.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := orch.Run(context.Background(), models.TierFallback, testPackage())
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(completer.calls) != 1 {
		t.Fatalf("no new attempt should start after cancellation, got %d", len(completer.calls))
	}
}

func TestStatsResetClearsCounters(t *testing.T) {
	stats := NewFallbackStats()
	stats.RecordAttempt(models.TierPrimary, false, 100*time.Millisecond)
	stats.RecordRetry()
	stats.RecordServed(models.TierFallback)

	stats.Reset()
	snap := stats.Snapshot()
	if snap.TotalRetries != 0 || snap.FallbackUtilizationRate != 0 {
		t.Fatalf("reset incomplete: %+v", snap)
	}
	if snap.PerModel[models.TierPrimary].Attempts != 0 {
		t.Fatalf("tier counters survived reset: %+v", snap)
	}
}
