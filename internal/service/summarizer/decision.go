package summarizer

import (
	"meetsumgo/internal/config"
	"meetsumgo/internal/models"
)

// DecisionContext is everything the engine may look at. The engine is a pure
// function of this value; no clocks, no randomness.
type DecisionContext struct {
	Style            models.SummaryStyle
	EstimatedTokens  int
	EstimatedCostUSD float64
	Urgency          models.Urgency
	ForceModel       models.ModelTier
	History          []models.GenerationOutcome

	PrimaryLatencyThresholdMs int64
}

// DecisionEngine selects which tier serves a request.
type DecisionEngine struct {
	strategy Strategy
	cfg      config.FallbackConfig
}

func NewDecisionEngine(cfg config.FallbackConfig) *DecisionEngine {
	return &DecisionEngine{strategy: StrategyByName(cfg.Strategy), cfg: cfg}
}

// Strategy exposes the active table for introspection.
func (e *DecisionEngine) Strategy() Strategy { return e.strategy }

// Reason codes carried on ModelDecision.
const (
	ReasonUserOverride     = "user_override"
	ReasonComplexContent   = "complex_content"
	ReasonStrategyPrimary  = "strategy_requires_primary"
	ReasonStrategyFallback = "strategy_fallback_suitable"
	ReasonSoftSignals      = "soft_signals"
	ReasonWeakSignal       = "soft_signal_below_threshold"
	ReasonDefault          = "default"
)

// minHistorySamples guards the history signal against tiny windows.
const minHistorySamples = 3

// SelectModel applies the decision order from the fallback policy: explicit
// override, complexity ceiling, strategy overrides, then accumulated soft
// signals. First match wins.
func (e *DecisionEngine) SelectModel(ctx DecisionContext) models.ModelDecision {
	switch ctx.ForceModel {
	case models.TierFallback:
		return models.ModelDecision{Model: models.TierFallback, Reason: ReasonUserOverride, Confidence: 1.0}
	case models.TierPrimary:
		return models.ModelDecision{Model: models.TierPrimary, Reason: ReasonUserOverride, Confidence: 1.0}
	}

	// Complexity overrides cost and speed preference.
	if ctx.EstimatedTokens > e.cfg.ComplexTokenCeiling {
		return models.ModelDecision{Model: models.TierPrimary, Reason: ReasonComplexContent, Confidence: 0.9}
	}

	if styleIn(ctx.Style, e.strategy.RequirePrimaryStyles) {
		return models.ModelDecision{Model: models.TierPrimary, Reason: ReasonStrategyPrimary, Confidence: 0.85}
	}
	if styleIn(ctx.Style, e.strategy.FallbackSuitableStyles) {
		return models.ModelDecision{Model: models.TierFallback, Reason: ReasonStrategyFallback, Confidence: 0.8}
	}

	var signals []string
	historySignal := false

	if e.strategy.ConsiderCost && ctx.EstimatedCostUSD > e.cfg.CostThresholdUSD {
		signals = append(signals, "cost_above_threshold")
	}
	if styleIn(ctx.Style, e.strategy.FallbackPreferredStyles) {
		signals = append(signals, "style_fallback_preferred")
	}
	if e.strategy.ConsiderLatency && ctx.Urgency == models.UrgencyHigh {
		signals = append(signals, "high_urgency")
	}
	if e.strategy.ConsiderHistory && historyLeansFallback(ctx) {
		signals = append(signals, "history_favors_fallback")
		historySignal = true
	}

	switch len(signals) {
	case 0:
		return models.ModelDecision{Model: models.TierPrimary, Reason: ReasonDefault, Confidence: 0.5}
	case 1:
		// One soft signal is not enough to leave the primary tier.
		return models.ModelDecision{
			Model:      models.TierPrimary,
			Reason:     ReasonWeakSignal,
			Confidence: 0.6,
			Signals:    signals,
		}
	}

	confidence := 0.5 + 0.15*float64(len(signals))
	if historySignal {
		confidence += 0.2
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return models.ModelDecision{
		Model:      models.TierFallback,
		Reason:     ReasonSoftSignals,
		Confidence: confidence,
		Signals:    signals,
	}
}

// historyLeansFallback checks the recent-session soft signal: the fallback
// tier is succeeding while the primary tier is failing or slow.
func historyLeansFallback(ctx DecisionContext) bool {
	var (
		primaryAttempts, primaryFailures int
		primaryLatencySum                int64
		fallbackAttempts, fallbackOK     int
	)
	for _, o := range ctx.History {
		switch o.Model {
		case models.TierPrimary:
			primaryAttempts++
			primaryLatencySum += o.ProcessingMs
			if !o.Success {
				primaryFailures++
			}
		case models.TierFallback:
			fallbackAttempts++
			if o.Success {
				fallbackOK++
			}
		}
	}
	if fallbackAttempts < minHistorySamples || primaryAttempts == 0 {
		return false
	}
	fallbackRate := float64(fallbackOK) / float64(fallbackAttempts)
	if fallbackRate <= 0.8 {
		return false
	}
	primaryFailRate := float64(primaryFailures) / float64(primaryAttempts)
	primaryAvgLatency := primaryLatencySum / int64(primaryAttempts)
	return primaryFailRate > 0.3 ||
		(ctx.PrimaryLatencyThresholdMs > 0 && primaryAvgLatency > ctx.PrimaryLatencyThresholdMs)
}
