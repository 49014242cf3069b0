package summarizer

import (
	"context"
	"log"
	"strings"
	"time"

	"meetsumgo/internal/config"
	"meetsumgo/internal/models"

	"github.com/google/uuid"
)

// Recorder is the persistence surface the pipeline needs. Implemented by the
// recorder service; swapped for a fake in tests.
type Recorder interface {
	GetTranscript(ctx context.Context, id int64) (*models.Transcript, error)
	RecentOutcomes(ctx context.Context, sessionID int64, limit int) ([]models.GenerationOutcome, error)
	CreateSummary(ctx context.Context, s *models.Summary) error
	CompleteSummary(ctx context.Context, s *models.Summary) error
	FailSummary(ctx context.Context, id int64, errMsg string) error
	RecordOutcome(ctx context.Context, o models.GenerationOutcome) error
}

// Service wires the pipeline stages together: prompt builder, decision
// engine, orchestrator, response processor, recorder.
type Service struct {
	cfg      *config.Config
	recorder Recorder
	builder  *PromptBuilder
	engine   *DecisionEngine
	orch     *Orchestrator
	proc     *Processor
	stats    *FallbackStats
}

func NewService(cfg *config.Config, completer Completer, recorder Recorder) *Service {
	stats := NewFallbackStats()
	return &Service{
		cfg:      cfg,
		recorder: recorder,
		builder:  NewPromptBuilder(cfg.Fallback),
		engine:   NewDecisionEngine(cfg.Fallback),
		orch:     NewOrchestrator(completer, cfg.Fallback, stats),
		proc:     NewProcessor(cfg.Fallback),
		stats:    stats,
	}
}

// Generate runs the full pipeline for one request. The summary row is
// persisted in the generating state before any model call, and ends as
// completed or error; the error path still returns the persisted row so
// callers can reference it.
func (s *Service) Generate(ctx context.Context, req models.GenerationRequest) (*models.Summary, error) {
	transcript, err := s.recorder.GetTranscript(ctx, req.TranscriptID)
	if err != nil {
		return nil, WrapError(KindTranscript, err, "load transcript")
	}
	if transcript.Status != models.TranscriptProcessed {
		return nil, NewError(KindTranscript, "transcript %d is %s, not processed", transcript.ID, transcript.Status)
	}
	if strings.TrimSpace(transcript.Content) == "" {
		return nil, NewError(KindTranscript, "transcript %d has no content", transcript.ID)
	}

	// History lookup is a soft signal; degrade to empty on failure.
	history, err := s.recorder.RecentOutcomes(ctx, req.SessionID, s.cfg.Fallback.HistoryWindow)
	if err != nil {
		log.Printf("outcome history unavailable for session %d: %v", req.SessionID, err)
		history = nil
	}

	primary := s.cfg.Models.Primary
	estimated := transcript.TokenEstimate
	if estimated == 0 {
		estimated = EstimateTokens(transcript.Content)
	}
	decision := s.engine.SelectModel(DecisionContext{
		Style:                     req.Style,
		EstimatedTokens:           estimated,
		EstimatedCostUSD:          EstimateCostUSD(estimated, primary.MaxOutputTokens, primary),
		Urgency:                   req.Urgency,
		ForceModel:                req.ForceModel,
		History:                   history,
		PrimaryLatencyThresholdMs: primary.LatencyThresholdMs,
	})

	pkg, err := s.builder.Build(transcript, req, s.modelConfigFor(decision.Model))
	if err != nil {
		return nil, err
	}

	summary := &models.Summary{
		Reference:    uuid.NewString(),
		TranscriptID: transcript.ID,
		SessionID:    req.SessionID,
		Style:        req.Style,
		Status:       models.SummaryGenerating,
		Model:        decision.Model,
		InputTokens:  pkg.EstimatedInputTokens,
	}
	if err := s.recorder.CreateSummary(ctx, summary); err != nil {
		return nil, WrapError(KindUnknown, err, "create summary record")
	}

	start := time.Now()
	run, runErr := s.orch.Run(ctx, decision.Model, pkg)
	processingMs := time.Since(start).Milliseconds()

	if runErr != nil {
		if failErr := s.recorder.FailSummary(ctx, summary.ID, runErr.Error()); failErr != nil {
			log.Printf("mark summary %d failed: %v", summary.ID, failErr)
		}
		s.recordOutcome(ctx, req.SessionID, decision.Model, false, processingMs)
		summary.Status = models.SummaryError
		summary.ErrorMessage = runErr.Error()
		return summary, runErr
	}

	served := s.modelConfigFor(run.ServedBy)
	processed := s.proc.Process(ProcessInput{
		Raw:             run.Completion.Content,
		Style:           req.Style,
		TranscriptWords: len(strings.Fields(transcript.Content)),
	})

	summary.Status = models.SummaryCompleted
	summary.RawContent = run.Completion.Content
	summary.Content = processed.Content
	summary.Structure = processed.Structure
	summary.Scores = processed.Scores
	summary.Quality = processed.Quality
	summary.Formats = processed.Formats
	summary.UI = processed.UI
	summary.UI.Title = transcript.Title
	summary.Model = run.ServedBy
	summary.ModelName = run.Completion.ModelName
	summary.FallbackTriggered = run.FallbackTriggered
	summary.AttemptCount = run.AttemptCount
	summary.InputTokens = run.Completion.InputTokens
	summary.OutputTokens = run.Completion.OutputTokens
	summary.CostUSD = EstimateCostUSD(run.Completion.InputTokens, run.Completion.OutputTokens, served)
	summary.ProcessingMs = processingMs

	if err := s.recorder.CompleteSummary(ctx, summary); err != nil {
		return nil, WrapError(KindUnknown, err, "persist summary")
	}
	s.recordOutcome(ctx, req.SessionID, run.ServedBy, true, processingMs)
	return summary, nil
}

func (s *Service) recordOutcome(ctx context.Context, sessionID int64, tier models.ModelTier, success bool, processingMs int64) {
	err := s.recorder.RecordOutcome(ctx, models.GenerationOutcome{
		SessionID:    sessionID,
		Model:        tier,
		Success:      success,
		ProcessingMs: processingMs,
	})
	if err != nil {
		log.Printf("record outcome for session %d: %v", sessionID, err)
	}
}

func (s *Service) modelConfigFor(tier models.ModelTier) config.ModelConfig {
	if tier == models.TierFallback {
		return s.cfg.Models.Fallback
	}
	return s.cfg.Models.Primary
}

// Stats returns a consistent snapshot of the fallback counters.
func (s *Service) Stats() models.FallbackStatistics { return s.stats.Snapshot() }

// ResetStats clears the fallback counters. Operator action only.
func (s *Service) ResetStats() { s.stats.Reset() }

// ConfigView is the operator-facing rendering of the active fallback policy.
type ConfigView struct {
	Strategy          string   `json:"strategy"`
	PrimaryModel      string   `json:"primary_model"`
	FallbackModel     string   `json:"fallback_model"`
	MaxRetries        int      `json:"max_retries"`
	BaseDelayMs       int64    `json:"base_delay_ms"`
	BackoffMultiplier float64  `json:"backoff_multiplier"`
	MaxDelayMs        int64    `json:"max_delay_ms"`
	CostThresholdUSD  float64  `json:"cost_threshold_usd"`
	ComplexCeiling    int      `json:"complex_token_ceiling"`
	RequirePrimary    []string `json:"require_primary_styles"`
	FallbackSuitable  []string `json:"fallback_suitable_styles"`
	FallbackPreferred []string `json:"fallback_preferred_styles"`
}

// ConfigSnapshot exposes the active strategy and retry policy without leaking
// credentials or provider settings.
func (s *Service) ConfigSnapshot() ConfigView {
	strat := s.engine.Strategy()
	f := s.cfg.Fallback
	return ConfigView{
		Strategy:          strat.Name,
		PrimaryModel:      s.cfg.Models.Primary.Model,
		FallbackModel:     s.cfg.Models.Fallback.Model,
		MaxRetries:        f.MaxRetries,
		BaseDelayMs:       f.BaseDelayMs,
		BackoffMultiplier: f.BackoffMultiplier,
		MaxDelayMs:        f.MaxDelayMs,
		CostThresholdUSD:  f.CostThresholdUSD,
		ComplexCeiling:    f.ComplexTokenCeiling,
		RequirePrimary:    styleNames(strat.RequirePrimaryStyles),
		FallbackSuitable:  styleNames(strat.FallbackSuitableStyles),
		FallbackPreferred: styleNames(strat.FallbackPreferredStyles),
	}
}

func styleNames(styles []models.SummaryStyle) []string {
	out := make([]string, len(styles))
	for i, s := range styles {
		out[i] = string(s)
	}
	return out
}
