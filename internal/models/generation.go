package models

import "time"

// SummaryStyle selects the prompt template and expected section set.
type SummaryStyle string

const (
	StyleExecutive   SummaryStyle = "executive"
	StyleActionItems SummaryStyle = "action-items"
	StyleTechnical   SummaryStyle = "technical"
	StyleDetailed    SummaryStyle = "detailed"
	StyleCustom      SummaryStyle = "custom"
)

// ValidStyle reports whether s names a known summary style.
func ValidStyle(s SummaryStyle) bool {
	switch s {
	case StyleExecutive, StyleActionItems, StyleTechnical, StyleDetailed, StyleCustom:
		return true
	}
	return false
}

// Urgency is a soft latency preference, not a scheduling priority.
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// ModelTier names one of the two interchangeable completion backends.
type ModelTier string

const (
	TierPrimary  ModelTier = "primary"
	TierFallback ModelTier = "fallback"
)

// GenerationRequest is the ephemeral per-call input to the pipeline.
type GenerationRequest struct {
	TranscriptID       int64        `json:"transcript_id"`
	SessionID          int64        `json:"session_id"`
	Style              SummaryStyle `json:"style"`
	CustomInstructions string       `json:"custom_instructions"`
	Urgency            Urgency      `json:"urgency"`
	ForceModel         ModelTier    `json:"force_model"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PromptMessage is one role-tagged entry in the prompt package.
type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PromptPackage is the Prompt Builder output. Invariant: EstimatedInputTokens
// + MaxOutputTokens never exceeds the target model's context window.
type PromptPackage struct {
	Messages             []PromptMessage `json:"messages"`
	EstimatedInputTokens int             `json:"estimated_input_tokens"`
	MaxOutputTokens      int             `json:"max_output_tokens"`
	Temperature          float32         `json:"temperature"`
}

// ModelDecision is the Decision Engine output. Confidence is a heuristic
// score in [0,1], advisory only.
type ModelDecision struct {
	Model      ModelTier `json:"model"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Signals    []string  `json:"signals,omitempty"`
}

// AttemptRecord captures one completion attempt within an orchestration run.
type AttemptRecord struct {
	Model     ModelTier     `json:"model"`
	Success   bool          `json:"success"`
	Latency   time.Duration `json:"latency"`
	ErrorKind string        `json:"error_kind,omitempty"`
}

// GenerationOutcome is the per-session history record the Decision Engine
// consumes as a soft signal.
type GenerationOutcome struct {
	SessionID    int64     `json:"session_id"`
	Model        ModelTier `json:"model"`
	Success      bool      `json:"success"`
	ProcessingMs int64     `json:"processing_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// TierStats is the per-model slice of a FallbackStatistics snapshot.
type TierStats struct {
	Attempts     int64   `json:"attempts"`
	Successes    int64   `json:"successes"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// FallbackStatistics is the process-wide snapshot exposed to operators.
type FallbackStatistics struct {
	PerModel                map[ModelTier]TierStats `json:"per_model"`
	TotalRetries            int64                   `json:"total_retries"`
	FallbackUtilizationRate float64                 `json:"fallback_utilization_rate"`
}
