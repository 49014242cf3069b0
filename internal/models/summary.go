package models

import "time"

// SummaryStatus tracks the durable artifact lifecycle. Completed summaries
// are immutable except through the append-only edit path.
type SummaryStatus string

const (
	SummaryGenerating SummaryStatus = "generating"
	SummaryCompleted  SummaryStatus = "completed"
	SummaryError      SummaryStatus = "error"
	SummaryEdited     SummaryStatus = "edited"
)

// ActionItem is one extracted owner/task pair.
type ActionItem struct {
	Owner string `json:"owner,omitempty"`
	Task  string `json:"task"`
	Raw   string `json:"raw"`
}

// SummaryStructure is the pattern-extracted shape of the model output.
type SummaryStructure struct {
	Headings    []string     `json:"headings"`
	ActionItems []ActionItem `json:"action_items"`
	Decisions   []string     `json:"decisions"`
	Emails      []string     `json:"emails"`
	Insights    []string     `json:"insights"`
}

// AnalysisScores are independent heuristics, each in [0,1].
type AnalysisScores struct {
	Readability   float64 `json:"readability"`
	Sentiment     float64 `json:"sentiment"`
	Completeness  float64 `json:"completeness"`
	Actionability float64 `json:"actionability"`
	Coverage      float64 `json:"coverage"`
}

// QualityReport combines the analysis scores into one grade.
type QualityReport struct {
	Score     float64  `json:"score"`
	Grade     string   `json:"grade"`
	Issues    []string `json:"issues"`
	Strengths []string `json:"strengths"`
}

// UISection is one renderable block of the UI document.
type UISection struct {
	Heading string   `json:"heading"`
	Lines   []string `json:"lines"`
}

// UIDocument is the structured UI-ready rendering of a summary.
type UIDocument struct {
	Title    string       `json:"title"`
	Sections []UISection  `json:"sections"`
	Actions  []ActionItem `json:"actions"`
}

// SummaryEdit is one prior revision preserved by the edit path.
type SummaryEdit struct {
	ID        int64     `json:"id"`
	SummaryID int64     `json:"summary_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

// Summary is the durable ProcessedSummary artifact.
type Summary struct {
	ID           int64         `json:"id"`
	Reference    string        `json:"reference"`
	TranscriptID int64         `json:"transcript_id"`
	SessionID    int64         `json:"session_id"`
	Style        SummaryStyle  `json:"style"`
	Status       SummaryStatus `json:"status"`

	RawContent string `json:"raw_content"`
	Content    string `json:"content"` // normalized canonical text

	Structure SummaryStructure  `json:"structure"`
	Scores    AnalysisScores    `json:"scores"`
	Quality   QualityReport     `json:"quality"`
	Formats   map[string]string `json:"formats"`
	UI        UIDocument        `json:"ui"`

	Model             ModelTier `json:"model"`
	ModelName         string    `json:"model_name"`
	FallbackTriggered bool      `json:"fallback_triggered"`
	AttemptCount      int       `json:"attempt_count"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	ProcessingMs int64   `json:"processing_ms"`

	ErrorMessage string        `json:"error_message,omitempty"`
	EditHistory  []SummaryEdit `json:"edit_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
