package summarizer

import (
	"regexp"
	"strings"

	"meetsumgo/internal/config"
	"meetsumgo/internal/models"
)

// tokenDivisor is the chars-per-token heuristic. It drifts from any real
// tokenizer, so callers keep headroom instead of assuming exactness.
const tokenDivisor = 4

// minOutputTokens is the floor below which clamping the output budget is
// pointless and the request fails instead.
const minOutputTokens = 256

// styleTemplate drives the system instruction for one summary style.
type styleTemplate struct {
	instruction      string
	requiredSections []string
	temperature      float32
}

var styleTemplates = map[models.SummaryStyle]styleTemplate{
	models.StyleExecutive: {
		instruction: "You summarize meeting transcripts for executives.\n\n" +
			"Rules:\n" +
			"- H1 title: meeting subject\n" +
			"- \"## Overview\" section: 2-4 sentences on purpose and outcome\n" +
			"- \"## Key Points\" section: bullet list, one point per bullet\n" +
			"- \"## Decisions\" section: decisions made (omit if none)\n" +
			"- \"## Next Steps\" section: format \"- **Owner:** task\"\n" +
			"- Be concise; no filler, no speculation\n" +
			"- Do not invent content that is not in the transcript",
		requiredSections: []string{"Overview", "Key Points", "Decisions", "Next Steps"},
		temperature:      0.4,
	},
	models.StyleActionItems: {
		instruction: "You extract action items from meeting transcripts.\n\n" +
			"Rules:\n" +
			"- H1 title: meeting subject\n" +
			"- \"## Action Items\" section: format \"- **Owner:** task (deadline if mentioned)\"\n" +
			"- \"## Unassigned\" section: tasks mentioned without an owner\n" +
			"- \"## Follow-ups\" section: open questions needing a later answer\n" +
			"- Every commitment in the transcript must appear exactly once\n" +
			"- Do not invent owners or deadlines",
		requiredSections: []string{"Action Items", "Unassigned", "Follow-ups"},
		temperature:      0.2,
	},
	models.StyleTechnical: {
		instruction: "You summarize technical meetings for engineers.\n\n" +
			"Rules:\n" +
			"- H1 title: meeting subject\n" +
			"- \"## Technical Discussion\" section: H3 per topic, keep precise terminology\n" +
			"- \"## Decisions\" section: each decision with its stated rationale\n" +
			"- \"## Risks\" section: concerns raised (omit if none)\n" +
			"- \"## Action Items\" section: format \"- **Owner:** task\"\n" +
			"- Preserve identifiers, versions and numbers verbatim",
		requiredSections: []string{"Technical Discussion", "Decisions", "Risks", "Action Items"},
		temperature:      0.3,
	},
	models.StyleDetailed: {
		instruction: "You produce detailed meeting notes from transcripts.\n\n" +
			"Rules:\n" +
			"- H1 title: meeting subject\n" +
			"- \"## Overview\" section: short framing paragraph\n" +
			"- \"## Discussion\" section: H3 per topic in transcript order\n" +
			"- \"## Decisions\" section: list of decisions made\n" +
			"- \"## Action Items\" section: format \"- **Owner:** task\"\n" +
			"- \"## Open Questions\" section: unresolved points\n" +
			"- Include every substantive point; drop only filler",
		requiredSections: []string{"Overview", "Discussion", "Decisions", "Action Items", "Open Questions"},
		temperature:      0.5,
	},
	models.StyleCustom: {
		instruction: "You summarize meeting transcripts.\n\n" +
			"Rules:\n" +
			"- Output markdown with an H1 title and H2 sections\n" +
			"- \"## Summary\" section covering the main points\n" +
			"- \"## Action Items\" section when commitments are mentioned\n" +
			"- Follow the additional instructions below when they do not conflict with these rules\n" +
			"- Do not invent content that is not in the transcript",
		requiredSections: []string{"Summary"},
		temperature:      0.5,
	},
}

// RequiredSections exposes the section list the Response Processor scores
// completeness against.
func RequiredSections(style models.SummaryStyle) []string {
	tpl, ok := styleTemplates[style]
	if !ok {
		tpl = styleTemplates[models.StyleCustom]
	}
	out := make([]string, len(tpl.requiredSections))
	copy(out, tpl.requiredSections)
	return out
}

// Patterns resembling prompt-injection attempts. Matched lines are stripped
// from custom instructions rather than executed.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*(system|assistant|user)\s*:`),
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+instructions`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`<\|[^|]*\|>`),
	regexp.MustCompile("(?i)```\\s*(system|assistant)"),
}

// PromptBuilder turns a transcript plus generation options into a validated
// prompt package. Pure transform, no side effects.
type PromptBuilder struct {
	maxInstructionChars int
}

func NewPromptBuilder(cfg config.FallbackConfig) *PromptBuilder {
	return &PromptBuilder{maxInstructionChars: cfg.MaxCustomInstructionChars}
}

// EstimateTokens approximates the token count from character length.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + tokenDivisor - 1) / tokenDivisor
}

// Build assembles the system/user message pair and validates it against the
// target model's context window. Fails before any network call on empty
// transcripts, oversized instructions or window overflow.
func (b *PromptBuilder) Build(transcript *models.Transcript, req models.GenerationRequest, target config.ModelConfig) (*models.PromptPackage, error) {
	if transcript == nil || strings.TrimSpace(transcript.Content) == "" {
		return nil, NewError(KindValidation, "transcript content is empty")
	}
	if !models.ValidStyle(req.Style) {
		return nil, NewError(KindValidation, "unknown summary style %q", req.Style)
	}
	instructions := strings.TrimSpace(req.CustomInstructions)
	if len(instructions) > b.maxInstructionChars {
		return nil, NewError(KindValidation, "custom instructions exceed %d characters", b.maxInstructionChars)
	}

	tpl := styleTemplates[req.Style]
	system := tpl.instruction
	if instructions != "" {
		sanitized := SanitizeInstructions(instructions)
		if sanitized != "" {
			system += "\n\nAdditional instructions from the requester:\n" + sanitized
		}
	}

	user := buildUserMessage(transcript)

	estimated := EstimateTokens(system) + EstimateTokens(user)
	maxOut := target.MaxOutputTokens
	if maxOut <= 0 {
		maxOut = 4096
	}
	if estimated+maxOut > target.ContextWindow {
		clamped := target.ContextWindow - estimated
		if clamped < minOutputTokens {
			return nil, NewError(KindValidation,
				"estimated %d input tokens exceed the %d-token context window of %s",
				estimated, target.ContextWindow, target.Model)
		}
		maxOut = clamped
	}

	return &models.PromptPackage{
		Messages: []models.PromptMessage{
			{Role: models.RoleSystem, Content: system},
			{Role: models.RoleUser, Content: user},
		},
		EstimatedInputTokens: estimated,
		MaxOutputTokens:      maxOut,
		Temperature:          tpl.temperature,
	}, nil
}

func buildUserMessage(transcript *models.Transcript) string {
	var sb strings.Builder
	if transcript.Title != "" {
		sb.WriteString("Meeting: ")
		sb.WriteString(transcript.Title)
		sb.WriteString("\n")
	}
	if !transcript.CreatedAt.IsZero() {
		sb.WriteString("Date: ")
		sb.WriteString(transcript.CreatedAt.Format("2006-01-02"))
		sb.WriteString("\n")
	}
	sb.WriteString("\nTranscript:\n")
	sb.WriteString(transcript.Content)
	return sb.String()
}

// SanitizeInstructions strips lines that resemble role markers or
// instruction-override attempts.
func SanitizeInstructions(text string) string {
	for _, pattern := range injectionPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// EstimateCostUSD prices a prospective call against a tier's rates.
func EstimateCostUSD(inputTokens, outputTokens int, target config.ModelConfig) float64 {
	return float64(inputTokens)/1000*target.InputRatePer1K +
		float64(outputTokens)/1000*target.OutputRatePer1K
}
