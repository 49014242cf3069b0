package summarizer

import (
	"fmt"
	"regexp"
	"strings"

	"meetsumgo/internal/config"
	"meetsumgo/internal/models"
)

// ProcessInput feeds one raw model response into the processor.
type ProcessInput struct {
	Raw             string
	Style           models.SummaryStyle
	TranscriptWords int
}

// Processed is the analysis result. Valid is false when the raw content was
// unusable; the struct is still fully populated so the pipeline never aborts
// at this stage.
type Processed struct {
	Valid     bool
	Content   string
	Structure models.SummaryStructure
	Scores    models.AnalysisScores
	Quality   models.QualityReport
	Formats   map[string]string
	UI        models.UIDocument
}

// Processor validates, normalizes, structurally parses, scores and renders a
// model response. It never lets an internal panic escape: analysis failures
// degrade to an F-grade result carrying the failure in Issues.
type Processor struct {
	maxResponseChars int

	headings  LineExtractor
	actions   ActionExtractor
	decisions LineExtractor
	emails    LineExtractor
	insights  LineExtractor
	sentiment *sentimentLexicon
}

func NewProcessor(cfg config.FallbackConfig) *Processor {
	return &Processor{
		maxResponseChars: cfg.MaxResponseChars,
		headings:         headingExtractor{},
		actions:          actionItemExtractor{},
		decisions:        decisionExtractor{},
		emails:           emailExtractor{},
		insights:         insightExtractor{},
		sentiment:        newSentimentLexicon(),
	}
}

// Process runs the full analysis. It always returns a structurally valid
// result, never panics past its boundary.
func (p *Processor) Process(in ProcessInput) (out *Processed) {
	defer func() {
		if r := recover(); r != nil {
			out = degradedResult(in.Raw, fmt.Sprintf("analysis failed: %v", r))
		}
	}()

	if strings.TrimSpace(in.Raw) == "" {
		return degradedResult(in.Raw, "response content is empty")
	}

	var issues []string
	if len(in.Raw) > p.maxResponseChars {
		// Overlong output is a warning, not a rejection; scoring still applies.
		issues = append(issues, fmt.Sprintf("response exceeds %d characters", p.maxResponseChars))
	}

	content := Normalize(in.Raw)

	structure := models.SummaryStructure{
		Headings:    p.headings.Extract(content),
		ActionItems: p.actions.Extract(content),
		Decisions:   p.decisions.Extract(content),
		Emails:      p.emails.Extract(content),
		Insights:    p.insights.Extract(content),
	}

	required := RequiredSections(in.Style)
	scores := models.AnalysisScores{
		Readability:   readabilityScore(content),
		Sentiment:     p.sentiment.Score(content),
		Completeness:  completenessScore(structure.Headings, required),
		Actionability: actionabilityScore(structure.ActionItems, content),
		Coverage:      coverageScore(content, in.TranscriptWords),
	}

	quality := gradeQuality(scores, structure, in.Style, content, required, issues)

	return &Processed{
		Valid:     true,
		Content:   content,
		Structure: structure,
		Scores:    scores,
		Quality:   quality,
		Formats:   RenderFormats(content, structure),
		UI:        RenderUI(content, structure),
	}
}

func degradedResult(raw, issue string) *Processed {
	content := strings.TrimSpace(raw)
	return &Processed{
		Valid:   false,
		Content: content,
		Quality: models.QualityReport{
			Score:  0,
			Grade:  "F",
			Issues: []string{issue},
		},
		Formats: map[string]string{
			FormatMarkdown: content,
			FormatText:     content,
			FormatEmail:    content,
		},
		Structure: models.SummaryStructure{},
	}
}

var (
	// Common UTF-8-decoded-as-latin1 sequences seen in model output.
	mojibakeReplacer = strings.NewReplacer(
		"â", "'",
		"â", "'",
		"â", `"`,
		"â", `"`,
		"â", "-",
		"â", "-",
		"â¦", "...",
		"Ã©", "é",
		"Â ", " ",
	)
	controlPattern    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	excessNewlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Normalize fixes mis-decoded punctuation, strips control characters and
// collapses whitespace runs. The result is the canonical summary text.
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = mojibakeReplacer.Replace(text)
	text = controlPattern.ReplaceAllString(text, "")
	text = excessNewlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// readabilityScore is a sentence/word-length heuristic in [0,1].
func readabilityScore(text string) float64 {
	sentences := splitSentences(text)
	words := strings.Fields(text)
	if len(sentences) == 0 || len(words) == 0 {
		return 0
	}
	avgWordsPerSentence := float64(len(words)) / float64(len(sentences))
	var letters int
	for _, w := range words {
		letters += len(w)
	}
	avgWordLen := float64(letters) / float64(len(words))

	score := 1.0
	switch {
	case avgWordsPerSentence > 30:
		score -= 0.4
	case avgWordsPerSentence > 22:
		score -= 0.2
	}
	switch {
	case avgWordLen > 8:
		score -= 0.3
	case avgWordLen > 6.5:
		score -= 0.15
	}
	if score < 0 {
		score = 0
	}
	return score
}

// completenessScore is the fraction of expected section headings present.
func completenessScore(headings, required []string) float64 {
	if len(required) == 0 {
		return 1
	}
	matched := 0
	for _, want := range required {
		wantLower := strings.ToLower(want)
		for _, h := range headings {
			if strings.Contains(strings.ToLower(h), wantLower) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(required))
}

// actionabilityScore blends action-item count and density.
func actionabilityScore(items []models.ActionItem, text string) float64 {
	if len(items) == 0 {
		return 0
	}
	countScore := float64(len(items)) / 5
	if countScore > 1 {
		countScore = 1
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return countScore * 0.7
	}
	density := float64(len(items)) / float64(words) * 100
	densityScore := density / 3
	if densityScore > 1 {
		densityScore = 1
	}
	return countScore*0.7 + densityScore*0.3
}

// coverageScore checks the summary is proportionate to its transcript: a
// tenth of the transcript's words is treated as full coverage.
func coverageScore(text string, transcriptWords int) float64 {
	words := len(strings.Fields(text))
	if transcriptWords <= 0 {
		if words >= 50 {
			return 1
		}
		return float64(words) / 50
	}
	target := float64(transcriptWords) * 0.1
	if target < 30 {
		target = 30
	}
	score := float64(words) / target
	if score > 1 {
		score = 1
	}
	return score
}

func gradeQuality(scores models.AnalysisScores, structure models.SummaryStructure, style models.SummaryStyle, content string, required []string, issues []string) models.QualityReport {
	score := 0.25*scores.Readability +
		0.30*scores.Completeness +
		0.20*scores.Actionability +
		0.15*scores.Coverage +
		0.10*scores.Sentiment

	words := len(strings.Fields(content))
	if words < 30 {
		issues = append(issues, "summary is too short")
	}
	if style == models.StyleActionItems && len(structure.ActionItems) == 0 {
		issues = append(issues, "missing action items for action-items style")
	}
	for _, want := range required {
		found := false
		for _, h := range structure.Headings {
			if strings.Contains(strings.ToLower(h), strings.ToLower(want)) {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, fmt.Sprintf("missing expected section %q", want))
		}
	}

	var strengths []string
	if len(structure.Headings) >= 3 {
		strengths = append(strengths, "clear section structure")
	}
	owned := 0
	for _, item := range structure.ActionItems {
		if item.Owner != "" {
			owned++
		}
	}
	if owned >= 2 {
		strengths = append(strengths, "action items have owners")
	}
	if scores.Completeness >= 1 {
		strengths = append(strengths, "covers all expected sections")
	}
	if scores.Readability >= 0.8 {
		strengths = append(strengths, "concise and readable")
	}
	if len(structure.Decisions) > 0 {
		strengths = append(strengths, "decisions captured")
	}

	return models.QualityReport{
		Score:     score,
		Grade:     letterGrade(score),
		Issues:    issues,
		Strengths: strengths,
	}
}

func letterGrade(score float64) string {
	switch {
	case score >= 0.85:
		return "A"
	case score >= 0.70:
		return "B"
	case score >= 0.55:
		return "C"
	case score >= 0.40:
		return "D"
	}
	return "F"
}
