package summarizer

import (
	"reflect"
	"strings"
	"testing"

	"meetsumgo/internal/models"
)

const sampleSummary = `# Weekly Sync

## Overview
The team reviewed the Q3 launch plan and agreed to move the date forward.
Progress on the billing migration is ahead of schedule.

## Key Points
- Billing migration is 80% complete
- Customer feedback has been positive overall

## Decisions
- We decided to ship the beta on September 5th

## Next Steps
- **Alice:** send the launch checklist to ops@example.com
- **Bob:** review the pricing page copy
- Schedule the retro for next Friday
- Update the runbook (owner: Carol)
`

func newTestProcessor() *Processor {
	return NewProcessor(testFallbackConfig())
}

func TestProcessValidSummary(t *testing.T) {
	proc := newTestProcessor()
	out := proc.Process(ProcessInput{
		Raw:             sampleSummary,
		Style:           models.StyleExecutive,
		TranscriptWords: 600,
	})
	if !out.Valid {
		t.Fatalf("expected valid result: %+v", out.Quality)
	}
	if len(out.Structure.Headings) < 4 {
		t.Fatalf("headings = %v", out.Structure.Headings)
	}
	if len(out.Structure.ActionItems) < 3 {
		t.Fatalf("action items = %+v", out.Structure.ActionItems)
	}
	owners := map[string]bool{}
	for _, item := range out.Structure.ActionItems {
		owners[item.Owner] = true
	}
	if !owners["Alice"] || !owners["Bob"] {
		t.Fatalf("bold owners not extracted: %+v", out.Structure.ActionItems)
	}
	if len(out.Structure.Decisions) == 0 {
		t.Fatalf("decision sentence missed")
	}
	if len(out.Structure.Emails) != 1 || out.Structure.Emails[0] != "ops@example.com" {
		t.Fatalf("emails = %v", out.Structure.Emails)
	}
	if out.Scores.Completeness != 1.0 {
		t.Fatalf("completeness = %f, all required sections present", out.Scores.Completeness)
	}
	if out.Quality.Grade == "F" {
		t.Fatalf("well-formed summary graded F: %+v", out.Quality)
	}
}

func TestProcessEmptyContentDegrades(t *testing.T) {
	proc := newTestProcessor()
	for _, raw := range []string{"", "   ", "\n\t\n"} {
		out := proc.Process(ProcessInput{Raw: raw, Style: models.StyleExecutive})
		if out.Valid {
			t.Fatalf("%q should be invalid", raw)
		}
		if out.Quality.Grade != "F" || len(out.Quality.Issues) == 0 {
			t.Fatalf("degraded result missing F grade: %+v", out.Quality)
		}
	}
}

type explodingExtractor struct{}

func (explodingExtractor) Extract(string) []string { panic("heading scan exploded") }

func TestProcessDegradesWhenAnalysisPanics(t *testing.T) {
	proc := newTestProcessor()
	proc.headings = explodingExtractor{}

	out := proc.Process(ProcessInput{
		Raw:             sampleSummary,
		Style:           models.StyleExecutive,
		TranscriptWords: 600,
	})
	if out.Valid {
		t.Fatal("panicking analysis must not produce a valid result")
	}
	if out.Quality.Grade != "F" {
		t.Fatalf("grade = %s, want F", out.Quality.Grade)
	}
	found := false
	for _, issue := range out.Quality.Issues {
		if strings.Contains(issue, "analysis failed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("panic cause missing from issues: %v", out.Quality.Issues)
	}
	if out.Formats[FormatMarkdown] == "" {
		t.Fatal("degraded result should still carry the raw content")
	}
}

func TestProcessOverlongContentIsWarningOnly(t *testing.T) {
	cfg := testFallbackConfig()
	proc := NewProcessor(cfg)
	raw := "# Big\n\n" + strings.Repeat("word ", cfg.MaxResponseChars/4)
	out := proc.Process(ProcessInput{Raw: raw, Style: models.StyleCustom, TranscriptWords: 100})
	if !out.Valid {
		t.Fatalf("overlong content should still process")
	}
	found := false
	for _, issue := range out.Quality.Issues {
		if strings.Contains(issue, "exceeds") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected length warning in issues: %v", out.Quality.Issues)
	}
}

func TestNormalizeCleansMojibakeAndControlChars(t *testing.T) {
	raw := "It\u00e2\u0080\u0099s done \u00e2\u0080\u0093 mostly\x07\r\nnext\n\n\n\nline"
	got := Normalize(raw)
	if strings.Contains(got, "\u00e2") || strings.Contains(got, "\x07") || strings.Contains(got, "\r") {
		t.Fatalf("normalize left artifacts: %q", got)
	}
	if !strings.Contains(got, "It's done - mostly") {
		t.Fatalf("punctuation not repaired: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank runs not collapsed: %q", got)
	}
}

func TestTextFormatPreservesWordSequence(t *testing.T) {
	content := Normalize(sampleSummary)
	formats := RenderFormats(content, models.SummaryStructure{})

	if formats[FormatMarkdown] != content {
		t.Fatalf("markdown format must be the canonical content")
	}
	var mdWords []string
	for _, w := range strings.Fields(content) {
		w = strings.Trim(w, "#*-_`")
		if w != "" {
			mdWords = append(mdWords, w)
		}
	}
	var textWords []string
	for _, w := range strings.Fields(formats[FormatText]) {
		w = strings.Trim(w, "#*-_`")
		if w != "" {
			textWords = append(textWords, w)
		}
	}
	if !reflect.DeepEqual(mdWords, textWords) {
		t.Fatalf("word sequences diverge:\n%v\n%v", mdWords, textWords)
	}
	// Stripping must not drop words relative to the markdown source.
	plain := formats[FormatText]
	for _, word := range []string{"Overview", "Billing", "Alice:", "September"} {
		if !strings.Contains(plain, word) {
			t.Fatalf("text format lost %q:\n%s", word, plain)
		}
	}
	if strings.Contains(plain, "##") || strings.Contains(plain, "**") {
		t.Fatalf("markdown tokens survived in text format:\n%s", plain)
	}
}

func TestEmailFormatRestatesActionItems(t *testing.T) {
	content := Normalize(sampleSummary)
	structure := models.SummaryStructure{
		ActionItems: []models.ActionItem{
			{Owner: "Alice", Task: "send the launch checklist"},
			{Task: "schedule the retro"},
		},
	}
	email := RenderFormats(content, structure)[FormatEmail]
	if !strings.Contains(email, "Follow-ups:") || !strings.Contains(email, "Alice: send the launch checklist") {
		t.Fatalf("email format missing follow-ups:\n%s", email)
	}
}

func TestFormatsDoNotMutateCanonicalContent(t *testing.T) {
	content := Normalize(sampleSummary)
	before := content
	_ = RenderFormats(content, models.SummaryStructure{})
	_ = RenderUI(content, models.SummaryStructure{})
	if content != before {
		t.Fatalf("canonical content mutated")
	}
}

func TestRenderUISections(t *testing.T) {
	content := "intro line\n\n# Title\nbody one\n\n## Part\nbody two"
	doc := RenderUI(Normalize(content), models.SummaryStructure{})
	if len(doc.Sections) != 3 {
		t.Fatalf("sections = %+v", doc.Sections)
	}
	if doc.Sections[0].Heading != "" || doc.Sections[0].Lines[0] != "intro line" {
		t.Fatalf("lead section wrong: %+v", doc.Sections[0])
	}
	if doc.Sections[1].Heading != "Title" || doc.Sections[2].Heading != "Part" {
		t.Fatalf("headings wrong: %+v", doc.Sections)
	}
}

func TestGradeBands(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.9, "A"}, {0.85, "A"}, {0.75, "B"}, {0.6, "C"}, {0.45, "D"}, {0.2, "F"},
	}
	for _, tc := range cases {
		if got := letterGrade(tc.score); got != tc.want {
			t.Fatalf("grade(%f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestActionItemsStyleWithoutItemsIsFlagged(t *testing.T) {
	proc := newTestProcessor()
	out := proc.Process(ProcessInput{
		Raw:             "# Meeting\n\n## Action Items\n\nNothing was assigned today.",
		Style:           models.StyleActionItems,
		TranscriptWords: 100,
	})
	found := false
	for _, issue := range out.Quality.Issues {
		if strings.Contains(issue, "action items") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing action-items issue: %v", out.Quality.Issues)
	}
}

func TestSentimentLexicon(t *testing.T) {
	lex := newSentimentLexicon()
	if score := lex.Score("great progress, successful launch, team aligned"); score <= 0.5 {
		t.Fatalf("positive text scored %f", score)
	}
	if score := lex.Score("blocked by a delayed migration, big risk"); score >= 0.5 {
		t.Fatalf("negative text scored %f", score)
	}
	if score := lex.Score("the sky is blue"); score != 0.5 {
		t.Fatalf("neutral text scored %f", score)
	}
}
