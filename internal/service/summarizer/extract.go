package summarizer

import (
	"regexp"
	"strings"

	"meetsumgo/internal/models"
)

// LineExtractor pulls a flat list of findings out of normalized text. Each
// extractor is isolated so a smarter implementation can replace the regex
// one without touching the pipeline contract.
type LineExtractor interface {
	Extract(text string) []string
}

// ActionExtractor pulls structured owner/task pairs.
type ActionExtractor interface {
	Extract(text string) []models.ActionItem
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)\s*$`)

type headingExtractor struct{}

func (headingExtractor) Extract(text string) []string {
	var out []string
	for _, m := range headingPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

var (
	bulletPattern     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+(.+?)\s*$`)
	boldOwnerPattern  = regexp.MustCompile(`^\*\*([^*:]+):?\*\*:?\s*(.+)$`)
	trailOwnerPattern = regexp.MustCompile(`(?i)^(.+?)\s*\((?:owner|assigned to)[:\s]+([^)]+)\)$`)
)

// imperativeVerbs tag unowned bullet lines as action items.
var imperativeVerbs = map[string]struct{}{
	"schedule": {}, "send": {}, "review": {}, "update": {}, "create": {},
	"prepare": {}, "draft": {}, "share": {}, "investigate": {}, "confirm": {},
	"follow": {}, "fix": {}, "write": {}, "finalize": {}, "contact": {},
	"deploy": {}, "test": {}, "book": {}, "set": {}, "collect": {},
}

type actionItemExtractor struct{}

func (actionItemExtractor) Extract(text string) []models.ActionItem {
	var items []models.ActionItem
	for _, m := range bulletPattern.FindAllStringSubmatch(text, -1) {
		line := strings.TrimSpace(m[1])

		if bm := boldOwnerPattern.FindStringSubmatch(line); bm != nil {
			items = append(items, models.ActionItem{
				Owner: strings.TrimSpace(bm[1]),
				Task:  strings.TrimSpace(bm[2]),
				Raw:   line,
			})
			continue
		}
		if tm := trailOwnerPattern.FindStringSubmatch(line); tm != nil {
			items = append(items, models.ActionItem{
				Owner: strings.TrimSpace(tm[2]),
				Task:  strings.TrimSpace(tm[1]),
				Raw:   line,
			})
			continue
		}
		first := strings.ToLower(firstWord(line))
		if _, ok := imperativeVerbs[first]; ok {
			items = append(items, models.ActionItem{Task: line, Raw: line})
		}
	}
	return items
}

var decisionCues = []string{
	"decided", "agreed", "approved", "will go with", "settled on",
	"concluded", "resolved to", "signed off",
}

type decisionExtractor struct{}

func (decisionExtractor) Extract(text string) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, cue := range decisionCues {
			if strings.Contains(lower, cue) {
				out = append(out, sentence)
				break
			}
		}
	}
	return out
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

type emailExtractor struct{}

func (emailExtractor) Extract(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, addr := range emailPattern.FindAllString(text, -1) {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

var insightCues = []string{
	"key takeaway", "importantly", "insight", "worth noting", "notably",
	"the main risk", "the biggest",
}

type insightExtractor struct{}

func (insightExtractor) Extract(text string) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, cue := range insightCues {
			if strings.Contains(lower, cue) {
				out = append(out, sentence)
				break
			}
		}
	}
	return out
}

// sentimentLexicon scores text by positive/negative keyword ratio.
type sentimentLexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

func newSentimentLexicon() *sentimentLexicon {
	return &sentimentLexicon{
		positive: wordSet("good", "great", "progress", "success", "successful",
			"aligned", "agreed", "resolved", "improved", "win", "positive",
			"completed", "delivered", "ahead", "excellent", "happy", "clear"),
		negative: wordSet("bad", "blocked", "blocker", "delay", "delayed", "risk",
			"concern", "issue", "problem", "failed", "failure", "behind",
			"slipped", "negative", "unclear", "conflict", "missed"),
	}
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Score returns 0.5 for neutral text, above for positive-leaning.
func (l *sentimentLexicon) Score(text string) float64 {
	var pos, neg int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]*\"'")
		if _, ok := l.positive[word]; ok {
			pos++
		}
		if _, ok := l.negative[word]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0.5
	}
	return float64(pos) / float64(pos+neg)
}

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+|\n+`)

func splitSentences(text string) []string {
	var out []string
	for _, part := range sentenceSplit.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
