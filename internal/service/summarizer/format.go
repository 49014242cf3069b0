package summarizer

import (
	"regexp"
	"strings"

	"meetsumgo/internal/models"
)

// Rendering format names as stored in the summary's Formats map.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatEmail    = "email"
)

var (
	mdHeadingMarks = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasis     = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	mdInlineCode   = regexp.MustCompile("`([^`]*)`")
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdBulletMarks  = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
)

// RenderFormats produces every delivery format from the canonical markdown
// content. The canonical string is never modified; each renderer works on its
// own copy.
func RenderFormats(content string, structure models.SummaryStructure) map[string]string {
	return map[string]string{
		FormatMarkdown: content,
		FormatText:     renderText(content),
		FormatEmail:    renderEmail(content, structure),
	}
}

// renderText strips markdown syntax without dropping words, so the plain-text
// rendering carries the same word sequence as the markdown one.
func renderText(content string) string {
	text := mdHeadingMarks.ReplaceAllString(content, "")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdEmphasis.ReplaceAllString(text, "$2")
	text = mdInlineCode.ReplaceAllString(text, "$1")
	text = mdBulletMarks.ReplaceAllString(text, "${1}")
	return strings.TrimSpace(text)
}

// renderEmail wraps the plain-text rendering in a short email body. Action
// items get restated at the end so the recipient sees follow-ups without
// reading the whole summary.
func renderEmail(content string, structure models.SummaryStructure) string {
	var b strings.Builder
	b.WriteString("Hi team,\n\nHere is the meeting summary:\n\n")
	b.WriteString(renderText(content))

	if len(structure.ActionItems) > 0 {
		b.WriteString("\n\nFollow-ups:\n")
		for _, item := range structure.ActionItems {
			b.WriteString("- ")
			if item.Owner != "" {
				b.WriteString(item.Owner)
				b.WriteString(": ")
			}
			b.WriteString(item.Task)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nBest regards")
	return b.String()
}

// RenderUI splits the canonical content into heading-delimited sections for
// client rendering. Text before the first heading becomes an unheaded lead
// section; the document title is filled in by the caller.
func RenderUI(content string, structure models.SummaryStructure) models.UIDocument {
	doc := models.UIDocument{Actions: structure.ActionItems}

	locs := headingPattern.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		doc.Sections = []models.UISection{{Lines: sectionLines(content)}}
		return doc
	}

	if lead := strings.TrimSpace(content[:locs[0][0]]); lead != "" {
		doc.Sections = append(doc.Sections, models.UISection{Lines: sectionLines(lead)})
	}
	for i, loc := range locs {
		heading := strings.TrimSpace(content[loc[2]:loc[3]])
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		doc.Sections = append(doc.Sections, models.UISection{
			Heading: heading,
			Lines:   sectionLines(content[loc[1]:end]),
		})
	}
	return doc
}

func sectionLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
