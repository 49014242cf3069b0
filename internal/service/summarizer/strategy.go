package summarizer

import "meetsumgo/internal/models"

// Strategy is a pure data table: it maps styles to tier preferences and
// toggles which soft signals the decision algorithm considers. Adding a
// strategy means adding a table entry, never touching the algorithm.
type Strategy struct {
	Name string

	// RequirePrimaryStyles forces the primary tier regardless of soft signals.
	RequirePrimaryStyles []models.SummaryStyle
	// FallbackSuitableStyles forces the fallback tier (strategy override).
	FallbackSuitableStyles []models.SummaryStyle
	// FallbackPreferredStyles lean fallback as one soft signal among others.
	FallbackPreferredStyles []models.SummaryStyle

	ConsiderCost    bool
	ConsiderLatency bool
	ConsiderHistory bool
}

var strategies = map[string]Strategy{
	"smart": {
		Name:                    "smart",
		RequirePrimaryStyles:    []models.SummaryStyle{models.StyleTechnical},
		FallbackPreferredStyles: []models.SummaryStyle{models.StyleExecutive, models.StyleActionItems},
		ConsiderCost:            true,
		ConsiderLatency:         true,
		ConsiderHistory:         true,
	},
	"cost": {
		Name: "cost",
		FallbackSuitableStyles: []models.SummaryStyle{
			models.StyleExecutive, models.StyleActionItems, models.StyleDetailed,
		},
		FallbackPreferredStyles: []models.SummaryStyle{models.StyleCustom},
		ConsiderCost:            true,
		ConsiderHistory:         true,
	},
	"speed": {
		Name: "speed",
		FallbackSuitableStyles: []models.SummaryStyle{
			models.StyleExecutive, models.StyleActionItems,
		},
		FallbackPreferredStyles: []models.SummaryStyle{models.StyleDetailed, models.StyleCustom},
		ConsiderLatency:         true,
		ConsiderHistory:         true,
	},
	"quality": {
		Name: "quality",
		RequirePrimaryStyles: []models.SummaryStyle{
			models.StyleExecutive, models.StyleTechnical, models.StyleDetailed, models.StyleCustom,
		},
	},
}

// StrategyByName resolves a configured strategy, defaulting to smart.
func StrategyByName(name string) Strategy {
	if s, ok := strategies[name]; ok {
		return s
	}
	return strategies["smart"]
}

// StrategyNames lists the available strategy tables.
func StrategyNames() []string {
	return []string{"smart", "cost", "speed", "quality"}
}

func styleIn(style models.SummaryStyle, set []models.SummaryStyle) bool {
	for _, s := range set {
		if s == style {
			return true
		}
	}
	return false
}
