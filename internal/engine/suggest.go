package engine

import (
	"regexp"
	"strings"

	"sidequest/internal/domain"
)

// CategorySuggestion is a keyword-matched category with a confidence in (0,1].
type CategorySuggestion struct {
	Category   string
	Confidence float64
}

type categoryKeywords struct {
	category string
	keywords []string
}

// Declaration order matters: ties between equally confident categories keep
// the earlier entry unless a later one matches the existing category.
var categoryTable = []categoryKeywords{
	{"Spesa", []string{"spesa", "supermercato", "cibo", "spese"}},
	{"Ritiro pacco", []string{"pacco", "ritiro", "spedizione", "postale"}},
	{"Montaggio", []string{"montaggio", "montare", "assemblare", "ikea"}},
	{"Ripetizioni", []string{"lezione", "ripetizione", "studio", "tutor"}},
	{"IT", []string{"computer", "software", "bug", "tecnico", "installare"}},
	{"Pulizie", []string{"pulizia", "casa", "igienizzare", "riordino"}},
	{"Consegna", []string{"consegna", "delivery", "porta"}},
}

var rangeByCategory = map[string]domain.PriceRange{
	"Spesa":        {Min: 12, Max: 20, Avg: 16},
	"Ritiro pacco": {Min: 10, Max: 18, Avg: 14},
	"Montaggio":    {Min: 18, Max: 32, Avg: 24},
	"Ripetizioni":  {Min: 18, Max: 30, Avg: 24},
	"IT":           {Min: 22, Max: 40, Avg: 30},
	"Pulizie":      {Min: 14, Max: 24, Avg: 18},
	"Consegna":     {Min: 12, Max: 22, Avg: 16},
}

var defaultRange = domain.PriceRange{Min: 12, Max: 24, Avg: 18}

var nonWord = regexp.MustCompile(`[^\wÀ-ú]+`)

// SuggestCategory infers a category from free text by keyword occurrence.
// Returns nil when the text is blank or no category keyword appears.
func SuggestCategory(title, description, existing string) *CategorySuggestion {
	baseText := strings.ToLower(title + " " + description)
	if strings.TrimSpace(baseText) == "" {
		return nil
	}

	var best *CategorySuggestion
	for _, entry := range categoryTable {
		hits := 0
		for _, keyword := range entry.keywords {
			if strings.Contains(baseText, nonWord.ReplaceAllString(keyword, "")) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		confidence := float64(hits) / 3
		if confidence > 1 {
			confidence = 1
		}
		if best == nil || confidence > best.Confidence ||
			(confidence == best.Confidence && entry.category == existing) {
			best = &CategorySuggestion{Category: entry.category, Confidence: confidence}
		}
	}
	return best
}

// SuggestRange looks up the compensation band for a category. Remote missions
// tolerate a lower minimum; the midpoint of the base bounds becomes the
// average and the maximum is untouched.
func SuggestRange(category string, mode domain.LocationMode) domain.PriceRange {
	base, ok := rangeByCategory[category]
	if !ok {
		base = defaultRange
	}
	if mode == domain.LocationRemote {
		min := base.Min - 2
		if min < 8 {
			min = 8
		}
		return domain.PriceRange{
			Min: min,
			Max: base.Max,
			Avg: (base.Min + base.Max + 1) / 2,
		}
	}
	return base
}
