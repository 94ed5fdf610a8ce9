package engine

import (
	"strings"

	"sidequest/internal/domain"
)

// ComputeQuality scores draft richness and maps the score to a tier.
// Pure: absent inputs count as empty.
func ComputeQuality(d domain.MissionDraft) domain.QualityLevel {
	score := 0

	switch title := strings.TrimSpace(d.Title); {
	case len([]rune(title)) >= 24:
		score += 2
	case len([]rune(title)) >= 12:
		score++
	}

	switch desc := strings.TrimSpace(d.Description); {
	case len([]rune(desc)) >= 180:
		score += 2
	case len([]rune(desc)) >= 60:
		score++
	}

	if len(d.Tags) >= 3 {
		score++
	}
	if len(d.Skills) >= 2 {
		score++
	}
	if len(d.Attachments) > 0 {
		score++
	}

	switch {
	case score >= 5:
		return domain.QualityEccellente
	case score >= 3:
		return domain.QualityOttimizzata
	default:
		return domain.QualityCompleta
	}
}
