package engine

import (
	"strconv"
	"time"

	"sidequest/internal/domain"
)

// DefaultDraft returns a fresh draft with the wizard's fixed defaults.
func DefaultDraft(now time.Time) domain.MissionDraft {
	return domain.MissionDraft{
		Title:          "",
		Description:    "",
		Category:       "",
		CategorySource: domain.CategoryAuto,
		Tags:           []string{},
		Quality:        domain.QualityCompleta,
		Location: domain.Location{
			Mode:    domain.LocationInPerson,
			Address: "",
		},
		Schedule: domain.Schedule{
			Option: domain.ScheduleNow,
		},
		Price:          18,
		PriceInput:     "18",
		PriceRangeHint: defaultRange,
		Urgency:        domain.UrgencyNormale,
		Skills:         []string{},
		Attachments:    []domain.Attachment{},
		Visibility:     domain.VisibilityPublic,
		UpdatedAt:      now.UnixMilli(),
	}
}

// Derive recomputes the dependent fields of a draft in a fixed order:
// category suggestion, price range hint, clamped price with its text mirror,
// quality tier, update stamp. Idempotent for a fixed clock and total over any
// well-typed draft.
func Derive(d domain.MissionDraft, now time.Time) domain.MissionDraft {
	next := d

	if s := SuggestCategory(next.Title, next.Description, next.Category); s != nil && next.CategorySource != domain.CategoryManual {
		next.Category = s.Category
		next.CategorySource = domain.CategoryAuto
	}

	if next.Refined != nil && next.Refined.SuggestedRange != nil {
		next.PriceRangeHint = *next.Refined.SuggestedRange
	} else {
		next.PriceRangeHint = SuggestRange(next.Category, next.Location.Mode)
	}

	base := next.Price
	if base <= 0 {
		base = next.PriceRangeHint.Avg
	}
	if base < 5 {
		base = 5
	}
	next.Price = clamp(base, next.PriceRangeHint.Min, next.PriceRangeHint.Max)
	next.PriceInput = strconv.Itoa(next.Price)

	next.Quality = ComputeQuality(next)

	next.UpdatedAt = now.UnixMilli()
	return next
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
