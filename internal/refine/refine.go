// Package refine is the optional draft-enhancement collaborator. Results are
// suggestions only; the wizard merges them on explicit user action.
package refine

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"sidequest/internal/domain"
)

// Request carries the draft fields the refiner may look at.
type Request struct {
	Title       string
	Description string
	Tags        []string
	Location    domain.Location
}

// Refiner computes an enhancement for a draft. Implementations may fail; the
// caller surfaces a retryable message and leaves the draft untouched.
type Refiner interface {
	Refine(ctx context.Context, req Request) (domain.RefineResult, error)
}

// Heuristic refines locally without any network dependency: normalizes the
// description, capitalizes the title, picks a range from known tags, and
// lists missing essentials.
type Heuristic struct {
	// Latency imitates a remote call so UI flows exercise their pending
	// states; zero disables the wait.
	Latency time.Duration
}

var collapseSpace = regexp.MustCompile(`\s+`)

func (h Heuristic) Refine(ctx context.Context, req Request) (domain.RefineResult, error) {
	if h.Latency > 0 {
		select {
		case <-time.After(h.Latency):
		case <-ctx.Done():
			return domain.RefineResult{}, ctx.Err()
		}
	}

	var missing []string
	if req.Location.Address == "" && req.Location.Mode != domain.LocationRemote {
		missing = append(missing, "aggiungi luogo")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "aggiungi dettagli")
	}

	refinedDescription := ""
	if req.Description != "" {
		refinedDescription = strings.TrimSuffix(
			strings.TrimSpace(collapseSpace.ReplaceAllString(req.Description, " ")), ".") + "."
	}

	refinedTitle := req.Title
	if r, size := utf8.DecodeRuneInString(refinedTitle); size > 0 && r != utf8.RuneError {
		refinedTitle = string(unicode.ToUpper(r)) + refinedTitle[size:]
	}

	var suggested *domain.PriceRange
	estimated := ""
	switch {
	case contains(req.Tags, "Montaggio"):
		suggested = &domain.PriceRange{Min: 20, Max: 34, Avg: 26}
	case contains(req.Tags, "Spesa"):
		suggested = &domain.PriceRange{Min: 12, Max: 20, Avg: 16}
	}
	if suggested != nil {
		estimated = "circa 1h 30m"
	}

	category := ""
	if len(req.Tags) > 0 {
		category = req.Tags[0]
	}

	return domain.RefineResult{
		Category:           category,
		RefinedTitle:       refinedTitle,
		RefinedDescription: refinedDescription,
		SuggestedRange:     suggested,
		EstimatedDuration:  estimated,
		Missing:            missing,
	}, nil
}

func contains(in []string, want string) bool {
	for _, s := range in {
		if s == want {
			return true
		}
	}
	return false
}
