package refine_test

import (
	"context"
	"testing"

	"sidequest/internal/domain"
	"sidequest/internal/refine"
)

func TestHeuristicNormalizesText(t *testing.T) {
	h := refine.Heuristic{}
	res, err := h.Refine(context.Background(), refine.Request{
		Title:       "ritiro pacco urgente",
		Description: "  il pacco   è pronto\n\nal punto ritiro  ",
		Tags:        []string{"Spesa"},
		Location:    domain.Location{Mode: domain.LocationInPerson, Address: "Via Roma 5"},
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if res.RefinedTitle != "Ritiro pacco urgente" {
		t.Fatalf("title: %q", res.RefinedTitle)
	}
	if res.RefinedDescription != "il pacco è pronto al punto ritiro." {
		t.Fatalf("description: %q", res.RefinedDescription)
	}
	if res.Category != "Spesa" {
		t.Fatalf("category: %q", res.Category)
	}
	if res.SuggestedRange == nil || *res.SuggestedRange != (domain.PriceRange{Min: 12, Max: 20, Avg: 16}) {
		t.Fatalf("range: %+v", res.SuggestedRange)
	}
	if res.EstimatedDuration == "" {
		t.Fatal("a known tag should estimate a duration")
	}
	if len(res.Missing) != 0 {
		t.Fatalf("nothing missing: %v", res.Missing)
	}
}

func TestHeuristicCapitalizesAccentedTitle(t *testing.T) {
	h := refine.Heuristic{}
	res, err := h.Refine(context.Background(), refine.Request{
		Title:    "è tutto da montare",
		Location: domain.Location{Mode: domain.LocationRemote},
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if res.RefinedTitle != "È tutto da montare" {
		t.Fatalf("title: %q", res.RefinedTitle)
	}
}

func TestHeuristicFlagsMissingEssentials(t *testing.T) {
	h := refine.Heuristic{}
	res, err := h.Refine(context.Background(), refine.Request{
		Title:    "aiuto",
		Location: domain.Location{Mode: domain.LocationInPerson},
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if len(res.Missing) != 2 {
		t.Fatalf("missing hints: %v", res.Missing)
	}
	if res.Missing[0] != "aggiungi luogo" || res.Missing[1] != "aggiungi dettagli" {
		t.Fatalf("missing hints: %v", res.Missing)
	}
	if res.SuggestedRange != nil {
		t.Fatalf("unknown tags suggest no range, got %+v", res.SuggestedRange)
	}
}

func TestHeuristicRemoteNeedsNoAddress(t *testing.T) {
	h := refine.Heuristic{}
	res, err := h.Refine(context.Background(), refine.Request{
		Title:       "installazione software",
		Description: "da remoto",
		Location:    domain.Location{Mode: domain.LocationRemote},
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	for _, m := range res.Missing {
		if m == "aggiungi luogo" {
			t.Fatal("remote missions must not ask for an address")
		}
	}
}
