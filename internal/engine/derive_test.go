package engine_test

import (
	"reflect"
	"testing"
	"time"

	"sidequest/internal/domain"
	"sidequest/internal/engine"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDefaultDraft(t *testing.T) {
	d := engine.DefaultDraft(fixedNow)
	if d.Price != 18 || d.PriceInput != "18" {
		t.Fatalf("default price: %d / %q", d.Price, d.PriceInput)
	}
	if d.PriceRangeHint != (domain.PriceRange{Min: 12, Max: 24, Avg: 18}) {
		t.Fatalf("default range: %+v", d.PriceRangeHint)
	}
	if d.Schedule.Option != domain.ScheduleNow || d.Location.Mode != domain.LocationInPerson {
		t.Fatalf("default schedule/location: %+v %+v", d.Schedule, d.Location)
	}
	if d.UpdatedAt != fixedNow.UnixMilli() {
		t.Fatalf("updated at: %d", d.UpdatedAt)
	}
}

func TestDeriveFreshPackagePickup(t *testing.T) {
	d := engine.DefaultDraft(fixedNow)
	d.Title = "Ritiro pacco in centro"
	d.Description = "Il pacco è pronto al punto ritiro in centro, serve entro le 19"
	d = engine.Derive(d, fixedNow)

	if d.Category != "Ritiro pacco" {
		t.Fatalf("category: %q", d.Category)
	}
	if d.CategorySource != domain.CategoryAuto {
		t.Fatalf("category source: %q", d.CategorySource)
	}
	if d.PriceRangeHint != (domain.PriceRange{Min: 10, Max: 18, Avg: 14}) {
		t.Fatalf("range hint: %+v", d.PriceRangeHint)
	}
	// default 18 sits exactly on the range maximum
	if d.Price != 18 || d.PriceInput != "18" {
		t.Fatalf("price: %d / %q", d.Price, d.PriceInput)
	}
	// title +1, description +1 => score 2
	if d.Quality != domain.QualityCompleta {
		t.Fatalf("quality: %s", d.Quality)
	}
}

func TestDerivePriceClampAndMirror(t *testing.T) {
	d := engine.DefaultDraft(fixedNow)
	d.Title = "Montaggio mobile ikea"
	d.Price = 99
	d = engine.Derive(d, fixedNow)
	if d.PriceRangeHint.Max != 32 || d.Price != 32 {
		t.Fatalf("clamp high: price %d hint %+v", d.Price, d.PriceRangeHint)
	}
	if d.PriceInput != "32" {
		t.Fatalf("mirror: %q", d.PriceInput)
	}

	d.Price = 1
	d = engine.Derive(d, fixedNow)
	if d.Price != 18 {
		t.Fatalf("sub-floor price must snap to the range minimum, got %d", d.Price)
	}
}

func TestDerivePriceFallsBackToAverage(t *testing.T) {
	d := engine.DefaultDraft(fixedNow)
	d.Price = 0
	d = engine.Derive(d, fixedNow)
	if d.Price != 18 {
		t.Fatalf("non-positive price must take the range average, got %d", d.Price)
	}
	if d.PriceInput != "18" {
		t.Fatalf("mirror: %q", d.PriceInput)
	}
}

func TestDeriveManualCategorySticky(t *testing.T) {
	d := engine.DefaultDraft(fixedNow)
	d.Category = "IT"
	d.CategorySource = domain.CategoryManual
	d.Title = "spesa spesa spesa al supermercato"
	for i := 0; i < 3; i++ {
		d = engine.Derive(d, fixedNow)
	}
	if d.Category != "IT" {
		t.Fatalf("manual category must survive derivation, got %q", d.Category)
	}
	if d.PriceRangeHint != (domain.PriceRange{Min: 22, Max: 40, Avg: 30}) {
		t.Fatalf("range must follow the manual category, got %+v", d.PriceRangeHint)
	}
}

func TestDerivePrefersRefinedRange(t *testing.T) {
	d := engine.DefaultDraft(fixedNow)
	d.Title = "Ritiro pacco"
	d.Refined = &domain.RefineResult{SuggestedRange: &domain.PriceRange{Min: 30, Max: 50, Avg: 40}}
	d = engine.Derive(d, fixedNow)
	if d.PriceRangeHint != (domain.PriceRange{Min: 30, Max: 50, Avg: 40}) {
		t.Fatalf("refined range must win, got %+v", d.PriceRangeHint)
	}
	if d.Price != 30 {
		t.Fatalf("price must clamp into the refined range, got %d", d.Price)
	}
}

func TestDeriveIdempotent(t *testing.T) {
	d := engine.DefaultDraft(fixedNow)
	d.Title = "Montaggio libreria ikea in salotto"
	d.Description = "Tre scaffali da fissare a parete, attrezzi sul posto."
	d.Tags = []string{"Montaggio", "Casa"}
	once := engine.Derive(d, fixedNow)
	twice := engine.Derive(once, fixedNow)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("derive must be idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}
