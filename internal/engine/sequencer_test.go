package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sidequest/internal/domain"
	"sidequest/internal/engine"
	"sidequest/internal/refine"
	"sidequest/internal/storage"
)

// memKV keeps the sequencer tests independent of SQLite.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeCreator struct {
	calls   int
	lastIn  domain.MissionInput
	lastDev string
	err     error
}

func (f *fakeCreator) CreateMission(ctx context.Context, payload domain.MissionInput, ownerDeviceID string) (domain.Mission, error) {
	f.calls++
	f.lastIn = payload
	f.lastDev = ownerDeviceID
	if f.err != nil {
		return domain.Mission{}, f.err
	}
	return domain.Mission{ID: "m-1", Title: payload.Title, Status: "open"}, nil
}

type fakeIdentity struct{ id string }

func (f fakeIdentity) GetOrCreate(ctx context.Context) (string, error) {
	return f.id, nil
}

func newTestSequencer(t *testing.T) (*engine.Sequencer, *engine.Store, *fakeCreator) {
	t.Helper()
	store := engine.NewStore(newMemKV(), nil)
	store.Now = func() time.Time { return fixedNow }
	store.Debounce = time.Millisecond
	t.Cleanup(store.Close)
	store.Load(context.Background())

	creator := &fakeCreator{}
	seq := engine.NewSequencer(store)
	seq.Creator = creator
	seq.Identity = fakeIdentity{id: "dev-1"}
	seq.Available = func() bool { return true }
	// run close timers inline so tests observe the final state
	seq.After = func(d time.Duration, fn func()) { fn() }
	return seq, store, creator
}

func TestNextBlockedByEmptyTitle(t *testing.T) {
	seq, store, _ := newTestSequencer(t)
	ctx := context.Background()

	if err := seq.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	if seq.Step() != engine.StepDetails {
		t.Fatalf("validation failure must not advance, step %d", seq.Step())
	}
	if msg := store.Errors()["title"]; msg != "Inserisci un titolo chiaro." {
		t.Fatalf("title error: %q", msg)
	}
	if seq.Banner() == "" {
		t.Fatal("expected the generic banner")
	}
}

func TestNextAdvancesAndClearsErrors(t *testing.T) {
	seq, store, _ := newTestSequencer(t)
	ctx := context.Background()

	_ = seq.Next(ctx) // fails, leaves errors behind
	store.SetTitle("Ritiro pacco in centro")
	if err := seq.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	if seq.Step() != engine.StepLocation {
		t.Fatalf("step: %d", seq.Step())
	}
	if len(store.Errors()) != 0 || seq.Banner() != "" {
		t.Fatalf("step change must clear stale errors: %v %q", store.Errors(), seq.Banner())
	}
}

func TestLocationStepRequiresAddressUnlessRemote(t *testing.T) {
	seq, store, _ := newTestSequencer(t)
	ctx := context.Background()
	store.SetTitle("Montaggio scaffale")
	_ = seq.Next(ctx)

	_ = seq.Next(ctx)
	if seq.Step() != engine.StepLocation {
		t.Fatalf("missing address must block, step %d", seq.Step())
	}
	if msg := store.Errors()["location.address"]; msg != "Serve un indirizzo." {
		t.Fatalf("address error: %q", msg)
	}

	store.SetRemote(true)
	_ = seq.Next(ctx)
	if seq.Step() != engine.StepSchedule {
		t.Fatalf("remote must pass the location gate, step %d", seq.Step())
	}
}

func TestBackFromFirstStepCloses(t *testing.T) {
	seq, _, _ := newTestSequencer(t)
	closed := false
	seq.CloseSheet = func() { closed = true }
	seq.Back()
	if !closed {
		t.Fatal("back on the first step must dismiss the wizard")
	}
}

func TestJumpToField(t *testing.T) {
	seq, _, _ := newTestSequencer(t)
	seq.JumpToField("price")
	if seq.Step() != engine.StepPrice {
		t.Fatalf("price jump: %d", seq.Step())
	}
	seq.JumpToField("datetime")
	if seq.Step() != engine.StepSchedule {
		t.Fatalf("datetime jump: %d", seq.Step())
	}
	seq.JumpToField("boh")
	if seq.Step() != engine.StepSchedule {
		t.Fatalf("unknown field must be ignored, step %d", seq.Step())
	}
}

func TestQuickMissionJumpsToSummary(t *testing.T) {
	seq, store, _ := newTestSequencer(t)
	seq.QuickMission()
	if seq.Step() != engine.StepSummary {
		t.Fatalf("step: %d", seq.Step())
	}
	d := store.Draft()
	if d.Location.Mode != domain.LocationRemote {
		t.Fatalf("quick mission must be remote, got %+v", d.Location)
	}
	if d.Schedule.Option != domain.ScheduleNow {
		t.Fatalf("quick mission must be immediate, got %+v", d.Schedule)
	}
	if !d.QuickMode || d.Title == "" {
		t.Fatalf("quick mission draft: %+v", d)
	}
}

func TestPublishSuccessResetsAndCloses(t *testing.T) {
	seq, store, creator := newTestSequencer(t)
	ctx := context.Background()
	closed := false
	seq.CloseSheet = func() { closed = true }

	store.SetTitle("Ritiro pacco in centro")
	store.SetRemote(true)
	seq.JumpToField("visibility")

	if err := seq.Publish(ctx); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if creator.calls != 1 {
		t.Fatalf("creator calls: %d", creator.calls)
	}
	if creator.lastDev != "dev-1" {
		t.Fatalf("device attribution: %q", creator.lastDev)
	}
	if creator.lastIn.Title != "Ritiro pacco in centro" {
		t.Fatalf("payload title: %q", creator.lastIn.Title)
	}
	if seq.Step() != engine.StepDetails {
		t.Fatalf("publish must reset to the first step, got %d", seq.Step())
	}
	if got := store.Draft().Title; got != "" {
		t.Fatalf("publish must reset the draft, title %q", got)
	}
	if !closed {
		t.Fatal("publish must dismiss the wizard after the toast delay")
	}
}

func TestPublishFailureStaysOnSummary(t *testing.T) {
	seq, store, creator := newTestSequencer(t)
	ctx := context.Background()
	creator.err = errors.New("boom")

	store.SetTitle("Ritiro pacco in centro")
	store.SetRemote(true)
	seq.JumpToField("visibility")

	if err := seq.Publish(ctx); err == nil {
		t.Fatal("expected the creator error to propagate")
	}
	if seq.Step() != engine.StepSummary {
		t.Fatalf("failure must stay on the summary, step %d", seq.Step())
	}
	if got := store.Draft().Title; got != "Ritiro pacco in centro" {
		t.Fatalf("failure must keep the draft, title %q", got)
	}
	if seq.Banner() != "Non siamo riusciti a pubblicare la missione. Riprova più tardi." {
		t.Fatalf("banner: %q", seq.Banner())
	}
}

func TestPublishOfflineNoticeSkipsNetwork(t *testing.T) {
	seq, store, creator := newTestSequencer(t)
	ctx := context.Background()
	seq.Available = func() bool { return false }
	closed := false
	seq.CloseSheet = func() { closed = true }

	store.SetTitle("Ritiro pacco in centro")
	store.SetRemote(true)
	seq.JumpToField("visibility")

	if err := seq.Publish(ctx); err != nil {
		t.Fatalf("offline publish: %v", err)
	}
	if creator.calls != 0 {
		t.Fatal("offline publish must not touch the network")
	}
	if seq.Notice() == "" {
		t.Fatal("expected the offline notice")
	}
	if seq.Step() != engine.StepDetails {
		t.Fatalf("offline publish resets the flow, step %d", seq.Step())
	}
	if got := store.Draft().Title; got != "" {
		t.Fatalf("offline publish resets the draft, title %q", got)
	}
	if !closed {
		t.Fatal("offline publish must dismiss the wizard")
	}
}

func TestPublishRevalidatesEverything(t *testing.T) {
	seq, store, creator := newTestSequencer(t)
	ctx := context.Background()

	// in-person mission without an address, reached by jumping
	store.SetTitle("Montaggio scaffale")
	seq.JumpToField("visibility")

	if err := seq.Publish(ctx); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if creator.calls != 0 {
		t.Fatal("validation failure must not submit")
	}
	if msg := store.Errors()["location.address"]; msg != "Aggiungi il luogo prima di pubblicare." {
		t.Fatalf("address error: %q", msg)
	}
	if seq.Banner() != "Controlla i campi obbligatori prima della pubblicazione." {
		t.Fatalf("banner: %q", seq.Banner())
	}
}

type fakeRefiner struct {
	result domain.RefineResult
	err    error
}

func (f fakeRefiner) Refine(ctx context.Context, req refine.Request) (domain.RefineResult, error) {
	return f.result, f.err
}

func TestRefineMergesResult(t *testing.T) {
	seq, store, _ := newTestSequencer(t)
	ctx := context.Background()
	store.SetTitle("ritiro pacco alle poste")
	seq.Refiner = fakeRefiner{result: domain.RefineResult{
		RefinedTitle:       "Ritiro pacco alle poste centrali",
		RefinedDescription: "Pacco pronto al ritiro.",
		SuggestedRange:     &domain.PriceRange{Min: 10, Max: 16, Avg: 13},
	}}

	if err := seq.Refine(ctx); err != nil {
		t.Fatalf("refine: %v", err)
	}
	d := store.Draft()
	if d.Title != "Ritiro pacco alle poste centrali" {
		t.Fatalf("title: %q", d.Title)
	}
	if d.Refined == nil || d.Refined.SuggestedRange == nil {
		t.Fatalf("refine result must be kept, got %+v", d.Refined)
	}
	if d.PriceRangeHint != (domain.PriceRange{Min: 10, Max: 16, Avg: 13}) {
		t.Fatalf("refined range must drive the hint, got %+v", d.PriceRangeHint)
	}
	if d.Price < 10 || d.Price > 16 {
		t.Fatalf("price must clamp into the refined range, got %d", d.Price)
	}
}

func TestRefineFailureLeavesDraftUntouched(t *testing.T) {
	seq, store, _ := newTestSequencer(t)
	ctx := context.Background()
	store.SetTitle("ritiro pacco alle poste")
	before := store.Draft()
	seq.Refiner = fakeRefiner{err: errors.New("quota")}

	if err := seq.Refine(ctx); err == nil {
		t.Fatal("expected the refiner error to propagate")
	}
	if seq.RefineError() == "" {
		t.Fatal("expected a retryable inline message")
	}
	if got := store.Draft().Title; got != before.Title {
		t.Fatalf("failure must not touch the draft, title %q", got)
	}
}
