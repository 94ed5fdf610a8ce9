package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sidequest/internal/domain"
	"sidequest/internal/events"
	"sidequest/internal/feedback"
	"sidequest/internal/refine"
)

// Step indexes the six wizard steps in order.
type Step int

const (
	StepDetails Step = iota
	StepLocation
	StepSchedule
	StepPrice
	StepRequirements
	StepSummary
)

const StepCount = 6

// StepInfo is the display header of a step.
type StepInfo struct {
	Key      string
	Title    string
	Subtitle string
}

var stepInfos = [StepCount]StepInfo{
	{Key: "details", Title: "Cosa serve?", Subtitle: "Descrivi brevemente la missione."},
	{Key: "location", Title: "Dove?", Subtitle: "Indica indirizzo o scegli remoto."},
	{Key: "schedule", Title: "Quando?", Subtitle: "Scegli il momento migliore."},
	{Key: "price", Title: "Compenso", Subtitle: "Definisci offerta e priorità."},
	{Key: "requirements", Title: "Dettagli", Subtitle: "Requisiti, accessi e allegati."},
	{Key: "summary", Title: "Riepilogo", Subtitle: "Controlla e pubblica."},
}

// Info returns the display header of a step. Out-of-range steps get an empty
// header.
func (s Step) Info() StepInfo {
	if s < 0 || s >= StepCount {
		return StepInfo{}
	}
	return stepInfos[s]
}

// summaryFieldToStep maps an editable summary field to the step owning it.
var summaryFieldToStep = map[string]Step{
	"title":      StepDetails,
	"category":   StepDetails,
	"address":    StepLocation,
	"datetime":   StepSchedule,
	"price":      StepPrice,
	"notes":      StepRequirements,
	"visibility": StepSummary,
}

const (
	msgFixHighlighted = "Completa i campi evidenziati prima di proseguire."
	msgCheckRequired  = "Controlla i campi obbligatori prima della pubblicazione."
	msgPublishFailed  = "Non siamo riusciti a pubblicare la missione. Riprova più tardi."
	msgOffline        = "Connettiti per pubblicare la missione."
	msgRefineFailed   = "Non siamo riusciti a migliorare la missione. Riprova."
	toastPublished    = "Missione pubblicata · visibile ai Doer nelle vicinanze"
	toastDraftSaved   = "Bozza salvata automaticamente."
)

const closeDelay = 1200 * time.Millisecond

// ValidateStep applies the per-step rules. Steps 2 to 4 accept any state.
func ValidateStep(step Step, d domain.MissionDraft) domain.Validation {
	issues := domain.Validation{}
	title := strings.TrimSpace(d.Title)
	address := strings.TrimSpace(d.Location.Address)
	switch step {
	case StepDetails:
		if title == "" {
			issues["title"] = "Inserisci un titolo chiaro."
		}
	case StepLocation:
		if d.Location.Mode != domain.LocationRemote && address == "" {
			issues["location.address"] = "Serve un indirizzo."
		}
	case StepSummary:
		if title == "" {
			issues["title"] = "Titolo obbligatorio."
		}
		if d.Location.Mode != domain.LocationRemote && address == "" {
			issues["location.address"] = "Aggiungi il luogo prima di pubblicare."
		}
	}
	return issues
}

// DeviceIdentity supplies the id that attributes a created mission to this
// device.
type DeviceIdentity interface {
	GetOrCreate(ctx context.Context) (string, error)
}

// Sequencer drives the six-step flow over a Store: step navigation with
// validation gates, publish, refine, and the transient banner/toast state a
// host surface renders.
type Sequencer struct {
	Store    *Store
	Creator  MissionCreator
	Identity DeviceIdentity
	Refiner  refine.Refiner
	Notify   feedback.Notifier
	Events   events.Writer
	Logger   *zap.Logger

	// Available reports whether a backend is configured; read once per
	// publish attempt. Nil means unavailable.
	Available func() bool

	// CloseSheet dismisses the wizard surface. Called after a successful
	// publish (delayed, so the toast is perceived) and on the offline path.
	CloseSheet func()

	// CloseDelay overrides the post-publish close delay; zero means the
	// default. After overrides the timer primitive for tests.
	CloseDelay time.Duration
	After      func(d time.Duration, fn func())

	mu         sync.Mutex
	step       Step
	publishing bool
	toast      string
	banner     string
	notice     string
	refineErr  string
	refining   bool
}

// NewSequencer wires a sequencer over a store with no-op collaborators where
// none are given.
func NewSequencer(store *Store) *Sequencer {
	return &Sequencer{
		Store:  store,
		Notify: feedback.Noop{},
		Logger: zap.NewNop(),
	}
}

// Step returns the current step index.
func (q *Sequencer) Step() Step {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.step
}

// Publishing reports whether a publish attempt is in flight.
func (q *Sequencer) Publishing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.publishing
}

// Toast returns the transient success message, if any.
func (q *Sequencer) Toast() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.toast
}

// Banner returns the inline error message, if any.
func (q *Sequencer) Banner() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.banner
}

// Notice returns the offline notice, if any.
func (q *Sequencer) Notice() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.notice
}

// RefineError returns the inline refine failure message, if any.
func (q *Sequencer) RefineError() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.refineErr
}

// Refining reports whether a refine call is in flight.
func (q *Sequencer) Refining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.refining
}

// setStep moves to a step and clears stale validation state, mirroring the
// step-change effect of the host surface.
func (q *Sequencer) setStep(step Step) {
	q.mu.Lock()
	q.step = step
	q.banner = ""
	q.mu.Unlock()
	q.Store.ClearErrors()
}

// Next validates the current step and advances; on the last step it
// publishes instead.
func (q *Sequencer) Next(ctx context.Context) error {
	q.mu.Lock()
	step := q.step
	q.mu.Unlock()

	issues := ValidateStep(step, q.Store.Draft())
	q.Store.SetErrors(issues)
	if len(issues) > 0 {
		q.mu.Lock()
		q.banner = msgFixHighlighted
		q.mu.Unlock()
		return nil
	}
	if step < StepSummary {
		q.setStep(step + 1)
		q.notify().StepAdvanced()
		return nil
	}
	return q.Publish(ctx)
}

// Back moves one step backwards; on the first step it dismisses the wizard.
func (q *Sequencer) Back() {
	q.mu.Lock()
	step := q.step
	q.mu.Unlock()
	if step == StepDetails {
		if q.CloseSheet != nil {
			q.CloseSheet()
		}
		return
	}
	q.setStep(step - 1)
}

// JumpToField moves directly to the step owning a summary field, bypassing
// validation. Unknown fields are ignored.
func (q *Sequencer) JumpToField(field string) {
	if target, ok := summaryFieldToStep[field]; ok {
		q.setStep(target)
	}
}

// QuickMission is the fast path: a minimal pre-filled draft and a jump
// straight to the summary.
func (q *Sequencer) QuickMission() {
	q.Store.StartQuickMission()
	q.setStep(StepSummary)
}

// ApplyTemplate pre-fills the draft from a template and moves on to the
// location step. Reports whether the key matched.
func (q *Sequencer) ApplyTemplate(key string) bool {
	if !q.Store.ApplyTemplate(key) {
		return false
	}
	q.setStep(StepLocation)
	return true
}

// SaveDraftToast flashes the autosave toast from the summary's secondary
// action. The draft itself is already persisted by the store's debounce.
func (q *Sequencer) SaveDraftToast() {
	q.mu.Lock()
	q.toast = toastDraftSaved
	q.mu.Unlock()
	q.after(q.closeDelay(), func() {
		q.mu.Lock()
		if q.toast == toastDraftSaved {
			q.toast = ""
		}
		q.mu.Unlock()
	})
}

// Publish runs the full pre-publish gate and submits the draft. Validation
// failure and backend errors keep the user on the summary step with the
// draft intact; the offline path and success both reset the draft and
// dismiss the wizard.
func (q *Sequencer) Publish(ctx context.Context) error {
	q.mu.Lock()
	if q.publishing {
		q.mu.Unlock()
		return nil
	}
	q.publishing = true
	q.banner = ""
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.publishing = false
		q.mu.Unlock()
	}()

	issues := ValidateStep(StepSummary, q.Store.Draft())
	q.Store.SetErrors(issues)
	if len(issues) > 0 {
		q.mu.Lock()
		q.banner = msgCheckRequired
		q.mu.Unlock()
		return nil
	}

	if q.Available == nil || !q.Available() {
		q.mu.Lock()
		q.notice = msgOffline
		q.mu.Unlock()
		q.Store.Reset(ctx, nil)
		q.setStep(StepDetails)
		if q.CloseSheet != nil {
			q.CloseSheet()
		}
		return nil
	}

	deviceID, err := q.Identity.GetOrCreate(ctx)
	if err != nil {
		q.logger().Warn("resolve device id failed", zap.Error(err))
		q.mu.Lock()
		q.banner = msgPublishFailed
		q.mu.Unlock()
		return err
	}

	payload := MapDraft(q.Store.Draft())
	mission, err := q.Creator.CreateMission(ctx, payload, deviceID)
	if err != nil {
		q.logger().Warn("publish mission failed", zap.Error(err))
		q.mu.Lock()
		q.banner = msgPublishFailed
		q.mu.Unlock()
		return err
	}

	q.notify().PublishSucceeded()
	if q.Events.DB != nil {
		if aerr := q.Events.Append(ctx, "mission.published", "mission", mission.ID, deviceID, events.EventPayload{
			"title": mission.Title,
		}); aerr != nil {
			q.logger().Warn("append mission.published event failed", zap.Error(aerr))
		}
	}

	q.mu.Lock()
	q.toast = toastPublished
	q.mu.Unlock()
	q.Store.Reset(ctx, nil)
	q.setStep(StepDetails)
	q.after(q.closeDelay(), func() {
		q.mu.Lock()
		q.toast = ""
		q.mu.Unlock()
		if q.CloseSheet != nil {
			q.CloseSheet()
		}
	})
	return nil
}

// Refine asks the collaborator for an enhancement and merges it into the
// draft. Failure leaves the draft untouched and surfaces a retryable inline
// message.
func (q *Sequencer) Refine(ctx context.Context) error {
	q.mu.Lock()
	if q.refining {
		q.mu.Unlock()
		return nil
	}
	q.refining = true
	q.refineErr = ""
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.refining = false
		q.mu.Unlock()
	}()

	d := q.Store.Draft()
	result, err := q.Refiner.Refine(ctx, refine.Request{
		Title:       d.Title,
		Description: d.Description,
		Tags:        d.Tags,
		Location:    d.Location,
	})
	if err != nil {
		q.logger().Warn("refine mission failed", zap.Error(err))
		q.mu.Lock()
		q.refineErr = msgRefineFailed
		q.mu.Unlock()
		return err
	}
	q.Store.ApplyRefined(result)
	q.notify().RefineSucceeded()
	return nil
}

func (q *Sequencer) closeDelay() time.Duration {
	if q.CloseDelay > 0 {
		return q.CloseDelay
	}
	return closeDelay
}

func (q *Sequencer) after(d time.Duration, fn func()) {
	if q.After != nil {
		q.After(d, fn)
		return
	}
	time.AfterFunc(d, fn)
}

func (q *Sequencer) notify() feedback.Notifier {
	if q.Notify == nil {
		return feedback.Noop{}
	}
	return q.Notify
}

func (q *Sequencer) logger() *zap.Logger {
	if q.Logger == nil {
		return zap.NewNop()
	}
	return q.Logger
}
