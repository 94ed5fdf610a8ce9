package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"sidequest/internal/domain"
	"sidequest/internal/events"
	"sidequest/internal/storage"
)

// DraftStorageKey is the fixed slot the serialized draft lives under.
const DraftStorageKey = "mission-wizard-draft-v2"

const saveDebounce = 280 * time.Millisecond

// Store owns the single mutable MissionDraft of a wizard session. Every
// mutation goes through the derivation pipeline, and every state change
// schedules a debounced best-effort write-through to local storage.
type Store struct {
	KV     storage.KV
	Events events.Writer
	Logger *zap.Logger
	Now    func() time.Time

	// Debounce overrides the save delay; zero means the default.
	Debounce time.Duration

	mu        sync.Mutex
	draft     domain.MissionDraft
	errors    domain.Validation
	loading   bool
	ready     bool
	closed    bool
	saveTimer *time.Timer
	saveGen   uint64
}

// NewStore builds a store with a fresh default draft. Call Load to pick up a
// previously persisted draft.
func NewStore(kv storage.KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		KV:     kv,
		Logger: logger,
		Now:    time.Now,
	}
	s.draft = DefaultDraft(s.Now())
	s.errors = domain.Validation{}
	s.loading = true
	return s
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Load attempts to restore a persisted draft. Absence and failure both fall
// back to the defaults; failure is logged, never surfaced.
func (s *Store) Load(ctx context.Context) {
	raw, err := s.KV.Get(ctx, DraftStorageKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		s.loading = false
		s.ready = true
	}()
	if s.closed {
		return
	}
	if err != nil {
		if err != storage.ErrNotFound {
			s.Logger.Warn("load mission draft failed", zap.Error(err))
		}
		return
	}
	merged := DefaultDraft(s.now())
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		s.Logger.Warn("parse mission draft failed", zap.Error(err))
		return
	}
	s.draft = Derive(merged, s.now())
}

// Loading reports whether the initial load attempt has completed.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Draft returns the current draft state.
func (s *Store) Draft() domain.MissionDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// UpdateDraft applies a transform, reruns the derivation pipeline, and
// schedules a debounced save. This is the primitive every structured update
// goes through.
func (s *Store) UpdateDraft(transform func(domain.MissionDraft) domain.MissionDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.draft = Derive(transform(s.draft), s.now())
	s.scheduleSaveLocked()
}

func (s *Store) SetTitle(title string) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Title = title
		return d
	})
}

func (s *Store) SetDescription(description string) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Description = description
		return d
	})
}

// SetCategory replaces the category. A manual pick is sticky: the derivation
// pipeline stops auto-overwriting it.
func (s *Store) SetCategory(category string, manual bool) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Category = category
		if manual {
			d.CategorySource = domain.CategoryManual
		}
		return d
	})
}

// ToggleTag adds or removes a tag, preserving insertion order.
func (s *Store) ToggleTag(tag string) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		for i, t := range d.Tags {
			if t == tag {
				d.Tags = append(append([]string{}, d.Tags[:i]...), d.Tags[i+1:]...)
				return d
			}
		}
		d.Tags = append(append([]string{}, d.Tags...), tag)
		return d
	})
}

// SetPrice replaces the price and keeps the text mirror in sync before the
// derivation pass clamps both.
func (s *Store) SetPrice(price int) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Price = price
		d.PriceInput = ""
		return d
	})
}

// SetPriceInput records raw price text. Unparsable text keeps the previous
// price; derivation then re-syncs the mirror.
func (s *Store) SetPriceInput(raw string) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		if n, err := parsePrice(raw); err == nil {
			d.Price = n
		}
		return d
	})
}

func (s *Store) SetTip(tip int) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		if tip < 0 {
			tip = 0
		}
		d.Tip = tip
		return d
	})
}

func (s *Store) SetUrgency(u domain.Urgency) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Urgency = u
		return d
	})
}

func (s *Store) SetSkills(skills []string) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Skills = dedupe(skills)
		return d
	})
}

func (s *Store) SetNotes(notes string) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Notes = notes
		return d
	})
}

func (s *Store) SetAccess(access string) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Access = access
		return d
	})
}

func (s *Store) SetAttachments(attachments []domain.Attachment) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Attachments = attachments
		return d
	})
}

func (s *Store) SetVisibility(v domain.Visibility) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Visibility = v
		return d
	})
}

// SetLocation replaces the address and coordinates, keeping the mode.
func (s *Store) SetLocation(address string, coordinates *domain.Coordinates) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Location.Address = address
		d.Location.Coordinates = coordinates
		return d
	})
}

// SetRemote switches the location mode. Going remote clears the address.
func (s *Store) SetRemote(remote bool) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		if remote {
			d.Location.Mode = domain.LocationRemote
			d.Location.Address = ""
		} else {
			d.Location.Mode = domain.LocationInPerson
		}
		return d
	})
}

// SetSchedule replaces the schedule. Start and deadline are meaningful only
// for the custom option and are cleared otherwise.
func (s *Store) SetSchedule(schedule domain.Schedule) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		if schedule.Option != domain.ScheduleCustom {
			schedule.Start = nil
			schedule.Deadline = nil
		}
		d.Schedule = schedule
		return d
	})
}

// ApplyTemplate pre-fills the draft from a catalog template. Reports whether
// the key matched.
func (s *Store) ApplyTemplate(key string) bool {
	t, ok := TemplateByKey(key)
	if !ok {
		return false
	}
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		d.Title = t.Title
		d.Description = t.Description
		d.Category = t.Category
		d.CategorySource = domain.CategoryTemplate
		d.Tags = dedupe(append(append([]string{}, d.Tags...), t.Tags...))
		d.Price = t.Price.Avg
		d.Urgency = t.Urgency
		d.TemplateKey = key
		return d
	})
	return true
}

// StartQuickMission pre-fills the minimal fast-path draft: remote, immediate,
// average price.
func (s *Store) StartQuickMission() {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		if d.Title == "" {
			d.Title = "Missione rapida"
		}
		d.Schedule = domain.Schedule{Option: domain.ScheduleNow}
		d.Price = d.PriceRangeHint.Avg
		if d.Price == 0 {
			d.Price = 15
		}
		d.QuickMode = true
		d.Location.Mode = domain.LocationRemote
		d.Location.Address = ""
		return d
	})
}

// ApplyRefined merges a refine result into the draft: title and description
// are replaced when the result provides them, and the whole result is kept
// for the summary surfaces.
func (s *Store) ApplyRefined(result domain.RefineResult) {
	s.UpdateDraft(func(d domain.MissionDraft) domain.MissionDraft {
		if result.RefinedTitle != "" {
			d.Title = result.RefinedTitle
		}
		if result.RefinedDescription != "" {
			d.Description = result.RefinedDescription
		}
		r := result
		d.Refined = &r
		return d
	})
}

// Errors returns the current validation error map.
func (s *Store) Errors() domain.Validation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.Validation, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// SetErrors replaces the validation error map.
func (s *Store) SetErrors(errs domain.Validation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errs == nil {
		errs = domain.Validation{}
	}
	s.errors = errs
}

func (s *Store) ClearErrors() {
	s.SetErrors(nil)
}

// Reset clears persisted storage and resets in-memory state to the defaults,
// or to next when given. Bumping the save generation invalidates any debounced
// save, including one whose timer already fired but has not written yet.
func (s *Store) Reset(ctx context.Context, next *domain.MissionDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveGen++
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	fresh := DefaultDraft(s.now())
	if next != nil {
		fresh = *next
	}
	s.draft = Derive(fresh, s.now())
	s.errors = domain.Validation{}

	if err := s.KV.Remove(ctx, DraftStorageKey); err != nil {
		s.Logger.Warn("clear mission draft failed", zap.Error(err))
	}
	if s.Events.DB != nil {
		if err := s.Events.Append(ctx, "draft.reset", "draft", DraftStorageKey, "", nil); err != nil {
			s.Logger.Warn("append draft.reset event failed", zap.Error(err))
		}
	}
}

// Close cancels any pending save and detaches the store from its session.
// Late load or save completions are discarded afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
}

func (s *Store) debounce() time.Duration {
	if s.Debounce > 0 {
		return s.Debounce
	}
	return saveDebounce
}

// scheduleSaveLocked arms (or re-arms) the debounced write-through. Only the
// state at fire time is persisted; intermediate keystrokes are not.
func (s *Store) scheduleSaveLocked() {
	if !s.ready || s.closed {
		return
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	gen := s.saveGen
	s.saveTimer = time.AfterFunc(s.debounce(), func() { s.persist(gen) })
}

// persist writes the current draft through to storage. It holds the lock for
// the whole write so a save from generation gen and a later Reset cannot
// interleave: either the write lands first and the reset removes it, or the
// generation check discards the stale save.
func (s *Store) persist(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.saveGen {
		return
	}
	snapshot := s.draft

	data, err := json.Marshal(snapshot)
	if err != nil {
		s.Logger.Warn("marshal mission draft failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.KV.Set(ctx, DraftStorageKey, string(data)); err != nil {
		s.Logger.Warn("autosave mission draft failed", zap.Error(err))
		return
	}
	if s.Events.DB != nil {
		if err := s.Events.Append(ctx, "draft.saved", "draft", DraftStorageKey, "", events.EventPayload{
			"quality": snapshot.Quality,
		}); err != nil {
			s.Logger.Warn("append draft.saved event failed", zap.Error(err))
		}
	}
}

func parsePrice(raw string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(raw))
}
