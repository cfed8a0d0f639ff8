package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/valuerapi"
)

var (
	ErrAlreadyInitialized = errors.New("wizard: report already initialized for this session")
	ErrUnknownStep        = errors.New("wizard: unknown step")
)

// ReportAPI is the backend collaborator the session bridges to.
// *valuerapi.Client satisfies it.
type ReportAPI interface {
	CreateReport(ctx context.Context, fields map[string]any) (valuerapi.Report, error)
	GetReport(ctx context.Context, id string) (valuerapi.Report, error)
	UpdateReport(ctx context.Context, id string, fields map[string]any) error
	ListProperties(ctx context.Context, reportID string) ([]valuerapi.Property, error)
	ListFiles(ctx context.Context, reportID string) ([]valuerapi.File, error)
	ListOCRResults(ctx context.Context, reportID string) ([]valuerapi.OCRResult, error)
	CreateProperty(ctx context.Context, reportID string, p valuerapi.Property) (valuerapi.Property, error)
	CreateValuationSummary(ctx context.Context, reportID string, s valuerapi.ValuationSummary) error
}

// Config tunes a session. Zero values take the production defaults; tests
// shrink the timing knobs and pin the clock.
type Config struct {
	Flow          Flow
	Currency      string
	AutosaveDelay time.Duration
	SaveMaxTries  uint
	SaveRetryBase time.Duration
	SaveTimeout   time.Duration
	Clock         func() time.Time
}

func (c Config) withDefaults() Config {
	if len(c.Flow.Steps) == 0 {
		c.Flow = FlowFull
	}
	if c.Currency == "" {
		c.Currency = "LKR"
	}
	if c.AutosaveDelay <= 0 {
		c.AutosaveDelay = 2 * time.Second
	}
	if c.SaveMaxTries == 0 {
		c.SaveMaxTries = 3
	}
	if c.SaveRetryBase <= 0 {
		c.SaveRetryBase = 500 * time.Millisecond
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Session is the single source of truth for one draft being edited. All
// mutations are applied synchronously under one lock, so field writes are
// totally ordered; persistence runs on a per-session save worker.
type Session struct {
	cfg Config
	api ReportAPI

	mu          sync.Mutex
	data        draft.Data
	currentStep int
	reportID    string
	propertyID  string
	loading     bool
	dirty       bool
	editSeq     uint64
	lastSaveErr error
	ocr         []valuerapi.OCRResult

	// saveMu serializes SaveReport across the auto-save worker and
	// manual save callers, so the backend never sees interleaved writes
	// for one report.
	saveMu sync.Mutex

	timer     *time.Timer
	saveReq   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	workerWG  sync.WaitGroup
}

// NewSession creates an empty session. The caller is responsible for
// calling CreateReport or LoadReport at most once before editing.
func NewSession(api ReportAPI, cfg Config) *Session {
	s := &Session{
		cfg:     cfg.withDefaults(),
		api:     api,
		data:    draft.New(),
		saveReq: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.workerWG.Add(1)
	go s.saveLoop()
	return s
}

// Flow returns the active wizard variant.
func (s *Session) Flow() Flow { return s.cfg.Flow }

// ReportID returns the backend id, or "" before initialization.
func (s *Session) ReportID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportID
}

// PropertyID returns the bridged backend property id, or "" before the
// first save that creates one.
func (s *Session) PropertyID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.propertyID
}

// CurrentStep returns the 0-based step pointer.
func (s *Session) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentStep
}

// IsDirty reports whether unsaved edits exist.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// LastSaveError returns the most recent auto-save failure, if any.
func (s *Session) LastSaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaveErr
}

// OCRResults returns the analyses fetched during LoadReport.
func (s *Session) OCRResults() []valuerapi.OCRResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]valuerapi.OCRResult(nil), s.ocr...)
}

// UpdateStepData shallow-merges partial into the named step and marks the
// session dirty. No validation runs here; validation is pull-based.
func (s *Session) UpdateStepData(step string, partial draft.StepData) error {
	if !draft.KnownStep(step) {
		return ErrUnknownStep
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.MergeStep(step, partial)
	s.markDirtyLocked()
	return nil
}

// Data returns a deep copy of the draft.
func (s *Session) Data() draft.Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// SetData replaces the whole draft (used when applying a merge result).
func (s *Session) SetData(d draft.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = d.Clone()
	s.markDirtyLocked()
}

// CanGoToStep reports whether navigation to step n is allowed: moving
// forward by one or backward any amount is always allowed; farther jumps
// require every step strictly before n that also lies before the current
// step to have zero validation errors.
func (s *Session) CanGoToStep(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canGoToStepLocked(n)
}

func (s *Session) canGoToStepLocked(n int) bool {
	if n < 0 || n >= s.cfg.Flow.TotalSteps() {
		return false
	}
	if n <= s.currentStep+1 {
		return true
	}
	now := s.cfg.Clock()
	for i := 0; i < n && i < s.currentStep; i++ {
		if len(ValidateStep(s.data, s.cfg.Flow, i, now)) > 0 {
			return false
		}
	}
	return true
}

// GoToStep moves the step pointer. Refused moves silently no-op; this is
// a usability affordance, not an error.
func (s *Session) GoToStep(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canGoToStepLocked(n) {
		return
	}
	s.currentStep = n
}

// ValidateStep returns the current errors for the step at flow index n.
func (s *Session) ValidateStep(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ValidateStep(s.data, s.cfg.Flow, n, s.cfg.Clock())
}

// StepCompletion returns one boolean per flow step: true when the step
// currently validates clean.
func (s *Session) StepCompletion() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.cfg.Clock()
	out := make([]bool, s.cfg.Flow.TotalSteps())
	for i := range out {
		out[i] = len(ValidateStep(s.data, s.cfg.Flow, i, now)) == 0
	}
	return out
}

// Errors returns the step-name -> messages map for steps that currently
// fail validation.
func (s *Session) Errors() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.cfg.Clock()
	out := map[string][]string{}
	for i := 0; i < s.cfg.Flow.TotalSteps(); i++ {
		if errs := ValidateStep(s.data, s.cfg.Flow, i, now); len(errs) > 0 {
			out[s.cfg.Flow.StepAt(i)] = errs
		}
	}
	return out
}

// State is a point-in-time snapshot for API consumers.
type State struct {
	Flow        string              `json:"flow"`
	Steps       []string            `json:"steps"`
	CurrentStep int                 `json:"current_step"`
	ReportID    string              `json:"report_id,omitempty"`
	IsLoading   bool                `json:"is_loading"`
	IsDirty     bool                `json:"is_dirty"`
	Completion  []bool              `json:"completion"`
	Errors      map[string][]string `json:"errors"`
	Data        draft.Data          `json:"data"`
}

func (s *Session) State() State {
	completion := s.StepCompletion()
	errs := s.Errors()
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Flow:        s.cfg.Flow.Name,
		Steps:       append([]string(nil), s.cfg.Flow.Steps...),
		CurrentStep: s.currentStep,
		ReportID:    s.reportID,
		IsLoading:   s.loading,
		IsDirty:     s.dirty,
		Completion:  completion,
		Errors:      errs,
		Data:        s.data.Clone(),
	}
}

// Close cancels any pending auto-save and stops the save worker. A timer
// that already fired may still complete its save; no new saves start.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()
		close(s.done)
		s.workerWG.Wait()
	})
}
