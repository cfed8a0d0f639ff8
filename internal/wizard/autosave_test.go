package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Malith-nethsiri/valuerpro-project-sub001/internal/draft"
)

// countingAPI wraps fakeAPI and counts UpdateReport calls without the
// fake's mutex, so tests can poll while a save is in flight.
type countingAPI struct {
	fakeAPI
	saves    atomic.Int64
	saveHook func() error
}

func (c *countingAPI) UpdateReport(ctx context.Context, id string, fields map[string]any) error {
	c.saves.Add(1)
	if c.saveHook != nil {
		return c.saveHook()
	}
	return c.fakeAPI.UpdateReport(ctx, id, fields)
}

func newAutosaveSession(t *testing.T, api ReportAPI, delay time.Duration) *Session {
	t.Helper()
	s := NewSession(api, Config{
		AutosaveDelay: delay,
		SaveMaxTries:  3,
		SaveRetryBase: 5 * time.Millisecond,
		SaveTimeout:   2 * time.Second,
		Clock:         fixedClock(),
	})
	t.Cleanup(s.Close)
	if err := s.CreateReport(context.Background()); err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestAutosaveDebouncesBursts(t *testing.T) {
	api := &countingAPI{}
	s := newAutosaveSession(t, api, 150*time.Millisecond)

	// Three edits inside one quiet window must coalesce into one save.
	for i, city := range []string{"Kandy", "Galle", "Matara"} {
		s.UpdateStepData(draft.StepLocation, draft.StepData{"city": city})
		if i < 2 {
			time.Sleep(40 * time.Millisecond)
		}
	}
	last := time.Now()

	if !waitFor(t, time.Second, func() bool { return api.saves.Load() == 1 }) {
		t.Fatalf("expected exactly one save, got %d", api.saves.Load())
	}
	// The save must not have fired before the full delay elapsed after the
	// last edit; a generous lower bound catches a non-resetting timer.
	if elapsed := time.Since(last); elapsed < 100*time.Millisecond {
		t.Fatalf("save fired %v after last edit, debounce not reset", elapsed)
	}
	// A further quiet period must not produce extra saves.
	time.Sleep(300 * time.Millisecond)
	if n := api.saves.Load(); n != 1 {
		t.Fatalf("coalescing broke: %d saves", n)
	}
	if s.IsDirty() {
		t.Fatalf("dirty not cleared by auto-save")
	}
}

func TestAutosaveSeparateWindowsSaveSeparately(t *testing.T) {
	api := &countingAPI{}
	s := newAutosaveSession(t, api, 50*time.Millisecond)

	s.UpdateStepData(draft.StepLocation, draft.StepData{"city": "Kandy"})
	if !waitFor(t, time.Second, func() bool { return api.saves.Load() == 1 }) {
		t.Fatalf("first save missing")
	}
	s.UpdateStepData(draft.StepLocation, draft.StepData{"city": "Galle"})
	if !waitFor(t, time.Second, func() bool { return api.saves.Load() == 2 }) {
		t.Fatalf("second window did not save, got %d", api.saves.Load())
	}
}

func TestAutosaveRetriesWithBackoff(t *testing.T) {
	api := &countingAPI{}
	var calls atomic.Int64
	api.saveHook = func() error {
		if calls.Add(1) < 3 {
			return errors.New("flaky backend")
		}
		return nil
	}
	s := newAutosaveSession(t, api, 20*time.Millisecond)

	s.UpdateStepData(draft.StepLocation, draft.StepData{"city": "Kandy"})
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() == 3 }) {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if !waitFor(t, time.Second, func() bool { return !s.IsDirty() }) {
		t.Fatalf("dirty not cleared after eventual success")
	}
	if err := s.LastSaveError(); err != nil {
		t.Fatalf("lastSaveErr = %v after success", err)
	}
}

func TestAutosaveExhaustedRetriesStayDirty(t *testing.T) {
	api := &countingAPI{}
	var calls atomic.Int64
	api.saveHook = func() error {
		calls.Add(1)
		return errors.New("backend down")
	}
	s := newAutosaveSession(t, api, 20*time.Millisecond)

	s.UpdateStepData(draft.StepLocation, draft.StepData{"city": "Kandy"})
	if !waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 3 }) {
		t.Fatalf("retries did not run, got %d", calls.Load())
	}
	if !waitFor(t, time.Second, func() bool { return s.LastSaveError() != nil }) {
		t.Fatalf("failed save did not record an error")
	}
	if !s.IsDirty() {
		t.Fatalf("failed save cleared dirty; edit would be lost")
	}
}

func TestManualSavesSerializeWithWorker(t *testing.T) {
	api := &countingAPI{}
	var inFlight atomic.Int64
	var overlapped atomic.Bool
	api.saveHook = func() error {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}
	s := newAutosaveSession(t, api, 10*time.Millisecond)

	// Arm the auto-save worker, then fire manual saves into the same
	// window from several goroutines.
	s.UpdateStepData(draft.StepLocation, draft.StepData{"city": "Kandy"})
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.SaveReport(context.Background()); err != nil {
				t.Errorf("SaveReport: %v", err)
			}
		}()
	}
	wg.Wait()
	if !waitFor(t, time.Second, func() bool { return api.saves.Load() >= 3 }) {
		t.Fatalf("saves did not run, got %d", api.saves.Load())
	}
	if overlapped.Load() {
		t.Fatalf("backend saw interleaved saves for one report")
	}
}

func TestAutosaveSkippedWithoutReportID(t *testing.T) {
	api := &countingAPI{}
	s := NewSession(api, Config{AutosaveDelay: 20 * time.Millisecond, Clock: fixedClock()})
	t.Cleanup(s.Close)

	s.UpdateStepData(draft.StepLocation, draft.StepData{"city": "Kandy"})
	time.Sleep(150 * time.Millisecond)
	if n := api.saves.Load(); n != 0 {
		t.Fatalf("uninitialized session saved %d times", n)
	}
}

func TestClosedSessionCancelsPendingSave(t *testing.T) {
	api := &countingAPI{}
	s := newAutosaveSession(t, api, 100*time.Millisecond)

	s.UpdateStepData(draft.StepLocation, draft.StepData{"city": "Kandy"})
	s.Close()
	time.Sleep(250 * time.Millisecond)
	if n := api.saves.Load(); n != 0 {
		t.Fatalf("pending debounce survived Close: %d saves", n)
	}
}
