package wizard

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// markDirtyLocked flags unsaved edits and (re)arms the debounce timer.
// Every edit arriving before the timer fires pushes it out again, so at
// most one save fires per quiet window. Callers hold s.mu.
func (s *Session) markDirtyLocked() {
	s.dirty = true
	s.editSeq++
	if s.reportID == "" {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.AutosaveDelay, s.enqueueSave)
		return
	}
	s.timer.Reset(s.cfg.AutosaveDelay)
}

// enqueueSave hands the save to the worker. The channel holds one pending
// request; a request arriving while one is queued coalesces with it.
func (s *Session) enqueueSave() {
	select {
	case <-s.done:
	case s.saveReq <- struct{}{}:
	default:
	}
}

// saveLoop serializes saves for this session's report id: a save in
// flight always finishes before the next begins, so the backend never
// sees interleaved writes for one report.
func (s *Session) saveLoop() {
	defer s.workerWG.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.saveReq:
			s.autoSave()
		}
	}
}

func (s *Session) autoSave() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()
	err := s.saveWithRetry(ctx)
	s.mu.Lock()
	s.lastSaveErr = err
	s.mu.Unlock()
}

// saveWithRetry wraps SaveReport in bounded exponential backoff. Failed
// saves leave the session dirty, so the next debounce cycle tries again
// even after the retries are exhausted.
func (s *Session) saveWithRetry(ctx context.Context) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.SaveRetryBase
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.SaveReport(ctx)
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(s.cfg.SaveMaxTries))
	return err
}
