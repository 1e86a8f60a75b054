package session

import (
	"context"
	"fmt"
	"time"

	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/persistence/snapshot"
	"idlerealm.ai/internal/sim/state"
)

// Save writes the live state to the local store and queues a remote upload.
// A remote failure is reported as a notification later; it never fails the
// call.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	now := s.cfg.Clock.Now()
	rec, err := s.saveLocalLocked(ctx, now)
	if err == nil {
		s.env.Notify(&s.g, now, s.env.Format(flavor.SaveCompleted), "", state.NotifyGeneral)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.push(rec, false)
	return nil
}

// LastSaved is the time of the most recent successful local save.
func (s *Session) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

func (s *Session) saveLocalLocked(ctx context.Context, now time.Time) (snapshot.Record, error) {
	rec, err := snapshot.New(s.cfg.UserID, s.cfg.CharacterID, &s.g, now)
	if err != nil {
		return rec, err
	}
	if err := s.cfg.Local.Save(ctx, rec); err != nil {
		return rec, fmt.Errorf("local save: %w", err)
	}
	s.g.LastSaved = now
	s.lastSaved = now
	return rec, nil
}

func (s *Session) armAutosaveLocked() {
	d := s.env.Tuning.Persistence.Autosave()
	if d <= 0 {
		return
	}
	s.stopTimer(&s.autosaveTimer)
	s.autosaveTimer = s.cfg.Clock.AfterFunc(d, s.onAutosave)
}

func (s *Session) onAutosave() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rec, err := s.saveLocalLocked(ctx, s.cfg.Clock.Now())
	cancel()
	if err != nil {
		s.env.Logf("session %s: autosave: %v", s.id, err)
	}
	s.armAutosaveLocked()
	s.mu.Unlock()
	if err == nil {
		s.push(rec, false)
	}
}

// push must be called without the session lock held: a Pusher may report
// synchronously.
func (s *Session) push(rec snapshot.Record, announce bool) {
	if s.cfg.Push == nil {
		return
	}
	s.mu.Lock()
	s.g.IsSaving = true
	s.mu.Unlock()
	s.cfg.Push.Enqueue(rec, func(err error) { s.onPushed(err, announce) })
}

func (s *Session) onPushed(err error, announce bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	now := s.cfg.Clock.Now()
	s.g.IsSaving = false
	switch {
	case err != nil:
		s.env.Logf("session %s: remote save: %v", s.id, err)
		s.env.Notify(&s.g, now, s.env.Format(flavor.RemoteSaveFailed), "", state.NotifyGeneral)
	case announce:
		s.env.Notify(&s.g, now, s.env.Format(flavor.RemoteSynced), "", state.NotifyGeneral)
	}
	s.mu.Unlock()
	s.changed()
}
