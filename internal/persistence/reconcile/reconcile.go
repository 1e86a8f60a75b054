// Package reconcile turns the local and remote saves of a character into
// the state a new session starts from.
package reconcile

import (
	"context"
	"time"

	"idlerealm.ai/internal/persistence/merge"
	"idlerealm.ai/internal/persistence/snapshot"
	"idlerealm.ai/internal/sim/offline"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
)

// Source names which save a session was started from.
type Source string

const (
	SourceFresh  Source = "fresh"
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Loader is the read side of a save store.
type Loader interface {
	Load(ctx context.Context, userID, characterID string) (snapshot.Record, bool, error)
}

// Fetched holds whatever each store returned. A store error leaves its
// record nil and is kept for the caller to report.
type Fetched struct {
	Local     *snapshot.Record
	Remote    *snapshot.Record
	LocalErr  error
	RemoteErr error
}

// Fetch reads both stores. remote may be nil when no remote store is
// configured.
func Fetch(ctx context.Context, local, remote Loader, userID, characterID string) Fetched {
	var f Fetched
	if local != nil {
		if rec, ok, err := local.Load(ctx, userID, characterID); err != nil {
			f.LocalErr = err
		} else if ok {
			f.Local = &rec
		}
	}
	if remote != nil {
		if rec, ok, err := remote.Load(ctx, userID, characterID); err != nil {
			f.RemoteErr = err
		} else if ok {
			f.Remote = &rec
		}
	}
	return f
}

type Result struct {
	State     state.GameState
	Winner    Source
	LastSaved time.Time
	Offline   offline.Summary
	// Rejected lists saves that could not be merged, newest first.
	Rejected []error
}

type candidate struct {
	src Source
	rec *snapshot.Record
}

// Resolve picks the newer save (local on a tie), merges it against the
// default state and runs offline catch-up up to now. A save that cannot be
// merged falls through to the other one, then to a fresh character.
func Resolve(env rules.Env, f Fetched, now time.Time) Result {
	var cands []candidate
	switch {
	case f.Local != nil && f.Remote != nil:
		if f.Remote.Header.LastSaved.After(f.Local.Header.LastSaved) {
			cands = []candidate{{SourceRemote, f.Remote}, {SourceLocal, f.Local}}
		} else {
			cands = []candidate{{SourceLocal, f.Local}, {SourceRemote, f.Remote}}
		}
	case f.Local != nil:
		cands = []candidate{{SourceLocal, f.Local}}
	case f.Remote != nil:
		cands = []candidate{{SourceRemote, f.Remote}}
	}

	res := Result{Winner: SourceFresh}
	def := env.NewGame()
	for _, c := range cands {
		g, err := merge.State(def, c.rec.State, env.Catalogs)
		if err != nil {
			env.Logf("reconcile: %s save for %s/%s rejected: %v", c.src, c.rec.Header.UserID, c.rec.Header.CharacterID, err)
			res.Rejected = append(res.Rejected, err)
			continue
		}
		res.State = g
		res.Winner = c.src
		res.LastSaved = c.rec.Header.LastSaved
		if res.LastSaved.IsZero() {
			res.LastSaved = g.LastSaved
		}
		break
	}
	if res.Winner == SourceFresh {
		res.State = env.NewGame()
		res.Offline = offline.Summary{Path: offline.PathSkipped}
		return res
	}

	res.State.IsSaving = false
	res.State.IsLoading = false
	env.Recompute(&res.State)
	res.Offline = offline.Reconcile(env, &res.State, res.LastSaved, now)
	return res
}
