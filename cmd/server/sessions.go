package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"idlerealm.ai/internal/clock"
	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/persistence/localdb"
	persistlog "idlerealm.ai/internal/persistence/log"
	"idlerealm.ai/internal/persistence/reconcile"
	"idlerealm.ai/internal/session"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/tuning"
	"idlerealm.ai/internal/transport/ws"
)

type sessionDeps struct {
	cats    *catalogs.Catalogs
	tune    tuning.Tuning
	local   *localdb.Store
	remote  *remoteRuntime
	journal *persistlog.Journal
	logger  *log.Logger
}

var seedCounter atomic.Uint64

// opener builds a fresh Env per connection: sessions never share a PRNG.
func (d sessionDeps) opener() ws.Opener {
	return func(ctx context.Context, userID, characterID string, onChange func()) (*session.Session, reconcile.Result, error) {
		env := rules.Env{
			Catalogs: d.cats,
			Tuning:   d.tune,
			Rand:     rules.NewRand(uint64(time.Now().UnixNano()) ^ seedCounter.Add(1)<<32),
			Text:     flavor.English{},
			Log:      d.logger,
		}
		if d.journal != nil {
			env.Journal = d.journal.For(userID, characterID)
		}
		cfg := session.Config{
			UserID:      userID,
			CharacterID: characterID,
			Env:         env,
			Clock:       clock.Real{},
			Local:       d.local,
			Log:         d.logger,
			OnChange:    onChange,
		}
		if d.remote != nil {
			cfg.Remote = d.remote.saves
			cfg.Push = d.remote.mirror
		}
		return session.Open(ctx, cfg)
	}
}

func tuningDigest(t tuning.Tuning) string {
	b, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
