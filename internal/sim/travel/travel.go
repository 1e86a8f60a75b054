// Package travel moves the player between regions. Cost is paid at
// departure; arrival happens when the scheduled end time is reached.
package travel

import (
	"errors"
	"time"

	"idlerealm.ai/internal/flavor"
	"idlerealm.ai/internal/sim/catalogs"
	"idlerealm.ai/internal/sim/rules"
	"idlerealm.ai/internal/sim/state"
)

var (
	ErrAlreadyTraveling = errors.New("already traveling")
	ErrUnknownRegion    = errors.New("unknown destination")
	ErrSameLocation     = errors.New("already at destination")
	ErrNotEnoughGold    = errors.New("not enough gold")
)

// Check reports whether a trip to destinationID could start now.
func Check(env rules.Env, g *state.GameState, destinationID string) (catalogs.RegionDef, error) {
	if g.CurrentTravel != nil {
		return catalogs.RegionDef{}, ErrAlreadyTraveling
	}
	dest, ok := env.Catalogs.Region(destinationID)
	if !ok {
		return dest, ErrUnknownRegion
	}
	if dest.ID == g.Player.CurrentLocationID {
		return dest, ErrSameLocation
	}
	if g.Player.Gold < dest.TravelCost {
		return dest, ErrNotEnoughGold
	}
	return dest, nil
}

// Start validates and begins a trip. Stopping a running profession action
// is the caller's responsibility and must happen first.
func Start(env rules.Env, g *state.GameState, now time.Time, destinationID string) error {
	dest, err := Check(env, g, destinationID)
	if err != nil {
		if errors.Is(err, ErrNotEnoughGold) {
			env.Notify(g, now, env.Format(flavor.NotEnoughGold), "", state.NotifyGeneral)
		}
		return err
	}
	g.Player.Gold -= dest.TravelCost
	g.CurrentTravel = &state.TravelState{
		DestinationID:   dest.ID,
		DestinationName: dest.Name,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(dest.TravelTimeMs) * time.Millisecond),
	}
	env.ActionLog(g, now, env.Format(flavor.TravelStarted, dest.Name))
	return nil
}

// Arrive completes the trip to destinationID if that trip is still the
// current one. A stale arrival from a superseded trip is ignored.
func Arrive(env rules.Env, g *state.GameState, now time.Time, destinationID string) bool {
	tr := g.CurrentTravel
	if tr == nil || tr.DestinationID != destinationID {
		return false
	}
	g.Player.CurrentLocationID = tr.DestinationID
	g.CurrentTravel = nil
	msg := env.Format(flavor.TravelArrived, tr.DestinationName)
	env.ActionLog(g, now, msg)
	env.Notify(g, now, msg, "", state.NotifyGeneral)
	return true
}

// Due reports whether the current trip should have arrived by now.
func Due(g *state.GameState, now time.Time) bool {
	return g.CurrentTravel != nil && !now.Before(g.CurrentTravel.EndTime)
}
