package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"idlerealm.ai/internal/protocol"
	"idlerealm.ai/internal/session"
	"idlerealm.ai/internal/sim/actions"
	"idlerealm.ai/internal/sim/hunting"
	"idlerealm.ai/internal/sim/inventory"
	"idlerealm.ai/internal/sim/state"
	"idlerealm.ai/internal/sim/travel"
)

// handle runs one CMD frame and builds its RESULT. Every reply carries the
// state as it stands after the command, successful or not.
func (s *Server) handle(sess *session.Session, raw []byte) protocol.ResultMsg {
	var cmd protocol.CmdMsg
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type != protocol.TypeCmd {
		return s.reply(sess, cmd.ID, protocol.ErrProtoBadRequest, "expected CMD")
	}
	if err := s.validator.Cmd(raw); err != nil {
		return s.reply(sess, cmd.ID, protocol.ErrProtoBadRequest, err.Error())
	}
	if err := s.dispatch(sess, cmd); err != nil {
		code := codeFor(err)
		if code == protocol.ErrInternal {
			s.logf("session %s: %s: %v", sess.ID(), cmd.Op, err)
		}
		return s.reply(sess, cmd.ID, code, err.Error())
	}
	return s.reply(sess, cmd.ID, "", "")
}

func (s *Server) reply(sess *session.Session, id, code, msg string) protocol.ResultMsg {
	g := sess.State()
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              id,
		OK:              code == "",
		Code:            code,
		Message:         msg,
		State:           &g,
	}
}

func (s *Server) dispatch(sess *session.Session, cmd protocol.CmdMsg) error {
	switch cmd.Op {
	case protocol.OpStartGather, protocol.OpStartCraft:
		var a protocol.ActionArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		kind := state.ActionGathering
		if cmd.Op == protocol.OpStartCraft {
			kind = state.ActionCrafting
		}
		return sess.StartAction(kind, a.Skill, a.Target)
	case protocol.OpStopAction:
		_, err := sess.StopAction()
		return err
	case protocol.OpStartHunt:
		var a protocol.HuntArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		return sess.StartHunt(a.SlotItem)
	case protocol.OpRefreshHunt:
		return sess.RefreshHunt()
	case protocol.OpReturnHunt:
		return sess.ReturnHunt()
	case protocol.OpTravel:
		var a protocol.TravelArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		return sess.Travel(a.Destination)
	case protocol.OpEquip:
		var a protocol.ItemArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		return sess.Equip(a.Item)
	case protocol.OpUnequip:
		var a protocol.SlotArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		return sess.Unequip(state.EquipSlot(a.Slot))
	case protocol.OpUseItem:
		var a protocol.ItemArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		_, err := sess.UseItem(a.Item)
		return err
	case protocol.OpSetStats:
		var a protocol.StatsArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		return sess.SetStats(a.Stats, a.Remaining)
	case protocol.OpUpdateSettings:
		var a protocol.SettingsArgs
		if err := decodeArgs(cmd.Args, &a); err != nil {
			return err
		}
		return sess.UpdateSettings(session.SettingsPatch(a))
	case protocol.OpMarkRead:
		return sess.MarkNotificationsRead()
	case protocol.OpClearNotifications:
		return sess.ClearNotifications()
	case protocol.OpSave:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return sess.Save(ctx)
	case protocol.OpState:
		return nil
	default:
		return fmt.Errorf("%w: unknown op %q", errBadArgs, cmd.Op)
	}
}

var errBadArgs = errors.New("bad args")

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadArgs, err)
	}
	return nil
}

// codeFor maps engine errors onto protocol error codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, errBadArgs):
		return protocol.ErrProtoBadRequest
	case errors.Is(err, session.ErrBadStats):
		return protocol.ErrBadRequest
	case errors.Is(err, actions.ErrUnknownSkill),
		errors.Is(err, actions.ErrUnknownTarget),
		errors.Is(err, actions.ErrUnknownKind),
		errors.Is(err, hunting.ErrUnknownRegion),
		errors.Is(err, hunting.ErrNoCreatures),
		errors.Is(err, travel.ErrUnknownRegion),
		errors.Is(err, inventory.ErrUnknownItem),
		errors.Is(err, inventory.ErrNotEquippable),
		errors.Is(err, inventory.ErrNotUsable),
		errors.Is(err, inventory.ErrSlotEmpty):
		return protocol.ErrInvalidTarget
	case errors.Is(err, travel.ErrNotEnoughGold),
		errors.Is(err, hunting.ErrNoWeapon),
		errors.Is(err, hunting.ErrSlotItem),
		errors.Is(err, inventory.ErrNotInInventory),
		errors.Is(err, inventory.ErrInventoryFull),
		errors.Is(err, inventory.ErrLevelTooLow):
		return protocol.ErrNoResource
	case errors.Is(err, session.ErrTraveling),
		errors.Is(err, hunting.ErrAlreadyHunting),
		errors.Is(err, hunting.ErrNotHunting),
		errors.Is(err, travel.ErrAlreadyTraveling),
		errors.Is(err, travel.ErrSameLocation),
		errors.Is(err, actions.ErrNoActiveAction),
		errors.Is(err, session.ErrClosed):
		return protocol.ErrConflict
	default:
		return protocol.ErrInternal
	}
}
