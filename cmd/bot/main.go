package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"idlerealm.ai/internal/protocol"
	"idlerealm.ai/internal/sim/state"
)

// bot logs in as one character, starts a gathering or crafting action and
// then just reports the state the server pushes.
func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		user  = flag.String("user", "bot", "user id")
		char  = flag.String("char", "bot", "character id")
		skill = flag.String("skill", "mining", "skill to train")
		tgt   = flag.String("target", "stone", "resource or recipe id")
		craft = flag.Bool("craft", false, "target is a recipe")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		UserID:          *user,
		CharacterID:     *char,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s restored_from=%s %s", w.SessionID, w.RestoredFrom, summary(&w.State))
			if w.Offline != nil && w.Offline.Message != "" {
				logger.Printf("offline: %s", w.Offline.Message)
			}
			if w.State.CurrentAction == nil {
				op := protocol.OpStartGather
				if *craft {
					op = protocol.OpStartCraft
				}
				args, _ := json.Marshal(protocol.ActionArgs{Skill: *skill, Target: *tgt})
				cmd := protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: "start", Op: op, Args: args}
				_ = conn.WriteJSON(cmd)
			}

		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			if !r.OK {
				logger.Printf("RESULT %s failed: %s %s", r.ID, r.Code, r.Message)
				continue
			}
			logger.Printf("RESULT %s ok", r.ID)

		case protocol.TypeState:
			var s protocol.StateMsg
			if err := json.Unmarshal(msg, &s); err != nil {
				continue
			}
			logger.Printf("STATE %s", summary(&s.State))
		}
	}
}

func summary(g *state.GameState) string {
	out := fmt.Sprintf("level=%d gold=%d items=%d", g.Player.Level, g.Player.Gold, len(g.Player.Inventory))
	if a := g.CurrentAction; a != nil {
		out += fmt.Sprintf(" action=%s gained=%d", a.Name, a.SessionGains.Items)
	}
	if n := len(g.ActionLog); n > 0 {
		out += " last=" + fmt.Sprintf("%q", g.ActionLog[n-1])
	}
	return out
}
