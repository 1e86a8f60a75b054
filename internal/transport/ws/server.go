package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"idlerealm.ai/internal/persistence/reconcile"
	"idlerealm.ai/internal/protocol"
	"idlerealm.ai/internal/session"
)

// Opener starts the session for one character. onChange must be wired to
// the session's Config.OnChange.
type Opener func(ctx context.Context, userID, characterID string, onChange func()) (*session.Session, reconcile.Result, error)

type Server struct {
	open         Opener
	digests      map[string]string
	tuningDigest string
	validator    *protocol.Validator
	log          *log.Logger

	upgrader websocket.Upgrader

	mu     sync.Mutex
	active map[string]*websocket.Conn
	wg     sync.WaitGroup
}

func NewServer(open Opener, digests map[string]string, tuningDigest string, v *protocol.Validator, logger *log.Logger) *Server {
	return &Server{
		open:         open,
		digests:      digests,
		tuningDigest: tuningDigest,
		validator:    v,
		log:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		active: map[string]*websocket.Conn{},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.wg.Add(1)
		defer s.wg.Done()

		hello, ok := s.readHello(conn)
		if !ok {
			return
		}
		key := hello.UserID + "/" + hello.CharacterID
		if !s.acquire(key, conn) {
			closeWith(conn, protocol.ErrSessionBusy)
			return
		}
		defer s.release(key)

		// One pending STATE frame at most; a newer change makes a queued
		// frame stale, so further signals are dropped.
		dirty := make(chan struct{}, 1)
		onChange := func() {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}

		openCtx, cancelOpen := context.WithTimeout(r.Context(), 30*time.Second)
		sess, res, err := s.open(openCtx, hello.UserID, hello.CharacterID, onChange)
		cancelOpen()
		if err != nil {
			s.logf("open %s: %v", key, err)
			closeWith(conn, protocol.ErrInternal)
			return
		}
		defer func() {
			if err := sess.Close(); err != nil {
				s.logf("close %s: %v", key, err)
			}
		}()

		if err := writeJSON(conn, s.welcome(hello, sess, res)); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		out := make(chan []byte, 16)

		// Writer goroutine.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-out:
				case <-dirty:
					b, _ = json.Marshal(protocol.StateMsg{Type: protocol.TypeState, ProtocolVersion: protocol.Version, State: sess.State()})
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			reply := s.handle(sess, msg)
			b, err := json.Marshal(reply)
			if err != nil {
				s.logf("encode result: %v", err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
	}
}

func (s *Server) readHello(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		return hello, false
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return hello, false
	}
	if base.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return hello, false
	}
	if err := s.validator.Hello(msg); err != nil {
		closeWith(conn, protocol.ErrProtoBadRequest)
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return hello, false
	}
	return hello, true
}

func (s *Server) welcome(h protocol.HelloMsg, sess *session.Session, res reconcile.Result) protocol.WelcomeMsg {
	w := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.ID(),
		UserID:          h.UserID,
		CharacterID:     h.CharacterID,
		Catalogs:        s.digests,
		TuningDigest:    s.tuningDigest,
		RestoredFrom:    string(res.Winner),
		State:           res.State,
	}
	if o := res.Offline; o.Path != "" {
		w.Offline = &protocol.OfflineSummary{
			Path:          string(o.Path),
			ElapsedMs:     o.Elapsed.Milliseconds(),
			ForfeitedMs:   o.Forfeited.Milliseconds(),
			Ticks:         o.Ticks,
			Items:         o.Items,
			XP:            o.XP,
			Encounters:    o.Encounter,
			Defeated:      o.Defeated,
			RanOut:        o.RanOut,
			SettledReturn: o.Settled,
			Message:       o.Message,
		}
	}
	return w
}

// Active reports the number of connected characters.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown disconnects every client and waits until their sessions have
// made their final save.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, conn := range s.active {
		closeWith(conn, "server shutting down")
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acquire(key string, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[key]; busy {
		return false
	}
	s.active[key] = conn
	return true
}

func (s *Server) release(key string) {
	s.mu.Lock()
	delete(s.active, key)
	s.mu.Unlock()
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
