// Package log writes the per-session activity journal: every action-log line
// and notification, as compressed JSON lines rotated hourly.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	p := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 32*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Entry is one journal line.
type Entry struct {
	At          time.Time `json:"at"`
	UserID      string    `json:"user_id"`
	CharacterID string    `json:"character_id"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
}

// Journal is shared by every session of a process.
type Journal struct {
	w      *JSONLZstdWriter
	onFail func(error)
}

// NewJournal writes under dataDir/journal. onFail, if non-nil, sees write
// errors; the journal never blocks or fails a session.
func NewJournal(dataDir string, onFail func(error)) *Journal {
	return &Journal{w: NewJSONLZstdWriter(filepath.Join(dataDir, "journal"), "journal"), onFail: onFail}
}

func (j *Journal) Close() error { return j.w.Close() }

// For binds the journal to one character.
func (j *Journal) For(userID, characterID string) *CharacterJournal {
	return &CharacterJournal{j: j, userID: userID, characterID: characterID}
}

type CharacterJournal struct {
	j           *Journal
	userID      string
	characterID string
}

func (c *CharacterJournal) Record(at time.Time, kind, message string) {
	if c == nil || c.j == nil {
		return
	}
	err := c.j.w.Write(Entry{At: at.UTC(), UserID: c.userID, CharacterID: c.characterID, Kind: kind, Message: message})
	if err != nil && c.j.onFail != nil {
		c.j.onFail(err)
	}
}
