// Package snapshot encodes save records: one JSON header line followed by
// the game state JSON, zstd compressed.
//
// The state is kept as raw JSON so older or newer layouts can be merged
// against the current schema before they are decoded into typed state.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"idlerealm.ai/internal/sim/state"
)

const Version = 1

var ErrNoHeader = errors.New("snapshot: missing header line")

type Header struct {
	Version     int       `json:"version"`
	UserID      string    `json:"user_id"`
	CharacterID string    `json:"character_id"`
	LastSaved   time.Time `json:"last_saved"`
}

// Record is one character's save.
type Record struct {
	Header Header
	State  json.RawMessage
}

// New builds a record for g stamped with lastSaved.
func New(userID, characterID string, g *state.GameState, lastSaved time.Time) (Record, error) {
	cp := g.Clone()
	cp.LastSaved = lastSaved
	cp.IsSaving = false
	cp.IsLoading = false
	raw, err := json.Marshal(&cp)
	if err != nil {
		return Record{}, fmt.Errorf("encode state: %w", err)
	}
	return Record{
		Header: Header{Version: Version, UserID: userID, CharacterID: characterID, LastSaved: lastSaved},
		State:  raw,
	}, nil
}

// Decode unmarshals the raw state as-is, without any schema merge.
func (r Record) Decode() (state.GameState, error) {
	var g state.GameState
	if err := json.Unmarshal(r.State, &g); err != nil {
		return g, fmt.Errorf("decode state: %w", err)
	}
	return g, nil
}

func Write(w io.Writer, rec Record) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(rec.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(rec.State); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func Read(r io.Reader) (Record, error) {
	var rec Record
	dec, err := zstd.NewReader(r)
	if err != nil {
		return rec, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return rec, ErrNoHeader
		}
		return rec, err
	}
	if err := json.Unmarshal(bytes.TrimSpace(line), &rec.Header); err != nil {
		return rec, fmt.Errorf("snapshot header: %w", err)
	}
	if rec.Header.Version > Version {
		return rec, fmt.Errorf("snapshot version %d is newer than supported %d", rec.Header.Version, Version)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return rec, err
	}
	rec.State = body
	return rec, nil
}

func Encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Decode(b []byte) (Record, error) {
	return Read(bytes.NewReader(b))
}

// WriteFile stores rec at path, creating parent directories.
func WriteFile(path string, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, rec); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ReadFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()
	return Read(f)
}
