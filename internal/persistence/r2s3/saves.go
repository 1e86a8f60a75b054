package r2s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"idlerealm.ai/internal/persistence/snapshot"
)

// ObjectKey is where a character's save lives in the bucket. Slashes in
// ids are flattened so each id stays one path segment.
func ObjectKey(userID, characterID string) string {
	return "saves/" + segment(userID) + "/" + segment(characterID) + ".json.zst"
}

func segment(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(id)
}

// Saves is the remote save store.
type Saves struct {
	client *Client
}

func NewSaves(c *Client) *Saves { return &Saves{client: c} }

func (s *Saves) Save(ctx context.Context, rec snapshot.Record) error {
	if rec.Header.UserID == "" || rec.Header.CharacterID == "" {
		return fmt.Errorf("save: missing user or character id")
	}
	b, err := snapshot.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	return s.client.Put(ctx, ObjectKey(rec.Header.UserID, rec.Header.CharacterID), b)
}

// Load fetches a character's save; ok=false when the bucket has none.
func (s *Saves) Load(ctx context.Context, userID, characterID string) (snapshot.Record, bool, error) {
	b, ok, err := s.client.Get(ctx, ObjectKey(userID, characterID))
	if err != nil || !ok {
		return snapshot.Record{}, false, err
	}
	rec, err := snapshot.Decode(b)
	if err != nil {
		return rec, false, fmt.Errorf("decode remote save %s/%s: %w", userID, characterID, err)
	}
	return rec, true, nil
}

var (
	ErrQueueFull    = errors.New("r2 mirror queue full")
	ErrMirrorClosed = errors.New("r2 mirror closed")
)
