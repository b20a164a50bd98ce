package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-rubric-api/internal/kv"
)

// ErrNotFound indicates the requested record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// IDGenerator returns new record identifiers. UUIDv7 keeps key order aligned with insertion order.
type IDGenerator func() string

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Options customises repository construction, mostly for tests.
type Options struct {
	Now   func() time.Time
	NewID IDGenerator
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = newID
	}
	return o
}

func loadJSON[T any](ctx context.Context, store kv.Store, key kv.Key) (T, error) {
	var out T
	raw, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return out, ErrNotFound
		}
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return out, nil
}

func indexValue(id string) []byte {
	payload, _ := json.Marshal(id)
	return payload
}

// resolveIndex scans an index prefix and loads the primary record each entry points at.
// Entries whose primary record is missing are skipped.
func resolveIndex[T any](ctx context.Context, store kv.Store, prefix kv.Key, primary func(id string) kv.Key) ([]T, error) {
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	records := make([]T, 0, len(entries))
	for _, entry := range entries {
		record, err := loadJSON[T](ctx, store, primary(entry.Key.Last()))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}
