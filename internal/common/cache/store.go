// Package cache provides the persisted TTL cache shared by the review and
// analysis stores. Entries record when they were written; expiry is decided
// by the reading store so stale entries can still be counted in diagnostics.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// SchemaVersion is written into every persisted document so a future
// format change can be detected instead of silently misread.
const SchemaVersion = 1

// Entry is a generic persisted record.
type Entry struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	CachedAt time.Time       `json:"cached_at"`
	Version  int             `json:"version"`
}

// Age returns how long ago the entry was written.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// Expired reports whether the entry is past the given TTL.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return e.Age(now) >= ttl
}

// Decode unmarshals the entry value into out.
func (e Entry) Decode(out interface{}) error {
	return json.Unmarshal(e.Value, out)
}

// NewEntry marshals value into an Entry stamped with cachedAt.
func NewEntry(key string, value interface{}, cachedAt time.Time) (Entry, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Key:      key,
		Value:    raw,
		CachedAt: cachedAt,
		Version:  SchemaVersion,
	}, nil
}

// Store is the persistence boundary for cache entries. Implementations do
// not evict on read; stale entries are overwritten on the next Put.
type Store interface {
	// Get returns the entry for key and whether it exists.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Put writes or replaces the entry, persisting synchronously.
	Put(ctx context.Context, entry Entry) error
	// Delete removes one entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Entries returns a snapshot of all stored entries.
	Entries(ctx context.Context) ([]Entry, error)
}
