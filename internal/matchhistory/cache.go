// Package matchhistory remembers which athlete a payment description
// belonged to, so that a description confirmed by hand once is resolved
// automatically on later imports.
//
// The cache is read once when an import session starts and written once when
// the session is confirmed. Entries are never pruned.
package matchhistory

import (
	"context"
	"sort"
	"sync"

	"athlete-payment-reconciler/internal/textnorm"
	"athlete-payment-reconciler/pkg/errors"
	"athlete-payment-reconciler/pkg/logger"
)

// Store persists the whole history map
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, entries map[string]string) error
}

// Entry is one remembered description
type Entry struct {
	Key       string `json:"key"`
	AthleteID string `json:"athleteId"`
}

// Cache maps normalized descriptions to athlete IDs
type Cache struct {
	store   Store
	entries map[string]string
	dirty   bool
	mu      sync.RWMutex
	logger  logger.Logger
}

// New creates an empty cache backed by store. Call Load before use.
func New(store Store) *Cache {
	return &Cache{
		store:   store,
		entries: make(map[string]string),
		logger:  logger.GetGlobalLogger().WithComponent("match_history"),
	}
}

// Key returns the lookup key of a description
func Key(description string) string {
	return textnorm.Key(description)
}

// Load replaces the cache content with what the store holds
func (c *Cache) Load(ctx context.Context) error {
	entries, err := c.store.Load(ctx)
	if err != nil {
		return errors.StorageError(errors.CodeReadFailed, "match history", err)
	}
	if entries == nil {
		entries = make(map[string]string)
	}

	c.mu.Lock()
	c.entries = entries
	c.dirty = false
	c.mu.Unlock()

	c.logger.WithField("entries", len(entries)).Debug("Loaded match history")
	return nil
}

// Lookup returns the athlete remembered for description
func (c *Cache) Lookup(description string) (string, bool) {
	key := Key(description)
	if key == "" {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[key]
	return id, ok
}

// Remember records description as belonging to athleteID. A later call for
// the same description overwrites the earlier athlete. It reports whether
// the cache changed.
func (c *Cache) Remember(description, athleteID string) bool {
	key := Key(description)
	if key == "" || athleteID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] == athleteID {
		return false
	}
	c.entries[key] = athleteID
	c.dirty = true
	return true
}

// Save writes the cache back when it changed since the last Load or Save
func (c *Cache) Save(ctx context.Context) error {
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	snapshot := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	if err := c.store.Save(ctx, snapshot); err != nil {
		return errors.StorageError(errors.CodeWriteFailed, "match history", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()

	c.logger.WithField("entries", len(snapshot)).Info("Saved match history")
	return nil
}

// Len returns the number of remembered descriptions
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns every remembered description sorted by key
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, Entry{Key: k, AthleteID: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
