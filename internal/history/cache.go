package history

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"solohub/internal/domain"
	"solohub/internal/infra"
)

// DefaultCapacity bounds the cache when no explicit limit is configured.
const DefaultCapacity = 10

// Store is the storage capability the cache persists through. It mirrors
// the string key-value contract of browser-style local storage.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) (string, error)
	Remove(ctx context.Context, key string) error
}

// Cache keeps the most recent terminal generation outcomes in a bounded,
// newest-first list so the UI can resume instantly across reloads. Every
// read/write failure is swallowed: cache corruption must never block or
// fail a generation.
type Cache struct {
	store    Store
	key      string
	capacity int
	logger   *infra.Logger

	mu sync.Mutex
}

// NewCache builds a cache persisting a JSON-encoded bounded array under
// the given key. A capacity below one falls back to DefaultCapacity.
func NewCache(store Store, key string, capacity int, logger *infra.Logger) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if strings.TrimSpace(key) == "" {
		key = "generation-history"
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Cache{store: store, key: key, capacity: capacity, logger: logger}
}

// Load returns the cached entries, newest first. Missing or corrupt data
// yields an empty slice.
func (c *Cache) Load(ctx context.Context) []domain.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Latest returns the most recently recorded successful entry, if any.
// Callers use it to pre-populate the last shown result at cold start.
func (c *Cache) Latest(ctx context.Context) (domain.HistoryEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.load(ctx) {
		if entry.State == domain.HistoryStateSuccess {
			return entry, true
		}
	}
	return domain.HistoryEntry{}, false
}

// Record writes the entry through to the store, newest first. An entry
// with the same task id replaces the previous one instead of duplicating
// it; the oldest entry is evicted once the capacity is reached.
func (c *Cache) Record(ctx context.Context, entry domain.HistoryEntry) {
	if strings.TrimSpace(entry.TaskID) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.load(ctx)
	merged := make([]domain.HistoryEntry, 0, len(entries)+1)
	merged = append(merged, entry)
	for _, existing := range entries {
		if existing.TaskID == entry.TaskID {
			continue
		}
		merged = append(merged, existing)
	}
	if len(merged) > c.capacity {
		merged = merged[:c.capacity]
	}
	c.save(ctx, merged)
}

// Clear drops every cached entry.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return
	}
	if err := c.store.Remove(ctx, c.key); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("history: clear failed")
	}
}

func (c *Cache) load(ctx context.Context) []domain.HistoryEntry {
	if c.store == nil {
		return nil
	}
	data, err := c.store.Read(ctx, c.key)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn().Err(err).Str("key", c.key).Msg("history: read failed")
		}
		return nil
	}
	var entries []domain.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("history: corrupt cache ignored")
		return nil
	}
	if len(entries) > c.capacity {
		entries = entries[:c.capacity]
	}
	return entries
}

func (c *Cache) save(ctx context.Context, entries []domain.HistoryEntry) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("history: encode failed")
		return
	}
	if _, err := c.store.Write(ctx, c.key, data); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("history: write failed")
	}
}
