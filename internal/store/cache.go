package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const memoryCacheTTL = 1 * time.Hour

type memEntry struct {
	value     []byte
	updatedAt time.Time
}

// Cache is a two-layer (in-memory + SQLite) TTL cache of JSON-encoded
// values, scoped to a namespace. All methods are nil-safe with respect to
// the database: if db is nil the cache operates purely in-memory.
type Cache struct {
	db        *sqlx.DB
	namespace string
	ttl       time.Duration
	memTTL    time.Duration
	now       func() time.Time

	mu  sync.RWMutex
	mem map[string]memEntry
}

// NewCache creates a Cache for namespace. db may be nil.
func NewCache(db *DB, namespace string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	memTTL := memoryCacheTTL
	if ttl < memTTL {
		memTTL = ttl
	}
	c := &Cache{
		namespace: namespace,
		ttl:       ttl,
		memTTL:    memTTL,
		now:       time.Now,
		mem:       make(map[string]memEntry),
	}
	if db != nil {
		c.db = db.X()
	}
	return c
}

// Get decodes the cached value for key into out. It checks memory first,
// then SQLite. Returns false on miss, expiry or decode failure.
func (c *Cache) Get(key string, out any) bool {
	now := c.now()

	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()
	if ok && now.Sub(e.updatedAt) < c.memTTL {
		return json.Unmarshal(e.value, out) == nil
	}

	if c.db == nil {
		return false
	}

	var row struct {
		Value     string `db:"value"`
		UpdatedAt int64  `db:"updated_at"`
	}
	err := c.db.Get(&row,
		`SELECT value, updated_at FROM cache_entries
		 WHERE namespace = ? AND key = ? AND updated_at > ?`,
		c.namespace, key, now.Add(-c.ttl).Unix(),
	)
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(row.Value), out); err != nil {
		return false
	}

	c.mu.Lock()
	c.mem[key] = memEntry{value: []byte(row.Value), updatedAt: now}
	c.mu.Unlock()
	return true
}

// Put writes v to both layers.
func (c *Cache) Put(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	now := c.now()

	c.mu.Lock()
	c.mem[key] = memEntry{value: data, updatedAt: now}
	c.mu.Unlock()

	if c.db == nil {
		return
	}
	if _, err := c.db.Exec(
		`INSERT OR REPLACE INTO cache_entries (namespace, key, value, updated_at)
		 VALUES (?, ?, ?, ?)`,
		c.namespace, key, string(data), now.Unix(),
	); err != nil {
		fmt.Fprintf(os.Stderr, "cache %s: persist failed: %v\n", c.namespace, err)
	}
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

// Purge drops expired entries from both layers and returns the number of
// SQLite rows removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	now := c.now()

	c.mu.Lock()
	for k, e := range c.mem {
		if now.Sub(e.updatedAt) >= c.memTTL {
			delete(c.mem, k)
		}
	}
	c.mu.Unlock()

	if c.db == nil {
		return 0, nil
	}
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE namespace = ? AND updated_at <= ?",
		c.namespace, now.Add(-c.ttl).Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", c.namespace, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
