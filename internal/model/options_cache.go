package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"RefineAPI/internal/logger"
	"RefineAPI/internal/refine"
)

const optionsCacheSweepFreq = time.Minute

type optionsCacheEntry struct {
	options   []refine.Option
	sizeBytes int64
	createdAt time.Time
}

// OptionsCache keeps DB-sourced option lists in process memory for ttl, up
// to maxBytes (0 means unbounded).
type OptionsCache struct {
	mu         sync.Mutex
	items      map[string]*optionsCacheEntry
	lastSweep  time.Time
	totalBytes int64
	maxBytes   int64
	ttl        time.Duration
}

func NewOptionsCache(ttl time.Duration, maxBytes int64) *OptionsCache {
	return &OptionsCache{
		items:    make(map[string]*optionsCacheEntry),
		ttl:      ttl,
		maxBytes: maxBytes,
	}
}

func (c *OptionsCache) get(key string, now time.Time) ([]refine.Option, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweepLocked(now)
	entry, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.expired(entry, now) {
		c.deleteLocked(key)
		return nil, false
	}
	return entry.options, true
}

func (c *OptionsCache) set(key string, options []refine.Option, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweepLocked(now)

	sizeBytes := estimateOptionsBytes(options)
	if c.maxBytes > 0 && sizeBytes > c.maxBytes {
		logger.Warn("options_cache_item_too_large", map[string]any{
			"item_bytes": sizeBytes,
			"max_bytes":  c.maxBytes,
		})
		return
	}
	if existing, ok := c.items[key]; ok {
		c.totalBytes -= existing.sizeBytes
		delete(c.items, key)
	}
	if c.maxBytes > 0 && c.totalBytes+sizeBytes > c.maxBytes {
		logger.Warn("options_cache_memory_limit_exceeded", map[string]any{
			"item_bytes":  sizeBytes,
			"total_bytes": c.totalBytes,
			"max_bytes":   c.maxBytes,
		})
		logOptionsCacheMemory()
		return
	}

	c.items[key] = &optionsCacheEntry{
		options:   options,
		sizeBytes: sizeBytes,
		createdAt: now,
	}
	c.totalBytes += sizeBytes
}

// Clear drops every entry.
func (c *OptionsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*optionsCacheEntry)
	c.totalBytes = 0
}

func (c *OptionsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *OptionsCache) expired(entry *optionsCacheEntry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(entry.createdAt) > c.ttl
}

func (c *OptionsCache) deleteLocked(key string) {
	if entry, ok := c.items[key]; ok {
		c.totalBytes -= entry.sizeBytes
		delete(c.items, key)
	}
}

func (c *OptionsCache) maybeSweepLocked(now time.Time) {
	if !c.lastSweep.IsZero() && now.Sub(c.lastSweep) < optionsCacheSweepFreq {
		return
	}
	for key, entry := range c.items {
		if c.expired(entry, now) {
			c.deleteLocked(key)
		}
	}
	c.lastSweep = now
}

// optionsCacheKey changes whenever the query text changes, so editing a
// resource file never serves stale options.
func optionsCacheKey(resource, filter, query string) (string, error) {
	data, err := canonicalJSON(map[string]any{
		"resource": resource,
		"filter":   filter,
		"query":    strings.Join(strings.Fields(query), " "),
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s%s:%s:%s", optionsKeyPrefix, resource, filter, hex.EncodeToString(sum[:8])), nil
}

func canonicalJSON(value any) ([]byte, error) {
	var b strings.Builder
	if err := encodeCanonical(&b, value); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func encodeCanonical(b *strings.Builder, value any) error {
	switch v := value.(type) {
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			encKey, _ := json.Marshal(k)
			b.Write(encKey)
			b.WriteByte(':')
			if err := encodeCanonical(b, v[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		enc, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b.Write(enc)
	}
	return nil
}

func estimateOptionsBytes(options []refine.Option) int64 {
	var size int64
	for _, o := range options {
		size += int64(len(o.Label) + len(fmt.Sprint(o.Value)) + 16)
	}
	return size
}
