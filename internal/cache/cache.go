// Package cache stores rewritten responses in Redis, keyed by request and by
// the rule set that produced them, and honours the backend's freshness
// headers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"graft/internal/config"
)

const (
	keyPrefix  = "graft:"
	defaultTTL = time.Hour
	opTimeout  = 2 * time.Second
)

type Entry struct {
	Body       []byte      `json:"body"`
	Headers    http.Header `json:"headers"`
	StatusCode int         `json:"status_code"`
	Timestamp  time.Time   `json:"timestamp"`
	MaxAge     *int        `json:"max_age,omitempty"`
	Expires    *time.Time  `json:"expires,omitempty"`
}

type Cache struct {
	client *redis.Client
}

func New(cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close releases the Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the cached entry for req, or nil on a miss, an expired entry
// or any Redis failure.
func (c *Cache) Get(req *http.Request, cfg *config.Config) *Entry {
	ctx, cancel := context.WithTimeout(req.Context(), opTimeout)
	defer cancel()

	key := c.key(req, cfg)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("Failed to read cache entry", "key", key, "error", err)
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Error("Failed to decode cache entry", "key", key, "error", err)
		return nil
	}

	if c.isExpired(&entry) {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			slog.Error("Failed to delete expired cache entry", "key", key, "error", err)
		}
		return nil
	}

	return &entry
}

// Set stores entry for req. Freshness is taken from the entry's
// Cache-Control and Expires headers.
func (c *Cache) Set(req *http.Request, entry *Entry, cfg *config.Config) error {
	if entry.MaxAge == nil {
		entry.MaxAge = parseMaxAge(entry.Headers.Get("Cache-Control"))
	}
	if entry.Expires == nil {
		entry.Expires = parseExpires(entry.Headers.Get("Expires"))
	}

	ttl := c.calculateTTL(entry)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(req.Context(), opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, c.key(req, cfg), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// IsCacheable reports whether a backend response may be stored.
func (c *Cache) IsCacheable(resp *http.Response) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	if resp.Header.Get("Set-Cookie") != "" {
		return false
	}

	for _, directive := range strings.Split(strings.ToLower(resp.Header.Get("Cache-Control")), ",") {
		switch strings.TrimSpace(directive) {
		case "no-cache", "no-store", "private":
			return false
		}
	}
	return true
}

func (c *Cache) key(req *http.Request, cfg *config.Config) string {
	key := c.generateKey(req)
	if cfg != nil {
		key += ":" + cfg.Fingerprint()
	}
	return key
}

func (c *Cache) generateKey(req *http.Request) string {
	h := xxhash.New()
	_, _ = h.WriteString(req.Host)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(req.URL.Path)
	_, _ = h.WriteString("?")
	_, _ = h.WriteString(req.URL.RawQuery)
	return keyPrefix + strconv.FormatUint(h.Sum64(), 16)
}

func (c *Cache) isExpired(entry *Entry) bool {
	now := time.Now()
	switch {
	case entry.MaxAge != nil:
		return now.After(entry.Timestamp.Add(time.Duration(*entry.MaxAge) * time.Second))
	case entry.Expires != nil:
		return now.After(*entry.Expires)
	default:
		return now.After(entry.Timestamp.Add(defaultTTL))
	}
}

func (c *Cache) calculateTTL(entry *Entry) time.Duration {
	switch {
	case entry.MaxAge != nil:
		return time.Duration(*entry.MaxAge)*time.Second - time.Since(entry.Timestamp)
	case entry.Expires != nil:
		return time.Until(*entry.Expires)
	default:
		return defaultTTL - time.Since(entry.Timestamp)
	}
}

func parseMaxAge(cacheControl string) *int {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || seconds < 0 {
			return nil
		}
		return &seconds
	}
	return nil
}

func parseExpires(expires string) *time.Time {
	if expires == "" {
		return nil
	}
	t, err := http.ParseTime(expires)
	if err != nil {
		return nil
	}
	return &t
}
