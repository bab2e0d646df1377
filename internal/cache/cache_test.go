package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"graft/internal/config"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func rulesConfig(names ...string) *config.Config {
	rules := make([]config.RuleConfig, 0, len(names))
	for _, name := range names {
		rules = append(rules, config.RuleConfig{Name: name, Kind: config.KindElement, Target: "body", Fragment: "<p>" + name + "</p>"})
	}
	return &config.Config{MimeTypes: []config.MimeTypeConfig{{MimeType: "text/html", Rules: rules}}}
}

func TestKey(t *testing.T) {
	cache := &Cache{}
	cfg := rulesConfig("banner")
	base := cache.key(httptest.NewRequest(http.MethodGet, "http://example.com/page?a=1", nil), cfg)

	tests := []struct {
		name string
		url  string
		cfg  *config.Config
		same bool
	}{
		{"same request", "http://example.com/page?a=1", cfg, true},
		{"scheme ignored", "https://example.com/page?a=1", cfg, true},
		{"other host", "http://other.example/page?a=1", cfg, false},
		{"other path", "http://example.com/other?a=1", cfg, false},
		{"other query", "http://example.com/page?a=2", cfg, false},
		{"rule changed", "http://example.com/page?a=1", rulesConfig("footer"), false},
		{"rule added", "http://example.com/page?a=1", rulesConfig("banner", "footer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := cache.key(httptest.NewRequest(http.MethodGet, tt.url, nil), tt.cfg)
			if !strings.HasPrefix(key, keyPrefix) {
				t.Errorf("expected key %q to start with %q", key, keyPrefix)
			}
			if tt.same && key != base {
				t.Errorf("expected key %q, got %q", base, key)
			}
			if !tt.same && key == base {
				t.Errorf("expected a key other than %q", base)
			}
		})
	}
}

func TestIsCacheable(t *testing.T) {
	cache := &Cache{}

	tests := []struct {
		name     string
		status   int
		method   string
		headers  http.Header
		expected bool
	}{
		{"rewritten page", http.StatusOK, http.MethodGet, http.Header{}, true},
		{"public with max-age", http.StatusOK, http.MethodGet, http.Header{"Cache-Control": {"public, max-age=60"}}, true},
		{"not found", http.StatusNotFound, http.MethodGet, http.Header{}, false},
		{"post", http.StatusOK, http.MethodPost, http.Header{}, false},
		{"sets a cookie", http.StatusOK, http.MethodGet, http.Header{"Set-Cookie": {"session=1"}}, false},
		{"no-store", http.StatusOK, http.MethodGet, http.Header{"Cache-Control": {"no-store"}}, false},
		{"private mixed case", http.StatusOK, http.MethodGet, http.Header{"Cache-Control": {"max-age=60, Private"}}, false},
		{"no-cache", http.StatusOK, http.MethodGet, http.Header{"Cache-Control": {"no-cache"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.status,
				Header:     tt.headers,
				Request:    httptest.NewRequest(tt.method, "http://example.com/", nil),
			}
			if got := cache.IsCacheable(resp); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}

	if cache.IsCacheable(&http.Response{StatusCode: http.StatusOK, Header: http.Header{}}) {
		t.Error("expected a response without a request to be uncacheable")
	}
}

func TestFreshness(t *testing.T) {
	cache := &Cache{}
	now := time.Now()

	tests := []struct {
		name        string
		entry       *Entry
		expired     bool
		expectedTTL time.Duration
	}{
		{
			name:        "max-age wins over expires",
			entry:       &Entry{Timestamp: now, MaxAge: intPtr(60), Expires: timePtr(now.Add(time.Hour))},
			expectedTTL: time.Minute,
		},
		{
			name:        "max-age elapsed",
			entry:       &Entry{Timestamp: now.Add(-2 * time.Minute), MaxAge: intPtr(60)},
			expired:     true,
			expectedTTL: -time.Minute,
		},
		{
			name:        "expires in the future",
			entry:       &Entry{Timestamp: now, Expires: timePtr(now.Add(30 * time.Minute))},
			expectedTTL: 30 * time.Minute,
		},
		{
			name:        "expires in the past",
			entry:       &Entry{Timestamp: now.Add(-time.Hour), Expires: timePtr(now.Add(-time.Minute))},
			expired:     true,
			expectedTTL: -time.Minute,
		},
		{
			name:        "default ttl",
			entry:       &Entry{Timestamp: now},
			expectedTTL: defaultTTL,
		},
		{
			name:        "default ttl elapsed",
			entry:       &Entry{Timestamp: now.Add(-2 * defaultTTL)},
			expired:     true,
			expectedTTL: -defaultTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cache.isExpired(tt.entry); got != tt.expired {
				t.Errorf("expected expired %v, got %v", tt.expired, got)
			}
			diff := cache.calculateTTL(tt.entry) - tt.expectedTTL
			if diff < -time.Second || diff > time.Second {
				t.Errorf("expected TTL around %v, got %v", tt.expectedTTL, cache.calculateTTL(tt.entry))
			}
		})
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		cacheControl string
		expected     int
		ok           bool
	}{
		{"max-age=3600", 3600, true},
		{"public, MAX-AGE=7200, must-revalidate", 7200, true},
		{`max-age="120"`, 120, true},
		{"max-age=0", 0, true},
		{"public, must-revalidate", 0, false},
		{"max-age=soon", 0, false},
		{"max-age=-1", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.cacheControl, func(t *testing.T) {
			got := parseMaxAge(tt.cacheControl)
			if !tt.ok {
				if got != nil {
					t.Errorf("expected nil, got %d", *got)
				}
				return
			}
			if got == nil || *got != tt.expected {
				t.Errorf("expected %d, got %v", tt.expected, got)
			}
		})
	}
}

func TestParseExpires(t *testing.T) {
	got := parseExpires("Wed, 21 Oct 2015 07:28:00 GMT")
	if got == nil {
		t.Fatal("expected a parsed time")
	}
	if want := time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	for _, value := range []string{"", "next tuesday"} {
		if parseExpires(value) != nil {
			t.Errorf("expected nil for %q", value)
		}
	}
}

func TestSetSkipsStaleEntries(t *testing.T) {
	// A stale entry returns before Redis is touched, so no client is needed.
	cache := &Cache{}
	entry := &Entry{
		Body:       []byte("<p>old</p>"),
		Headers:    http.Header{"Cache-Control": {"max-age=0"}},
		StatusCode: http.StatusOK,
		Timestamp:  time.Now(),
	}

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	if err := cache.Set(req, entry, rulesConfig("banner")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.MaxAge == nil || *entry.MaxAge != 0 {
		t.Errorf("expected max-age parsed from headers, got %v", entry.MaxAge)
	}
}

// Requires Redis on localhost:6379.
func TestCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cache, err := New(config.RedisConfig{Addr: "localhost:6379", DB: 1})
	if err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer func() {
		cache.client.FlushDB(context.Background())
		_ = cache.Close()
	}()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/page?a=1", nil)
	entry := &Entry{
		Body:       []byte("<html><head></head><body><p>banner</p></body></html>"),
		Headers:    http.Header{"Content-Type": {"text/html"}, "Cache-Control": {"max-age=60"}},
		StatusCode: http.StatusOK,
		Timestamp:  time.Now(),
	}
	cfg := rulesConfig("banner")

	if err := cache.Set(req, entry, cfg); err != nil {
		t.Fatalf("failed to set cache entry: %v", err)
	}

	got := cache.Get(req, cfg)
	if got == nil {
		t.Fatal("expected a cache hit")
	}
	if string(got.Body) != string(entry.Body) || got.StatusCode != entry.StatusCode {
		t.Errorf("expected %d %q, got %d %q", entry.StatusCode, entry.Body, got.StatusCode, got.Body)
	}
	if got.MaxAge == nil || *got.MaxAge != 60 {
		t.Errorf("expected max-age 60 to round trip, got %v", got.MaxAge)
	}

	if cache.Get(req, rulesConfig("banner", "footer")) != nil {
		t.Error("expected a miss after the rule set changed")
	}
}
