package proxy

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"graft/internal/cache"
	"graft/internal/config"
	"graft/internal/rules"
)

type Proxy struct {
	mu           sync.RWMutex
	config       *config.Config
	reverseProxy *httputil.ReverseProxy
	cache        *cache.Cache
	rules        *rules.Manager
	version      string
}

func New(cfg *config.Config, version string) (*Proxy, error) {
	target, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	cacheClient, err := cache.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache client: %w", err)
	}

	ruleManager, err := rules.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule manager: %w", err)
	}

	if err := ruleManager.LoadRules(cfg); err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	p := &Proxy{
		config:  cfg,
		cache:   cacheClient,
		rules:   ruleManager,
		version: version,
	}
	p.reverseProxy = p.newReverseProxy(target, cfg)

	return p, nil
}

func (p *Proxy) newReverseProxy(target *url.URL, cfg *config.Config) *httputil.ReverseProxy {
	rp := httputil.NewSingleHostReverseProxy(target)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = time.Duration(cfg.RequestTimeout) * time.Second
	rp.Transport = transport

	// Bodies are rewritten whole; ask the backend for them uncompressed.
	director := rp.Director
	rp.Director = func(r *http.Request) {
		director(r)
		r.Header.Del("Accept-Encoding")
	}

	rp.ModifyResponse = p.modifyResponse
	return rp
}

// RuleCount returns the number of loaded rules.
func (p *Proxy) RuleCount() int {
	return p.rules.Len()
}

func (p *Proxy) UpdateConfig(cfg *config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	target, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend URL: %w", err)
	}

	// Update cache client if Redis configuration changed
	if p.config.Redis != cfg.Redis {
		newCache, err := cache.New(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to create new cache client: %w", err)
		}
		if err := p.cache.Close(); err != nil {
			slog.Error("Failed to close previous cache client", "error", err)
		}
		p.cache = newCache
	}

	if err := p.rules.LoadRules(cfg); err != nil {
		return fmt.Errorf("failed to reload rules: %w", err)
	}

	p.config = cfg
	p.reverseProxy = p.newReverseProxy(target, cfg)

	return nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if r.Method == http.MethodGet {
		if cached := p.cache.Get(r, p.config); cached != nil {
			slog.Info("Serving cached response", "url", r.URL.Path)
			p.serveCachedResponse(w, cached)
			return
		}
	}

	p.reverseProxy.ServeHTTP(w, r)
}

func (p *Proxy) modifyResponse(resp *http.Response) error {
	contentType := resp.Header.Get("Content-Type")
	mimeType := extractMimeType(contentType)

	// Always add version header to any response that goes through graft
	resp.Header.Set("X-Graft-Version", p.version)

	if !p.config.IsHTMLXMLMimeType(mimeType) {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	// Encoded bodies cannot be rewritten as text.
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		slog.Info("Encoded response, skipping processing", "encoding", enc, "url", resp.Request.URL.Path)
		return nil
	}

	// Add cache MISS header for processed responses
	resp.Header.Set("X-Graft-Cache", "MISS")

	var body []byte
	var err error

	if resp.Request.Method == http.MethodGet && p.shouldCache(resp) {
		body, err = p.processAndCacheResponse(resp, mimeType)
	} else {
		body, err = p.processResponse(resp, mimeType)
	}

	if err != nil {
		slog.Error("Failed to process response", "error", err)
		return err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))

	return nil
}

func (p *Proxy) processResponse(resp *http.Response, mimeType string) ([]byte, error) {
	// Check content length before reading if available
	maxSize := int64(p.config.MaxResponseSizeMB * 1024 * 1024)
	if resp.ContentLength > 0 && resp.ContentLength > maxSize {
		slog.Info("Response too large, skipping processing", "size", resp.ContentLength, "max", maxSize)
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
		return body, nil
	}

	// Use LimitReader to prevent reading more than maxSize
	limitedReader := io.LimitReader(resp.Body, maxSize+1) // +1 to detect if limit exceeded
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Check if we hit the size limit
	if int64(len(body)) > maxSize {
		slog.Info("Response too large, skipping processing", "size", len(body), "max", maxSize)
		rest, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
		return append(body, rest...), nil
	}
	if err := resp.Body.Close(); err != nil {
		slog.Error("Failed to close response body", "error", err)
	}

	ruleConfigs := p.config.GetRulesForMimeType(mimeType)
	if len(ruleConfigs) == 0 {
		return body, nil
	}

	processed, err := p.processWithRules(resp.Request, body, mimeType, ruleConfigs)
	if err != nil {
		if p.config.PassThroughOnError {
			slog.Warn("Rewrite failed, passing response through", "url", resp.Request.URL.Path, "error", err)
			return body, nil
		}
		return nil, err
	}
	return processed, nil
}

func (p *Proxy) processAndCacheResponse(resp *http.Response, mimeType string) ([]byte, error) {
	processedBody, err := p.processResponse(resp, mimeType)
	if err != nil {
		return nil, err
	}

	cacheEntry := &cache.Entry{
		Body:       processedBody,
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		Timestamp:  time.Now(),
	}

	if err := p.cache.Set(resp.Request, cacheEntry, p.config); err != nil {
		slog.Error("Failed to cache response", "error", err)
	}

	return processedBody, nil
}

func (p *Proxy) shouldCache(resp *http.Response) bool {
	if resp.Header.Get("Set-Cookie") != "" {
		return false
	}

	if p.hasDenylistedCookies(resp.Request) {
		return false
	}

	return p.cache.IsCacheable(resp)
}

func (p *Proxy) hasDenylistedCookies(req *http.Request) bool {
	for _, denyName := range p.config.CookieDenylist {
		for _, cookie := range req.Cookies() {
			if cookie.Name == denyName {
				return true
			}
		}
	}
	return false
}

func (p *Proxy) serveCachedResponse(w http.ResponseWriter, entry *cache.Entry) {
	for key, values := range entry.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	// Add graft headers for cached responses
	w.Header().Set("X-Graft-Version", p.version)
	w.Header().Set("X-Graft-Cache", "HIT")
	w.Header().Set("Content-Length", strconv.Itoa(len(entry.Body)))

	w.WriteHeader(entry.StatusCode)
	if _, err := w.Write(entry.Body); err != nil {
		slog.Error("Failed to write cached response body", "error", err)
	}
}

func extractMimeType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

func isHTMLMimeType(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}
