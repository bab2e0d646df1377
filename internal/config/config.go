package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var validHTMLXMLMimeTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"text/xml",
	"application/xml",
	"application/rss+xml",
	"application/atom+xml",
}

// Rule kinds.
const (
	KindElement   = "element"
	KindDirective = "directive"
)

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// RuleConfig describes one rewrite applied to matching responses.
//
// Element rules append Fragment to the element named Target. Directive rules
// expand placeholder directives from Values.
type RuleConfig struct {
	Name string `json:"name"`
	Kind string `json:"kind"`

	Target   string `json:"target,omitempty"`
	Fragment string `json:"fragment,omitempty"`
	Context  string `json:"context,omitempty"`
	Each     bool   `json:"each,omitempty"`

	Values map[string]string `json:"values,omitempty"`
	Open   string            `json:"open,omitempty"`
	Close  string            `json:"close,omitempty"`
}

type MimeTypeConfig struct {
	MimeType string       `json:"mime_type"`
	Rules    []RuleConfig `json:"rules"`
}

type Config struct {
	BackendURL         string           `json:"backend_url"`
	Redis              RedisConfig      `json:"redis"`
	MimeTypes          []MimeTypeConfig `json:"mime_types"`
	CookieDenylist     []string         `json:"cookie_denylist"`
	RequestTimeout     int              `json:"request_timeout"`
	MaxResponseSizeMB  int              `json:"max_response_size_mb"`
	HealthPort         int              `json:"health_port"`
	PassThroughOnError bool             `json:"pass_through_on_error"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	setDefaults(&config)

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}

	if config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	for i, mimeConfig := range config.MimeTypes {
		if !slices.Contains(validHTMLXMLMimeTypes, mimeConfig.MimeType) {
			return fmt.Errorf("mime_types[%d]: invalid MIME type '%s', must be one of: %s",
				i, mimeConfig.MimeType, strings.Join(validHTMLXMLMimeTypes, ", "))
		}

		if len(mimeConfig.Rules) == 0 {
			return fmt.Errorf("mime_types[%d]: at least one rule must be specified", i)
		}

		for j, rule := range mimeConfig.Rules {
			if err := validateRule(rule); err != nil {
				return fmt.Errorf("mime_types[%d].rules[%d]: %w", i, j, err)
			}
		}
	}

	return nil
}

func validateRule(rule RuleConfig) error {
	if rule.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch rule.Kind {
	case KindElement:
		if rule.Target == "" {
			return fmt.Errorf("target is required for element rules")
		}
		if rule.Fragment == "" {
			return fmt.Errorf("fragment is required for element rules")
		}
	case KindDirective:
		if rule.Each {
			return fmt.Errorf("each is only valid for element rules")
		}
		if (rule.Open == "") != (rule.Close == "") {
			return fmt.Errorf("open and close must be set together")
		}
	default:
		return fmt.Errorf("invalid kind '%s', must be one of: %s, %s", rule.Kind, KindElement, KindDirective)
	}

	return nil
}

func setDefaults(config *Config) {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}
	if config.MaxResponseSizeMB == 0 {
		config.MaxResponseSizeMB = 10
	}
	if config.HealthPort == 0 {
		config.HealthPort = 8081
	}
}

func (c *Config) IsHTMLXMLMimeType(mimeType string) bool {
	for _, mt := range c.MimeTypes {
		if mt.MimeType == mimeType {
			return true
		}
	}
	return false
}

func (c *Config) GetRulesForMimeType(mimeType string) []RuleConfig {
	for _, mt := range c.MimeTypes {
		if mt.MimeType == mimeType {
			return mt.Rules
		}
	}
	return nil
}

// Fingerprint identifies the configured rule set. Responses rewritten under
// different rule sets never share a cache entry.
func (c *Config) Fingerprint() string {
	// json.Marshal sorts map keys, so equal configs hash equally.
	data, err := json.Marshal(c.MimeTypes)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
