// Package rules turns the configured rewrite rules into runnable Rules and
// keeps them current across configuration reloads.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"graft/internal/config"
)

// ErrUnknownKind is returned for a rule whose kind is not recognised.
var ErrUnknownKind = errors.New("unknown rule kind")

type Manager struct {
	mu    sync.RWMutex
	rules map[string]*Rule
}

func New() (*Manager, error) {
	return &Manager{
		rules: make(map[string]*Rule),
	}, nil
}

// LoadRules compiles every rule in cfg. Rules whose configuration did not
// change keep their existing instance. Nothing is replaced when any rule
// fails to compile.
func (m *Manager) LoadRules(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newRules := make(map[string]*Rule)

	for _, mimeTypeConfig := range cfg.MimeTypes {
		for _, ruleConfig := range mimeTypeConfig.Rules {
			key := ruleKey(mimeTypeConfig.MimeType, ruleConfig.Name)

			if _, dup := newRules[key]; dup {
				return fmt.Errorf("duplicate rule %s", key)
			}

			if existing, exists := m.rules[key]; exists && reflect.DeepEqual(existing.cfg, ruleConfig) {
				newRules[key] = existing
				continue
			}

			rule, err := newRule(ruleConfig, mimeTypeConfig.MimeType)
			if err != nil {
				return fmt.Errorf("failed to load rule %s: %w", key, err)
			}

			newRules[key] = rule
			slog.Info("Loaded rule", "mime_type", mimeTypeConfig.MimeType, "name", ruleConfig.Name, "kind", ruleConfig.Kind)
		}
	}

	m.rules = newRules
	return nil
}

func (m *Manager) GetRule(mimeType, name string) *Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.rules[ruleKey(mimeType, name)]
}

// Len returns the number of loaded rules.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rules)
}

func ruleKey(mimeType, name string) string {
	return mimeType + "/" + name
}
