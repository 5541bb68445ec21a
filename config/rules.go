package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// RuleSet is the delegate rule file: which CRM fields and document types
// each delegate requires, which checker engine handles it, and the
// thresholds of the HOMELIOR rule engine.
type RuleSet struct {
	Delegates      map[string]DelegateRules `yaml:"delegataires"`
	Homelior       HomeliorRules            `yaml:"homelior"`
	SummaryReasons int                      `yaml:"summary_reasons"`
}

// DelegateRules configures the checklist for one delegate organization.
// Engine selects the PDF checker: "rules" for the HOMELIOR engine, "ai" for
// the LLM fallback handled outside this service.
type DelegateRules struct {
	RequiredFields    []string `yaml:"required_fields"`
	RequiredDocuments []string `yaml:"required_documents"`
	Engine            string   `yaml:"engine"`
}

// HomeliorRules are the versioned thresholds of the rule engine. Dates use
// the dd/mm/yyyy form the paperwork itself uses; amounts are decimal
// strings so the tolerance survives yaml round-trips exactly.
type HomeliorRules struct {
	QuoteDateFrom   string  `yaml:"quote_date_from"`
	QuoteDateTo     string  `yaml:"quote_date_to"`
	UnitPriceMin    float64 `yaml:"unit_price_min"`
	UnitPriceMax    float64 `yaml:"unit_price_max"`
	AmountTolerance string  `yaml:"amount_tolerance"`
	DeclaredField   string  `yaml:"declared_amount_field"`
}

// ForDelegate returns the rules of a delegate, or an empty rule set when
// the delegate is unknown.
func (rs *RuleSet) ForDelegate(name string) DelegateRules {
	if rs == nil || rs.Delegates == nil {
		return DelegateRules{}
	}
	return rs.Delegates[name]
}

// RuleStore holds the currently loaded rule set and swaps it atomically
// when the file changes on disk.
type RuleStore struct {
	mu   sync.RWMutex
	path string
	rs   *RuleSet
}

func LoadRules(path string) (*RuleStore, error) {
	rs, err := readRuleSet(path)
	if err != nil {
		return nil, err
	}
	return &RuleStore{path: path, rs: rs}, nil
}

func readRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}

	if rs.SummaryReasons == 0 {
		rs.SummaryReasons = 5
	}
	if rs.Homelior.DeclaredField == "" {
		rs.Homelior.DeclaredField = "Prime CEE"
	}
	return &rs, nil
}

// Get returns the current rule set. Callers must not mutate it.
func (s *RuleStore) Get() *RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rs
}

// Reload re-reads the rule file and swaps the rule set in.
func (s *RuleStore) Reload() error {
	rs, err := readRuleSet(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.rs = rs
	s.mu.Unlock()
	return nil
}

// Watch reloads the rule set whenever the file is rewritten, until the
// context is cancelled. A rule file that fails to parse keeps the previous
// rule set in place and logs the error.
func (s *RuleStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rule watcher: %w", err)
	}

	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch rule file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.Reload(); err != nil {
					slog.Error("rule file reload failed, keeping previous rules",
						"path", s.path, "error", err)
					continue
				}
				slog.Info("rule file reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("rule watcher error", "error", err)
			}
		}
	}()

	return nil
}
