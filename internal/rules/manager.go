package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/internal/expert/eval"
	"github.com/sandevgo/faltabot/internal/expert/infer"
)

const (
	maxRuleIDLen = 50
	minPriority  = 1
	maxPriority  = 100
)

// Manager creates, edits and validates rules for non-technical
// authors. Every save is preceded by a timestamped backup of the
// current file. The manager, not the engine, enforces id uniqueness.
type Manager struct {
	path      string
	backupDir string
}

func NewManager(path, backupDir string) *Manager {
	return &Manager{path: path, backupDir: backupDir}
}

// Validate runs every field check a rule must pass before it is
// accepted. Conditions and actions go through the same evaluator the
// engine uses at inference time, so acceptance here guarantees
// parseability there.
func (m *Manager) Validate(rule core.Rule, existing []core.Rule) error {
	if err := m.validateID(rule.ID, existing); err != nil {
		return err
	}
	if ok, msg := eval.ValidateCondition(rule.Condition); !ok {
		return fmt.Errorf("condition: %s", msg)
	}
	if ok, msg := infer.ValidateAction(rule.Action); !ok {
		return fmt.Errorf("action: %s", msg)
	}
	if rule.ActivationCondition != "" {
		if ok, msg := eval.ValidateCondition(rule.ActivationCondition); !ok {
			return fmt.Errorf("activation condition: %s", msg)
		}
	}
	if rule.Priority < minPriority || rule.Priority > maxPriority {
		return fmt.Errorf("priority must be between %d and %d", minPriority, maxPriority)
	}
	if !rule.Severity.Valid() {
		return fmt.Errorf("severity must be one of: info, warning, error")
	}
	return nil
}

func (m *Manager) validateID(id string, existing []core.Rule) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("rule id must not be empty")
	}
	if len(id) > maxRuleIDLen {
		return fmt.Errorf("rule id must not exceed %d characters", maxRuleIDLen)
	}
	for _, c := range id {
		if c == '_' || c == '-' {
			continue
		}
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			continue
		}
		return fmt.Errorf("rule id may contain only letters, digits, hyphens and underscores")
	}
	for _, r := range existing {
		if r.ID == id {
			return fmt.Errorf("a rule with id %q already exists", id)
		}
	}
	return nil
}

// Add validates and appends a new rule, then persists the file.
func (m *Manager) Add(rule core.Rule) error {
	f, err := ReadFile(m.path)
	if err != nil {
		return err
	}
	if err := m.Validate(rule, f.Rules); err != nil {
		return err
	}

	rule.ID = strings.TrimSpace(rule.ID)
	rule.Condition = strings.TrimSpace(rule.Condition)
	rule.Action = strings.TrimSpace(rule.Action)
	if rule.CreatedAt == "" {
		rule.CreatedAt = time.Now().Format(time.RFC3339)
	}

	f.Rules = append(f.Rules, rule)
	return m.save(f)
}

// Edit replaces an existing rule after re-validating it against the
// other rules.
func (m *Manager) Edit(id string, updated core.Rule) error {
	f, err := ReadFile(m.path)
	if err != nil {
		return err
	}
	idx := -1
	others := make([]core.Rule, 0, len(f.Rules))
	for i, r := range f.Rules {
		if r.ID == id {
			idx = i
			continue
		}
		others = append(others, r)
	}
	if idx < 0 {
		return fmt.Errorf("rule %q not found", id)
	}

	updated.ID = id
	if err := m.Validate(updated, others); err != nil {
		return err
	}
	f.Rules[idx] = updated
	return m.save(f)
}

// Delete removes a rule by id.
func (m *Manager) Delete(id string) error {
	f, err := ReadFile(m.path)
	if err != nil {
		return err
	}
	kept := f.Rules[:0]
	found := false
	for _, r := range f.Rules {
		if r.ID == id {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return fmt.Errorf("rule %q not found", id)
	}
	f.Rules = kept
	return m.save(f)
}

// List returns all rules in file order.
func (m *Manager) List() ([]core.Rule, error) {
	f, err := ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return f.Rules, nil
}

// Snapshot loads a fresh immutable snapshot for an inference run.
func (m *Manager) Snapshot() (*Snapshot, error) {
	return Load(m.path)
}

func (m *Manager) save(f *File) error {
	if err := m.backup(); err != nil {
		return err
	}

	f.Metadata.LastUpdated = time.Now().Format("2006-01-02")
	f.Metadata.TotalRules = len(f.Rules)

	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}
	if err := os.WriteFile(m.path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	return nil
}

// backup copies the current rule file aside before it is overwritten.
func (m *Manager) backup() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read rules file for backup: %w", err)
	}
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	name := fmt.Sprintf("rules_backup_%s.json", time.Now().Format("20060102_150405"))
	if err := os.WriteFile(filepath.Join(m.backupDir, name), raw, 0644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}
