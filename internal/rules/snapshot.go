package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
)

// File is the on-disk rule definition format: the interface boundary
// with rule management.
type File struct {
	Rules    []core.Rule `json:"rules"`
	Metadata Metadata    `json:"metadata"`
}

type Metadata struct {
	Version     string `json:"version,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
	TotalRules  int    `json:"total_rules"`
}

// Snapshot is an immutable, priority-ordered view of the rule set. An
// inference run holds exactly one snapshot; reloading produces a new
// snapshot and never mutates one in place, so in-flight runs cannot
// race with rule management.
type Snapshot struct {
	rules    []core.Rule
	loadedAt time.Time
}

// NewSnapshot sorts the rules ascending by priority, ties keeping
// definition order, and freezes them.
func NewSnapshot(rs []core.Rule) *Snapshot {
	sorted := append([]core.Rule(nil), rs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Snapshot{rules: sorted, loadedAt: time.Now()}
}

// Load reads the rule file and returns a fresh snapshot.
func Load(path string) (*Snapshot, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(f.Rules), nil
}

// Rules returns a copy; callers cannot reach the frozen backing slice.
func (s *Snapshot) Rules() []core.Rule {
	return append([]core.Rule(nil), s.rules...)
}

func (s *Snapshot) Len() int { return len(s.rules) }

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Get looks a rule up by id.
func (s *Snapshot) Get(id string) (core.Rule, bool) {
	for _, r := range s.rules {
		if r.ID == id {
			return r, true
		}
	}
	return core.Rule{}, false
}

// ReadFile parses the JSON rule file. A missing file is an empty rule
// set, not an error: a fresh install has no rules yet.
func ReadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return &f, nil
}
