// Package memstore holds in-memory implementations of the storage
// interfaces. They back tests and database-less one-shot runs; the
// sqlite package is the durable twin.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandevgo/faltabot/internal/core"
)

// CaseStore is an in-memory core.CaseRepository. Insertion order is
// preserved so similarity ties rank deterministically.
type CaseStore struct {
	mu    sync.RWMutex
	cases []core.Case
	index map[string]int
}

func NewCaseStore() *CaseStore {
	return &CaseStore{index: make(map[string]int)}
}

func (s *CaseStore) UpsertCase(_ context.Context, c core.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[c.CaseID]; ok {
		// Idempotent upsert: same id replaces in place, keeping the
		// original insertion position.
		c.Feedback = s.cases[i].Feedback
		c.ExpertValidation = s.cases[i].ExpertValidation
		s.cases[i] = c
		return nil
	}
	s.index[c.CaseID] = len(s.cases)
	s.cases = append(s.cases, c)
	return nil
}

// RecentCases returns the most recent limit cases, oldest first.
func (s *CaseStore) RecentCases(_ context.Context, limit int) ([]core.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.cases) > limit {
		start = len(s.cases) - limit
	}
	return append([]core.Case(nil), s.cases[start:]...), nil
}

func (s *CaseStore) GetCase(_ context.Context, caseID string) (core.Case, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[caseID]; ok {
		return s.cases[i], true, nil
	}
	return core.Case{}, false, nil
}

func (s *CaseStore) UpdateFeedback(_ context.Context, caseID, feedback string, expertValidation bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[caseID]
	if !ok {
		return fmt.Errorf("case %q not found", caseID)
	}
	s.cases[i].Feedback = feedback
	s.cases[i].ExpertValidation = expertValidation
	return nil
}

func (s *CaseStore) CountCases(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.cases)), nil
}
