package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
)

// ExecutionStore is an in-memory core.ExecutionRepository.
type ExecutionStore struct {
	mu   sync.RWMutex
	rows []core.RuleExecution
}

func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{}
}

func (s *ExecutionStore) LogExecution(_ context.Context, ex core.RuleExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex.ID = int64(len(s.rows) + 1)
	s.rows = append(s.rows, ex)
	return nil
}

func (s *ExecutionStore) RuleStats(_ context.Context, since time.Time) ([]core.RuleStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byRule := make(map[string]*core.RuleStat)
	var order []string
	for _, ex := range s.rows {
		if ex.ExecutedAt.Before(since) {
			continue
		}
		stat, ok := byRule[ex.RuleID]
		if !ok {
			stat = &core.RuleStat{RuleID: ex.RuleID, RuleName: ex.RuleName}
			byRule[ex.RuleID] = stat
			order = append(order, ex.RuleID)
		}
		stat.AvgElapsedMs = (stat.AvgElapsedMs*float64(stat.Executions) + ex.ElapsedMillis) / float64(stat.Executions+1)
		stat.Executions++
		if ex.ConditionResult {
			stat.Fired++
		}
		if ex.ExecutedAt.After(stat.LastExecutedAt) {
			stat.LastExecutedAt = ex.ExecutedAt
		}
	}

	out := make([]core.RuleStat, 0, len(order))
	for _, id := range order {
		out = append(out, *byRule[id])
	}
	return out, nil
}

func (s *ExecutionStore) RecentExecutions(_ context.Context, limit int) ([]core.RuleExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.rows) > limit {
		start = len(s.rows) - limit
	}
	return append([]core.RuleExecution(nil), s.rows[start:]...), nil
}
