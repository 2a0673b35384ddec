package core

import (
	"context"
	"time"
)

// CaseRepository is the CBR persistence boundary. Any keyed store
// works: the core only needs upsert-by-id and most-recent-N retrieval.
// UpsertCase must be safe under concurrent writers and serialize only
// on the same case id.
type CaseRepository interface {
	UpsertCase(ctx context.Context, c Case) error
	RecentCases(ctx context.Context, limit int) ([]Case, error)
	GetCase(ctx context.Context, caseID string) (Case, bool, error)
	// UpdateFeedback touches only the human-review fields.
	UpdateFeedback(ctx context.Context, caseID, feedback string, expertValidation bool) error
	CountCases(ctx context.Context) (int64, error)
}

// ExecutionRepository records rule firings for monitoring. Failures
// here must never abort an inference run.
type ExecutionRepository interface {
	LogExecution(ctx context.Context, ex RuleExecution) error
	RuleStats(ctx context.Context, since time.Time) ([]RuleStat, error)
	RecentExecutions(ctx context.Context, limit int) ([]RuleExecution, error)
}

// StoreError wraps persistence failures so callers can distinguish
// "decision without learning" from a failed decision.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }
