package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/pkg/retry"
)

// CaseRepo persists CBR case memory. Upserts are keyed on the content
// hash, so identical resubmissions never create a second row; the
// human-review columns survive an upsert untouched.
type CaseRepo struct {
	db      *sql.DB
	retrier *retry.Retrier
}

func NewCaseRepo(db *sql.DB) *CaseRepo {
	return &CaseRepo{db: db, retrier: retry.NewDefaultRetrier()}
}

func (r *CaseRepo) UpsertCase(ctx context.Context, c core.Case) error {
	facts, err := json.Marshal(c.Facts)
	if err != nil {
		return fmt.Errorf("failed to marshal facts: %w", err)
	}
	rules, err := json.Marshal(c.RulesApplied)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	actions, err := json.Marshal(c.ActionsTaken)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}
	features, err := json.Marshal(c.SimilarityFeatures)
	if err != nil {
		return fmt.Errorf("failed to marshal similarity features: %w", err)
	}

	query := `
		INSERT INTO cases (case_id, facts, rules_applied, actions_taken, outcome, similarity_features, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			facts = excluded.facts,
			rules_applied = excluded.rules_applied,
			actions_taken = excluded.actions_taken,
			outcome = excluded.outcome,
			similarity_features = excluded.similarity_features,
			timestamp = excluded.timestamp`

	// Concurrent writers with different ids are fine under WAL; a
	// short retry absorbs transient busy errors on the same id.
	return r.retrier.Do(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query,
			c.CaseID, string(facts), string(rules), string(actions),
			c.Outcome, string(features), c.Timestamp.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to upsert case: %w", err)
		}
		return nil
	})
}

// RecentCases returns the most recent limit cases in insertion order,
// oldest first, so similarity tie-breaks stay stable.
func (r *CaseRepo) RecentCases(ctx context.Context, limit int) ([]core.Case, error) {
	query := `
		SELECT case_id, facts, rules_applied, actions_taken, outcome, feedback, similarity_features, timestamp, expert_validation
		FROM (
			SELECT id, case_id, facts, rules_applied, actions_taken, outcome, feedback, similarity_features, timestamp, expert_validation
			FROM cases ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []core.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (r *CaseRepo) GetCase(ctx context.Context, caseID string) (core.Case, bool, error) {
	query := `
		SELECT case_id, facts, rules_applied, actions_taken, outcome, feedback, similarity_features, timestamp, expert_validation
		FROM cases WHERE case_id = ?`

	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return core.Case{}, false, fmt.Errorf("failed to query case: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return core.Case{}, false, rows.Err()
	}
	c, err := scanCase(rows)
	if err != nil {
		return core.Case{}, false, err
	}
	return c, true, nil
}

func (r *CaseRepo) UpdateFeedback(ctx context.Context, caseID, feedback string, expertValidation bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cases SET feedback = ?, expert_validation = ? WHERE case_id = ?`,
		feedback, expertValidation, caseID)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("case %q not found", caseID)
	}
	return nil
}

func (r *CaseRepo) CountCases(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return count, nil
}

func scanCase(rows *sql.Rows) (core.Case, error) {
	var (
		c         core.Case
		facts     string
		ruleIDs   string
		actions   string
		feedback  sql.NullString
		features  string
		timestamp string
	)
	if err := rows.Scan(&c.CaseID, &facts, &ruleIDs, &actions, &c.Outcome, &feedback, &features, &timestamp, &c.ExpertValidation); err != nil {
		return core.Case{}, fmt.Errorf("failed to scan case: %w", err)
	}

	if err := json.Unmarshal([]byte(facts), &c.Facts); err != nil {
		return core.Case{}, fmt.Errorf("failed to decode facts: %w", err)
	}
	if err := json.Unmarshal([]byte(ruleIDs), &c.RulesApplied); err != nil {
		return core.Case{}, fmt.Errorf("failed to decode rules: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &c.ActionsTaken); err != nil {
		return core.Case{}, fmt.Errorf("failed to decode actions: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &c.SimilarityFeatures); err != nil {
		return core.Case{}, fmt.Errorf("failed to decode similarity features: %w", err)
	}
	c.Feedback = feedback.String

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return core.Case{}, fmt.Errorf("failed to parse case timestamp: %w", err)
	}
	c.Timestamp = ts
	return c, nil
}
