package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
)

// ExecutionRepo is the append-mostly monitoring log behind the rule
// dashboard. Writes are fire and forget from the engine's point of
// view, so errors are wrapped and surfaced but never retried.
type ExecutionRepo struct {
	db *sql.DB
}

func NewExecutionRepo(db *sql.DB) *ExecutionRepo {
	return &ExecutionRepo{db: db}
}

func (r *ExecutionRepo) LogExecution(ctx context.Context, ex core.RuleExecution) error {
	facts, err := json.Marshal(ex.CaseFacts)
	if err != nil {
		return fmt.Errorf("failed to marshal case facts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rule_executions (run_id, rule_id, rule_name, executed_at, case_facts, condition_result, action_executed, execution_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.RunID, ex.RuleID, ex.RuleName,
		ex.ExecutedAt.UTC().Format(time.RFC3339Nano),
		string(facts), ex.ConditionResult, ex.ActionExecuted, ex.ElapsedMillis)
	if err != nil {
		return fmt.Errorf("failed to log rule execution: %w", err)
	}
	return nil
}

func (r *ExecutionRepo) RuleStats(ctx context.Context, since time.Time) ([]core.RuleStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule_id, rule_name,
			COUNT(*) AS executions,
			SUM(condition_result) AS fired,
			AVG(execution_time_ms) AS avg_ms,
			MAX(executed_at) AS last_executed
		FROM rule_executions
		WHERE executed_at >= ?
		GROUP BY rule_id, rule_name
		ORDER BY executions DESC`,
		since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to query rule stats: %w", err)
	}
	defer rows.Close()

	var stats []core.RuleStat
	for rows.Next() {
		var (
			st   core.RuleStat
			last string
		)
		if err := rows.Scan(&st.RuleID, &st.RuleName, &st.Executions, &st.Fired, &st.AvgElapsedMs, &last); err != nil {
			return nil, fmt.Errorf("failed to scan rule stat: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, last)
		if err != nil {
			return nil, fmt.Errorf("failed to parse execution timestamp: %w", err)
		}
		st.LastExecutedAt = ts
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (r *ExecutionRepo) RecentExecutions(ctx context.Context, limit int) ([]core.RuleExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, rule_id, rule_name, executed_at, case_facts, condition_result, action_executed, execution_time_ms
		FROM rule_executions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var execs []core.RuleExecution
	for rows.Next() {
		var (
			ex       core.RuleExecution
			executed string
			facts    string
			action   sql.NullString
		)
		if err := rows.Scan(&ex.ID, &ex.RunID, &ex.RuleID, &ex.RuleName, &executed, &facts, &ex.ConditionResult, &action, &ex.ElapsedMillis); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if err := json.Unmarshal([]byte(facts), &ex.CaseFacts); err != nil {
			return nil, fmt.Errorf("failed to decode case facts: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, executed)
		if err != nil {
			return nil, fmt.Errorf("failed to parse execution timestamp: %w", err)
		}
		ex.ExecutedAt = ts
		ex.ActionExecuted = action.String
		execs = append(execs, ex)
	}
	return execs, rows.Err()
}
