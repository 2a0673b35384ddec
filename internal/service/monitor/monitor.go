// Package monitor observes rule activity. The inference engine reports
// each firing through the Recorder hook and this package turns the log
// into per-rule health reports for operators.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/pkg/log"
)

// Recorder forwards rule firings to the execution log. A logging
// failure is reported but never propagated, monitoring must not be
// able to break a decision.
type Recorder struct {
	repo core.ExecutionRepository
}

func NewRecorder(repo core.ExecutionRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Record(ctx context.Context, ex core.RuleExecution) error {
	if err := r.repo.LogExecution(ctx, ex); err != nil {
		log.FromCtx(ctx).Warn().Err(err).
			Str("rule_id", ex.RuleID).
			Msg("Failed to log rule execution")
	}
	return nil
}

// Report is a monitoring snapshot over a time window.
type Report struct {
	Window         time.Duration   `json:"window"`
	GeneratedAt    time.Time       `json:"generated_at"`
	TotalFirings   int64           `json:"total_firings"`
	ActiveRules    int             `json:"active_rules"`
	Stats          []core.RuleStat `json:"stats"`
	IdleRules      []string        `json:"idle_rules"`
	HotRules       []string        `json:"hot_rules"`
	SlowRules      []string        `json:"slow_rules"`
}

const (
	// A rule that accounts for more than half of all firings in the
	// window usually means its condition is too broad.
	hotShare = 0.5

	slowThresholdMs = 50.0
)

type Monitor struct {
	repo  core.ExecutionRepository
	clock func() time.Time
}

func New(repo core.ExecutionRepository) *Monitor {
	return &Monitor{repo: repo, clock: time.Now}
}

// Generate builds a report for the given window against the known rule
// set. Rules with no firings inside the window are listed as idle.
func (m *Monitor) Generate(ctx context.Context, ruleset []core.Rule, window time.Duration) (*Report, error) {
	now := m.clock()
	stats, err := m.repo.RuleStats(ctx, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to load rule stats: %w", err)
	}

	report := &Report{
		Window:      window,
		GeneratedAt: now,
		ActiveRules: len(stats),
		Stats:       stats,
	}

	seen := make(map[string]bool, len(stats))
	for _, st := range stats {
		seen[st.RuleID] = true
		report.TotalFirings += st.Fired
		if st.AvgElapsedMs > slowThresholdMs {
			report.SlowRules = append(report.SlowRules, st.RuleID)
		}
	}
	for _, st := range stats {
		if report.TotalFirings > 0 && float64(st.Fired) > hotShare*float64(report.TotalFirings) {
			report.HotRules = append(report.HotRules, st.RuleID)
		}
	}
	for _, rule := range ruleset {
		if !seen[rule.ID] {
			report.IdleRules = append(report.IdleRules, rule.ID)
		}
	}
	sort.Strings(report.IdleRules)
	return report, nil
}

// Render formats a report as markdown for chat delivery.
func Render(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Rule activity, last %s\n\n", r.Window)
	fmt.Fprintf(&b, "Active rules: %d, total firings: %d\n\n", r.ActiveRules, r.TotalFirings)

	if len(r.Stats) > 0 {
		b.WriteString("| Rule | Evaluations | Fired | Avg ms |\n")
		b.WriteString("|------|-------------|-------|--------|\n")
		for _, st := range r.Stats {
			fmt.Fprintf(&b, "| %s | %d | %d | %.1f |\n", st.RuleID, st.Executions, st.Fired, st.AvgElapsedMs)
		}
		b.WriteString("\n")
	}

	if len(r.HotRules) > 0 {
		fmt.Fprintf(&b, "Dominant rules: %s\n", strings.Join(r.HotRules, ", "))
	}
	if len(r.SlowRules) > 0 {
		fmt.Fprintf(&b, "Slow rules: %s\n", strings.Join(r.SlowRules, ", "))
	}
	if len(r.IdleRules) > 0 {
		fmt.Fprintf(&b, "Idle rules: %s\n", strings.Join(r.IdleRules, ", "))
	}
	return b.String()
}
