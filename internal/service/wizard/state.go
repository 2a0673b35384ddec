package wizard

import (
	"time"

	"github.com/sandevgo/faltabot/internal/core"
)

// RuleState carries the draft through the steps. Existing holds the
// current rule set for duplicate-id checks and the conflict preview on
// the confirmation screen.
type RuleState struct {
	Draft     core.Rule
	Existing  []core.Rule
	Confirmed bool
}

func NewRuleState(existing []core.Rule) *RuleState {
	return &RuleState{
		Draft: core.Rule{
			Priority:  50,
			Severity:  core.SeverityInfo,
			CreatedBy: "wizard",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Existing: existing,
	}
}
