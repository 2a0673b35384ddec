package wizard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandevgo/faltabot/internal/rules"
)

// ConfirmStep shows the draft with a conflict preview and asks for a
// final yes or no.
type ConfirmStep struct {
	conflicts []rules.Conflict
	computed  bool
}

func NewConfirmStep() Step {
	return &ConfirmStep{}
}

func (s *ConfirmStep) Init() tea.Cmd {
	return nil
}

func (s *ConfirmStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	s.analyze(state)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y", "enter":
			state.Confirmed = true
			return nil, nil
		case "n", "N", "esc":
			return nil, tea.Quit
		}
	}
	return s, nil
}

func (s *ConfirmStep) analyze(state *RuleState) {
	if s.computed {
		return
	}
	s.conflicts = rules.AnalyzeConflicts(state.Draft, state.Existing)
	s.computed = true
}

func (s *ConfirmStep) View(state *RuleState) string {
	s.analyze(state)

	var b strings.Builder
	d := state.Draft

	b.WriteString("Save this rule?\n\n")
	fmt.Fprintf(&b, "  id:        %s\n", d.ID)
	fmt.Fprintf(&b, "  name:      %s\n", d.Name)
	fmt.Fprintf(&b, "  condition: %s\n", d.Condition)
	fmt.Fprintf(&b, "  action:    %s\n", d.Action)
	fmt.Fprintf(&b, "  priority:  %d\n", d.Priority)
	fmt.Fprintf(&b, "  severity:  %s\n", d.Severity)
	if d.Explanation != "" {
		fmt.Fprintf(&b, "  explains:  %s\n", d.Explanation)
	}

	if len(s.conflicts) > 0 {
		b.WriteString("\nPossible conflicts:\n")
		for _, c := range s.conflicts {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  %s: %s", c.Type, c.Message)) + "\n")
		}
	}

	b.WriteString("\n(y to save, n to cancel)\n")
	return b.String()
}
