package wizard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandevgo/faltabot/internal/core"
)

// SeverityStep selects the rule severity
type SeverityStep struct {
	choices []core.Severity
	cursor  int
}

func NewSeverityStep() Step {
	return &SeverityStep{
		choices: []core.Severity{core.SeverityInfo, core.SeverityWarning, core.SeverityError},
		cursor:  0,
	}
}

func (s *SeverityStep) Init() tea.Cmd {
	return nil
}

func (s *SeverityStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			state.Draft.Severity = s.choices[s.cursor]
			return nil, nil
		}
	}
	return s, nil
}

func (s *SeverityStep) View(state *RuleState) string {
	var b strings.Builder
	b.WriteString("Select severity:\n\n")
	for i, choice := range s.choices {
		cursor := " "
		if s.cursor == i {
			cursor = "❯"
			b.WriteString(selStyle.Render(fmt.Sprintf("%s %s", cursor, choice)) + "\n")
		} else {
			b.WriteString(itemStyle.Render(fmt.Sprintf("%s %s", cursor, choice)) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}
