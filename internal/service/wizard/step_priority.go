package wizard

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// PriorityStep collects the priority, lower fires first
type PriorityStep struct {
	input   textinput.Model
	problem string
}

func NewPriorityStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 3
	ti.Width = 10
	ti.Placeholder = "50"

	return &PriorityStep{input: ti}
}

func (s *PriorityStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *PriorityStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			raw := strings.TrimSpace(s.input.Value())
			if raw == "" {
				return nil, nil // keep the default
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 100 {
				s.problem = "priority must be a number between 1 and 100"
				return s, cmd
			}
			state.Draft.Priority = n
			return nil, nil
		}
	}
	return s, cmd
}

func (s *PriorityStep) View(state *RuleState) string {
	view := "Priority (1-100, lower fires first):\n\n" + s.input.View() + "\n\n"
	if s.problem != "" {
		view += errorStyle.Render(s.problem) + "\n\n"
	}
	return view + "(press enter to confirm, empty for 50)\n"
}
