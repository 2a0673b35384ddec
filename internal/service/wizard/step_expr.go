package wizard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandevgo/faltabot/internal/expert/eval"
	"github.com/sandevgo/faltabot/internal/expert/infer"
)

// ConditionStep collects the firing condition and checks it against
// the expression grammar before letting the author move on.
type ConditionStep struct {
	input   textinput.Model
	problem string
}

func NewConditionStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 300
	ti.Width = 70
	ti.Placeholder = "motivo == 'Ausencia sin Aviso' and duracion > 2"

	return &ConditionStep{input: ti}
}

func (s *ConditionStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *ConditionStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			cond := strings.TrimSpace(s.input.Value())
			if ok, reason := eval.ValidateCondition(cond); !ok {
				s.problem = reason
				return s, cmd
			}
			state.Draft.Condition = cond
			return nil, nil
		}
	}
	return s, cmd
}

func (s *ConditionStep) View(state *RuleState) string {
	view := "Condition:\n\n" + s.input.View() + "\n\n"
	if s.problem != "" {
		view += errorStyle.Render(s.problem) + "\n\n"
	}
	return view + "(press enter to validate and confirm)\n"
}

// ActionStep collects the rule action
type ActionStep struct {
	input   textinput.Model
	problem string
}

func NewActionStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 300
	ti.Width = 70
	ti.Placeholder = "add_observacion('Ausencia prolongada sin certificado')"

	return &ActionStep{input: ti}
}

func (s *ActionStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *ActionStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			action := strings.TrimSpace(s.input.Value())
			if ok, reason := infer.ValidateAction(action); !ok {
				s.problem = reason
				return s, cmd
			}
			state.Draft.Action = action
			return nil, nil
		}
	}
	return s, cmd
}

func (s *ActionStep) View(state *RuleState) string {
	view := "Action:\n\n" + s.input.View() + "\n\n"
	if s.problem != "" {
		view += errorStyle.Render(s.problem) + "\n\n"
	}
	return view + "(press enter to validate and confirm)\n"
}
