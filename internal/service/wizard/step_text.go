package wizard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_]{1,50}$`)

// IDStep collects the rule identifier
type IDStep struct {
	input   textinput.Model
	problem string
}

func NewIDStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 50
	ti.Width = 40
	ti.Placeholder = "ausencia_sin_aviso"

	return &IDStep{input: ti}
}

func (s *IDStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *IDStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			id := strings.TrimSpace(s.input.Value())
			if !idPattern.MatchString(id) {
				s.problem = "id must be lowercase letters, digits and underscores"
				return s, cmd
			}
			for _, r := range state.Existing {
				if r.ID == id {
					s.problem = fmt.Sprintf("rule %q already exists", id)
					return s, cmd
				}
			}
			state.Draft.ID = id
			return nil, nil
		}
	}
	return s, cmd
}

func (s *IDStep) View(state *RuleState) string {
	view := "Rule id:\n\n" + s.input.View() + "\n\n"
	if s.problem != "" {
		view += errorStyle.Render(s.problem) + "\n\n"
	}
	return view + "(press enter to confirm)\n"
}

// NameStep collects the human-readable rule name
type NameStep struct {
	input   textinput.Model
	problem string
}

func NewNameStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 120
	ti.Width = 60
	ti.Placeholder = "Ausencia sin aviso previo"

	return &NameStep{input: ti}
}

func (s *NameStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *NameStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			name := strings.TrimSpace(s.input.Value())
			if name == "" {
				s.problem = "name must not be empty"
				return s, cmd
			}
			state.Draft.Name = name
			return nil, nil
		}
	}
	return s, cmd
}

func (s *NameStep) View(state *RuleState) string {
	view := "Rule name:\n\n" + s.input.View() + "\n\n"
	if s.problem != "" {
		view += errorStyle.Render(s.problem) + "\n\n"
	}
	return view + "(press enter to confirm)\n"
}

// ExplanationStep collects the optional explanation template
type ExplanationStep struct {
	input textinput.Model
}

func NewExplanationStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 300
	ti.Width = 70
	ti.Placeholder = "Se registra una observación por ausencia sin aviso"

	return &ExplanationStep{input: ti}
}

func (s *ExplanationStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *ExplanationStep) Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			state.Draft.Explanation = strings.TrimSpace(s.input.Value())
			return nil, nil
		}
	}
	return s, cmd
}

func (s *ExplanationStep) View(state *RuleState) string {
	return "Explanation shown to HR (optional):\n\n" +
		s.input.View() + "\n\n" +
		"(press enter to confirm, empty to skip)\n"
}
