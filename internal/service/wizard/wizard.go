// Package wizard is the interactive rule authoring flow. It walks the
// operator through every rule field, validating conditions and actions
// as they are typed so a broken rule never reaches the store.
package wizard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	selStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("5"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Step represents a single step of the authoring flow
type Step interface {
	Init() tea.Cmd
	Update(msg tea.Msg, state *RuleState, width, height int) (Step, tea.Cmd)
	View(state *RuleState) string
}

func getSteps() []Step {
	return []Step{
		NewIDStep(),
		NewNameStep(),
		NewConditionStep(),
		NewActionStep(),
		NewPriorityStep(),
		NewSeverityStep(),
		NewExplanationStep(),
		NewConfirmStep(),
	}
}

type errMsg error

// model is the main Bubble Tea model that orchestrates the steps
type model struct {
	steps       []Step
	currentStep int
	state       *RuleState
	quitting    bool
	err         error
	width       int
	height      int
}

func initialModel(state *RuleState) model {
	return model{
		steps:       getSteps(),
		currentStep: 0,
		state:       state,
	}
}

func (m model) Init() tea.Cmd {
	if len(m.steps) > 0 && m.steps[0] != nil {
		return m.steps[0].Init()
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, tea.Quit
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case errMsg:
		m.err = msg
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.currentStep >= len(m.steps) {
		return m, tea.Quit
	}

	nextStep, cmd := m.steps[m.currentStep].Update(msg, m.state, m.width, m.height)

	if nextStep == nil {
		// Step indicated completion, move to next
		m.currentStep++
		if m.currentStep >= len(m.steps) {
			return m, tea.Quit
		}
		return m, m.steps[m.currentStep].Init()
	}

	if nextStep != m.steps[m.currentStep] {
		m.steps[m.currentStep] = nextStep
	}

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return "Rule authoring cancelled.\n"
	}

	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n(press ctrl+c to quit)\n"
	}

	if m.currentStep >= len(m.steps) {
		return "Rule saved!\n"
	}

	return titleStyle.Render("New absence rule") + "\n\n" + m.steps[m.currentStep].View(m.state)
}

// Run starts the TUI and returns the confirmed rule state.
func Run(state *RuleState) (*RuleState, error) {
	p := tea.NewProgram(initialModel(state), tea.WithAltScreen())
	m, err := p.Run()
	if err != nil {
		return nil, err
	}

	finalModel := m.(model)
	if finalModel.quitting || !finalModel.state.Confirmed {
		return nil, fmt.Errorf("rule authoring interrupted")
	}

	return finalModel.state, nil
}
