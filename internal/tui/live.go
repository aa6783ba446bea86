// Package tui renders a live terminal view of a running optimization:
// energy trace, force and step diagnostics, and the run state.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/cgaigner/rigid/internal/opt"
)

const (
	graphWidth  = 60
	graphHeight = 12
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	rejectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("84")).Bold(true)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// StepMsg reports one finished optimization step.
type StepMsg struct {
	Iteration int
	Energy    float64
	MaxForce  float64
	Rejected  bool
}

// DoneMsg reports the end of the run.
type DoneMsg struct {
	State      string
	Iterations int
}

// Model is the bubbletea model of the live view.
type Model struct {
	name      string
	energies  []float64
	iteration int
	maxForce  float64
	rejected  int
	state     string
	done      bool
}

func NewModel(name string) Model {
	return Model{name: name, state: "iterating"}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case StepMsg:
		m.iteration = msg.Iteration
		m.energies = append(m.energies, msg.Energy)
		m.maxForce = msg.MaxForce
		if msg.Rejected {
			m.rejected++
		}
	case DoneMsg:
		m.state = msg.State
		m.iteration = msg.Iterations
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("rigid optimization: "+m.name) + "\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("iteration", fmt.Sprintf("%d", m.iteration))
	if len(m.energies) > 0 {
		row("energy [eV]", fmt.Sprintf("%.8f", m.energies[len(m.energies)-1]))
	}
	row("max force", fmt.Sprintf("%.6f eV/A", m.maxForce))
	if m.rejected > 0 {
		b.WriteString(labelStyle.Render("rejected") + rejectStyle.Render(fmt.Sprintf("%d", m.rejected)) + "\n")
	}
	if m.done {
		b.WriteString(doneStyle.Render("state: "+m.state) + "\n")
	}

	if len(m.energies) > 1 {
		plot := asciigraph.Plot(m.energies,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("energy per step"))
		b.WriteString(graphStyle.Render(plot) + "\n")
	}

	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}

// Monitor adapts a running bubbletea program to the optimizer's
// Observer interface. Sends never block the optimization loop.
type Monitor struct {
	p *tea.Program
}

func NewMonitor(p *tea.Program) *Monitor {
	return &Monitor{p: p}
}

func (m *Monitor) OnStep(step *opt.Step, iteration int) {
	go m.p.Send(StepMsg{
		Iteration: iteration,
		Energy:    step.Energy,
		MaxForce:  step.MaxForce(),
		Rejected:  step.After == nil,
	})
}

// Done signals the end of the run to the view.
func (m *Monitor) Done(state string, iterations int) {
	go m.p.Send(DoneMsg{State: state, Iterations: iterations})
}
