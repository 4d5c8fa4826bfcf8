package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type actionMsg struct {
	details []string
	err     error
	elapsed time.Duration
}

type model struct {
	title   string
	timeout time.Duration
	details []string
	err     error
	elapsed time.Duration
	done    bool
	action  func(context.Context) ([]string, error)
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		start := time.Now()
		details, err := m.action(ctx)
		return actionMsg{details: details, err: err, elapsed: time.Since(start)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err = context.Canceled
			return m, tea.Quit
		}
	case actionMsg:
		m.details = msg.details
		m.err = msg.err
		m.elapsed = msg.elapsed
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	if !m.done {
		b.WriteString("\nRunning...\n")
		return b.String()
	}
	if m.err != nil {
		fmt.Fprintf(&b, "%s: %v\n", failStyle.Render("FAILED"), m.err)
	} else {
		fmt.Fprintf(&b, "%s %s\n", okStyle.Render("OK"), detailStyle.Render("("+m.elapsed.Round(time.Millisecond).String()+")"))
	}
	for _, d := range m.details {
		b.WriteString("- " + d + "\n")
	}
	return b.String()
}

// Run shows a one-shot progress view while action runs.
func Run(title string, timeout time.Duration, action func(context.Context) ([]string, error)) ([]string, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	m := model{title: title, timeout: timeout, action: action}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	res := final.(model)
	return res.details, res.err
}
