package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
)

type timeoutMsg struct{}

// confirmModel asks the user to accept a validation with shortages. Anything
// other than an explicit "y" declines, including the timeout.
type confirmModel struct {
	result    *stock.ValidationResult
	timeout   time.Duration
	confirmed bool
	done      bool
}

func newConfirmModel(result *stock.ValidationResult, timeout time.Duration) confirmModel {
	return confirmModel{result: result, timeout: timeout}
}

func (m confirmModel) Init() tea.Cmd {
	if m.timeout <= 0 {
		return nil
	}
	return tea.Tick(m.timeout, func(time.Time) tea.Msg { return timeoutMsg{} })
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.confirmed = true
			m.done = true
			return m, tea.Quit
		case "n", "N", "q", "esc", "enter", "ctrl+c":
			m.done = true
			return m, tea.Quit
		}
	case timeoutMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	b := &strings.Builder{}
	b.WriteString(renderValidation(m.result))
	fmt.Fprintln(b, "")
	fmt.Fprint(b, "Some products are short on stock. Submit anyway? [y/N] ")
	return b.String()
}

// renderValidation prints one row per requested line.
func renderValidation(res *stock.ValidationResult) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Stock check: %s\n", res.Verdict)
	for _, l := range res.Lines {
		marker := " "
		if l.Classification != stock.Sufficient {
			marker = "!"
		}
		name := l.ProductName
		if name == "" {
			name = l.ProductID
		}
		fmt.Fprintf(b, " %s %-30s requested %-10s available %-10s %s\n",
			marker, name, l.Requested.String(), l.Available.String(), l.Classification)
	}
	return b.String()
}

// promptConfirm is the interactive confirmation gate. A clear validation is
// accepted without asking.
func promptConfirm(ctx context.Context, res *stock.ValidationResult, timeout time.Duration, opts ...tea.ProgramOption) (bool, error) {
	if res.Verdict == stock.Clear {
		return true, nil
	}
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(newConfirmModel(res, timeout), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m, ok := final.(confirmModel)
	return ok && m.confirmed, nil
}
