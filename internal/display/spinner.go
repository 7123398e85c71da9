package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
)

// SpinnerTask is one line of the progress display.
type SpinnerTask struct {
	ID    string
	Label string
}

// SpinnerShouldShow returns true if the spinner should be displayed.
// The spinner is hidden for quiet mode, JSON output, or non-TTY (piped) output.
func SpinnerShouldShow(quiet, json, nonTTY bool) bool {
	return !quiet && !json && !nonTTY
}

// SpinnerRun shows progress for the given tasks. run receives a send func
// that it should call with every coordinator event; SpinnerRun returns once
// run has returned. onInterrupt, if set, is called when the user presses
// Ctrl+C.
func SpinnerRun(tasks []SpinnerTask, onInterrupt func(), run func(send func(fetch.Event))) error {
	if len(tasks) == 0 {
		run(func(fetch.Event) {})
		return nil
	}

	m := newSpinnerModel(tasks)
	m.onInterrupt = onInterrupt
	p := tea.NewProgram(m)

	done := make(chan struct{})
	go func() {
		run(func(e fetch.Event) {
			p.Send(spinnerEventMsg(e))
		})
		close(done)
	}()

	_, err := p.Run()
	<-done
	if err != nil {
		return fmt.Errorf("running spinner: %w", err)
	}
	return nil
}

type spinnerEventMsg fetch.Event

type taskLine struct {
	label    string
	provider string
	percent  int
	status   fetch.Status
	done     bool
}

type spinnerModel struct {
	spinner  spinner.Model
	order    []string
	lines    map[string]*taskLine
	inflight int
	quitting bool

	onInterrupt func()
}

var (
	spinnerCheckStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	spinnerErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func newSpinnerModel(tasks []SpinnerTask) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := spinnerModel{
		spinner: s,
		lines:   make(map[string]*taskLine, len(tasks)),
	}
	for _, t := range tasks {
		if _, dup := m.lines[t.ID]; dup {
			continue
		}
		m.order = append(m.order, t.ID)
		m.lines[t.ID] = &taskLine{label: t.Label}
	}
	m.inflight = len(m.order)
	return m
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerEventMsg:
		line, ok := m.lines[msg.TaskID]
		if !ok || line.done {
			return m, nil
		}
		switch msg.Kind {
		case fetch.EventProviderSelected:
			if len(msg.Chain) > 0 {
				line.provider = string(msg.Chain[0])
			}
		case fetch.EventProgress:
			if msg.Provider != "" {
				line.provider = string(msg.Provider)
			}
			line.percent = max(line.percent, msg.Percent)
		case fetch.EventResult:
			line.done = true
			if msg.Outcome != nil {
				line.status = msg.Outcome.Status
				if msg.Outcome.Provider != "" {
					line.provider = string(msg.Outcome.Provider)
				}
			}
			m.inflight--
			if m.inflight == 0 {
				m.quitting = true
				return m, tea.Quit
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	for i, id := range m.order {
		if i > 0 {
			b.WriteString("\n")
		}
		line := m.lines[id]
		switch {
		case !line.done:
			b.WriteString(m.spinner.View())
		case line.status == fetch.StatusSucceeded:
			b.WriteString(spinnerCheckStyle.Render("✓"))
		default:
			b.WriteString(spinnerErrStyle.Render("✗"))
		}
		b.WriteString(" ")
		b.WriteString(line.label)
		if line.provider != "" {
			b.WriteString(dimStyle.Render(" via " + line.provider))
		}
		if !line.done && line.percent > 0 {
			fmt.Fprintf(&b, " %d%%", line.percent)
		}
	}
	return b.String()
}
