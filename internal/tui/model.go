// Package tui renders a live progress view of a run: one line per package
// with its status, a spinner for running packages, and a summary footer.
//
// The view is driven entirely by event.Bus notifications; it never talks to
// the runner directly.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/wsrun/internal/event"
	"github.com/Iron-Ham/wsrun/internal/tui/styles"
)

// Package statuses as shown in the view.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// EventMsg carries a bus event into the bubbletea update loop.
type EventMsg struct {
	Event event.Event
}

type packageRow struct {
	name     string
	status   string
	duration time.Duration
	exitCode int
}

// Model is the bubbletea model of the progress view.
type Model struct {
	script  string
	spinner spinner.Model

	rows  []packageRow
	index map[string]int

	batch   int
	batches int
	mode    event.Mode

	// width is the terminal width; 0 until the first WindowSizeMsg.
	width int

	done     bool
	duration time.Duration
	err      error
}

// NewModel creates an empty progress model. Packages appear once the run
// starts.
func NewModel(script string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(styles.StatusRunning)
	return Model{
		script:  script,
		spinner: sp,
		index:   map[string]int{},
		batch:   -1,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		return m.handleEvent(msg.Event)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleEvent(e event.Event) (tea.Model, tea.Cmd) {
	switch e := e.(type) {
	case event.RunStartedEvent:
		m.mode = e.Mode
		m.batches = e.Batches
		m.rows = make([]packageRow, len(e.Packages))
		m.index = make(map[string]int, len(e.Packages))
		for i, name := range e.Packages {
			m.rows[i] = packageRow{name: name, status: StatusPending}
			m.index[name] = i
		}
	case event.BatchStartedEvent:
		m.batch = e.Index
	case event.PackageStartedEvent:
		m.setStatus(e.Package, StatusRunning, 0, 0)
	case event.PackageFinishedEvent:
		status := StatusSucceeded
		if !e.Success() {
			status = StatusFailed
		}
		m.setStatus(e.Package, status, e.Duration, e.ExitCode)
	case event.PackageSkippedEvent:
		m.setStatus(e.Package, StatusSkipped, 0, 0)
	case event.RunFinishedEvent:
		m.done = true
		m.duration = e.Duration
		m.err = e.Err
		return m, tea.Quit
	}
	return m, nil
}

// setStatus updates a row. rows is shared with earlier copies of the model,
// so the slice is copied before writing.
func (m *Model) setStatus(name, status string, duration time.Duration, exitCode int) {
	i, ok := m.index[name]
	if !ok {
		return
	}
	rows := make([]packageRow, len(m.rows))
	copy(rows, m.rows)
	rows[i] = packageRow{name: name, status: status, duration: duration, exitCode: exitCode}
	m.rows = rows
}

// Done reports whether the run has finished.
func (m Model) Done() bool {
	return m.done
}

// Counts returns how many packages are in each status.
func (m Model) Counts() map[string]int {
	counts := map[string]int{}
	for _, row := range m.rows {
		counts[row.status]++
	}
	return counts
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	header := fmt.Sprintf("wsrun %s", m.script)
	if m.mode == event.ModeBatched && m.batches > 0 && m.batch >= 0 {
		header += fmt.Sprintf("  batch %d/%d", m.batch+1, m.batches)
	} else if m.mode == event.ModeParallel {
		header += "  parallel"
	}
	b.WriteString(styles.Title.Render(header))
	b.WriteString("\n\n")

	for _, row := range m.rows {
		b.WriteString(m.fit(m.renderRow(row)))
		b.WriteString("\n")
	}

	counts := m.Counts()
	footer := fmt.Sprintf("%d succeeded, %d failed, %d running, %d pending",
		counts[StatusSucceeded], counts[StatusFailed], counts[StatusRunning], counts[StatusPending])
	if counts[StatusSkipped] > 0 {
		footer += fmt.Sprintf(", %d skipped", counts[StatusSkipped])
	}
	if m.done {
		footer += fmt.Sprintf(" in %s", m.duration.Round(time.Millisecond))
	}
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render(footer))
	b.WriteString("\n")
	return b.String()
}

// fit truncates a styled line to the terminal width.
func (m Model) fit(line string) string {
	if m.width <= 3 || lipgloss.Width(line) <= m.width {
		return line
	}
	return ansi.Truncate(line, m.width, "...")
}

func (m Model) renderRow(row packageRow) string {
	icon := styles.StatusIcon(row.status)
	if row.status == StatusRunning {
		icon = m.spinner.View()
	} else {
		icon = lipgloss.NewStyle().Foreground(styles.StatusColor(row.status)).Render(icon)
	}

	line := fmt.Sprintf("%s %s", icon, row.name)
	switch row.status {
	case StatusSucceeded:
		line += styles.Muted.Render(fmt.Sprintf(" %s", row.duration.Round(time.Millisecond)))
	case StatusFailed:
		detail := fmt.Sprintf(" %s", row.duration.Round(time.Millisecond))
		if row.exitCode > 0 {
			detail = fmt.Sprintf(" exit %d,%s", row.exitCode, detail)
		}
		line += styles.ErrorMsg.Render(detail)
	}
	return line
}
