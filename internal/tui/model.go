// Package tui is the terminal scoreboard. It renders every snapshot the
// poller publishes and never triggers ingestion itself.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/MrVeink/svr/internal/core"
)

const emptyStateText = "No data loaded. Please select a local file or connect to Google Sheets."

// SnapshotMsg carries a newly published snapshot into the model.
type SnapshotMsg core.Snapshot

// ClosedMsg reports that the subscription ended.
type ClosedMsg struct{}

// Model is the bubbletea model for the viewer.
type Model struct {
	updates <-chan core.Snapshot
	snap    core.Snapshot
	palette Palette
	styles  Styles
	version string
	width   int
}

// New creates a model reading from updates. initial is shown until the
// first update arrives.
func New(updates <-chan core.Snapshot, initial core.Snapshot, theme, version string) Model {
	p := PaletteFor(theme)
	return Model{
		updates: updates,
		snap:    initial,
		palette: p,
		styles:  newStyles(p),
		version: version,
	}
}

// Theme returns the active palette name.
func (m Model) Theme() string { return m.palette.Name }

// Snapshot returns the snapshot currently on screen.
func (m Model) Snapshot() core.Snapshot { return m.snap }

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

// waitForSnapshot blocks on the subscription for the next snapshot.
func waitForSnapshot(updates <-chan core.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return ClosedMsg{}
		}
		return SnapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "t":
			m.toggleTheme()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case SnapshotMsg:
		m.snap = core.Snapshot(msg)
		return m, waitForSnapshot(m.updates)

	case ClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) toggleTheme() {
	if m.palette.Name == Dark.Name {
		m.palette = Light
	} else {
		m.palette = Dark
	}
	m.styles = newStyles(m.palette)
}

func (m Model) View() string {
	var b strings.Builder

	if m.snap.Table.IsEmpty() {
		b.WriteString(m.styles.Body.Render(emptyStateText))
	} else {
		b.WriteString(m.renderTable())
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) renderTable() string {
	t := m.snap.Table
	result, hasResult := t.ResultColumn()
	if !hasResult {
		result = -1
	}

	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		padded := make([]string, len(t.Headers))
		copy(padded, row)
		rows[i] = padded
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(m.styles.Border).
		Headers(t.Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return m.cellStyle(row, col, result)
		}).
		Render()
}

// cellStyle styles one cell; row is table.HeaderRow for the header.
func (m Model) cellStyle(row, col, result int) lipgloss.Style {
	width := columnWidth
	if col == 0 {
		width = firstColumnWidth
	}
	switch {
	case row == table.HeaderRow:
		return m.styles.Header.Width(width)
	case col == result:
		return m.styles.Result.Width(width)
	default:
		return m.styles.Cell.Width(width)
	}
}

func (m Model) statusLine() string {
	if m.snap.Err != nil {
		return m.styles.Error.Render(core.FormatUserError(m.snap.Err))
	}
	if m.snap.UpdatedAt.IsZero() {
		return m.styles.Status.Render("waiting for data")
	}
	return m.styles.Status.Render(fmt.Sprintf("%d rows, updated %s",
		len(m.snap.Table.Rows), m.snap.UpdatedAt.Format("15:04:05")))
}

func (m Model) footer() string {
	left := fmt.Sprintf("Score Viewer © 2024-2025 v%s", m.version)
	right := fmt.Sprintf("%s  [t] theme  [q] quit", m.snap.Source.String())
	line := left + "  " + right
	if m.width > 0 {
		return m.styles.Footer.Width(m.width).Render(line)
	}
	return m.styles.Footer.Render(line)
}

// Source is what Run needs from the poller.
type Source interface {
	Snapshot() core.Snapshot
	Subscribe() (<-chan core.Snapshot, func())
}

// Run shows the viewer until the user quits or ctx is cancelled.
func Run(ctx context.Context, src Source, theme, version string) error {
	updates, unsubscribe := src.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(
		New(updates, src.Snapshot(), theme, version),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}
