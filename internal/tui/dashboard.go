// Copyright (c) 2025 Neomantra Corp

// Package tui is a bubbletea dashboard over a running batch job, adapted
// from the teacher's jobs.go/download_manager.go page-plus-table shape:
// one table of per-symbol state, refreshed on a tick instead of a
// channel of download-progress messages (a batch run has no equivalent
// streaming progress feed — the manifest itself is the source of truth,
// so the dashboard just re-polls it).
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	humanize "github.com/dustin/go-humanize"

	"github.com/rangebar-go/rangebar/batch"
)

const refreshInterval = 500 * time.Millisecond

const (
	columnSymbolWidth = 14
	columnStateWidth  = 11
	columnBarsWidth   = 10
	columnErrorWidth  = 40
	columnUpdateWidth = 20
)

// Config configures a dashboard Run.
type Config struct {
	Manifest *batch.Manifest
	Total    int // total symbols seeded, for the progress bar; 0 disables it
}

// Run starts the batch dashboard and blocks until the user quits.
func Run(config Config) error {
	p := tea.NewProgram(newDashboardModel(config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type entriesMsg struct {
	entries []batch.ManifestEntry
	err     error
}

func pollEntries(m *batch.Manifest) tea.Cmd {
	return func() tea.Msg {
		entries, err := m.Entries()
		return entriesMsg{entries: entries, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

type tickMsg struct{}

// dashboardKeyMap is the dashboard's key.Binding set.
type dashboardKeyMap struct {
	Quit key.Binding
}

func defaultKeyMap() dashboardKeyMap {
	return dashboardKeyMap{
		Quit: key.NewBinding(key.WithKeys("ctrl+c", "esc", "q"), key.WithHelp("q", "quit")),
	}
}

func (k dashboardKeyMap) ShortHelp() []key.Binding { return []key.Binding{k.Quit} }
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

type dashboardModel struct {
	config Config

	entries  []batch.ManifestEntry
	lastErr  error

	tbl      table.Model
	progress progress.Model
	keyMap   dashboardKeyMap
	width    int
	height   int
}

func newDashboardModel(config Config) dashboardModel {
	tbl := table.New(table.WithColumns([]table.Column{
		{Title: "Symbol", Width: columnSymbolWidth},
		{Title: "State", Width: columnStateWidth},
		{Title: "Bars", Width: columnBarsWidth},
		{Title: "Updated", Width: columnUpdateWidth},
		{Title: "Error", Width: columnErrorWidth},
	}), table.WithStyles(nimbleTableStyles), table.WithFocused(true))

	return dashboardModel{
		config:   config,
		tbl:      tbl,
		progress: progress.New(progress.WithDefaultGradient()),
		keyMap:   defaultKeyMap(),
		width:    80,
		height:   24,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(pollEntries(m.config.Manifest), tick())
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tbl.SetHeight(m.height - 6)
		m.progress.Width = m.width - 4
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keyMap.Quit) {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.tbl, cmd = m.tbl.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Batch(pollEntries(m.config.Manifest), tick())

	case entriesMsg:
		m.lastErr = msg.err
		m.entries = msg.entries
		var rows []table.Row
		for _, e := range m.entries {
			rows = append(rows, table.Row{
				e.Symbol,
				e.State.String(),
				humanize.Comma(e.BarsWritten),
				e.UpdatedAt.Format(time.TimeOnly),
				e.Error,
			})
		}
		m.tbl.SetRows(rows)
		return m, nil
	}
	return m, nil
}

func (m dashboardModel) View() string {
	header := lipgloss.NewStyle().Bold(true).Foreground(colorYellow).
		Background(colorDarkPurple).Render(" rangebar batch ")

	if m.lastErr != nil {
		return header + "\n" + fmt.Sprintf("manifest error: %s\n", m.lastErr)
	}

	var completed int
	for _, e := range m.entries {
		if e.State == batch.JobState_Completed {
			completed++
		}
	}

	body := m.tbl.View()
	if m.config.Total > 0 {
		frac := float64(completed) / float64(m.config.Total)
		body += "\n" + m.progress.ViewAs(frac)
		body += fmt.Sprintf(" %d/%d symbols", completed, m.config.Total)
	}
	return header + "\n" + body + "\n"
}
