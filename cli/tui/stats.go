package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/pressroom/cli/reader"
)

// fetchTimeout bounds one refresh.
const fetchTimeout = 2 * time.Second

type tickMsg time.Time

type statsMsg struct {
	data *reader.ServerStats
	err  error
}

// StatsModel is a Bubble Tea model for the server stats view.
type StatsModel struct {
	data     *reader.ServerStats
	refresh  Refresher
	interval time.Duration
	lastErr  error
	updated  time.Time
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model. refresh may be nil.
func NewStatsModel(data any, refresh Refresher) StatsModel {
	stats, _ := data.(*reader.ServerStats)
	return StatsModel{
		data:     stats,
		refresh:  refresh,
		interval: DefaultRefreshInterval,
		updated:  time.Now(),
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return m.tick()
}

func (m StatsModel) tick() tea.Cmd {
	if m.refresh == nil {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m StatsModel) fetch() tea.Cmd {
	refresh := m.refresh
	if refresh == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		data, err := refresh(ctx)
		if err != nil {
			return statsMsg{err: err}
		}
		stats, ok := data.(*reader.ServerStats)
		if !ok {
			return statsMsg{err: fmt.Errorf("unexpected stats type %T", data)}
		}
		return statsMsg{data: stats}
	}
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.fetch()
		}

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case statsMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.data = msg.data
			m.updated = time.Now()
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.data == nil {
		return "Invalid data type for stats"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(SectionStyle.Render("Connections"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Active", fmt.Sprint(m.data.ConnectionsActive), highlightColor),
		m.renderStatBox("Accepted", fmt.Sprint(m.data.ConnectionsAccepted), mutedColor),
		m.renderStatBox("Forced", fmt.Sprint(m.data.ConnectionsForced), warningColor),
		m.renderStatBox("Accept errors", fmt.Sprint(m.data.AcceptErrors), errorColor),
	))
	b.WriteString("\n")

	b.WriteString(SectionStyle.Render("Jobs"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Succeeded", fmt.Sprint(m.data.JobsSucceeded), successColor),
		m.renderStatBox("Failed", fmt.Sprint(m.data.JobsFailed), errorColor),
		m.renderStatBox("Received", humanBytes(m.data.BytesReceived), highlightColor),
		m.renderStatBox("Sent", humanBytes(m.data.BytesSent), highlightColor),
	))
	b.WriteString("\n")
	b.WriteString(m.renderFailures())

	b.WriteString(SectionStyle.Render("Records"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Queued", fmt.Sprint(m.data.QueueDepth), warningColor),
		m.renderStatBox("Persisted", fmt.Sprint(m.data.RecordsPersisted), successColor),
		m.renderStatBox("Failed", fmt.Sprint(m.data.RecordsFailed), errorColor),
		m.renderStatBox("Dropped", fmt.Sprint(m.data.RecordsDropped), errorColor),
	))

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("refresh failed: " + m.lastErr.Error()))
	}

	help := "Press q or Ctrl+C to quit"
	if m.refresh != nil {
		help = "Press r to refresh, q or Ctrl+C to quit"
	}
	return b.String() + "\n" + HelpStyle.Render(help)
}

func (m StatsModel) renderHeader() string {
	title := TitleStyle.Render("Pressroom Server")
	state := SuccessStyle.Render("serving")
	if m.data.ShuttingDown {
		state = WarningStyle.Render("shutting down")
	}

	lines := []string{
		title,
		m.field("Instance", m.data.InstanceID),
		m.field("Version", m.data.Version),
		m.field("Uptime", m.data.Uptime),
		m.field("Renderer", m.data.Renderer),
		m.field("Storage", m.data.StorageBackend),
		fmt.Sprintf("%s %s", LabelStyle.Render("State"), state),
		m.field("Success rate", m.data.SuccessRate),
	}
	if m.refresh != nil {
		lines = append(lines, m.field("Updated", m.updated.Format("15:04:05")))
	}
	return strings.Join(lines, "\n")
}

func (m StatsModel) renderFailures() string {
	if len(m.data.FailedByKind) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(m.data.FailedByKind))
	for k := range m.data.FailedByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var b strings.Builder
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %s %s\n",
			LabelStyle.Render(k),
			KindStyle(k).Render(fmt.Sprint(m.data.FailedByKind[k])))
	}
	return b.String()
}

func (m StatsModel) field(label, value string) string {
	return fmt.Sprintf("%s %s", LabelStyle.Render(label), ValueStyle.Render(value))
}

func (m StatsModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI. A non-nil refresh makes it live.
func RunStatsTUI(data any, refresh Refresher) error {
	if _, ok := data.(*reader.ServerStats); !ok {
		return fmt.Errorf("stats view needs *reader.ServerStats, got %T", data)
	}
	model := NewStatsModel(data, refresh)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(data any) string {
	model := NewStatsModel(data, nil)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
