package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/pressroom/cli/reader"
)

// recordsTableHeight is the visible row count before the first resize.
const recordsTableHeight = 15

var recordColumns = []table.Column{
	{Title: "Time (UTC)", Width: 19},
	{Title: "Job", Width: 36},
	{Title: "Source", Width: 16},
	{Title: "File", Width: 24},
	{Title: "In", Width: 10},
	{Title: "Out", Width: 10},
}

func recordsTableWidth() int {
	w := 0
	for _, c := range recordColumns {
		w += c.Width + 2 // cell padding
	}
	return w
}

// RecordsModel is a scrollable table of persisted records.
type RecordsModel struct {
	table    table.Model
	count    int
	quitting bool
}

// NewRecordsModel creates a records model.
func NewRecordsModel(records []reader.RecordView) RecordsModel {
	rows := make([]table.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, table.Row{
			rec.Timestamp.UTC().Format(time.DateTime),
			rec.JobID,
			rec.Source,
			rec.FileName,
			humanBytes(rec.InputBytes),
			humanBytes(rec.OutputBytes),
		})
	}

	t := table.New(
		table.WithColumns(recordColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(recordsTableHeight),
		table.WithWidth(recordsTableWidth()),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(mutedColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor)
	t.SetStyles(styles)

	return RecordsModel{table: t, count: len(records)}
}

// Init implements tea.Model.
func (m RecordsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m RecordsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title, help and table header take six lines.
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m RecordsModel) View() string {
	if m.quitting {
		return ""
	}
	title := TitleStyle.Render(fmt.Sprintf("Conversion Records (%d)", m.count))
	help := HelpStyle.Render("Use arrows or j/k to scroll, q to quit")
	return title + "\n" + m.table.View() + "\n" + help
}

// RunRecordsTUI runs the records TUI.
func RunRecordsTUI(data any) error {
	records, ok := data.([]reader.RecordView)
	if !ok {
		return fmt.Errorf("records view needs []reader.RecordView, got %T", data)
	}
	p := tea.NewProgram(NewRecordsModel(records), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
