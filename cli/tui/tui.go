package tui

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
)

// View types with a TUI.
const (
	ViewStats   = "stats"
	ViewRecords = "records"
)

// DefaultRefreshInterval is how often a live view re-fetches its data.
const DefaultRefreshInterval = time.Second

// Refresher re-fetches a view's data. The result must have the same type
// as the data the view was started with.
type Refresher func(ctx context.Context) (any, error)

// keyMap defines key bindings.
type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// Run starts the TUI for viewType. refresh may be nil for a static view.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any, refresh Refresher) error {
	switch viewType {
	case ViewStats:
		return RunStatsTUI(data, refresh)
	case ViewRecords:
		return RunRecordsTUI(data)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only read-only views do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewStats, ViewRecords}
}

// humanBytes renders n with a binary unit.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
