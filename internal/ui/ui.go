package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the Bubble Tea program and blocks until the batch finishes or
// the user quits. It reports whether the user aborted the batch.
func Run(opts Options) (aborted bool, err error) {
	if opts.Store == nil {
		return false, fmt.Errorf("ui requires a data store")
	}
	final, err := tea.NewProgram(New(opts)).Run()
	if err != nil {
		return false, fmt.Errorf("run ui: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.Aborted(), nil
	}
	return false, nil
}
