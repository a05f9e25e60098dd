package tui

import "github.com/mmcdole/marquee/internal/rotation"

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// StartedMsg signals that the initial load finished
type StartedMsg struct{}

// EventMsg carries a rotation event into the update loop
type EventMsg struct {
	Event rotation.Event
}

// TickMsg redraws the countdown bar
type TickMsg struct{}

// ClearStatusMsg clears the status line
type ClearStatusMsg struct{}
