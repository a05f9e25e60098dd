package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/rotation"
)

// StartCmd runs the initial load off the update loop
func StartCmd(ctx context.Context, coord *rotation.Coordinator) tea.Cmd {
	return func() tea.Msg {
		if err := coord.Start(ctx); err != nil && !errors.Is(err, domain.ErrNotVisible) {
			return ErrMsg{Err: err, Context: "starting rotation"}
		}
		return StartedMsg{}
	}
}

// WaitForEventCmd blocks until the next rotation event
func WaitForEventCmd(ch <-chan rotation.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg{Event: e}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
