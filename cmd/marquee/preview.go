package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/rotation"
	"github.com/mmcdole/marquee/internal/tui"
)

func newPreviewCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Run the slide rotation in the terminal",
		Long: `Runs the full rotation engine against a terminal renderer: slides
advance on the configured duration, the cycle clock rebuilds the set, and
the keyboard drives pause, navigation and manual rebuilds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(userID)
			if err != nil {
				return err
			}
			defer a.Close()

			renderer := tui.NewTerminalRenderer(clock.New())
			coord := a.coordinator(renderer, clock.New())
			defer coord.Close()

			events := make(chan rotation.Event, 64)
			unsub := coord.Bus().Subscribe(tui.NewChannelObserver(events))
			defer unsub()

			model := tui.NewModel(cmd.Context(), coord, renderer, events, a.logger)
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

			a.logger.Info("starting TUI")
			if _, err := p.Run(); err != nil {
				a.logger.Error("TUI error", "error", err)
				return fmt.Errorf("TUI error: %w", err)
			}
			a.logger.Info("shutting down")
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID to select for (defaults to the configured user)")
	return cmd
}
