package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marquee",
		Short: "Rotating media slideshow for the Jellyfin home screen",
		Long: `Marquee selects featured items from a Jellyfin library and rotates them
as timed slides. Overlays connect to "marquee serve" over a websocket; the
"preview" command runs the same rotation in the terminal.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newLoginCmd(),
		newSelectCmd(),
		newPreviewCmd(),
		newServeCmd(),
		newListgenCmd(),
	)
	return cmd
}
