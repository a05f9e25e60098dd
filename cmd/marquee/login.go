package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/jellyfin"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

func newLoginCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against a Jellyfin server and save the credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := log.SetupLogger(&cfg.Logging)
			if err != nil {
				logger = log.NullLogger()
			}

			flow := jellyfin.NewAuthFlow(logger)

			if serverURL == "" {
				serverURL = cfg.Server.URL
			}
			for serverURL == "" {
				serverURL, err = flow.PromptForServerURL()
				if err != nil {
					return err
				}
				if serverURL == "" {
					fmt.Println("Server URL cannot be empty. Please try again.")
				}
			}
			serverURL = strings.TrimRight(serverURL, "/")

			result, err := flow.Run(cmd.Context(), serverURL)
			if err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}

			if err := config.SaveCredentials(serverURL, result.Token, result.UserID, result.Username); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Println()
			fmt.Println(styles.SuccessStyle.Render(styles.PlayedChar+" Configuration saved!"), styles.DimStyle.Render("signed in as "+result.Username))
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "Jellyfin server URL")
	return cmd
}
