package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/listgen"
	"github.com/mmcdole/marquee/internal/metrics"
	"github.com/mmcdole/marquee/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		userID        string
		addr          string
		allowedOrigin string
		withListgen   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rotation to web overlays",
		Long: `Runs the rotation engine and streams slides, progress and lifecycle
events to overlays over /ws. Control endpoints live under /api and
Prometheus metrics under /metrics.`,
		Example: `  # Listen on the configured address
  marquee serve

  # Also refresh the per-user list files in the background
  marquee serve --listgen --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(userID)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var srv *server.Server
			hub := server.NewHub(func(c server.Command) { srv.HandleCommand(c) }, a.logger)
			go hub.Run(ctx)

			clk := clock.New()
			renderer := server.NewRemoteRenderer(clk, hub)
			coord := a.coordinator(renderer, clk)
			defer coord.Close()

			m := metrics.New()
			srv = server.New(ctx, coord, renderer, a.selector, hub, m, server.Options{
				Session:       a.session,
				AllowedOrigin: allowedOrigin,
			}, a.logger)
			coord.Bus().Subscribe(srv)
			coord.Bus().Subscribe(m)

			if withListgen {
				gen := listgen.New(a.client, a.kv, listgenOptions(a), a.logger)
				go func() {
					if err := gen.Run(ctx); err != nil {
						a.logger.Error("list generator stopped", "error", err)
					}
				}()
			}

			if err := coord.Start(ctx); err != nil && !errors.Is(err, domain.ErrNotVisible) {
				a.logger.Warn("initial load failed", "error", err)
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(metrics.RequestMiddleware(m), server.RequestLogger(a.logger)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				a.logger.Info("overlay server listening", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down server")
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("server shutdown failed", "error", err)
					return err
				}
				a.logger.Info("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID to select for (defaults to the configured user)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to http.addr)")
	cmd.Flags().StringVar(&allowedOrigin, "allowed-origin", "", "Only accept websocket connections from this origin")
	cmd.Flags().BoolVar(&withListgen, "listgen", false, "Run the list file generator in the background")

	return cmd
}
