package main

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/marquee/internal/clock"
	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/jellyfin"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/rotation"
	"github.com/mmcdole/marquee/internal/selector"
	"github.com/mmcdole/marquee/internal/store"
)

// app holds the pieces every command shares
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	kv       domain.KV
	client   *jellyfin.Client
	selector *selector.Selector
	session  selector.Session
}

// loadApp reads the config and connects storage and the media server.
// userID overrides the configured user when set.
func loadApp(userID string) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("no server configured, run \"marquee login\" first")
	}
	if userID == "" {
		userID = cfg.Server.UserID
	}

	kv, err := store.Open(cfg.Storage, cfg.Server.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	client := jellyfin.NewClient(cfg.Server.URL, cfg.Server.Token, userID, logger)
	sel := selector.New(client, kv, selector.FromConfig(cfg.Slider), logger)

	logger.Info("starting marquee", "version", Version, "server", cfg.Server.URL, "user", userID, "storage", cfg.Storage.Backend)

	return &app{
		cfg:      cfg,
		logger:   logger,
		kv:       kv,
		client:   client,
		selector: sel,
		session:  selector.Session{UserID: userID},
	}, nil
}

// coordinator builds a rotation coordinator over r
func (a *app) coordinator(r rotation.Renderer, clk clock.Clock) *rotation.Coordinator {
	return rotation.NewCoordinator(r, a.selector, rotation.NewBus(), clk, rotation.Options{
		Session:       a.session,
		SlideDuration: a.cfg.Slider.SlideDuration,
		SettleDelay:   a.cfg.Slider.SettleDelay,
	}, a.logger)
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("failed to close storage", "error", err)
	}
}
