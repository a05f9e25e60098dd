// Package listgen writes the per-user list files that the selector's
// list-file source reads.
package listgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/store"
)

// Catalog is what the generator needs from the media server
type Catalog interface {
	domain.PagedCatalog
	domain.SessionRepository
}

// Options configures a Generator
type Options struct {
	Dir              string
	QueryString      string
	ItemLimit        int
	GuaranteePerType int
	HistoryLimit     int
	Refresh          time.Duration
}

// Generator builds list files for users with an active session
type Generator struct {
	catalog Catalog
	kv      domain.KV
	opts    Options
	logger  *slog.Logger
	rng     *rand.Rand
}

// New creates a Generator
func New(catalog Catalog, kv domain.KV, opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if kv == nil {
		kv = store.NewMemoryStore(0)
	}
	if opts.ItemLimit <= 0 {
		opts.ItemLimit = 100
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 30
	}
	if opts.GuaranteePerType < 0 {
		opts.GuaranteePerType = 0
	}
	return &Generator{
		catalog: catalog,
		kv:      kv,
		opts:    opts,
		logger:  logger,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Run generates lists now and then every Refresh until ctx is done
func (g *Generator) Run(ctx context.Context) error {
	refresh := g.opts.Refresh
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}

	if _, err := g.RunOnce(ctx); err != nil {
		g.logger.Error("list update failed", "error", err)
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := g.RunOnce(ctx); err != nil {
				g.logger.Error("list update failed", "error", err)
			}
		}
	}
}

// RunOnce updates the list file of every active user. It returns the
// number of IDs written per user.
func (g *Generator) RunOnce(ctx context.Context) (map[string]int, error) {
	sessions, err := g.catalog.GetActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	users := activeUsers(sessions)
	if len(users) == 0 {
		g.logger.Info("no active users, nothing to update")
		return map[string]int{}, nil
	}
	if err := os.MkdirAll(g.opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create list directory: %w", err)
	}

	written := make(map[string]int, len(users))
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := g.updateUser(ctx, userID)
		if err != nil {
			g.logger.Warn("list update failed for user", "user", userID, "error", err)
			continue
		}
		written[userID] = n
	}
	return written, nil
}

func (g *Generator) updateUser(ctx context.Context, userID string) (int, error) {
	items, err := g.fetchAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		g.logger.Info("no content for user", "user", userID)
		return 0, nil
	}

	ns := store.ForUser(g.kv, userID)
	history := g.loadHistory(ns)
	ids := g.pick(items, history)

	path := ListPath(g.opts.Dir, userID)
	if err := writeAtomic(path, []byte(strings.Join(ids, "\n"))); err != nil {
		return 0, err
	}

	history = append(history, ids)
	if len(history) > g.opts.HistoryLimit {
		history = history[len(history)-g.opts.HistoryLimit:]
	}
	g.saveHistory(ns, history)

	g.logger.Info("list file updated", "user", userID, "items", len(ids), "pool", len(items), "history", len(history))
	return len(ids), nil
}

// fetchAll pages through the user's catalog query. The page size grows with
// the library size.
func (g *Generator) fetchAll(ctx context.Context, userID string) ([]domain.MediaItem, error) {
	_, total, err := g.catalog.QueryItemsPage(ctx, userID, g.opts.QueryString, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	size := pageSize(total)

	var all []domain.MediaItem
	for offset := 0; offset < total; {
		page, _, err := g.catalog.QueryItemsPage(ctx, userID, g.opts.QueryString, offset, size)
		if err != nil {
			return nil, fmt.Errorf("fetch items at %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += len(page)
	}
	return all, nil
}

func pageSize(total int) int {
	switch {
	case total < 1000:
		return max(1, total)
	case total < 5000:
		return 1000
	default:
		return 2000
	}
}

// pick selects up to ItemLimit IDs. Each type gets GuaranteePerType items,
// the rest is random fill; anything in a recent list is dropped and the gap
// is padded from the whole pool.
func (g *Generator) pick(items []domain.MediaItem, history [][]string) []string {
	limit := g.opts.ItemLimit

	var (
		order  []string
		byType = make(map[string][]domain.MediaItem)
	)
	for _, it := range items {
		if _, ok := byType[it.Type]; !ok {
			order = append(order, it.Type)
		}
		byType[it.Type] = append(byType[it.Type], it)
	}

	taken := make(map[string]bool)
	var selected []domain.MediaItem
	for _, typ := range order {
		group := g.shuffle(byType[typ])
		for _, it := range group[:min(g.opts.GuaranteePerType, len(group))] {
			selected = append(selected, it)
			taken[it.ID] = true
		}
	}
	for _, it := range g.shuffle(items) {
		if len(selected) >= limit {
			break
		}
		if !taken[it.ID] {
			selected = append(selected, it)
			taken[it.ID] = true
		}
	}

	excluded := make(map[string]bool)
	for _, list := range history {
		for _, id := range list {
			excluded[id] = true
		}
	}

	var final []domain.MediaItem
	inFinal := make(map[string]bool)
	for _, it := range selected {
		if !excluded[it.ID] {
			final = append(final, it)
			inFinal[it.ID] = true
		}
	}
	if len(final) >= limit {
		final = final[:limit]
	} else {
		// fresh items first, then repeats
		rest := g.shuffle(items)
		for _, allowRepeat := range []bool{false, true} {
			for _, it := range rest {
				if len(final) >= limit {
					break
				}
				if inFinal[it.ID] || (excluded[it.ID] && !allowRepeat) {
					continue
				}
				final = append(final, it)
				inFinal[it.ID] = true
			}
		}
	}

	return domain.IDs(g.shuffle(final))
}

func (g *Generator) shuffle(items []domain.MediaItem) []domain.MediaItem {
	out := append([]domain.MediaItem(nil), items...)
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (g *Generator) loadHistory(ns domain.KV) [][]string {
	data, ok, err := ns.Get(domain.KeyListgenHistory)
	if err != nil {
		g.logger.Warn("list history read failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var history [][]string
	if err := json.Unmarshal(data, &history); err != nil {
		g.logger.Warn("list history is corrupt, starting over", "error", err)
		return nil
	}
	return history
}

func (g *Generator) saveHistory(ns domain.KV, history [][]string) {
	data, err := json.Marshal(history)
	if err != nil {
		g.logger.Warn("list history encode failed", "error", err)
		return
	}
	if err := ns.Set(domain.KeyListgenHistory, data); err != nil {
		g.logger.Warn("list history write failed", "error", err)
	}
}

// ListPath is where the list file of userID lives under dir
func ListPath(dir, userID string) string {
	return filepath.Join(dir, "list_"+userID+".txt")
}

func activeUsers(sessions []domain.Session) []string {
	seen := make(map[string]bool)
	var users []string
	for _, s := range sessions {
		if s.UserID == "" || seen[s.UserID] {
			continue
		}
		seen[s.UserID] = true
		users = append(users, s.UserID)
	}
	return users
}

// writeAtomic replaces path so readers never see a partial list
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".list-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write list: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write list: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace list: %w", err)
	}
	return nil
}
