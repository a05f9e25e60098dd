package selector

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/store"
)

// Source names reported in Result
const (
	SourceManual   = "manual"
	SourceListFile = "list-file"
	SourceQuery    = "query"
)

// Session identifies who slides are selected for
type Session struct {
	UserID string
}

// Result is the outcome of one selection
type Result struct {
	Items        []domain.MediaItem
	Source       string
	Planned      int // planned total before the catalog ran out
	ResumeCount  int // leading items taken from "continue watching"
	PoolSize     int // candidates after image filtering
	Shuffled     bool
	HistoryReset bool
}

// Selector decides which catalog items become slides
type Selector struct {
	catalog domain.Catalog
	kv      domain.KV
	history *HistoryStore
	opts    Options
	logger  *slog.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	listCache string // raw list file text of the current load
}

// loadState lives for one Select call
type loadState struct {
	session      Session
	historySaved bool
}

// New creates a Selector. kv may be nil, in which case nothing is persisted.
func New(catalog domain.Catalog, kv domain.KV, opts Options, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if kv == nil {
		kv = store.NewMemoryStore(0)
	}
	return &Selector{
		catalog: catalog,
		kv:      kv,
		history: NewHistoryStore(kv, opts.seedLimit(), logger),
		opts:    opts,
		logger:  logger,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// PlannedTotal resolves the target slide count: config limit, saved limit,
// the per-user stored override, then the default
func (s *Selector) PlannedTotal(session Session) int {
	if s.opts.Limit > 0 {
		return s.opts.Limit
	}
	if s.opts.SavedLimit > 0 {
		return s.opts.SavedLimit
	}
	data, ok, err := store.ForUser(s.kv, session.UserID).Get(domain.KeyLimit)
	if err != nil {
		s.logger.Warn("stored limit read failed", "user", session.UserID, "error", err)
	}
	if ok {
		if n, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && n > 0 {
			return n
		}
	}
	return DefaultPlannedTotal
}

// ClearLoadCache drops in-memory state tied to the previous load
func (s *Selector) ClearLoadCache() {
	s.mu.Lock()
	s.listCache = ""
	s.mu.Unlock()
}

// ListCache returns the raw list file text of the last load, falling back to
// the persisted copy
func (s *Selector) ListCache(session Session) string {
	s.mu.Lock()
	text := s.listCache
	s.mu.Unlock()
	if text != "" {
		return text
	}
	data, ok, err := store.ForUser(s.kv, session.UserID).Get(domain.KeyListCache)
	if err != nil || !ok {
		return ""
	}
	return string(data)
}

// Select produces the ordered slide items. It never fails: fetch problems are
// logged and only shrink the result.
func (s *Selector) Select(ctx context.Context, session Session) Result {
	load := &loadState{session: session}
	planned := s.PlannedTotal(session)

	var manual []string
	if s.opts.UseManualList {
		manual = s.opts.manualIDs()
	}
	if len(manual) > 0 {
		items := s.resolveIDs(ctx, manual, planned)
		s.logger.Info("slides selected", "source", SourceManual, "count", len(items), "planned", planned)
		return Result{Items: items, Source: SourceManual, Planned: planned}
	} else if s.opts.UseListFile {
		if ids := s.fetchListFile(ctx, session); len(ids) > 0 {
			items := s.resolveIDs(ctx, ids, planned)
			s.logger.Info("slides selected", "source", SourceListFile, "count", len(items), "planned", planned)
			return Result{Items: items, Source: SourceListFile, Planned: planned}
		}
	}

	res := s.selectFromQuery(ctx, load, planned)
	s.logger.Info("slides selected",
		"source", SourceQuery,
		"count", len(res.Items),
		"planned", planned,
		"resume", res.ResumeCount,
		"pool", res.PoolSize,
		"shuffled", res.Shuffled,
		"historyReset", res.HistoryReset,
	)
	return res
}

// fetchListFile reads the per-user list file. Short or missing content yields nil.
func (s *Selector) fetchListFile(ctx context.Context, session Session) []string {
	path := s.opts.listFilePath(session.UserID)
	text, err := s.catalog.FetchText(ctx, path)
	if err != nil {
		s.logger.Warn("list file unavailable, using catalog query", "path", path, "error", err)
		return nil
	}

	s.mu.Lock()
	s.listCache = text
	s.mu.Unlock()
	if err := store.ForUser(s.kv, session.UserID).Set(domain.KeyListCache, []byte(text)); err != nil {
		s.logger.Warn("list cache not persisted", "error", err)
	}

	if len(text) < minListFileBytes {
		s.logger.Warn("list file too short, using catalog query", "path", path, "bytes", len(text))
		return nil
	}
	return splitIDs(strings.ReplaceAll(text, "\r", ""), "\n")
}

func (s *Selector) selectFromQuery(ctx context.Context, load *loadState, planned int) Result {
	query := strings.TrimLeft(s.opts.QueryString, "?&")
	playingLimit := s.opts.PlayingLimit
	if s.opts.OnlyUnwatched {
		query = withUnwatched(query)
		playingLimit = 0
	}

	shuffle := shouldShuffle(query, s.opts.SortingKeywords)
	required := imageTypes(query)
	res := Result{Source: SourceQuery, Planned: planned, Shuffled: shuffle}

	// 1. continue watching
	var resume []domain.MediaItem
	if playingLimit > 0 {
		fetched, err := s.catalog.GetResumeItems(ctx, playingLimit*2)
		if err != nil {
			s.logger.Warn("resume items fetch failed", "error", err)
		}
		for _, it := range fetched {
			if s.opts.ExcludeEpisodesFromPlaying && it.IsEpisode() {
				continue
			}
			resume = append(resume, it)
		}
		resume = resume[:min(playingLimit, len(resume))]
	}

	// 2. main pool
	pool, err := s.catalog.QueryItems(ctx, query, s.opts.MaxShufflingLimit)
	if err != nil {
		s.logger.Warn("catalog query failed", "error", err)
	}
	pool = uniqueByID(pool)
	claimed := make(map[string]struct{}, len(resume))
	for _, it := range resume {
		claimed[it.ID] = struct{}{}
	}
	if len(claimed) > 0 {
		kept := pool[:0:0]
		for _, it := range pool {
			if _, ok := claimed[it.ID]; !ok {
				kept = append(kept, it)
			}
		}
		pool = kept
	}

	// 3. parent series detail for seasons and episodes
	if wantsEnrichment(query) {
		pool = s.enrich(ctx, pool)
	}

	// 4. strict image filter; resume episodes are exempt
	if len(required) > 0 {
		filtered := resume[:0:0]
		for _, it := range resume {
			if it.IsEpisode() || len(filterByImageTypes([]domain.MediaItem{it}, required)) == 1 {
				filtered = append(filtered, it)
			}
		}
		resume = filtered
		pool = filterByImageTypes(pool, required)
	}
	res.PoolSize = len(pool)

	// 5. allocate
	selected := append([]domain.MediaItem(nil), resume[:min(playingLimit, len(resume))]...)
	res.ResumeCount = len(selected)
	remaining := max(0, planned-len(selected))

	if remaining > 0 {
		switch {
		case s.opts.BalanceItemTypes && shouldBalance(query):
			s.mu.Lock()
			selected = append(selected, balanceByType(pool, remaining, shuffle, s.rng)...)
			s.mu.Unlock()
		case shuffle && alwaysShuffle(s.opts.Keywords, s.opts.SortingKeywords):
			s.mu.Lock()
			selected = append(selected, randomSample(pool, remaining, s.rng)...)
			s.mu.Unlock()
		case shuffle:
			picked, reset := s.pickUnseen(load, pool, selected, remaining)
			selected = append(selected, picked...)
			res.HistoryReset = reset
		default:
			selected = append(selected, pool[:min(remaining, len(pool))]...)
		}
	}

	// 6. shuffle everything after the resume prefix
	if shuffle && len(selected) > res.ResumeCount {
		s.mu.Lock()
		tail := shuffled(s.rng, selected[res.ResumeCount:])
		s.mu.Unlock()
		selected = append(selected[:res.ResumeCount], tail...)
	}

	// 7. dedupe and cap
	selected = uniqueByID(selected)
	selected = selected[:min(planned, len(selected))]

	// 8. full detail records
	res.Items = s.resolveDetails(ctx, selected)
	return res
}

// pickUnseen runs the anti-repeat pick and persists the new history once per load
func (s *Selector) pickUnseen(load *loadState, pool, selected []domain.MediaItem, remaining int) ([]domain.MediaItem, bool) {
	userID := load.session.UserID
	exclude := make(map[string]struct{}, len(selected))
	for _, it := range selected {
		exclude[it.ID] = struct{}{}
	}

	history := s.history.Load(userID)

	s.mu.Lock()
	r := antiRepeat(pool, history, exclude, remaining, s.opts.seedLimit(), s.rng)
	s.mu.Unlock()

	if r.reset {
		s.logger.Info("shuffle history reset", "user", userID, "pool", len(pool), "history", len(history))
		s.history.Reset(userID)
	}
	if !load.historySaved {
		s.history.Save(userID, r.history)
		load.historySaved = true
	}
	return r.items, r.reset
}

// enrich replaces each item with its detail record and attaches the parent
// series. Items whose fetch fails are kept as they are.
func (s *Selector) enrich(ctx context.Context, pool []domain.MediaItem) []domain.MediaItem {
	out := make([]domain.MediaItem, len(pool))
	copy(out, pool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.opts.EnrichConcurrency))
	for i := range out {
		g.Go(func() error {
			detail, err := s.catalog.GetItem(gctx, out[i].ID)
			if err != nil {
				s.logger.Debug("item detail fetch failed", "id", out[i].ID, "error", err)
				return nil
			}
			if detail.SeriesID != "" {
				series, err := s.catalog.GetItem(gctx, detail.SeriesID)
				if err != nil {
					s.logger.Debug("series detail fetch failed", "id", detail.SeriesID, "error", err)
				} else {
					detail.Series = series
				}
			}
			out[i] = *detail
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// resolveIDs turns a list of IDs into detail records, dropping unknown IDs
func (s *Selector) resolveIDs(ctx context.Context, ids []string, planned int) []domain.MediaItem {
	ids = uniqueStrings(ids)
	ids = ids[:min(planned, len(ids))]

	stubs := make([]domain.MediaItem, len(ids))
	for i, id := range ids {
		stubs[i] = domain.MediaItem{ID: id}
	}
	return s.fetchDetails(ctx, stubs, false)
}

// resolveDetails refreshes the selected records, keeping selection order
func (s *Selector) resolveDetails(ctx context.Context, selected []domain.MediaItem) []domain.MediaItem {
	return s.fetchDetails(ctx, selected, true)
}

// fetchDetails fetches detail records in batches. When a batch fails its input
// records are kept if keepOnError; IDs the server does not return are dropped.
func (s *Selector) fetchDetails(ctx context.Context, items []domain.MediaItem, keepOnError bool) []domain.MediaItem {
	if len(items) == 0 {
		return nil
	}

	type batchResult struct {
		byID   map[string]domain.MediaItem
		failed bool
	}
	nBatches := (len(items) + detailBatchSize - 1) / detailBatchSize
	results := make([]batchResult, nBatches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for b := 0; b < nBatches; b++ {
		batch := items[b*detailBatchSize : min((b+1)*detailBatchSize, len(items))]
		g.Go(func() error {
			details, err := s.catalog.GetItems(gctx, domain.IDs(batch))
			if err != nil {
				s.logger.Warn("detail batch failed", "batch", b, "size", len(batch), "error", err)
				results[b].failed = true
				return nil
			}
			byID := make(map[string]domain.MediaItem, len(details))
			for _, d := range details {
				byID[d.ID] = d
			}
			results[b].byID = byID
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.MediaItem, 0, len(items))
	for i, it := range items {
		r := results[i/detailBatchSize]
		if r.failed {
			if keepOnError {
				out = append(out, it)
			}
			continue
		}
		d, ok := r.byID[it.ID]
		if !ok {
			continue
		}
		if d.Series == nil && it.Series != nil {
			d.Series = it.Series
		}
		out = append(out, d)
	}
	return out
}
