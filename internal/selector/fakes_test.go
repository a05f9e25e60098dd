package selector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/log"
)

// fakeCatalog implements domain.Catalog over in-memory items.
type fakeCatalog struct {
	mu sync.Mutex

	pool   []domain.MediaItem
	resume []domain.MediaItem
	extra  []domain.MediaItem // resolvable by ID but not listed

	listText string
	listErr  error
	queryErr error

	GetItemsFunc func(ids []string) ([]domain.MediaItem, error)

	queries       []string
	queryLimits   []int
	resumeLimits  []int
	getItemsCalls int
	getItemCalls  int
}

func (f *fakeCatalog) byID(id string) (domain.MediaItem, bool) {
	for _, list := range [][]domain.MediaItem{f.pool, f.resume, f.extra} {
		for _, it := range list {
			if it.ID == id {
				return it, true
			}
		}
	}
	return domain.MediaItem{}, false
}

func (f *fakeCatalog) QueryItems(ctx context.Context, query string, limit int) ([]domain.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.queryLimits = append(f.queryLimits, limit)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]domain.MediaItem(nil), f.pool...), nil
}

func (f *fakeCatalog) GetItem(ctx context.Context, id string) (*domain.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getItemCalls++
	it, ok := f.byID(id)
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	it.Overview = "detail"
	return &it, nil
}

func (f *fakeCatalog) GetItems(ctx context.Context, ids []string) ([]domain.MediaItem, error) {
	f.mu.Lock()
	f.getItemsCalls++
	fn := f.GetItemsFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ids)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MediaItem
	for _, id := range ids {
		if it, ok := f.byID(id); ok {
			it.Overview = "detail"
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetResumeItems(ctx context.Context, limit int) ([]domain.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeLimits = append(f.resumeLimits, limit)
	return append([]domain.MediaItem(nil), f.resume[:min(limit, len(f.resume))]...), nil
}

func (f *fakeCatalog) FetchText(ctx context.Context, path string) (string, error) {
	if f.listErr != nil {
		return "", f.listErr
	}
	if f.listText == "" {
		return "", fmt.Errorf("%s: %w", path, domain.ErrItemNotFound)
	}
	return f.listText, nil
}

// recordingKV wraps a KV and records history writes
type recordingKV struct {
	domain.KV
	mu         sync.Mutex
	rejectOver int // reject history values with more IDs than this (-1 = reject all)
	attempts   []int
	deletes    []string
	failWith   error
}

func (r *recordingKV) Set(key string, value []byte) error {
	if strings.HasSuffix(key, domain.KeyShuffleHistory) {
		n := 0
		if s := strings.Trim(string(value), "[]"); s != "" {
			n = strings.Count(s, ",") + 1
		}
		r.mu.Lock()
		r.attempts = append(r.attempts, n)
		r.mu.Unlock()
		if r.failWith != nil {
			return r.failWith
		}
		if r.rejectOver < 0 || (r.rejectOver > 0 && n > r.rejectOver) {
			return fmt.Errorf("value too large: %w", domain.ErrQuotaExceeded)
		}
	}
	return r.KV.Set(key, value)
}

func (r *recordingKV) Delete(key string) error {
	r.mu.Lock()
	r.deletes = append(r.deletes, key)
	r.mu.Unlock()
	return r.KV.Delete(key)
}

var errBoom = errors.New("boom")

func makeItems(prefix, typ string, n int) []domain.MediaItem {
	items := make([]domain.MediaItem, n)
	for i := range items {
		items[i] = domain.MediaItem{
			ID:           fmt.Sprintf("%s%d", prefix, i),
			Name:         fmt.Sprintf("%s %d", typ, i),
			Type:         typ,
			ImageTags:    map[string]string{"Logo": "l"},
			BackdropTags: []string{"b"},
		}
	}
	return items
}

func newTestSelector(cat domain.Catalog, kv domain.KV, opts Options, seed uint64) *Selector {
	s := New(cat, kv, opts, log.NullLogger())
	s.rng = rand.New(rand.NewPCG(seed, seed+1))
	return s
}

func countTypes(items []domain.MediaItem) map[string]int {
	m := map[string]int{}
	for _, it := range items {
		m[it.Type]++
	}
	return m
}
