package selector

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/store"
)

const movieQuery = "IncludeItemTypes=Movie&Recursive=true&imageTypes=Logo,Backdrop"

func baseOptions() Options {
	return Options{
		Limit:             5,
		ShuffleSeedLimit:  10,
		MaxShufflingLimit: 500,
		SortingKeywords:   sortKeys,
		QueryString:       movieQuery,
		EnrichConcurrency: 2,
	}
}

func TestSelect_ScenarioA(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 30)}
	kv := store.NewMemoryStore(0)
	s := newTestSelector(cat, kv, baseOptions(), 42)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	require.Len(t, res.Items, 5)
	assert.Equal(t, SourceQuery, res.Source)
	assert.True(t, res.Shuffled)
	assert.Len(t, uniqueByID(res.Items), 5)

	history := s.history.Load("u1")
	assert.ElementsMatch(t, domain.IDs(res.Items), history)
	assert.Equal(t, []int{500}, cat.queryLimits)
	for _, it := range res.Items {
		assert.Equal(t, "detail", it.Overview, "final items are detail records")
	}
}

func TestSelect_SecondLoadAvoidsRepeats(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 30)}
	kv := store.NewMemoryStore(0)
	opts := baseOptions()
	opts.ShuffleSeedLimit = 100
	s := newTestSelector(cat, kv, opts, 7)

	first := s.Select(context.Background(), Session{UserID: "u1"})
	second := s.Select(context.Background(), Session{UserID: "u1"})

	seen := map[string]bool{}
	for _, id := range domain.IDs(first.Items) {
		seen[id] = true
	}
	for _, id := range domain.IDs(second.Items) {
		assert.False(t, seen[id], "%s repeated", id)
	}
	assert.Len(t, s.history.Load("u1"), 10)
}

func TestSelect_HistorySavedOncePerLoad(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 30)}
	kv := &recordingKV{KV: store.NewMemoryStore(0)}
	s := newTestSelector(cat, kv, baseOptions(), 1)

	s.Select(context.Background(), Session{UserID: "u1"})
	assert.Len(t, kv.attempts, 1)

	s.Select(context.Background(), Session{UserID: "u1"})
	assert.Len(t, kv.attempts, 2)
}

func TestSelect_HistoryNeverExceedsSeedLimit(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 12)}
	kv := store.NewMemoryStore(0)
	s := newTestSelector(cat, kv, baseOptions(), 3)

	for i := 0; i < 8; i++ {
		s.Select(context.Background(), Session{UserID: "u1"})
		assert.LessOrEqual(t, len(s.history.Load("u1")), 10)
	}
}

func TestSelect_ResumePrefix(t *testing.T) {
	resume := []domain.MediaItem{
		{ID: "r-ep", Type: domain.TypeEpisode}, // no images, exempt
		{ID: "r-mov-noimg", Type: domain.TypeMovie},
		makeItems("r", "Movie", 1)[0],
		makeItems("m", "Movie", 1)[0], // also in pool
	}
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 20), resume: resume}
	opts := baseOptions()
	opts.PlayingLimit = 3
	opts.Limit = 6
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 11)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	require.Len(t, res.Items, 6)
	assert.Equal(t, []int{6}, cat.resumeLimits, "resume fetch asks for twice the playing limit")
	assert.Equal(t, 2, res.ResumeCount)
	assert.Equal(t, []string{"r-ep", "r0"}, domain.IDs(res.Items[:2]))
	for _, it := range res.Items[2:] {
		assert.True(t, strings.HasPrefix(it.ID, "m"))
	}
}

func TestSelect_ResumeExcludesEpisodes(t *testing.T) {
	resume := append([]domain.MediaItem{{ID: "ep", Type: domain.TypeEpisode}}, makeItems("r", "Movie", 3)...)
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 20), resume: resume}
	opts := baseOptions()
	opts.PlayingLimit = 2
	opts.ExcludeEpisodesFromPlaying = true
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 11)

	res := s.Select(context.Background(), Session{UserID: "u1"})
	assert.Equal(t, []string{"r0", "r1"}, domain.IDs(res.Items[:2]))
}

func TestSelect_OnlyUnwatched(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 20), resume: makeItems("r", "Movie", 3)}
	opts := baseOptions()
	opts.OnlyUnwatched = true
	opts.PlayingLimit = 3
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 11)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.Equal(t, 0, res.ResumeCount)
	assert.Empty(t, cat.resumeLimits)
	require.Len(t, cat.queries, 1)
	assert.True(t, strings.HasSuffix(cat.queries[0], "&IsPlayed=false"))
}

func TestSelect_NoShuffleKeepsOrder(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 20)}
	opts := baseOptions()
	opts.QueryString = movieQuery + "&sortBy=DateCreated&sortOrder=Descending"
	kv := &recordingKV{KV: store.NewMemoryStore(0)}
	s := newTestSelector(cat, kv, opts, 11)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.False(t, res.Shuffled)
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, domain.IDs(res.Items))
	assert.Empty(t, kv.attempts, "history is only used when shuffling")
}

func TestSelect_ImageFilterDropsIncomplete(t *testing.T) {
	pool := makeItems("m", "Movie", 3)
	pool = append(pool, domain.MediaItem{ID: "nologo", Type: domain.TypeMovie, BackdropTags: []string{"b"}})
	cat := &fakeCatalog{pool: pool}
	opts := baseOptions()
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 11)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.Equal(t, 3, res.PoolSize)
	assert.NotContains(t, domain.IDs(res.Items), "nologo")
}

func TestSelect_TypeBalance(t *testing.T) {
	pool := concat(makeItems("m", "Movie", 30), makeItems("s", "Series", 3))
	cat := &fakeCatalog{pool: pool}
	opts := baseOptions()
	opts.Limit = 8
	opts.BalanceItemTypes = true
	opts.QueryString = "IncludeItemTypes=Movie,Series&Recursive=true"
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	require.Len(t, res.Items, 8)
	assert.Equal(t, 3, countTypes(res.Items)["Series"])
}

func TestSelect_AlwaysShuffleSkipsHistory(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 20)}
	opts := baseOptions()
	opts.Keywords = "random picks"
	kv := &recordingKV{KV: store.NewMemoryStore(0)}
	s := newTestSelector(cat, kv, opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.Len(t, res.Items, 5)
	assert.Empty(t, kv.attempts)
}

func TestSelect_PlannedTotalResolution(t *testing.T) {
	kv := store.NewMemoryStore(0)
	s := newTestSelector(&fakeCatalog{}, kv, Options{}, 1)
	u := Session{UserID: "u1"}

	assert.Equal(t, DefaultPlannedTotal, s.PlannedTotal(u))

	require.NoError(t, store.ForUser(kv, "u1").Set(domain.KeyLimit, []byte("7")))
	assert.Equal(t, 7, s.PlannedTotal(u))

	s.opts.SavedLimit = 9
	assert.Equal(t, 9, s.PlannedTotal(u))

	s.opts.Limit = 3
	assert.Equal(t, 3, s.PlannedTotal(u))
}

func TestSelect_QueryFailureYieldsNothing(t *testing.T) {
	cat := &fakeCatalog{queryErr: errBoom}
	s := newTestSelector(cat, store.NewMemoryStore(0), baseOptions(), 1)

	res := s.Select(context.Background(), Session{UserID: "u1"})
	assert.Empty(t, res.Items)
}

func TestSelect_DetailBatches(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 200)}
	opts := baseOptions()
	opts.Limit = 120
	opts.ShuffleSeedLimit = 1000
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.Len(t, res.Items, 120)
	assert.Equal(t, 3, cat.getItemsCalls)
}

func TestSelect_DetailBatchFailureKeepsPoolRecords(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 20)}
	cat.GetItemsFunc = func(ids []string) ([]domain.MediaItem, error) { return nil, errBoom }
	s := newTestSelector(cat, store.NewMemoryStore(0), baseOptions(), 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	require.Len(t, res.Items, 5)
	assert.Empty(t, res.Items[0].Overview, "pool record kept as is")
}

func TestSelect_EnrichesEpisodes(t *testing.T) {
	series := domain.MediaItem{ID: "show", Name: "Show", Type: domain.TypeSeries}
	eps := makeItems("e", "Episode", 3)
	for i := range eps {
		eps[i].SeriesID = "show"
	}
	cat := &fakeCatalog{pool: eps, extra: []domain.MediaItem{series}}
	opts := baseOptions()
	opts.QueryString = "IncludeItemTypes=Episode&Recursive=true"
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	require.Len(t, res.Items, 3)
	for _, it := range res.Items {
		require.NotNil(t, it.Series)
		assert.Equal(t, "Show", it.Series.Name)
	}
	assert.Equal(t, 6, cat.getItemCalls)
}

func TestSelect_ManualList(t *testing.T) {
	cat := &fakeCatalog{extra: makeItems("x", "Movie", 4)}
	opts := baseOptions()
	opts.Limit = 3
	opts.UseManualList = true
	opts.ManualListIDs = "x2, x0 ,missing,x2,x1,x3"
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.Equal(t, SourceManual, res.Source)
	// deduped and capped before resolving; unknown IDs dropped
	assert.Equal(t, []string{"x2", "x0"}, domain.IDs(res.Items))
	assert.Empty(t, cat.queries)
}

func TestSelect_EmptyManualListFallsToListFile(t *testing.T) {
	cat := &fakeCatalog{extra: makeItems("x", "Movie", 4), listText: "x3\r\nx1\r\nx0\n"}
	opts := baseOptions()
	opts.UseManualList = true
	opts.ManualListIDs = " , "
	opts.UseListFile = true
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.Equal(t, SourceListFile, res.Source)
	assert.Equal(t, []string{"x3", "x1", "x0"}, domain.IDs(res.Items))
}

func TestSelect_ListFile(t *testing.T) {
	cat := &fakeCatalog{extra: makeItems("x", "Movie", 4), listText: "x3\r\nx1\n\nx0\n"}
	kv := store.NewMemoryStore(0)
	opts := baseOptions()
	opts.UseListFile = true
	s := newTestSelector(cat, kv, opts, 5)
	u := Session{UserID: "u1"}

	res := s.Select(context.Background(), u)

	assert.Equal(t, SourceListFile, res.Source)
	assert.Equal(t, []string{"x3", "x1", "x0"}, domain.IDs(res.Items))

	cached, ok, err := store.ForUser(kv, "u1").Get(domain.KeyListCache)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, cat.listText, string(cached))
	assert.Equal(t, cat.listText, s.ListCache(u))

	s.ClearLoadCache()
	assert.Equal(t, cat.listText, s.ListCache(u), "falls back to persisted copy")
}

func TestSelect_ListFileTooShortFallsThrough(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 10), listText: "x1\n"}
	opts := baseOptions()
	opts.UseListFile = true
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})

	assert.Equal(t, SourceQuery, res.Source)
	assert.Len(t, res.Items, 5)
}

func TestSelect_ListFileMissingFallsThrough(t *testing.T) {
	cat := &fakeCatalog{pool: makeItems("m", "Movie", 10), listErr: errBoom}
	opts := baseOptions()
	opts.UseListFile = true
	s := newTestSelector(cat, store.NewMemoryStore(0), opts, 5)

	res := s.Select(context.Background(), Session{UserID: "u1"})
	assert.Equal(t, SourceQuery, res.Source)
}

func TestOptions_ListFilePath(t *testing.T) {
	assert.Equal(t, "/slider/list/list_abc.txt", Options{}.listFilePath("abc"))
	assert.Equal(t, "/lists/abc.txt", Options{ListFilePath: "/lists/{userId}.txt"}.listFilePath("abc"))
}
