package selector

import (
	"strings"

	"github.com/mmcdole/marquee/internal/config"
)

// DefaultPlannedTotal is used when neither config nor storage sets a limit
const DefaultPlannedTotal = 20

// detailBatchSize bounds how many IDs go into one Ids= request
const detailBatchSize = 50

// minListFileBytes is the shortest list file content that is trusted
const minListFileBytes = 10

// Options controls how slides are chosen
type Options struct {
	Limit      int
	SavedLimit int

	ShuffleSeedLimit  int
	MaxShufflingLimit int
	SortingKeywords   []string
	Keywords          string

	QueryString      string
	OnlyUnwatched    bool
	BalanceItemTypes bool

	PlayingLimit               int
	ExcludeEpisodesFromPlaying bool

	UseListFile  bool
	ListFilePath string

	UseManualList bool
	ManualListIDs string

	// EnrichConcurrency bounds parallel detail fetches for seasons/episodes
	EnrichConcurrency int
}

// FromConfig builds Options from the slider config section
func FromConfig(c config.SliderConfig) Options {
	return Options{
		Limit:                      c.Limit,
		SavedLimit:                 c.SavedLimit,
		ShuffleSeedLimit:           c.ShuffleSeedLimit,
		MaxShufflingLimit:          c.MaxShufflingLimit,
		SortingKeywords:            c.SortingKeywords,
		Keywords:                   c.Keywords,
		QueryString:                c.CustomQueryString,
		OnlyUnwatched:              c.OnlyUnwatched,
		BalanceItemTypes:           c.BalanceItemTypes,
		PlayingLimit:               c.PlayingLimit,
		ExcludeEpisodesFromPlaying: c.ExcludeEpisodesFromPlaying,
		UseListFile:                c.UseListFile,
		ListFilePath:               c.ListFilePath,
		UseManualList:              c.UseManualList,
		ManualListIDs:              c.ManualListIDs,
		EnrichConcurrency:          6,
	}
}

func (o Options) seedLimit() int {
	if o.ShuffleSeedLimit > 0 {
		return o.ShuffleSeedLimit
	}
	return 1000
}

func (o Options) listFilePath(userID string) string {
	path := o.ListFilePath
	if path == "" {
		path = "/slider/list/list_{userId}.txt"
	}
	return strings.ReplaceAll(path, "{userId}", userID)
}

func (o Options) manualIDs() []string {
	return splitIDs(o.ManualListIDs, ",")
}

// splitIDs splits on sep, trimming blanks
func splitIDs(s, sep string) []string {
	var ids []string
	for _, part := range strings.Split(s, sep) {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
