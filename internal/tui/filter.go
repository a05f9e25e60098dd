package tui

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/marquee/internal/domain"
)

// SlideMatch is a slide whose title matched the filter
type SlideMatch struct {
	Index   int
	Title   string
	Matched []int // byte offsets of matched characters in Title
}

// slideTitles implements fuzzy.Source over lowercase slide titles
type slideTitles []domain.MediaItem

func (s slideTitles) String(i int) string { return strings.ToLower(s[i].DisplayTitle()) }
func (s slideTitles) Len() int            { return len(s) }

// filterSlides ranks slides by fuzzy title match. An empty query matches nothing.
func filterSlides(query string, slides []domain.MediaItem) []SlideMatch {
	if query == "" {
		return nil
	}
	matches := fuzzy.FindFrom(strings.ToLower(query), slideTitles(slides))
	out := make([]SlideMatch, len(matches))
	for i, m := range matches {
		out[i] = SlideMatch{
			Index:   m.Index,
			Title:   slides[m.Index].DisplayTitle(),
			Matched: m.MatchedIndexes,
		}
	}
	return out
}
