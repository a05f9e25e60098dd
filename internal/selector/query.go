package selector

import (
	"strings"

	"github.com/mmcdole/marquee/internal/domain"
)

// queryParam returns the value of name in a raw query string (case-insensitive
// key match) and whether it was present
func queryParam(query, name string) (string, bool) {
	for _, pair := range strings.Split(strings.TrimLeft(query, "?&"), "&") {
		key, value, _ := strings.Cut(pair, "=")
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return "", false
}

func splitList(value string) []string {
	value = strings.ReplaceAll(value, "%2C", ",")
	value = strings.ReplaceAll(value, "%2c", ",")
	return splitIDs(value, ",")
}

// itemTypes returns the IncludeItemTypes list of the query
func itemTypes(query string) []string {
	v, _ := queryParam(query, "IncludeItemTypes")
	return splitList(v)
}

// imageTypes returns the required image types of the query
func imageTypes(query string) []string {
	v, _ := queryParam(query, "imageTypes")
	return splitList(v)
}

func containsFold(list []string, s string) bool {
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return true
		}
	}
	return false
}

// withUnwatched adds IsPlayed=false unless the query already filters on it
func withUnwatched(query string) string {
	query = strings.TrimLeft(query, "?&")
	if _, ok := queryParam(query, "IsPlayed"); ok {
		return query
	}
	if query == "" {
		return "IsPlayed=false"
	}
	return query + "&IsPlayed=false"
}

// shouldShuffle is false when the query asks for an explicit order
func shouldShuffle(query string, sortingKeywords []string) bool {
	lower := strings.ToLower(query)
	if strings.Contains(lower, "sortby=") || strings.Contains(lower, "sortorder=") {
		return false
	}
	for _, k := range sortingKeywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return false
		}
	}
	return true
}

// alwaysShuffle reports whether the free-text keywords mention a sorting keyword
func alwaysShuffle(keywords string, sortingKeywords []string) bool {
	lower := strings.ToLower(keywords)
	for _, k := range sortingKeywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// shouldBalance requires both movies and series in IncludeItemTypes
func shouldBalance(query string) bool {
	types := itemTypes(query)
	return containsFold(types, domain.TypeMovie) && containsFold(types, domain.TypeSeries)
}

// wantsEnrichment is true for season and episode queries
func wantsEnrichment(query string) bool {
	types := itemTypes(query)
	return containsFold(types, domain.TypeSeason) || containsFold(types, domain.TypeEpisode)
}

// filterByImageTypes keeps items that have every required image type
func filterByImageTypes(items []domain.MediaItem, required []string) []domain.MediaItem {
	if len(required) == 0 {
		return items
	}
	out := make([]domain.MediaItem, 0, len(items))
	for _, it := range items {
		ok := true
		for _, t := range required {
			if !it.HasImageType(t) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, it)
		}
	}
	return out
}

// uniqueByID keeps the first occurrence of each ID
func uniqueByID(items []domain.MediaItem) []domain.MediaItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.MediaItem, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup || it.ID == "" {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

func uniqueStrings(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
