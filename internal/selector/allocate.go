package selector

import (
	"math/rand/v2"

	"github.com/mmcdole/marquee/internal/domain"
)

func shuffled[T any](rng *rand.Rand, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// groupByType groups items by type, keeping first-seen type order
func groupByType(pool []domain.MediaItem) ([]string, map[string][]domain.MediaItem) {
	var order []string
	groups := make(map[string][]domain.MediaItem)
	for _, it := range pool {
		if _, ok := groups[it.Type]; !ok {
			order = append(order, it.Type)
		}
		groups[it.Type] = append(groups[it.Type], it)
	}
	return order, groups
}

// balanceByType takes floor(remaining/types) items of each type, then fills
// the rest from the whole pool
func balanceByType(pool []domain.MediaItem, remaining int, shuffle bool, rng *rand.Rand) []domain.MediaItem {
	order, groups := groupByType(pool)
	if len(order) == 0 || remaining <= 0 {
		return nil
	}

	perType := remaining / len(order)
	picked := make([]domain.MediaItem, 0, remaining)
	taken := make(map[string]struct{}, remaining)
	for _, t := range order {
		items := groups[t]
		if shuffle {
			items = shuffled(rng, items)
		}
		for _, it := range items[:min(perType, len(items))] {
			picked = append(picked, it)
			taken[it.ID] = struct{}{}
		}
	}

	backfill := pool
	if shuffle {
		backfill = shuffled(rng, pool)
	}
	for _, it := range backfill {
		if len(picked) >= remaining {
			break
		}
		if _, ok := taken[it.ID]; ok {
			continue
		}
		picked = append(picked, it)
		taken[it.ID] = struct{}{}
	}
	return picked
}

// randomSample picks n random items, returned in pool order
func randomSample(pool []domain.MediaItem, n int, rng *rand.Rand) []domain.MediaItem {
	ids := shuffled(rng, domain.IDs(pool))
	return pickInPoolOrder(pool, ids[:min(n, len(ids))])
}

func pickInPoolOrder(pool []domain.MediaItem, ids []string) []domain.MediaItem {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]domain.MediaItem, 0, len(ids))
	for _, it := range pool {
		if _, ok := want[it.ID]; ok {
			out = append(out, it)
			delete(want, it.ID)
		}
	}
	return out
}

type antiRepeatResult struct {
	items   []domain.MediaItem
	history []string // history to persist
	reset   bool     // stored history was discarded
}

// antiRepeat picks up to remaining items the user has not seen recently.
// History is first trimmed to IDs still in the pool. A full history, or too few
// unseen items, resets it (once). Any shortfall is padded from the rest of the
// pool in pool order.
func antiRepeat(pool []domain.MediaItem, history []string, exclude map[string]struct{}, remaining, seedLimit int, rng *rand.Rand) antiRepeatResult {
	var res antiRepeatResult
	poolIDs := domain.IDs(pool)
	inPool := make(map[string]struct{}, len(poolIDs))
	for _, id := range poolIDs {
		inPool[id] = struct{}{}
	}

	var current []string
	for _, id := range uniqueStrings(history) {
		if _, ok := inPool[id]; ok {
			current = append(current, id)
		}
	}
	if len(current) >= seedLimit {
		current = nil
		res.reset = true
	}

	var picks []string
	for attempt := 0; attempt < 2; attempt++ {
		seen := make(map[string]struct{}, len(current))
		for _, id := range current {
			seen[id] = struct{}{}
		}
		var unseen []string
		for _, id := range poolIDs {
			_, s := seen[id]
			_, x := exclude[id]
			if !s && !x {
				unseen = append(unseen, id)
			}
		}

		if (len(unseen) < remaining || len(current) >= seedLimit) && attempt == 0 {
			current = nil
			res.reset = true
			continue
		}
		unseen = shuffled(rng, unseen)
		picks = unseen[:min(remaining, len(unseen))]
		break
	}

	if len(picks) < remaining {
		chosen := make(map[string]struct{}, len(picks))
		for _, id := range picks {
			chosen[id] = struct{}{}
		}
		for _, id := range poolIDs {
			if len(picks) >= remaining {
				break
			}
			_, c := chosen[id]
			_, x := exclude[id]
			if c || x {
				continue
			}
			picks = append(picks, id)
			chosen[id] = struct{}{}
		}
	}

	res.items = pickInPoolOrder(pool, picks)
	res.history = lastN(uniqueStrings(append(append([]string(nil), current...), picks...)), seedLimit)
	return res
}
