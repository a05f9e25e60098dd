package jellyfin

import (
	"time"

	"github.com/mmcdole/marquee/internal/domain"
)

// Jellyfin uses 100-nanosecond ticks
const ticksPerSecond = 10000000

// MapItems converts Jellyfin items to domain media items, skipping items without an ID
func MapItems(items []Item) []domain.MediaItem {
	out := make([]domain.MediaItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		out = append(out, MapItem(item))
	}
	return out
}

// MapItem converts a single Jellyfin item to a domain media item
func MapItem(item Item) domain.MediaItem {
	mi := domain.MediaItem{
		ID:              item.ID,
		Name:            item.Name,
		Type:            item.Type,
		Overview:        item.Overview,
		Year:            item.ProductionYear,
		CommunityRating: item.CommunityRating,
		OfficialRating:  item.OfficialRating,
		SeriesID:        item.SeriesID,
		SeriesName:      item.SeriesName,
		Runtime:         ticksToDuration(item.RunTimeTicks),
	}

	if len(item.ImageTags) > 0 {
		mi.ImageTags = make(map[string]string, len(item.ImageTags))
		for k, v := range item.ImageTags {
			mi.ImageTags[k] = v
		}
	}
	if len(item.BackdropImageTags) > 0 {
		mi.BackdropTags = append([]string(nil), item.BackdropImageTags...)
	}

	if item.UserData != nil {
		mi.Played = item.UserData.Played
		mi.PlaybackPosition = ticksToDuration(item.UserData.PlaybackPositionTicks)
	}

	return mi
}

// MapSessions converts /Sessions entries, dropping sessions without a user
func MapSessions(sessions []SessionInfo) []domain.Session {
	out := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.UserID == "" {
			continue
		}
		out = append(out, domain.Session{
			ID:         s.ID,
			UserID:     s.UserID,
			UserName:   s.UserName,
			Client:     s.Client,
			DeviceName: s.DeviceName,
		})
	}
	return out
}

func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * (time.Second / ticksPerSecond)
}
