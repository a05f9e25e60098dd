package domain

import (
	"strings"
	"time"
)

// Item types as reported by the catalog
const (
	TypeMovie   = "Movie"
	TypeSeries  = "Series"
	TypeSeason  = "Season"
	TypeEpisode = "Episode"
	TypeBoxSet  = "BoxSet"
)

// MediaItem is a catalog record that can become a slide.
// The core only reads it; the catalog owns it.
type MediaItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"` // Movie, Series, Season, Episode, BoxSet, ...
	Overview string `json:"overview,omitempty"`
	Year     int    `json:"year,omitempty"`

	// Rating (0-10 scale, audience/community rating)
	CommunityRating float64 `json:"communityRating,omitempty"`

	// Content rating (e.g., "PG-13", "TV-MA")
	OfficialRating string `json:"officialRating,omitempty"`

	// Episode/season parentage
	SeriesID   string     `json:"seriesId,omitempty"`
	SeriesName string     `json:"seriesName,omitempty"`
	Series     *MediaItem `json:"series,omitempty"` // Parent series detail (enriched)

	// Image presence: image type -> tag
	ImageTags    map[string]string `json:"imageTags,omitempty"`
	BackdropTags []string          `json:"backdropTags,omitempty"`

	// Watch progress
	Played           bool          `json:"played,omitempty"`
	PlaybackPosition time.Duration `json:"playbackPosition,omitempty"`
	Runtime          time.Duration `json:"runtime,omitempty"`
}

// IsEpisode reports whether the item is a single episode
func (m MediaItem) IsEpisode() bool {
	return m.Type == TypeEpisode
}

// HasImageType reports whether the item carries an image of the given type.
// Logo also accepts the "Logotype" tag; Backdrop accepts either backdrop tags
// or a Backdrop image tag.
func (m MediaItem) HasImageType(imageType string) bool {
	switch strings.ToLower(imageType) {
	case "":
		return false
	case "logo":
		return m.ImageTags["Logo"] != "" || m.ImageTags["Logotype"] != ""
	case "backdrop":
		return len(m.BackdropTags) > 0 || m.ImageTags["Backdrop"] != ""
	}

	if tag, ok := m.ImageTags[imageType]; ok {
		return tag != ""
	}
	key := strings.ToUpper(imageType[:1]) + imageType[1:]
	return m.ImageTags[key] != ""
}

// WatchStatus returns the watch status of the media item
func (m MediaItem) WatchStatus() WatchStatus {
	if m.Played {
		return WatchStatusWatched
	}
	if m.PlaybackPosition > 0 {
		return WatchStatusInProgress
	}
	return WatchStatusUnwatched
}

// DisplayTitle returns the title shown on a slide ("Series - Episode" for episodes)
func (m MediaItem) DisplayTitle() string {
	if (m.Type == TypeEpisode || m.Type == TypeSeason) && m.SeriesName != "" {
		return m.SeriesName + " - " + m.Name
	}
	return m.Name
}

// Session is an active client session on the media server
type Session struct {
	ID         string
	UserID     string
	UserName   string
	Client     string
	DeviceName string
}

// WatchStatus represents the viewing state of media
type WatchStatus int

const (
	WatchStatusUnwatched WatchStatus = iota
	WatchStatusInProgress
	WatchStatusWatched
)

// String returns a human-readable representation of the watch status
func (w WatchStatus) String() string {
	switch w {
	case WatchStatusUnwatched:
		return "Unwatched"
	case WatchStatusInProgress:
		return "In Progress"
	case WatchStatusWatched:
		return "Watched"
	default:
		return "Unknown"
	}
}

// IDs returns the IDs of the items in order
func IDs(items []MediaItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
