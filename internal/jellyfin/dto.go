package jellyfin

// AuthResponse represents the response from Jellyfin's AuthenticateByName endpoint
type AuthResponse struct {
	User        User   `json:"User"`
	AccessToken string `json:"AccessToken"`
	ServerID    string `json:"ServerId"`
}

// User represents a Jellyfin user
type User struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	ServerID string `json:"ServerId"`
}

// ItemsResponse represents a paginated list of items from Jellyfin
type ItemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
	StartIndex       int    `json:"StartIndex"`
}

// Item represents a media item from Jellyfin (movie, series, season, episode, etc.)
type Item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Overview          string            `json:"Overview"`
	Type              string            `json:"Type"`
	ProductionYear    int               `json:"ProductionYear,omitempty"`
	RunTimeTicks      int64             `json:"RunTimeTicks,omitempty"` // Duration in 100-nanosecond units
	CommunityRating   float64           `json:"CommunityRating,omitempty"`
	OfficialRating    string            `json:"OfficialRating,omitempty"`
	ImageTags         map[string]string `json:"ImageTags,omitempty"` // "Primary", "Logo", "Logotype", ...
	BackdropImageTags []string          `json:"BackdropImageTags,omitempty"`
	SeriesID          string            `json:"SeriesId,omitempty"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	UserData          *UserData         `json:"UserData,omitempty"`
}

// UserData contains user-specific data for an item (watch status, progress)
type UserData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"` // Progress in 100-nanosecond units
	PlayCount             int   `json:"PlayCount"`
	Played                bool  `json:"Played"`
}

// SessionInfo is one entry of the /Sessions response
type SessionInfo struct {
	ID         string `json:"Id"`
	UserID     string `json:"UserId"`
	UserName   string `json:"UserName"`
	Client     string `json:"Client"`
	DeviceName string `json:"DeviceName"`
}
