package domain

import (
	"context"
)

// Catalog is the read-only view of the media server used to build slides
type Catalog interface {
	// QueryItems lists items matching a raw query string (e.g. "IncludeItemTypes=Movie&imageTypes=Logo").
	// limit <= 0 leaves the server default.
	QueryItems(ctx context.Context, query string, limit int) ([]MediaItem, error)

	// GetItem returns the full detail record for one item
	GetItem(ctx context.Context, itemID string) (*MediaItem, error)

	// GetItems returns full detail records for a batch of IDs.
	// Unknown IDs are omitted; order follows the server response.
	GetItems(ctx context.Context, itemIDs []string) ([]MediaItem, error)

	// GetResumeItems returns the user's "continue watching" list
	GetResumeItems(ctx context.Context, limit int) ([]MediaItem, error)

	// FetchText fetches a plain-text resource relative to the server root
	FetchText(ctx context.Context, path string) (string, error)
}

// PagedCatalog lists items page by page, returning the server's total count
type PagedCatalog interface {
	QueryItemsPage(ctx context.Context, userID, query string, offset, limit int) ([]MediaItem, int, error)
}

// SessionRepository lists active sessions on the server
type SessionRepository interface {
	GetActiveSessions(ctx context.Context) ([]Session, error)
}

// AuthResult contains the result of a successful authentication
type AuthResult struct {
	Token    string // Access token for API calls
	UserID   string // User identifier
	Username string // Display username
}

// AuthFlow runs an interactive authentication against a media server.
type AuthFlow interface {
	// Run executes the authentication flow and returns credentials.
	// The serverURL parameter is the base URL of the media server.
	Run(ctx context.Context, serverURL string) (*AuthResult, error)
}
