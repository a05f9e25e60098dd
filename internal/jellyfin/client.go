package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
)

const (
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond

	// itemFields are the extra fields every slide candidate needs
	itemFields = "Overview,ProductionYear,CommunityRating,OfficialRating,ImageTags,BackdropImageTags,UserData,SeriesId,SeriesName"
)

// Client implements domain.Catalog for Jellyfin (and Emby) servers
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a new Jellyfin API client
func NewClient(baseURL, token, userID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
}

// ForUser returns a client that queries on behalf of another user with the same token
func (c *Client) ForUser(userID string) *Client {
	cp := *c
	cp.userID = userID
	return &cp
}

// UserID returns the user the client queries for
func (c *Client) UserID() string { return c.userID }

// doRequest performs an authenticated HTTP request to the Jellyfin API
// Includes retry logic with exponential backoff for 5xx server errors
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Wait before retry (exponential backoff)
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "path", path)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Emby-Authorization", buildAuthHeader(c.token))
		if c.token != "" {
			req.Header.Set("X-Emby-Token", c.token)
		}

		c.logger.Debug("jellyfin request", "method", method, "path", path, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("jellyfin request failed", "path", path, "error", err)
			return nil, domain.ErrServerOffline
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, domain.ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", path, domain.ErrItemNotFound)
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			lastErr = fmt.Errorf("server error: %d - %s", resp.StatusCode, string(body))
			c.logger.Warn("jellyfin server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"path", path,
			)
			continue
		case resp.StatusCode != http.StatusOK:
			c.logger.Error("jellyfin request error", "status", resp.StatusCode, "path", path)
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return body, nil
	}

	c.logger.Error("jellyfin request failed after retries", "error", lastErr, "path", path)
	return nil, lastErr
}

func (c *Client) getItems(ctx context.Context, path string, query url.Values) (*ItemsResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}

	var resp ItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// parseQuery turns a raw query string into values, adding the slide fields
func parseQuery(raw string) (url.Values, error) {
	query, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(raw), "?"))
	if err != nil {
		return nil, fmt.Errorf("invalid query string: %w", err)
	}
	if query.Get("Fields") == "" && query.Get("fields") == "" {
		query.Set("Fields", itemFields)
	}
	return query, nil
}

// QueryItems lists the user's items matching a raw query string
func (c *Client) QueryItems(ctx context.Context, rawQuery string, limit int) ([]domain.MediaItem, error) {
	query, err := parseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		query.Set("Limit", strconv.Itoa(limit))
	}

	resp, err := c.getItems(ctx, fmt.Sprintf("/Users/%s/Items", c.userID), query)
	if err != nil {
		return nil, err
	}
	return MapItems(resp.Items), nil
}

// QueryItemsPage lists one page of another user's items and returns the total count
func (c *Client) QueryItemsPage(ctx context.Context, userID, rawQuery string, offset, limit int) ([]domain.MediaItem, int, error) {
	query, err := parseQuery(rawQuery)
	if err != nil {
		return nil, 0, err
	}
	query.Set("StartIndex", strconv.Itoa(offset))
	if limit > 0 {
		query.Set("Limit", strconv.Itoa(limit))
	}

	resp, err := c.getItems(ctx, fmt.Sprintf("/Users/%s/Items", userID), query)
	if err != nil {
		return nil, 0, err
	}
	return MapItems(resp.Items), resp.TotalRecordCount, nil
}

// GetItem returns the full detail record for one item
func (c *Client) GetItem(ctx context.Context, itemID string) (*domain.MediaItem, error) {
	path := fmt.Sprintf("/Users/%s/Items/%s", c.userID, url.PathEscape(itemID))
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("failed to parse item: %w", err)
	}
	if item.ID == "" {
		return nil, domain.ErrItemNotFound
	}

	mi := MapItem(item)
	return &mi, nil
}

// GetItems returns full detail records for a batch of IDs
func (c *Client) GetItems(ctx context.Context, itemIDs []string) ([]domain.MediaItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("Ids", strings.Join(itemIDs, ","))
	query.Set("Fields", itemFields)

	resp, err := c.getItems(ctx, fmt.Sprintf("/Users/%s/Items", c.userID), query)
	if err != nil {
		return nil, err
	}
	return MapItems(resp.Items), nil
}

// GetResumeItems returns the user's "continue watching" list
func (c *Client) GetResumeItems(ctx context.Context, limit int) ([]domain.MediaItem, error) {
	query := url.Values{}
	query.Set("Fields", itemFields)
	query.Set("MediaTypes", "Video")
	if limit > 0 {
		query.Set("Limit", strconv.Itoa(limit))
	}

	resp, err := c.getItems(ctx, fmt.Sprintf("/Users/%s/Items/Resume", c.userID), query)
	if err != nil {
		return nil, err
	}
	return MapItems(resp.Items), nil
}

// FetchText fetches a plain-text resource relative to the server root
func (c *Client) FetchText(ctx context.Context, path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetActiveSessions returns the sessions currently connected to the server
func (c *Client) GetActiveSessions(ctx context.Context) ([]domain.Session, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/Sessions", nil)
	if err != nil {
		return nil, err
	}

	var sessions []SessionInfo
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return MapSessions(sessions), nil
}
