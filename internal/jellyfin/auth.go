package jellyfin

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
	"golang.org/x/term"
)

const authTimeout = 30 * time.Second

// AuthFlow implements domain.AuthFlow for Jellyfin username/password authentication
type AuthFlow struct {
	logger     *slog.Logger
	httpClient *http.Client
	in         *bufio.Reader
	out        io.Writer
}

// NewAuthFlow creates a new Jellyfin authentication flow on stdin/stdout
func NewAuthFlow(logger *slog.Logger) *AuthFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthFlow{
		logger: logger,
		httpClient: &http.Client{
			Timeout: authTimeout,
		},
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
	}
}

// Run prompts for credentials and authenticates against the server.
func (f *AuthFlow) Run(ctx context.Context, serverURL string) (*domain.AuthResult, error) {
	serverURL = strings.TrimRight(serverURL, "/")

	fmt.Fprintln(f.out)
	fmt.Fprintln(f.out, "Jellyfin Authentication")
	fmt.Fprintln(f.out, "━━━━━━━━━━━━━━━━━━━━━━━━")

	fmt.Fprint(f.out, "Username: ")
	username, err := f.in.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)

	// Hidden input when attached to a terminal
	fmt.Fprint(f.out, "Password: ")
	var password string
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		password = string(pw)
		fmt.Fprintln(f.out)
	} else {
		line, err := f.in.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	fmt.Fprintln(f.out, "Authenticating...")

	result, err := f.authenticate(ctx, serverURL, username, password)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(f.out, "Signed in as %s\n", result.Username)
	return result, nil
}

// authenticate performs the actual authentication against the Jellyfin server
func (f *AuthFlow) authenticate(ctx context.Context, serverURL, username, password string) (*domain.AuthResult, error) {
	bodyBytes, err := json.Marshal(map[string]string{
		"Username": username,
		"Pw":       password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/Users/AuthenticateByName", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Authorization", buildAuthHeader("")) // No token yet

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error("Jellyfin auth request failed", "error", err)
		return nil, domain.ErrServerOffline
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, domain.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		f.logger.Error("Jellyfin auth error", "status", resp.StatusCode, "body", string(respBody))
		return nil, fmt.Errorf("authentication failed with status %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return nil, fmt.Errorf("failed to parse auth response: %w", err)
	}

	return &domain.AuthResult{
		Token:    authResp.AccessToken,
		UserID:   authResp.User.ID,
		Username: authResp.User.Name,
	}, nil
}

// buildAuthHeader constructs the X-Emby-Authorization header
func buildAuthHeader(token string) string {
	parts := []string{
		`MediaBrowser Client="Marquee"`,
		`Device="CLI"`,
		`DeviceId="marquee-slider"`,
		`Version="1.0.0"`,
	}
	if token != "" {
		parts = append(parts, fmt.Sprintf(`Token="%s"`, token))
	}
	return strings.Join(parts, ", ")
}

// PromptForServerURL prompts the user to enter a Jellyfin server URL
func (f *AuthFlow) PromptForServerURL() (string, error) {
	fmt.Fprint(f.out, "Enter your Jellyfin server URL (e.g., http://192.168.1.100:8096): ")
	url, err := f.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(url), nil
}
