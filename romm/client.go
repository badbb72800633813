package romm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"romm-autosync/constants"
)

// Sentinel errors crossing the client boundary. Callers branch on these with
// errors.Is; everything else is a transport or protocol failure.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrConflict         = errors.New("conflict: a newer version exists on the server")
	ErrValidation       = errors.New("validation error")
	ErrCancelled        = errors.New("cancelled")
)

type authMode int

const (
	authNone authMode = iota
	authSession
	authBasic
	authBearer
)

// tokenScopes are the read/write scopes requested on the password grant.
const tokenScopes = "roms.read roms.write platforms.read saves.read saves.write states.read states.write"

// Client handles communication with the RomM API.
type Client struct {
	BaseURL string

	// One client per timeout class; all share the cookie jar so an inherited
	// session keeps working across request kinds.
	jsonClient   *http.Client
	streamClient *http.Client
	uploadClient *http.Client

	log *slog.Logger

	mu           sync.Mutex
	mode         authMode
	username     string
	password     string
	accessToken  string
	refreshToken string
	tokenType    string
	tokenExpiry  time.Time

	countMu      sync.Mutex
	cachedCount  int
	countFetched time.Time
}

// NewClient creates a new RomM API client.
func NewClient(baseURL string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		jsonClient:   &http.Client{Timeout: constants.TimeoutJSON, Jar: jar},
		streamClient: &http.Client{Timeout: constants.TimeoutStream, Jar: jar},
		uploadClient: &http.Client{Timeout: constants.TimeoutUpload, Jar: jar},
		log:          log.With("component", "romm"),
	}
}

// Authenticate establishes a session with the server. Strategies are tried in
// order against a cheap probe request: an existing cookie session, HTTP Basic,
// then the OAuth2 password grant.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	c.mu.Lock()
	c.username = username
	c.password = password
	c.mu.Unlock()

	if c.probe(ctx, authSession) {
		c.setMode(authSession)
		c.log.Debug("authenticated via existing session")
		return nil
	}

	if username != "" && c.probe(ctx, authBasic) {
		c.setMode(authBasic)
		c.log.Debug("authenticated via basic auth")
		return nil
	}

	if err := c.passwordGrant(ctx); err != nil {
		c.setMode(authNone)
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	c.log.Debug("authenticated via token grant")
	return nil
}

// probe issues GET /api/roms?limit=1 with the candidate auth mode.
func (c *Client) probe(ctx context.Context, mode authMode) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/roms?limit=1", nil)
	if err != nil {
		return false
	}
	if mode == authBasic {
		c.mu.Lock()
		req.SetBasicAuth(c.username, c.password)
		c.mu.Unlock()
	}
	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) setMode(mode authMode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
}

// passwordGrant performs the OAuth2 password grant at /api/token.
func (c *Client) passwordGrant(ctx context.Context) error {
	c.mu.Lock()
	username, password := c.username, c.password
	c.mu.Unlock()

	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)
	data.Set("scope", tokenScopes)

	return c.tokenRequest(ctx, data)
}

// refresh performs the refresh_token grant. Failure invalidates authentication.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return ErrNotAuthenticated
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	if err := c.tokenRequest(ctx, data); err != nil {
		c.setMode(authNone)
		return fmt.Errorf("token refresh failed: %w", err)
	}
	return nil
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	expiresIn := result.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	c.mu.Lock()
	c.mode = authBearer
	c.accessToken = result.AccessToken
	if result.RefreshToken != "" {
		c.refreshToken = result.RefreshToken
	}
	c.tokenType = result.TokenType
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	c.mu.Unlock()
	return nil
}

// ensureAuthenticated is the preamble for every authenticated call. It
// refreshes the bearer token when fewer than 300 s of lifetime remain; failure
// surfaces as ErrNotAuthenticated without retry.
func (c *Client) ensureAuthenticated(ctx context.Context) error {
	c.mu.Lock()
	mode := c.mode
	needsRefresh := mode == authBearer && time.Until(c.tokenExpiry) < constants.TokenRefreshWindow
	c.mu.Unlock()

	switch {
	case mode == authNone:
		return ErrNotAuthenticated
	case needsRefresh:
		if err := c.refresh(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
		}
	}
	return nil
}

// applyAuth decorates a request with the active credentials.
func (c *Client) applyAuth(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case authBasic:
		req.SetBasicAuth(c.username, c.password)
	case authBearer:
		tokenType := c.tokenType
		if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
			tokenType = "Bearer"
		}
		req.Header.Set("Authorization", tokenType+" "+c.accessToken)
	}
	// authSession: the cookie jar carries the credentials.
}

// getJSON issues an authenticated GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.applyAuth(req)

	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// postJSON issues an authenticated POST with a JSON body, decoding into out
// when out is non-nil.
func (c *Client) postJSON(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyAuth(req)

	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// HTTPStatusError is returned for unhandled non-2xx statuses so callers can
// branch on the exact code (e.g. the 404 fallbacks on asset download).
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && se.Code == code
}

// statusError maps HTTP statuses to the client error taxonomy.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: server returned %d", ErrNotAuthenticated, resp.StatusCode)
	case resp.StatusCode == http.StatusConflict:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(body)))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w (%d): %s", ErrValidation, resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}
