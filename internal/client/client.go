// Package client provides the authenticated HTTP client for the finchat API.
//
// Every request carries the bearer token held by the credential store. A 401
// received while the store believes the user is logged in invalidates the
// local session: credentials are cleared and the navigator is sent to the
// login path before the caller sees the error. A 401 on an anonymous request
// is returned unchanged.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/raphaelgruber/finchat/internal/auth"
	"github.com/raphaelgruber/finchat/internal/metrics"
	"github.com/raphaelgruber/finchat/internal/models"
)

// LoginPath is where the navigator is sent when the session is invalidated.
const LoginPath = "/login"

// API paths.
const (
	pathSend         = "/api/v1/chat/send"
	pathStream       = "/api/v1/chat/stream"
	pathLogin        = "/api/v1/auth/login"
	pathRegister     = "/api/v1/auth/register"
	pathLogout       = "/api/v1/auth/logout"
	pathMe           = "/api/v1/auth/me"
	pathLinkToken    = "/api/v1/plaid/link-token"
	pathExchange     = "/api/v1/plaid/exchange"
	pathAccounts     = "/api/v1/accounts"
	pathHealth       = "/health"
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "finchat"
)

// Navigator moves the user to another surface of the application.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Options configures a Client.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials *auth.Store
	Navigator   Navigator
	Logger      *slog.Logger
	Metrics     *metrics.Collector

	// HTTPClient overrides the default client. Its transport is still
	// wrapped with request logging.
	HTTPClient *http.Client
}

// Client is the auth-gated transport for the finchat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *auth.Store
	nav        Navigator
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// New creates a new API client. Credentials must not be nil.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		httpClient = &c
	}
	httpClient.Transport = LoggingTransport(httpClient.Transport, logger)

	nav := opts.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		creds:      opts.Credentials,
		nav:        nav,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Credentials returns the credential store consulted by the client.
func (c *Client) Credentials() *auth.Store {
	return c.creds
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordTiming(op, time.Since(start), err != nil)
	}()

	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.reject(&APIError{Status: resp.StatusCode, Body: data})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Status: resp.StatusCode, Err: err}
	}
	return nil
}

// authorize attaches the bearer token, if any.
func (c *Client) authorize(h http.Header) {
	if c.creds == nil {
		return
	}
	if token := c.creds.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

// reject applies the authentication-rejection rule to a failed response.
func (c *Client) reject(apiErr *APIError) error {
	if apiErr.Status != http.StatusUnauthorized {
		return apiErr
	}
	if c.creds == nil || !c.creds.IsAuthenticated() {
		return apiErr
	}

	c.logger.Warn("credentials rejected, signing out", "user_id", c.creds.UserID())
	if err := c.creds.Clear(); err != nil {
		c.logger.Error("failed to clear credentials", "error", err)
	}
	c.nav.Navigate(LoginPath)

	return fmt.Errorf("%w: %w", ErrSessionExpired, apiErr)
}

// =============================================================================
// CHAT
// =============================================================================

// SendMessage sends one user message and returns the agent's reply.
// Exactly one attempt is made.
func (c *Client) SendMessage(ctx context.Context, text, sessionID string) (*models.Message, error) {
	var reply models.Message
	req := models.SendRequest{Message: text, SessionID: sessionID}
	if err := c.do(ctx, metrics.OpSend, http.MethodPost, pathSend, req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges email and password for a bearer token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var resp models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, metrics.OpAuth, http.MethodPost, pathLogin, req, &resp); err != nil {
		return nil, err
	}
	if err := c.creds.SetSession(resp.AccessToken, resp.User); err != nil {
		return nil, fmt.Errorf("store credentials: %w", err)
	}
	c.logger.Info("logged in", "user_id", resp.User.ID)
	return &resp.User, nil
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, in models.RegisterRequest) (*models.User, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, metrics.OpAuth, http.MethodPost, pathRegister, in, &resp); err != nil {
		return nil, err
	}
	if err := c.creds.SetSession(resp.AccessToken, resp.User); err != nil {
		return nil, fmt.Errorf("store credentials: %w", err)
	}
	c.logger.Info("registered", "user_id", resp.User.ID)
	return &resp.User, nil
}

// Logout tells the server to end the session and always drops the local
// credentials. The remote error, if any, is returned after clearing.
func (c *Client) Logout(ctx context.Context) error {
	if !c.creds.IsAuthenticated() {
		return c.creds.Clear()
	}

	remoteErr := c.do(ctx, metrics.OpAuth, http.MethodPost, pathLogout, nil, nil)
	if err := c.creds.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	if remoteErr != nil {
		return fmt.Errorf("logout: %w", remoteErr)
	}
	return nil
}

// Me fetches the current user's profile and refreshes the cached copy.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	if !c.creds.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	var user models.User
	if err := c.do(ctx, metrics.OpAuth, http.MethodGet, pathMe, nil, &user); err != nil {
		return nil, err
	}
	if err := c.creds.SetUser(user); err != nil {
		c.logger.Warn("failed to cache profile", "error", err)
	}
	return &user, nil
}

// =============================================================================
// ACCOUNT LINKING
// =============================================================================

// CreateLinkToken requests a link token for the aggregator's hosted flow.
func (c *Client) CreateLinkToken(ctx context.Context) (*models.LinkToken, error) {
	var token models.LinkToken
	if err := c.do(ctx, metrics.OpLink, http.MethodPost, pathLinkToken, nil, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ExchangePublicToken hands the public token from a successful link flow to
// the server, which trades it for a long-lived access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*models.LinkedItem, error) {
	var item models.LinkedItem
	req := models.ExchangeRequest{PublicToken: publicToken}
	if err := c.do(ctx, metrics.OpLink, http.MethodPost, pathExchange, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListAccounts returns the accounts of every linked institution.
func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.do(ctx, metrics.OpAccounts, http.MethodGet, pathAccounts, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Health checks that the API is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, metrics.OpHealth, http.MethodGet, pathHealth, nil, nil)
}
