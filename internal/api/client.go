// Package api is the HTTP client for the stock dashboard backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ecos-terminal/internal/config"
	apperrors "ecos-terminal/internal/errors"
	"ecos-terminal/internal/logging"
	"ecos-terminal/internal/models"
	"ecos-terminal/internal/performance"
)

const userAgent = "ecos-terminal/1.0"

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// StockQuery selects one page of the stock listing.
type StockQuery struct {
	Page    int      `url:"page"`
	Limit   int      `url:"limit"`
	Symbols []string `url:"symbols,comma,omitempty"`
}

// StockPage is one page of the stock listing. HasMore is nil when the
// server did not say.
type StockPage struct {
	Items   []models.Stock `json:"items"`
	HasMore *bool          `json:"has_more"`
}

// Client talks to the dashboard backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *performance.RateLimiter
	logger     zerolog.Logger
	newID      func() string
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg config.APIConfig, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.NewValidationError("api.base_url", cfg.BaseURL, "must be an absolute URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.WithComponent(logger, "api"),
		newID:      func() string { return uuid.NewString() },
	}
	if cfg.RateLimit > 0 {
		c.limiter = performance.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status string `json:"status"`
	User   string `json:"user"`
}

// Login authenticates username and returns the canonical username the
// server reports.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	status, err := c.do(ctx, http.MethodPost, "/login", nil, credentials{username, password}, &resp)
	if status == http.StatusUnauthorized {
		return "", apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if resp.Status != "success" {
		return "", apperrors.ErrInvalidCredentials
	}
	if resp.User == "" {
		resp.User = username
	}
	return resp.User, nil
}

// Heartbeat marks username as online.
func (c *Client) Heartbeat(ctx context.Context, username string) error {
	body := struct {
		Username string `json:"username"`
	}{username}
	_, err := c.do(ctx, http.MethodPost, "/heartbeat", nil, body, nil)
	return err
}

// OnlineUsers returns the usernames the server considers active. A body
// that is not a list of strings yields an empty roster.
func (c *Client) OnlineUsers(ctx context.Context) ([]string, error) {
	return c.getUsernames(ctx, "/admin/online-users")
}

// Users returns every registered username.
func (c *Client) Users(ctx context.Context) ([]string, error) {
	return c.getUsernames(ctx, "/admin/users")
}

func (c *Client) getUsernames(ctx context.Context, endpoint string) ([]string, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &raw); err != nil {
		if apperrors.Is(err, apperrors.ErrDecode) {
			return []string{}, nil
		}
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil || names == nil {
		return []string{}, nil
	}
	return names, nil
}

// CreateUser registers a new account.
func (c *Client) CreateUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return apperrors.NewValidationError("username/password", username, "both are required")
	}
	_, err := c.do(ctx, http.MethodPost, "/admin/create-user", nil, credentials{username, password}, nil)
	return err
}

// Stocks fetches one page of the listing. The legacy bare-array body is
// accepted and returned with a nil HasMore.
func (c *Client) Stocks(ctx context.Context, q StockQuery) (StockPage, error) {
	values, err := query.Values(q)
	if err != nil {
		return StockPage{}, apperrors.Wrap(err, "encoding stock query")
	}

	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, "/stocks", values, nil, &raw); err != nil {
		return StockPage{}, err
	}
	return decodeStockPage(raw)
}

func decodeStockPage(raw json.RawMessage) (StockPage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return StockPage{Items: []models.Stock{}}, nil
	}

	if trimmed[0] == '[' {
		var items []models.Stock
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return StockPage{}, apperrors.NewAPIError("/stocks", http.StatusOK, "decoding stock list", fmt.Errorf("%w: %v", apperrors.ErrDecode, err))
		}
		return StockPage{Items: items}, nil
	}

	var page StockPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return StockPage{}, apperrors.NewAPIError("/stocks", http.StatusOK, "decoding stock page", fmt.Errorf("%w: %v", apperrors.ErrDecode, err))
	}
	if page.Items == nil {
		page.Items = []models.Stock{}
	}
	return page, nil
}

// Detail fetches the extended record for symbol.
func (c *Client) Detail(ctx context.Context, symbol string) (*models.StockDetail, error) {
	var detail models.StockDetail
	endpoint := "/stocks/" + url.PathEscape(symbol) + "/detail"
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &detail)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, symbol)
	}
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// Financials fetches the period table for symbol.
func (c *Client) Financials(ctx context.Context, symbol string) (models.Financials, error) {
	var fin models.Financials
	endpoint := "/stocks/" + url.PathEscape(symbol) + "/financials"
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &fin)
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSymbolNotFound, symbol)
	}
	if err != nil {
		return nil, err
	}
	if fin == nil {
		fin = models.Financials{}
	}
	return fin, nil
}

// Suggestions searches symbols and names matching q. A body that is not a
// list yields no suggestions.
func (c *Client) Suggestions(ctx context.Context, q string) ([]models.Suggestion, error) {
	values := url.Values{}
	values.Set("q", q)

	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, "/search/suggestions", values, nil, &raw); err != nil {
		return nil, err
	}
	var out []models.Suggestion
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []models.Suggestion{}, nil
	}
	return out, nil
}

// do performs one request and decodes a JSON body into out when non-nil.
// endpoint is an escaped path. It returns the HTTP status (0 when no
// response arrived).
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, in, out interface{}) (int, error) {
	u := c.baseURL.JoinPath(endpoint)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, apperrors.Wrapf(err, "encoding %s body", endpoint)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, apperrors.Wrapf(err, "creating %s request", endpoint)
	}

	logger := c.logger
	requestID := c.newID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if cid := logging.RequestIDFromContext(ctx); cid != "" {
		req.Header.Set("X-Correlation-ID", cid)
		logger = logger.With().Str("correlation_id", cid).Logger()
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.limiter != nil && !c.limiter.Allow() {
		logger.Debug().Str("endpoint", endpoint).Msg("Request rate limited, waiting")
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, apperrors.NewAPIError(endpoint, 0, "rate limit wait", fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err))
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = apperrors.NewAPIError(endpoint, 0, "request failed", fmt.Errorf("%w: %v", apperrors.ErrConnectionFailed, err))
		logging.LogAPICall(logger, method, endpoint, requestID, 0, time.Since(start), err)
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err = apperrors.NewAPIError(endpoint, resp.StatusCode, strings.TrimSpace(string(msg)), statusError(resp.StatusCode))
		logging.LogAPICall(logger, method, endpoint, requestID, resp.StatusCode, time.Since(start), err)
		return resp.StatusCode, err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			err = apperrors.NewAPIError(endpoint, resp.StatusCode, "decoding response", fmt.Errorf("%w: %v", apperrors.ErrDecode, err))
			logging.LogAPICall(logger, method, endpoint, requestID, resp.StatusCode, time.Since(start), err)
			return resp.StatusCode, err
		}
	}

	logging.LogAPICall(logger, method, endpoint, requestID, resp.StatusCode, time.Since(start), nil)
	return resp.StatusCode, nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return apperrors.ErrInvalidCredentials
	case status >= 500:
		return apperrors.ErrServer
	default:
		return nil
	}
}
