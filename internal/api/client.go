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
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/credential"
)

// defaultTimeout applies when the caller configures no timeout.
const defaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error body is kept for messages.
const maxErrorBody = 4 << 10

// Client is a thin HTTP client for the clinic REST API. It attaches
// the bearer token, logs every exchange, bounds each request with a
// timeout, and turns failures into TransportError or ServerError.
type Client struct {
	baseURL    string
	tokens     credential.TokenStore
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger

	mu             gosync.RWMutex
	onUnauthorized func()
}

// NewClient creates a new API client. baseURL is the API root including
// the /api prefix (e.g., https://clinic.example.com/api).
func NewClient(
	baseURL string,
	tokens credential.TokenStore,
	timeout time.Duration,
	logger *zap.Logger,
) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		logger:  logger.Named("api"),
	}
}

// OnUnauthorized registers fn to run after any 401 response, once the
// stored token has been cleared. It replaces a previous handler.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	query url.Values,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result)
}

// Post performs an HTTP POST request with an optional JSON body and
// unmarshals the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	query url.Values,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, query, body, result)
}

// Put performs an HTTP PUT request with a JSON body.
func (c *Client) Put(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPut, path, nil, body, result)
}

// Delete performs an HTTP DELETE request.
func (c *Client) Delete(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, result)
}

// do builds the request, attaches auth and tracing headers, and maps
// the outcome onto the error taxonomy.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body interface{},
	result interface{},
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
	log.Debug("api request")
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("api request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: fmt.Errorf("reading response body: %w", err)}
	}

	log = log.With(
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		log.Warn("api unauthorized, clearing session")
		c.handleUnauthorized()
		return &ServerError{
			Status:  resp.StatusCode,
			Message: serverMessage(respBody, "Your session has expired. Please log in again."),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := serverMessage(respBody, "")
		log.Warn("api error response", zap.String("message", msg))
		return &ServerError{Status: resp.StatusCode, Message: msg}
	}

	log.Debug("api response")

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Error("api response decode failed", zap.Error(err))
		return &ServerError{
			Status:  resp.StatusCode,
			Message: GenericErrorMessage,
			Err:     fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err),
		}
	}

	return nil
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Token()
	if err != nil {
		c.logger.Warn("reading stored token", zap.Error(err))
		return ""
	}
	return token
}

// handleUnauthorized clears the stored token and hands control to the
// registered handler (which routes the UI back to the login view).
func (c *Client) handleUnauthorized() {
	if c.tokens != nil {
		if err := c.tokens.ClearToken(); err != nil {
			c.logger.Warn("clearing stored token", zap.Error(err))
		}
	}

	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// errorBody is the union of error shapes the backend produces.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// serverMessage extracts a human-readable message from an error body.
// It returns fallback when the body carries none.
func serverMessage(body []byte, fallback string) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return fallback
	}
	if eb.Message != "" {
		return eb.Message
	}
	if msg := rawMessage(eb.Error); msg != "" {
		return msg
	}
	if msg := rawMessage(eb.Errors); msg != "" {
		return msg
	}
	return fallback
}

// rawMessage renders a string, list of strings, or string map as text.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}

	var fields map[string]string
	if json.Unmarshal(raw, &fields) == nil && len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for k, v := range fields {
			parts = append(parts, k+": "+v)
		}
		sortStrings(parts)
		return strings.Join(parts, "; ")
	}

	return ""
}
