// Package apiclient is the typed REST client for the counseling backend.
// Every mutation returns the authoritative record from the server; business
// rule rejections come back as *ApiError with the server's message verbatim.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ApiError is a non-2xx response decoded from the server's error body.
type ApiError struct {
	StatusCode int
	Message    string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Unauthorized reports whether this is a 401-class error.
func (e *ApiError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Client виконує запити до REST API. BaseURL та токен приходять ззовні;
// жодних глобальних синглтонів.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// TokenProvider returns the current bearer token, empty when anonymous.
	TokenProvider func() string
	// OnUnauthorized is invoked on every 401 so the caller can drop local
	// auth state. Routine identity checks are logged at debug, not error.
	OnUnauthorized func()

	logger *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
		generations: make(map[string]uint64),
	}
}

// Invalidate bumps the generation of a resource tag. Readers that cached a
// result under an older generation must re-fetch.
func (c *Client) Invalidate(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[tag]++
}

// Generation returns the current generation of a resource tag.
func (c *Client) Generation(tag string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[tag]
}

type errorBody struct {
	Error string `json:"error"`
}

// do виконує один запит та декодує відповідь у out (якщо out != nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.TokenProvider != nil {
		if token := c.TokenProvider(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &ApiError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb errorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&eb); decodeErr == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		if apiErr.Unauthorized() {
			c.logger.Debug("unauthorized response", zap.String("path", path))
			if c.OnUnauthorized != nil {
				c.OnUnauthorized()
			}
		} else {
			c.logger.Warn("api request rejected",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("message", apiErr.Message),
			)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil // порожнє тіло при 2xx допустиме
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
