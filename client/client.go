// Package client is the shared HTTP client all components call the
// backend through. It attaches the session's bearer token to every
// request and converts backend error bodies into APIError values.
package client

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

	"wastetrack/api"
)

const contentType = "application/json"

// TokenSource supplies the current session token, or "" when signed
// out. The auth state store implements it.
type TokenSource interface {
	Token() string
}

// APIError is a backend-reported error: a non-2xx status with a
// structured message in the response body when one was provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client calls the wastetrack backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New creates a client against baseURL. tokens may be nil for
// unauthenticated use.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
}

// NewWithHTTPClient creates a client using the given http.Client, for
// callers that need their own timeout or transport.
func NewWithHTTPClient(baseURL string, tokens TokenSource, hc *http.Client) *Client {
	c := New(baseURL, tokens)
	c.http = hc
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying http.Client, shared with the
// stream reader so both channels use the same transport.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Get issues a GET and decodes the JSON response into out when out is
// non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into
// out when out is non-nil.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// StreamURL builds the URL for the live event stream. Persistent
// connections cannot carry custom headers, so the token travels as a
// query parameter instead.
func (c *Client) StreamURL() string {
	u := c.baseURL + api.LocationStreamEndpoint
	if tok := c.token(); tok != "" {
		u += "?token=" + url.QueryEscape(tok)
	}
	return u
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError extracts the backend's message from an error response.
// Both {"message": ...} and {"error": ...} bodies occur in the wild.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			apiErr.Message = body.Message
		} else if body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// ErrorMessage extracts a human-readable message from any error
// returned by this package: the backend-provided message when present,
// the transport error text otherwise.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Error()
	}
	return err.Error()
}
