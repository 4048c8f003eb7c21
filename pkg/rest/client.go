// Package rest provides the HTTP transport used to reach the feed-manager REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datasources/pkg/apperrors"
)

// DefaultTimeout is the maximum time to wait for backend responses.
const DefaultTimeout = 30 * time.Second

// ContentTypeJSON is sent with every request that carries a body.
const ContentTypeJSON = "application/json"

// Request describes a single call to the backend.
type Request struct {
	Method string
	// Path is either absolute (scheme and host) or relative to the base URL.
	// Any query string it already carries is sent verbatim.
	Path string
	// Query values are encoded and appended to Path's query string.
	Query url.Values
	// Body is JSON-encoded unless it is a string or []byte, which are sent as is.
	Body   any
	Header http.Header
}

// RequestExecutor performs one HTTP call and returns the raw response body.
// Non-2xx responses are reported as *apperrors.HTTPError.
type RequestExecutor interface {
	Do(ctx context.Context, req *Request) ([]byte, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBearerToken authenticates every request with token.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// Client executes requests against a base URL. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	header     http.Header
	logger     *zap.Logger
}

var _ RequestExecutor = (*Client)(nil)

// NewClient creates a transport rooted at baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		header: make(http.Header),
		logger: logger.Named("rest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req and returns the response body.
func (c *Client) Do(ctx context.Context, req *Request) ([]byte, error) {
	endpoint, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", ContentTypeJSON)
	if body != nil {
		httpReq.Header.Set("Content-Type", ContentTypeJSON)
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	overrideHeaders(httpReq.Header, c.header)
	overrideHeaders(httpReq.Header, req.Header)

	c.logger.Debug("Calling backend",
		zap.String("method", req.Method),
		zap.String("url", endpoint))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Backend returned error",
			zap.String("method", req.Method),
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, &apperrors.HTTPError{
			Method:     req.Method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}

// resolve joins p onto the base URL unless p is already absolute, keeping
// p's own query string untouched and appending query.
func (c *Client) resolve(p string, query url.Values) (string, error) {
	rawPath, rawQuery, _ := strings.Cut(p, "?")

	var endpoint string
	if strings.HasPrefix(rawPath, "http://") || strings.HasPrefix(rawPath, "https://") {
		endpoint = rawPath
	} else {
		joined, err := buildURL(c.baseURL, rawPath)
		if err != nil {
			return "", err
		}
		endpoint = joined
	}

	if encoded := query.Encode(); encoded != "" {
		if rawQuery == "" {
			rawQuery = encoded
		} else {
			rawQuery += "&" + encoded
		}
	}
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}
	return endpoint, nil
}

func overrideHeaders(dst, src http.Header) {
	for key, values := range src {
		dst.Del(key)
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// buildURL constructs a URL by parsing the base and joining path segments.
// Path segments are expected to be escaped already.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.EscapedPath()}, pathSegments...)
	joined := path.Join(segments...)
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}

	return u.Scheme + "://" + u.Host + joined, nil
}
