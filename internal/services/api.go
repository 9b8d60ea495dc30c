// API service for making HTTP requests to the works/translation backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"
	defaultTimeout = 15 * time.Second

	// RequestIDHeader carries a per-request identifier for correlating client and backend logs.
	RequestIDHeader = "X-Request-ID"
)

// APIService is the typed client for the backend REST and SSE API.
type APIService struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	logger       *log.Logger
}

// APIOptions configures an [APIService].
type APIOptions struct {
	BaseURL    string
	Timeout    time.Duration // Applied to REST calls only; streams stay open until closed
	RateLimit  float64       // Requests per second; zero disables limiting
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewAPIService creates a new API service with the default timeout.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	return NewAPIServiceWithOptions(APIOptions{BaseURL: baseURL, HTTPClient: client})
}

// NewAPIServiceWithOptions creates a new API service from opts.
//
// When no client is supplied one is built with opts.Timeout (default 15s).
// Event streams use a copy of the client without a timeout.
func NewAPIServiceWithOptions(opts APIOptions) *APIService {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	stream := *client
	stream.Timeout = 0

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &APIService{
		baseURL:      baseURL,
		httpClient:   client,
		streamClient: &stream,
		limiter:      limiter,
		logger:       logger,
	}
}

// BaseURL returns the normalized backend base URL.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// URL builds an absolute URL for path with optional query parameters.
func (a *APIService) URL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.raw(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.raw(ctx, http.MethodPost, path, data)
}

func (a *APIService) raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := a.newRequest(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	resp, err := a.send(a.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// newRequest builds a request carrying the JSON content type and a fresh request id.
func (a *APIService) newRequest(ctx context.Context, method, fullURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, shared.GenerateID())
	return req, nil
}

// send waits on the rate limiter and performs req.
//
// Transport failures are wrapped with [shared.ErrConnection]; context errors are returned as-is
// so callers can tell a cancellation from a dropped connection.
func (a *APIService) send(client *http.Client, req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, fmt.Errorf("%w: request failed: %v", shared.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrConnection, err)
	}

	a.logger.Debug("api request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get(RequestIDHeader),
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// do performs a JSON request and decodes a successful response into out (when non-nil).
//
// Non-2xx responses are returned as [*APIError].
func (a *APIService) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := a.newRequest(ctx, method, a.URL(path, query), body)
	if err != nil {
		return err
	}

	resp, err := a.send(a.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// pageValues encodes an optional search term and limit/offset pagination.
func pageValues(q string, page models.PageQuery) url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q); s != "" {
		v.Set("q", s)
	}
	if page.Limit > 0 {
		v.Set("limit", fmt.Sprint(page.Limit))
	}
	if page.Offset > 0 {
		v.Set("offset", fmt.Sprint(page.Offset))
	} else {
		v.Set("offset", "0")
	}
	return v
}
