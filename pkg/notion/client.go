// Package notion implements content.Source against the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/wehubfusion/Ariadne/pkg/content"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://api.notion.com/v1"
	DefaultVersion    = "2022-06-28"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3

	defaultRetryInterval = 500 * time.Millisecond
	userAgent            = "Ariadne/1.0"
)

// Config configures a Client
type Config struct {
	BaseURL    string
	APIKey     string
	Version    string
	Timeout    time.Duration
	MaxRetries int

	// RetryInterval is the first backoff interval after a 429 or 5xx
	RetryInterval time.Duration

	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
}

// Client is a Notion API client bound to one integration key.
// Requests are retried on 429 and 5xx responses; a Retry-After header
// overrides the backoff interval.
type Client struct {
	baseURL       string
	apiKey        string
	version       string
	maxRetries    int
	retryInterval time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
	tracer        trace.Tracer
}

var _ content.Source = (*Client)(nil)

// NewClient creates a client. An empty API key is rejected.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, sdkerrors.Unauthorized("Unauthorized: API key not found")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultRetryInterval
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		apiKey:        config.APIKey,
		version:       config.Version,
		maxRetries:    config.MaxRetries,
		retryInterval: config.RetryInterval,
		httpClient:    httpClient,
		logger:        logger,
		tracer:        otel.Tracer("ariadne/notion"),
	}, nil
}

// QueryDatabase returns the first page of rows of a database
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]content.Record, error) {
	body, err := c.call(ctx, "QueryDatabase", http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", []byte(`{}`))
	if err != nil {
		return nil, err
	}
	return content.ParseRecords(body)
}

// ListBlockChildren returns the first page of children of a block or page
func (c *Client) ListBlockChildren(ctx context.Context, blockID string, pageSize int) ([]content.Block, error) {
	path := fmt.Sprintf("/blocks/%s/children?page_size=%d", url.PathEscape(blockID), pageSize)
	body, err := c.call(ctx, "ListBlockChildren", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return content.ParseBlocks(body)
}

// GetRecord retrieves a page with its properties
func (c *Client) GetRecord(ctx context.Context, recordID string) (content.Record, error) {
	body, err := c.call(ctx, "GetRecord", http.MethodGet, "/pages/"+url.PathEscape(recordID), nil)
	if err != nil {
		return content.Record{}, err
	}
	return content.ParseRecord(body)
}

// GetPropertyValue retrieves a single property item of a page
func (c *Client) GetPropertyValue(ctx context.Context, recordID, propertyID string) (content.Property, error) {
	path := "/pages/" + url.PathEscape(recordID) + "/properties/" + url.PathEscape(propertyID)
	body, err := c.call(ctx, "GetPropertyValue", http.MethodGet, path, nil)
	if err != nil {
		return content.Property{}, err
	}
	return content.ParsePropertyItem(body)
}

// Search runs a workspace search, oldest edits first
func (c *Client) Search(ctx context.Context, query string) ([]content.SearchResult, error) {
	payload, err := sjson.SetBytes([]byte(`{"sort":{"direction":"ascending","timestamp":"last_edited_time"}}`), "query", query)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	body, err := c.call(ctx, "Search", http.MethodPost, "/search", payload)
	if err != nil {
		return nil, err
	}
	return content.ParseSearchResults(body)
}

// call performs one logical request including retries
func (c *Client) call(ctx context.Context, operation, method, path string, payload []byte) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "notion."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("notion.path", path),
		))
	defer span.End()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = c.retryInterval

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return c.do(ctx, method, path, payload)
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("Retrying Notion request",
				zap.String("operation", operation),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) {
			err = sdkerrors.NewError(sdkerrors.CodeRateLimited, "Notion API rate limit exceeded", sdkerrors.ErrRateLimited)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return body, nil
}

// do performs a single HTTP round trip and classifies the outcome for the retry loop
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, sdkerrors.Upstream("Notion request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sdkerrors.Upstream("failed to read Notion response", err)
	}

	c.logger.Debug("Notion request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classify(resp, body)
}

// classify maps a non-2xx response onto the error taxonomy. Only 429 and
// 5xx responses are retryable.
func classify(resp *http.Response, body []byte) error {
	code := gjson.GetBytes(body, "code").Str
	message := gjson.GetBytes(body, "message").Str
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	detail := fmt.Errorf("notion API error (%d): %s - %s", resp.StatusCode, code, message)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds >= 0 {
			return backoff.RetryAfter(seconds)
		}
		return sdkerrors.NewError(sdkerrors.CodeRateLimited, message, errors.Join(sdkerrors.ErrRateLimited, detail))
	case resp.StatusCode >= 500:
		return sdkerrors.Upstream(message, detail)
	case resp.StatusCode == http.StatusNotFound || code == "object_not_found":
		return backoff.Permanent(sdkerrors.NewError(sdkerrors.CodeNotFound, message, errors.Join(sdkerrors.ErrNotFound, detail)))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(sdkerrors.NewError(sdkerrors.CodeUnauthorized, message, errors.Join(sdkerrors.ErrUnauthorized, detail)))
	default:
		return backoff.Permanent(sdkerrors.Upstream(message, detail))
	}
}
