// Package extract exposes the page, database and search operations shared
// by the HTTP surface, the NATS worker and the CLI.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
	"github.com/wehubfusion/Ariadne/pkg/flatten"
	"go.uber.org/zap"
)

// Caller-facing messages
const (
	MsgUnauthorized     = "Unauthorized: API key not found"
	MsgBadPassword      = "Unauthorized"
	MsgMissingID        = "Bad Request: id parameter is required"
	MsgMissingQuery     = "Bad Request: Query parameter is required"
	MsgPageNotFound     = "Not Found: Page not found"
	MsgDatabaseNotFound = "Not Found: Database not found"
	MsgNoResults        = "Not Found: No results found"
	MsgInternal         = "Internal Server Error"
	MsgNoContent        = "No content"
)

// KeyResolver maps a workspace name to its API key.
// *config.Config satisfies it.
type KeyResolver interface {
	APIKey(workspace string) (string, bool)
}

// SourceFactory builds a content source for one API key
type SourceFactory func(apiKey string) (content.Source, error)

// PageRequest asks for the flattened blocks of a page
type PageRequest struct {
	Workspace string
	ID        string
	Raw       bool
	// Title prepends the page title
	Title bool
}

// DatabaseRequest asks for the flattened rows of a database
type DatabaseRequest struct {
	Workspace string
	ID        string
	Raw       bool
	// Title, when set, is emitted as the first entry
	Title string
}

// SearchRequest asks for the flattened content of every search hit
type SearchRequest struct {
	Workspace string
	Query     string
	Raw       bool
	Password  string
}

// Result is either flattened text or, for raw requests, the upstream items
type Result struct {
	Content string
	Raw     bool
	Items   []json.RawMessage
}

// Options configures a Service
type Options struct {
	Keys      KeyResolver
	NewSource SourceFactory
	Gateway   *concurrency.Gateway
	PageSize  int
	// Password guards search when non-empty
	Password string
	Logger   *zap.Logger
}

// Service runs extraction requests. One Gateway is shared by every
// workspace and every request.
type Service struct {
	keys      KeyResolver
	newSource SourceFactory
	gateway   *concurrency.Gateway
	pageSize  int
	password  string
	logger    *zap.Logger

	mu      sync.Mutex
	sources map[string]content.Source
}

// NewService creates a service
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gateway == nil {
		opts.Gateway = concurrency.NewGateway(concurrency.DefaultGatewayConfig(), opts.Logger)
	}
	if opts.PageSize < 1 || opts.PageSize > concurrency.MaxPageSize {
		opts.PageSize = concurrency.DefaultPageSize
	}

	return &Service{
		keys:      opts.Keys,
		newSource: opts.NewSource,
		gateway:   opts.Gateway,
		pageSize:  opts.PageSize,
		password:  opts.Password,
		logger:    opts.Logger,
		sources:   make(map[string]content.Source),
	}
}

// Gateway returns the shared gateway
func (s *Service) Gateway() *concurrency.Gateway {
	return s.gateway
}

// Page flattens the top-level blocks of a page and their subtrees
func (s *Service) Page(ctx context.Context, req PageRequest) (Result, error) {
	logger := s.requestLogger(ctx).With(zap.String("page_id", req.ID))

	source, err := s.source(req.Workspace)
	if err != nil {
		return Result{}, err
	}
	if req.ID == "" {
		return Result{}, sdkerrors.BadRequest(MsgMissingID)
	}

	blocks, err := concurrency.Submit(ctx, s.gateway, func(ctx context.Context) ([]content.Block, error) {
		return source.ListBlockChildren(ctx, req.ID, s.pageSize)
	})
	if err != nil {
		logger.Error("Error fetching page content", zap.Error(err))
		return Result{}, sdkerrors.Upstream(MsgInternal, err)
	}

	if req.Raw {
		items := make([]json.RawMessage, len(blocks))
		for i, b := range blocks {
			items[i] = b.Raw
		}
		return Result{Raw: true, Items: items}, nil
	}
	if len(blocks) == 0 {
		return Result{}, sdkerrors.NotFound(MsgPageNotFound)
	}

	flattener := s.flattener(source)
	var text string
	if req.Title {
		text = flattener.FlattenContainer(ctx, req.ID, blocks)
	} else {
		text = flattener.FlattenBlocks(ctx, blocks)
	}
	if text == "" {
		text = MsgNoContent
	}

	logger.Info("Page flattened", zap.Int("blocks", len(blocks)), zap.Int("length", len(text)))
	return Result{Content: text}, nil
}

// Database flattens the rows of a database
func (s *Service) Database(ctx context.Context, req DatabaseRequest) (Result, error) {
	logger := s.requestLogger(ctx).With(zap.String("database_id", req.ID))

	source, err := s.source(req.Workspace)
	if err != nil {
		return Result{}, err
	}
	if req.ID == "" {
		return Result{}, sdkerrors.BadRequest(MsgMissingID)
	}

	records, err := concurrency.Submit(ctx, s.gateway, func(ctx context.Context) ([]content.Record, error) {
		return source.QueryDatabase(ctx, req.ID)
	})
	if err != nil {
		logger.Error("Error fetching database content", zap.Error(err))
		return Result{}, sdkerrors.Upstream(MsgInternal, err)
	}

	if req.Raw {
		items := make([]json.RawMessage, len(records))
		for i, r := range records {
			items[i] = r.Raw
		}
		return Result{Raw: true, Items: items}, nil
	}
	if len(records) == 0 {
		return Result{}, sdkerrors.NotFound(MsgDatabaseNotFound)
	}

	text := s.flattener(source).MapRecords(ctx, records, req.Title)
	logger.Info("Database flattened", zap.Int("records", len(records)), zap.Int("length", len(text)))
	return Result{Content: text}, nil
}

// Search flattens every search hit, oldest edit first
func (s *Service) Search(ctx context.Context, req SearchRequest) (Result, error) {
	logger := s.requestLogger(ctx)

	if s.password != "" && req.Password != s.password {
		return Result{}, sdkerrors.Unauthorized(MsgBadPassword)
	}
	source, err := s.source(req.Workspace)
	if err != nil {
		return Result{}, err
	}
	if req.Query == "" {
		return Result{}, sdkerrors.BadRequest(MsgMissingQuery)
	}

	results, err := concurrency.Submit(ctx, s.gateway, func(ctx context.Context) ([]content.SearchResult, error) {
		return source.Search(ctx, req.Query)
	})
	if err != nil {
		logger.Error("Error searching content", zap.Error(err))
		return Result{}, sdkerrors.Upstream(MsgInternal, err)
	}

	if req.Raw {
		items := make([]json.RawMessage, len(results))
		for i, r := range results {
			items[i] = r.Raw
		}
		return Result{Raw: true, Items: items}, nil
	}

	text := s.flattener(source).Aggregate(ctx, results)
	if text == "" {
		return Result{}, sdkerrors.NotFound(MsgNoResults)
	}

	logger.Info("Search flattened", zap.Int("results", len(results)), zap.Int("length", len(text)))
	return Result{Content: text}, nil
}

// source returns the cached source for the workspace's key
func (s *Service) source(workspace string) (content.Source, error) {
	if s.keys == nil || s.newSource == nil {
		return nil, sdkerrors.Unauthorized(MsgUnauthorized)
	}
	key, ok := s.keys.APIKey(workspace)
	if !ok {
		return nil, sdkerrors.Unauthorized(MsgUnauthorized)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if source, ok := s.sources[key]; ok {
		return source, nil
	}
	source, err := s.newSource(key)
	if err != nil {
		return nil, sdkerrors.NewError(sdkerrors.CodeUnauthorized, MsgUnauthorized, errors.Join(sdkerrors.ErrUnauthorized, err))
	}
	s.sources[key] = source
	return source, nil
}

func (s *Service) flattener(source content.Source) *flatten.Flattener {
	return flatten.NewFlattener(source, s.gateway, s.pageSize, s.logger)
}

func (s *Service) requestLogger(ctx context.Context) *zap.Logger {
	return s.logger.With(zap.String("request_id", RequestID(ctx)))
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID carried by ctx, or a fresh one
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// StatusCode maps a service error onto an HTTP status
func StatusCode(err error) int {
	var e *sdkerrors.Error
	if err == nil {
		return http.StatusOK
	}
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case sdkerrors.CodeBadRequest:
		return http.StatusBadRequest
	case sdkerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case sdkerrors.CodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// ErrorMessage returns the caller-safe text for a service error
func ErrorMessage(err error) string {
	if StatusCode(err) == http.StatusInternalServerError {
		return MsgInternal
	}
	return sdkerrors.Message(err, MsgInternal)
}
