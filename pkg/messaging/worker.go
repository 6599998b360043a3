// Package messaging answers extraction requests arriving over NATS.
//
// Requests are JSON documents published with a reply subject:
//
//	{"kind": "page", "workspace": "main", "id": "...", "title": true}
//	{"kind": "database", "id": "...", "heading": "Tasks"}
//	{"kind": "search", "query": "roadmap", "password": "..."}
//
// Every request gets exactly one Reply. Workers in the same queue group
// share the subject, so each request is answered by one of them.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/wehubfusion/Ariadne/pkg/extract"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Request kinds
const (
	KindPage     = "page"
	KindDatabase = "database"
	KindSearch   = "search"
)

// RequestIDHeader carries the caller's request ID
const RequestIDHeader = "X-Request-ID"

const (
	drainPollInterval = 10 * time.Millisecond
	drainTimeout      = 30 * time.Second
)

// Request is the wire form of an extraction request
type Request struct {
	Kind      string `json:"kind"`
	Workspace string `json:"workspace,omitempty"`
	ID        string `json:"id,omitempty"`
	Query     string `json:"query,omitempty"`
	Raw       bool   `json:"raw,omitempty"`
	// Title prepends the page title
	Title bool `json:"title,omitempty"`
	// Heading is the first entry of a database's output
	Heading  string `json:"heading,omitempty"`
	Password string `json:"password,omitempty"`
}

// Reply is the wire form of a response
type Reply struct {
	Status  int               `json:"status"`
	Content string            `json:"content,omitempty"`
	Results []json.RawMessage `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Subscriber is the subset of *nats.Conn the worker depends on
type Subscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (Subscription, error)
}

// Subscription is an active subscription. Drain returns before buffered
// messages are delivered; IsValid reports false once delivery has finished.
type Subscription interface {
	Drain() error
	IsValid() bool
}

// WrapConn adapts a *nats.Conn to Subscriber
func WrapConn(conn *nats.Conn) Subscriber {
	return &connAdapter{conn: conn}
}

type connAdapter struct {
	conn *nats.Conn
}

func (a *connAdapter) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (Subscription, error) {
	sub, err := a.conn.QueueSubscribe(subject, queue, cb)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Worker dispatches NATS requests to an extract.Service
type Worker struct {
	service *extract.Service
	handler Handler
	logger  *zap.Logger
	tracer  trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    Subscription
}

// NewWorker creates a worker. The middlewares wrap the default
// recovery, logging and validation chain.
func NewWorker(service *extract.Service, logger *zap.Logger, middlewares ...Middleware) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Worker{
		service: service,
		logger:  logger,
		tracer:  otel.Tracer("ariadne/messaging"),
	}

	chain := make([]Middleware, 0, len(middlewares)+3)
	chain = append(chain, middlewares...)
	chain = append(chain,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		ValidationMiddleware(),
	)
	w.handler = Chain(chain...)(w.dispatch)
	return w
}

// Start subscribes to subject in the given queue group. Requests are
// handled concurrently; the shared gateway bounds remote work.
func (w *Worker) Start(ctx context.Context, conn Subscriber, subject, queue string) error {
	if subject == "" {
		return fmt.Errorf("subject cannot be empty")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.handleMsg(msg)
		}()
	})
	if err != nil {
		w.cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	w.sub = sub

	w.logger.Info("Worker subscribed",
		zap.String("subject", subject),
		zap.String("queue", queue))
	return nil
}

// Stop drains the subscription, waits until every buffered request has
// been delivered and answered, then releases the worker context.
func (w *Worker) Stop() error {
	var err error
	if w.sub != nil {
		if err = w.sub.Drain(); err == nil {
			w.waitDrained()
		}
	}
	w.wg.Wait()
	if w.cancel != nil {
		w.cancel()
	}
	return err
}

// waitDrained blocks until the subscription stops delivering messages
func (w *Worker) waitDrained() {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(drainTimeout)
	defer timeout.Stop()

	for w.sub.IsValid() {
		select {
		case <-ticker.C:
		case <-timeout.C:
			w.logger.Warn("Subscription still draining, stopping anyway",
				zap.Duration("timeout", drainTimeout))
			return
		}
	}
}

func (w *Worker) handleMsg(msg *nats.Msg) {
	var requestID string
	if msg.Header != nil {
		requestID = msg.Header.Get(RequestIDHeader)
	}

	reply := w.Process(w.ctx, msg.Data, requestID)
	if msg.Reply == "" {
		w.logger.Debug("Request has no reply subject", zap.String("subject", msg.Subject))
		return
	}
	if err := msg.Respond(reply); err != nil {
		w.logger.Error("Failed to send reply",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

// Process handles one encoded request and returns the encoded Reply.
// A request ID is generated when the caller sent none.
func (w *Worker) Process(ctx context.Context, data []byte, requestID string) []byte {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = extract.WithRequestID(ctx, requestID)

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		w.logger.Warn("Malformed request", zap.Error(err))
		return encode(Reply{Status: http.StatusBadRequest, Error: "Bad Request: malformed request"})
	}

	ctx, span := w.tracer.Start(ctx, "messaging.Process",
		trace.WithAttributes(
			attribute.String("request.kind", req.Kind),
			attribute.String("request.id", req.ID),
		))
	defer span.End()

	result, err := w.handler(ctx, &req)
	if err != nil {
		status := extract.StatusCode(err)
		if status == http.StatusInternalServerError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			sentry.CaptureException(err)
		}
		return encode(Reply{Status: status, Error: extract.ErrorMessage(err)})
	}

	if result.Raw {
		return encode(Reply{Status: http.StatusOK, Results: result.Items})
	}
	return encode(Reply{Status: http.StatusOK, Content: result.Content})
}

func (w *Worker) dispatch(ctx context.Context, req *Request) (extract.Result, error) {
	switch req.Kind {
	case KindPage:
		return w.service.Page(ctx, extract.PageRequest{
			Workspace: req.Workspace,
			ID:        req.ID,
			Raw:       req.Raw,
			Title:     req.Title,
		})
	case KindDatabase:
		return w.service.Database(ctx, extract.DatabaseRequest{
			Workspace: req.Workspace,
			ID:        req.ID,
			Raw:       req.Raw,
			Title:     req.Heading,
		})
	default:
		return w.service.Search(ctx, extract.SearchRequest{
			Workspace: req.Workspace,
			Query:     req.Query,
			Raw:       req.Raw,
			Password:  req.Password,
		})
	}
}

func encode(reply Reply) []byte {
	data, err := json.Marshal(reply)
	if err != nil {
		return []byte(`{"status":500,"error":"Internal Server Error"}`)
	}
	return data
}
