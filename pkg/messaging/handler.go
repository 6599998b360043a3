package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/wehubfusion/Ariadne/pkg/extract"
	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
	"go.uber.org/zap"
)

// Handler processes one decoded extraction request
type Handler func(ctx context.Context, req *Request) (extract.Result, error)

// Middleware is a function that wraps a handler to add additional functionality
type Middleware func(Handler) Handler

// Chain chains multiple middlewares together
func Chain(middlewares ...Middleware) Middleware {
	return func(h Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// RecoveryMiddleware recovers from panics in request handlers
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (result extract.Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic while handling request",
						zap.String("kind", req.Kind),
						zap.Any("panic", r),
						zap.Stack("stack"))
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// LoggingMiddleware logs each request with its outcome and duration
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (extract.Result, error) {
			start := time.Now()
			fields := []zap.Field{
				zap.String("request_id", extract.RequestID(ctx)),
				zap.String("kind", req.Kind),
				zap.String("workspace", req.Workspace),
			}

			result, err := next(ctx, req)
			fields = append(fields, zap.Duration("duration", time.Since(start)))
			if err != nil {
				logger.Warn("Request failed", append(fields,
					zap.Int("status", extract.StatusCode(err)),
					zap.Error(err))...)
			} else {
				logger.Info("Request processed", fields...)
			}
			return result, err
		}
	}
}

// ValidationMiddleware rejects requests with no kind or an unknown one
func ValidationMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (extract.Result, error) {
			switch req.Kind {
			case KindPage, KindDatabase, KindSearch:
				return next(ctx, req)
			case "":
				return extract.Result{}, sdkerrors.BadRequest("Bad Request: kind is required")
			default:
				return extract.Result{}, sdkerrors.BadRequest(fmt.Sprintf("Bad Request: unknown kind %q", req.Kind))
			}
		}
	}
}
