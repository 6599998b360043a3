package concurrency

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	sdkerrors "github.com/wehubfusion/Ariadne/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Operation is a unit of remote work admitted by the Gateway.
// The context passed in carries the per-operation deadline when one is configured.
type Operation func(ctx context.Context) error

// Metrics tracks gateway admission metrics
type Metrics struct {
	TotalAcquired   int64
	TotalReleased   int64
	TotalFailed     int64
	PeakConcurrent  int64
	TotalWaitTimeNs int64
}

// Gateway bounds the number of remote operations executing at once.
//
// Operations beyond MaxConcurrent wait in FIFO order. When an operation
// settles its slot is handed straight to the oldest waiter, so admission order
// always matches Enqueue call order. A failing operation only fails its own
// caller; queued and in-flight operations are unaffected.
//
// The Gateway caps concurrency, not calls per second. A RequestsPerSecond
// value in the config adds a token bucket on top of the cap.
type Gateway struct {
	mu     sync.Mutex
	max    int
	active int
	queue  *list.List // of *waiter

	rate           *rate.Limiter
	timeout        time.Duration
	circuitBreaker *CircuitBreaker
	logger         *zap.Logger

	acquired  atomic.Int64
	released  atomic.Int64
	failed    atomic.Int64
	peak      atomic.Int64
	waitTotal atomic.Int64
}

type waiter struct {
	ready chan struct{}
}

// NewGateway creates a gateway from the given configuration.
// A nil logger disables logging.
func NewGateway(config GatewayConfig, logger *zap.Logger) *Gateway {
	config = config.Normalize()
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		max:     config.MaxConcurrent,
		queue:   list.New(),
		timeout: config.OperationTimeout,
		logger:  logger,
	}

	if config.RequestsPerSecond > 0 {
		g.rate = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}
	if config.BreakerThreshold > 0 {
		g.circuitBreaker = NewCircuitBreaker(config.BreakerThreshold, config.BreakerResetTimeout)
	}

	return g
}

// Enqueue admits op into the schedule and blocks until it has run.
// It returns op's error, the context error if ctx ends while op is still
// queued, or ErrCircuitOpen when the optional breaker is open.
func (g *Gateway) Enqueue(ctx context.Context, op Operation) error {
	if g.circuitBreaker != nil && g.circuitBreaker.IsOpen() {
		return sdkerrors.ErrCircuitOpen
	}

	start := time.Now()
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer func() {
		g.released.Add(1)
		g.release()
	}()

	g.waitTotal.Add(time.Since(start).Nanoseconds())
	g.acquired.Add(1)

	if g.rate != nil {
		if err := g.rate.Wait(ctx); err != nil {
			return err
		}
	}

	opCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	err := op(opCtx)
	if g.circuitBreaker != nil {
		g.circuitBreaker.Record(err)
	}
	if err != nil {
		g.failed.Add(1)
		g.logger.Debug("Gateway operation failed", zap.Error(err))
	}
	return err
}

// Submit runs op through the gateway and returns its typed result.
func Submit[T any](ctx context.Context, g *Gateway, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Enqueue(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// acquire takes a slot, waiting in FIFO order when none is free
func (g *Gateway) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	if g.active < g.max && g.queue.Len() == 0 {
		g.active++
		g.updatePeak(int64(g.active))
		g.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	elem := g.queue.PushBack(w)
	g.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-w.ready:
			// The slot was handed over while we were cancelling; pass it on.
			g.mu.Unlock()
			g.release()
		default:
			g.queue.Remove(elem)
			g.mu.Unlock()
		}
		return ctx.Err()
	}
}

// release hands the slot to the oldest waiter or frees it
func (g *Gateway) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if front := g.queue.Front(); front != nil {
		w := g.queue.Remove(front).(*waiter)
		close(w.ready)
		return
	}
	g.active--
}

// updatePeak must be called with g.mu held
func (g *Gateway) updatePeak(current int64) {
	if current > g.peak.Load() {
		g.peak.Store(current)
	}
}

// Active returns the number of operations currently holding a slot
func (g *Gateway) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Queued returns the number of operations waiting for a slot
func (g *Gateway) Queued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.Len()
}

// MaxConcurrent returns the configured concurrency cap
func (g *Gateway) MaxConcurrent() int {
	return g.max
}

// GetMetrics returns a snapshot of the current metrics
func (g *Gateway) GetMetrics() Metrics {
	return Metrics{
		TotalAcquired:   g.acquired.Load(),
		TotalReleased:   g.released.Load(),
		TotalFailed:     g.failed.Load(),
		PeakConcurrent:  g.peak.Load(),
		TotalWaitTimeNs: g.waitTotal.Load(),
	}
}

// GetAverageWaitTime calculates the average time spent waiting for a slot
func (g *Gateway) GetAverageWaitTime() time.Duration {
	metrics := g.GetMetrics()
	if metrics.TotalAcquired == 0 {
		return 0
	}
	return time.Duration(metrics.TotalWaitTimeNs / metrics.TotalAcquired)
}

// GetCircuitBreakerState returns the breaker state, or "disabled"
func (g *Gateway) GetCircuitBreakerState() string {
	if g.circuitBreaker == nil {
		return "disabled"
	}
	return g.circuitBreaker.GetState().String()
}
