package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/urlic/licenced/internal/bus"
	"github.com/urlic/licenced/internal/config"
	"github.com/urlic/licenced/internal/license"
	"github.com/urlic/licenced/internal/log"
	"github.com/urlic/licenced/internal/protocol"
)

// MessageBus is the transport collaborator the processor consumes requests
// from and publishes responses to.
type MessageBus interface {
	Publish(topic string, payload []byte)
	Subscribe(topic string) (<-chan bus.Message, func())
}

// OperationHandler executes one domain operation against the immutable
// configuration snapshot. Implementations must be safe for concurrent use by
// many workers; *license.Handler is the production implementation.
type OperationHandler interface {
	Execute(op license.Operation, params map[string]string) (license.Result, error)
}

// AuditSink records one entry per processed request. Implementations must be
// safe for concurrent use.
type AuditSink interface {
	RecordRequest(ctx context.Context, correlationID, method string, success bool, message string, elapsed time.Duration) error
}

//go:generate mockgen -destination=mocks/mock_audit.go -package=mocks github.com/urlic/licenced/internal/rpc AuditSink

// Processor owns the worker pool and registry and drives the per-request
// lifecycle: validate, submit, register-then-publish handshake, worker
// execution, response, self-deregistration. One Processor serves one request
// topic.
type Processor struct {
	cfg       config.RPCConfig
	handler   OperationHandler
	bus       MessageBus
	publisher *Publisher
	pool      *Pool
	registry  *Registry
	audit     AuditSink
	limiter   *rate.Limiter
	logger    *slog.Logger

	shuttingDown atomic.Bool
	requestCount atomic.Uint64
}

// NewProcessor creates a Processor. The license handler carries the
// immutable configuration snapshot shared by all workers; audit may be nil.
func NewProcessor(cfg config.RPCConfig, handler OperationHandler, b MessageBus, audit AuditSink) *Processor {
	var limiter *rate.Limiter
	if rl := cfg.RateLimit; rl != nil {
		limiter = rate.NewLimiter(rate.Limit(rl.PerSecond), rl.Burst)
	}

	return &Processor{
		cfg:       cfg,
		handler:   handler,
		bus:       b,
		publisher: NewPublisher(b, cfg.ResponseTopic),
		pool:      NewPool(cfg.Workers),
		registry:  NewRegistry(),
		audit:     audit,
		limiter:   limiter,
		logger:    log.WithComponent("processor"),
	}
}

// Run subscribes to the request topic and processes messages until ctx is
// cancelled, then drains via Close. This is a blocking call.
func (p *Processor) Run(ctx context.Context) error {
	ch, cancel := p.bus.Subscribe(p.cfg.RequestTopic)
	defer cancel()

	p.logger.Info("processor started", "request_topic", p.cfg.RequestTopic, "workers", p.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			p.Close()
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				p.Close()
				return nil
			}
			p.HandleMessage(msg.Topic, msg.Payload)
		}
	}
}

// HandleMessage processes one inbound delivery. Messages on other topics are
// ignored; the transport collaborator normally filters them already.
func (p *Processor) HandleMessage(topic string, payload []byte) {
	if topic != p.cfg.RequestTopic {
		return
	}

	if len(payload) == 0 {
		p.logger.Error("empty payload received")
		return
	}

	if len(payload) > p.cfg.MaxPayloadBytes {
		p.logger.Error("payload too large", "size", len(payload), "max", p.cfg.MaxPayloadBytes)
		return
	}

	req, err := protocol.DecodeRequest(payload, p.cfg.MaxEnvelopeBytes)
	if err != nil {
		// Envelope failures with a usable correlation id are answered;
		// the rest can only be logged.
		if req != nil {
			p.logger.Error("invalid request envelope", "correlation_id", req.CorrelationID, "error", err)
			p.publisher.Failure(req.CorrelationID, err.Error())
			requestsTotal.WithLabelValues(outcomeRejected).Inc()
		} else {
			p.logger.Error("undecodable request", "error", err, "size", len(payload))
		}
		return
	}

	if p.shuttingDown.Load() {
		p.logger.Warn("rejecting request during shutdown", "correlation_id", req.CorrelationID)
		p.publisher.Failure(req.CorrelationID, "Server is shutting down")
		requestsTotal.WithLabelValues(outcomeShutdown).Inc()
		return
	}

	if p.limiter != nil && !p.limiter.Allow() {
		p.logger.Warn("request rate limited", "correlation_id", req.CorrelationID)
		p.publisher.Failure(req.CorrelationID, "Server is rate limiting requests")
		requestsTotal.WithLabelValues(outcomeRateLimited).Inc()
		return
	}

	item := newWorkItem(payload, req.CorrelationID)

	id, err := p.pool.Submit(func(ctx context.Context) {
		p.runWorker(ctx, item)
	})
	if err != nil {
		// Recoverable: run the work on the caller's own context instead
		// of dropping the request. Id 0 is never registered, so the
		// worker's self-deregistration is a no-op.
		p.logger.Warn("submission failed, falling back to synchronous execution",
			"correlation_id", req.CorrelationID, "error", err)
		syncFallbackTotal.Inc()
		item.publishID(0)
		p.runWorker(context.Background(), item)
		return
	}

	// Registry insert strictly before handoff publish. The worker blocks on
	// the handoff slot, so it cannot run, finish, and try to erase an id
	// that was never inserted.
	p.registry.Insert(id)
	item.publishID(id)

	p.logger.Debug("worker submitted", "worker_id", id, "correlation_id", req.CorrelationID)

	if n := p.requestCount.Add(1); n%uint64(p.cfg.SweepEvery) == 0 {
		p.sweep()
	}
}

// runWorker is the worker side of the lifecycle. Every code path publishes
// exactly one response before the worker erases itself and returns; panics
// are caught at this boundary and converted into a failure response.
func (p *Processor) runWorker(ctx context.Context, item *workItem) {
	id := item.awaitID()

	logger := p.logger.With("worker_id", id, "correlation_id", item.correlationID)
	started := time.Now()

	var (
		method  string
		success bool
		message string
	)

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logger.Error("panic during operation", "panic", r, "stack", string(buf[:n]))
			message = fmt.Sprintf("Server error - internal failure during operation processing: %v", r)
			item.respond(func() {
				p.publisher.Failure(item.correlationID, message)
			})
			requestsTotal.WithLabelValues(outcomeFailure).Inc()
		}
		p.recordAudit(item.correlationID, method, success, message, time.Since(started))
		p.registry.Erase(id)
	}()

	// The authoritative parse; the dispatcher's pass is only a fast-reject
	// gate.
	req, err := protocol.DecodeRequest(item.payload, p.cfg.MaxEnvelopeBytes)
	if err != nil {
		message = err.Error()
		item.respond(func() {
			p.publisher.Failure(item.correlationID, message)
		})
		requestsTotal.WithLabelValues(outcomeFailure).Inc()
		return
	}
	method = req.Method

	op, err := license.ParseOperation(req.Method)
	if err != nil {
		logger.Warn("unknown operation requested", "method", req.Method)
		message = fmt.Sprintf("Unknown operation: %s", req.Method)
		item.respond(func() {
			p.publisher.Failure(item.correlationID, message)
		})
		requestsTotal.WithLabelValues(outcomeFailure).Inc()
		return
	}

	if err := ctx.Err(); err != nil {
		// Cancelled before the operation started; this is the only
		// cooperative checkpoint a worker has.
		message = "Server is shutting down"
		item.respond(func() {
			p.publisher.Failure(item.correlationID, message)
		})
		requestsTotal.WithLabelValues(outcomeShutdown).Inc()
		return
	}

	result, err := p.handler.Execute(op, req.Params)
	if err != nil {
		logger.Warn("operation failed", "method", req.Method, "error", err)
		message = err.Error()
		item.respond(func() {
			p.publisher.Failure(item.correlationID, message)
		})
		requestsTotal.WithLabelValues(outcomeFailure).Inc()
		return
	}

	success = true
	message = result.Message

	payload := result.Data
	if len(payload) == 0 && result.Message != "" {
		payload = []byte(result.Message)
	}
	item.respond(func() {
		p.publisher.Success(item.correlationID, payload)
	})
	requestsTotal.WithLabelValues(outcomeSuccess).Inc()

	logger.Debug("operation completed", "method", req.Method, "elapsed", time.Since(started))
}

func (p *Processor) sweep() {
	reclaimed := p.registry.Sweep(p.pool.IsAlive)
	if reclaimed > 0 {
		sweepReclaimedTotal.Add(float64(reclaimed))
		p.logger.Info("swept dead worker ids", "reclaimed", reclaimed, "remaining", p.registry.Len())
	}
}

func (p *Processor) recordAudit(correlationID, method string, success bool, message string, elapsed time.Duration) {
	if p.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.audit.RecordRequest(ctx, correlationID, method, success, message, elapsed); err != nil {
		p.logger.Error("failed to record audit entry", "correlation_id", correlationID, "error", err)
	}
}

// Close drains the processor: no new submissions are accepted, every live
// worker is joined with a bounded timeout, and workers that exceed it get a
// best-effort stop signal. Safe to call more than once.
func (p *Processor) Close() {
	if p.shuttingDown.Swap(true) {
		return
	}

	ids := p.registry.Snapshot()
	if len(ids) > 0 {
		p.logger.Info("shutting down, waiting for active workers", "count", len(ids))
	}

	// Join outside the registry lock; a worker erasing itself needs it.
	for _, id := range ids {
		if !p.pool.IsAlive(id) {
			continue
		}
		if !p.pool.Join(id, p.cfg.JoinTimeout) {
			p.logger.Warn("worker did not complete before timeout - possible deadlock",
				"worker_id", id, "timeout", p.cfg.JoinTimeout)
			p.pool.Stop(id)
		}
	}

	p.logger.Info("processor stopped")
}

// Stats is a point-in-time view for the status API.
type Stats struct {
	LiveWorkers  int    `json:"live_workers"`
	TrackedIDs   int    `json:"tracked_ids"`
	Processed    uint64 `json:"processed"`
	ShuttingDown bool   `json:"shutting_down"`
}

// Stats returns current processor counters.
func (p *Processor) Stats() Stats {
	return Stats{
		LiveWorkers:  p.pool.Live(),
		TrackedIDs:   p.registry.Len(),
		Processed:    p.requestCount.Load(),
		ShuttingDown: p.shuttingDown.Load(),
	}
}
