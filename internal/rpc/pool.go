package rpc

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/urlic/licenced/internal/log"
)

// ErrPoolFull means no execution slot was free at submission time. The
// caller treats this as recoverable and falls back to synchronous execution.
var ErrPoolFull = errors.New("worker pool is full")

// Pool is a bounded-concurrency executor. Each submission runs on its own
// goroutine, keyed by an opaque identifier the pool assigns. The pool itself
// never panics across its API boundary; all failure is communicated through
// return values.
//
// A Pool is shared by pointer between the dispatcher and in-flight worker
// closures; its storage is reclaimed by the garbage collector once the last
// referent drops it, so a worker querying its own liveness can never dangle.
type Pool struct {
	sem    *semaphore.Weighted
	nextID atomic.Uint64
	logger *slog.Logger

	mu      sync.Mutex
	workers map[uint64]*worker
}

type worker struct {
	done   chan struct{}
	cancel context.CancelFunc
}

// NewPool creates a pool with the given capacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(capacity)),
		workers: make(map[uint64]*worker),
		logger:  log.WithComponent("pool"),
	}
}

// Submit schedules fn for execution and returns its assigned id. It fails
// fast with ErrPoolFull when every slot is taken. The context passed to fn
// is cancelled by Stop; fn observes it only at cooperative checkpoints.
//
// The returned id is published to the pool's bookkeeping before fn can
// observe it through any channel the caller controls; the caller is
// responsible for its own registration ordering (see Processor).
func (p *Pool) Submit(fn func(ctx context.Context)) (uint64, error) {
	if !p.sem.TryAcquire(1) {
		return 0, ErrPoolFull
	}

	id := p.nextID.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{done: make(chan struct{}), cancel: cancel}

	p.mu.Lock()
	p.workers[id] = w
	p.mu.Unlock()
	liveWorkers.Inc()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				p.logger.Error("worker panic escaped closure", "worker_id", id, "panic", r, "stack", string(buf[:n]))
			}
			p.mu.Lock()
			delete(p.workers, id)
			p.mu.Unlock()
			close(w.done)
			cancel()
			liveWorkers.Dec()
			p.sem.Release(1)
		}()
		fn(ctx)
	}()

	return id, nil
}

// IsAlive reports whether the execution context for id has not yet returned.
func (p *Pool) IsAlive(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.workers[id]
	return ok
}

// Join blocks until the worker for id finishes or the timeout elapses, and
// reports whether it finished. Safe to call concurrently with IsAlive and
// with the worker still running; joining an unknown or already-finished id
// returns true immediately.
func (p *Pool) Join(id uint64, timeout time.Duration) bool {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}

// Stop sends a best-effort cooperative cancellation signal to the worker for
// id. It does not guarantee termination; workers without checkpoints run to
// completion regardless.
func (p *Pool) Stop(id uint64) {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if ok {
		w.cancel()
	}
}

// Live returns the number of workers that have not yet returned.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
