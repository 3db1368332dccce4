package rpc

import "sync"

// workItem bundles one request for a worker. It is created once per inbound
// message and never recycled; the handoff slot is written exactly once by
// the dispatcher and read exactly once by the worker.
type workItem struct {
	payload       []byte
	correlationID string

	// idSlot carries the pool-assigned worker id from the dispatcher to
	// the worker. The dispatcher writes it only after the id is in the
	// registry; the worker blocks on it before touching anything else.
	idSlot chan uint64

	// respondOnce enforces at most one published response per request.
	respondOnce sync.Once
}

func newWorkItem(payload []byte, correlationID string) *workItem {
	return &workItem{
		payload:       payload,
		correlationID: correlationID,
		idSlot:        make(chan uint64, 1),
	}
}

// publishID hands the assigned id to the worker, unblocking it. Must be
// called exactly once, after the id has been inserted into the registry.
func (w *workItem) publishID(id uint64) {
	w.idSlot <- id
}

// awaitID blocks until the dispatcher publishes the assigned id.
func (w *workItem) awaitID() uint64 {
	return <-w.idSlot
}

// respond invokes fn unless a response has already been published for this
// item.
func (w *workItem) respond(fn func()) {
	w.respondOnce.Do(fn)
}
