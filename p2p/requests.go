package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/tos-network/tos-core/primitives"
)

// ErrBootstrapStepTimedOut is returned when a bootstrap-chain step's
// timeout elapses before a response (or disconnection) arrives.
var ErrBootstrapStepTimedOut = errors.New("bootstrap step timed out")

// ErrChainSyncTimedOut is returned when a chain-sync request's timeout
// elapses before a response (or disconnection) arrives.
var ErrChainSyncTimedOut = errors.New("chain sync request timed out")

// oneshotWaiter is resolved exactly once, by closing done; resp/err are
// only meaningful after done is closed.
type oneshotWaiter struct {
	done chan struct{}
	resp []byte
	err  error
}

func newOneshotWaiter() *oneshotWaiter { return &oneshotWaiter{done: make(chan struct{})} }

// objectRequestTable implements the object-request family (spec §4.5):
// in-flight requests keyed by object id, with duplicate requests for the
// same id subscribing to the original's resolution rather than issuing a
// second wire request. objects_semaphore bounds how many requests this
// peer may have genuinely outstanding on the wire at once.
type objectRequestTable struct {
	mu       sync.Mutex
	inFlight map[primitives.Hash]*oneshotWaiter
	sem      *semaphore.Weighted
}

func newObjectRequestTable(concurrency int) *objectRequestTable {
	return &objectRequestTable{
		inFlight: make(map[primitives.Hash]*oneshotWaiter),
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

// Request joins or starts an outstanding request for hash. If leader is
// true, the caller is the one who must actually send the wire request and
// is responsible for eventually calling Fulfill or Fail with the same
// hash; a follower only waits on someone else's resolution.
func (t *objectRequestTable) Request(ctx context.Context, hash primitives.Hash, exit <-chan struct{}, timeout time.Duration) (resp []byte, leader bool, err error) {
	t.mu.Lock()
	if w, ok := t.inFlight[hash]; ok {
		t.mu.Unlock()
		return t.wait(w, hash, false, exit, timeout)
	}
	w := newOneshotWaiter()
	t.inFlight[hash] = w
	t.mu.Unlock()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.mu.Lock()
		delete(t.inFlight, hash)
		t.mu.Unlock()
		return nil, false, err
	}
	return t.wait(w, hash, true, exit, timeout)
}

func (t *objectRequestTable) wait(w *oneshotWaiter, hash primitives.Hash, leader bool, exit <-chan struct{}, timeout time.Duration) ([]byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return w.resp, leader, w.err
	case <-exit:
		if leader {
			t.Fail(hash, ErrDisconnected)
		}
		return nil, leader, ErrDisconnected
	case <-timer.C:
		if leader {
			t.Fail(hash, ErrObjectRequestTimedOut)
		}
		return nil, leader, ErrObjectRequestTimedOut
	}
}

// Fulfill resolves hash's outstanding request with resp, waking the
// leader and every follower. A hash with no outstanding request (already
// timed out, or never requested) is silently discarded, per spec's "late
// responses are discarded" cancellation rule.
func (t *objectRequestTable) Fulfill(hash primitives.Hash, resp []byte) {
	t.resolve(hash, resp, nil)
}

// Fail resolves hash's outstanding request with err.
func (t *objectRequestTable) Fail(hash primitives.Hash, err error) {
	t.resolve(hash, nil, err)
}

func (t *objectRequestTable) resolve(hash primitives.Hash, resp []byte, err error) {
	t.mu.Lock()
	w, ok := t.inFlight[hash]
	if ok {
		delete(t.inFlight, hash)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	w.resp, w.err = resp, err
	close(w.done)
	t.sem.Release(1)
}

func (t *objectRequestTable) cancelAll() {
	t.mu.Lock()
	waiters := t.inFlight
	t.inFlight = make(map[primitives.Hash]*oneshotWaiter)
	t.mu.Unlock()
	for _, w := range waiters {
		w.err = ErrDisconnected
		close(w.done)
		t.sem.Release(1)
	}
}

// bootstrapQueue implements the bootstrap-chain-step family (spec §4.5):
// a FIFO queue of oneshot waiters, relying on TCP to preserve response
// order. A step that times out or is cancelled by exit is left in place
// rather than removed, so the FIFO ordering for everything behind it is
// unaffected — its eventual (late) response is simply discarded, since
// nothing still reads from its already-resolved-by-timeout waiter.
type bootstrapQueue struct {
	mu    sync.Mutex
	queue []*oneshotWaiter
}

func newBootstrapQueue() *bootstrapQueue { return &bootstrapQueue{} }

// Enqueue registers a new outstanding bootstrap step request.
func (q *bootstrapQueue) Enqueue() *oneshotWaiter {
	w := newOneshotWaiter()
	q.mu.Lock()
	q.queue = append(q.queue, w)
	q.mu.Unlock()
	return w
}

// Resolve matches resp to the oldest outstanding step and resolves it.
// ErrInvalidBootstrapStep signals a response with no corresponding
// request (the queue is empty).
func (q *bootstrapQueue) Resolve(resp []byte) error {
	q.mu.Lock()
	if len(q.queue) == 0 {
		q.mu.Unlock()
		return ErrInvalidBootstrapStep
	}
	w := q.queue[0]
	q.queue = q.queue[1:]
	q.mu.Unlock()
	w.resp = resp
	close(w.done)
	return nil
}

// Wait blocks on w until it resolves, the peer's exit channel fires, or
// timeout elapses.
func (q *bootstrapQueue) Wait(w *oneshotWaiter, exit <-chan struct{}, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return w.resp, w.err
	case <-exit:
		return nil, ErrDisconnected
	case <-timer.C:
		return nil, ErrBootstrapStepTimedOut
	}
}

func (q *bootstrapQueue) cancelAll() {
	q.mu.Lock()
	queue := q.queue
	q.queue = nil
	q.mu.Unlock()
	for _, w := range queue {
		w.err = ErrDisconnected
		close(w.done)
	}
}

// chainSyncSlot implements the chain-sync family (spec §4.5): only one
// chain request may be outstanding at a time.
type chainSyncSlot struct {
	mu     sync.Mutex
	active *oneshotWaiter
}

func newChainSyncSlot() *chainSyncSlot { return &chainSyncSlot{} }

// Begin occupies the single slot, or fails with
// ErrChainSyncAlreadyInFlight if it is already occupied.
func (s *chainSyncSlot) Begin() (*oneshotWaiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrChainSyncAlreadyInFlight
	}
	w := newOneshotWaiter()
	s.active = w
	return w, nil
}

// Resolve resolves the occupying request, freeing the slot.
func (s *chainSyncSlot) Resolve(resp []byte) error {
	s.mu.Lock()
	w := s.active
	s.active = nil
	s.mu.Unlock()
	if w == nil {
		return ErrInvalidObjectResponse
	}
	w.resp = resp
	close(w.done)
	return nil
}

// Wait blocks on w, freeing the slot itself on timeout or disconnection so
// a subsequent chain-sync request is not stuck waiting forever behind an
// abandoned one.
func (s *chainSyncSlot) Wait(w *oneshotWaiter, exit <-chan struct{}, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return w.resp, w.err
	case <-exit:
		s.release(w)
		return nil, ErrDisconnected
	case <-timer.C:
		s.release(w)
		return nil, ErrChainSyncTimedOut
	}
}

func (s *chainSyncSlot) release(w *oneshotWaiter) {
	s.mu.Lock()
	if s.active == w {
		s.active = nil
	}
	s.mu.Unlock()
}

func (s *chainSyncSlot) cancel() {
	s.mu.Lock()
	w := s.active
	s.active = nil
	s.mu.Unlock()
	if w != nil {
		w.err = ErrDisconnected
		close(w.done)
	}
}
