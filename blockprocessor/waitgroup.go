package blockprocessor

import (
	"sync"
	"sync/atomic"
)

// shutdownGroup tracks the background goroutines a Processor spawns (the
// stale-nonce pruning loop, any future periodic maintenance task) so Close
// can wait for them to exit before returning. Grounded on the teacher's
// util/locks.waitGroup, kept nearly verbatim since it is pure ambient
// synchronization infrastructure independent of the domain change; renamed
// from the teacher's unexported package-private type into this package's
// own shutdownGroup since util/locks otherwise has nothing left worth a
// standalone package once this is its only consumer.
type shutdownGroup struct {
	counter  int64
	waitCond *sync.Cond
}

func newShutdownGroup() *shutdownGroup {
	return &shutdownGroup{waitCond: sync.NewCond(&sync.Mutex{})}
}

func (g *shutdownGroup) add() {
	atomic.AddInt64(&g.counter, 1)
}

func (g *shutdownGroup) done() {
	counter := atomic.AddInt64(&g.counter, -1)
	if counter < 0 {
		panic("shutdownGroup.done called more times than add")
	}
	if counter == 0 {
		g.waitCond.Broadcast()
	}
}

func (g *shutdownGroup) wait() {
	g.waitCond.L.Lock()
	defer g.waitCond.L.Unlock()
	for atomic.LoadInt64(&g.counter) != 0 {
		g.waitCond.Wait()
	}
}
