package p2p

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/tos-network/tos-core/primitives"
)

// TaskState is the lifecycle of one of a Peer's two tasks (read, write).
// Grounded on the teacher's atomic `ready` flag on Peer, generalized from
// a single ready/not-ready bit into the full lifecycle spec §4.5 names.
type TaskState uint32

const (
	TaskUnknown TaskState = iota
	TaskInactive
	TaskActive
	TaskExiting
	TaskFinished
)

func (s TaskState) String() string {
	switch s {
	case TaskInactive:
		return "Inactive"
	case TaskActive:
		return "Active"
	case TaskExiting:
		return "Exiting"
	case TaskFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// PeerRemover is the non-owning back-reference a Peer holds to the list
// that registered it, per spec §9's shared-peer-list design note: the
// peer can ask to be removed without owning (or import-cycling into) the
// list type itself. Grounded on the teacher's package-level
// readyPeers/AddToReadyPeers/IDExists registry, generalized into an
// interface so any registry implementation (or a test double) can back
// it.
type PeerRemover interface {
	RemovePeer(id primitives.Hash)
}

// unsolicitedBlockLimiter is a CAS-guarded sliding 1-second-window counter:
// exceeding the configured threshold within the window is a punishable
// protocol violation (spec §4.5). Implemented as two packed atomics rather
// than a mutex so a hot receive path never blocks on peer-local state.
type unsolicitedBlockLimiter struct {
	windowStartMs int64 // unix ms, 0 until first count
	count         int32
	limit         int32
	windowMs      int64
}

func newUnsolicitedBlockLimiter(limit int, window time.Duration) *unsolicitedBlockLimiter {
	return &unsolicitedBlockLimiter{limit: int32(limit), windowMs: window.Milliseconds()}
}

// Count records one unsolicited block and reports whether this peer has
// exceeded the rate limit within the current window.
func (l *unsolicitedBlockLimiter) Count(nowMs int64) bool {
	for {
		start := atomic.LoadInt64(&l.windowStartMs)
		if start == 0 || nowMs-start >= l.windowMs {
			if atomic.CompareAndSwapInt64(&l.windowStartMs, start, nowMs) {
				atomic.StoreInt32(&l.count, 1)
				return false
			}
			continue
		}
		n := atomic.AddInt32(&l.count, 1)
		return n > l.limit
	}
}

// failCounter tracks consecutive peer failures, auto-resetting after the
// peer has been idle (no new failures) for FailTimeReset. Exceeding
// FailBanThreshold is a close+ban per spec §4.5.
type failCounter struct {
	mu           sync.Mutex
	count        int
	lastFailure  time.Time
	resetAfter   time.Duration
	banThreshold int
}

func newFailCounter(resetAfter time.Duration, banThreshold int) *failCounter {
	return &failCounter{resetAfter: resetAfter, banThreshold: banThreshold}
}

// Fail records a failure at now and reports whether the peer has crossed
// the ban threshold.
func (f *failCounter) Fail(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.lastFailure.IsZero() && now.Sub(f.lastFailure) >= f.resetAfter {
		f.count = 0
	}
	f.count++
	f.lastFailure = now
	return f.count > f.banThreshold
}

// Count returns the current fail count (for inspection/metrics).
func (f *failCounter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// ChainState is the subset of a remote peer's advertised chain position
// used for chain-selection comparisons across peers (spec §4.5): ordering
// uses BlueWork, never height or topoheight alone.
type ChainState struct {
	TopHash          primitives.Hash
	Height           uint64
	Topoheight       uint64
	PrunedTopoheight *uint64
	BlueWork         primitives.BlueWork
}

// Peer is one connected remote node: its two tasks' lifecycle, outbound
// byte channel, exit broadcast, request multiplexing, rate limiting, and
// propagation caches. Grounded on the teacher's protocol/peer.Peer
// (selectedTipHash/id/services/protocolVersion fields and ready-gated
// accessors), generalized from a single "ready" bit to the full per-task
// state machine and BlueWork-based chain comparison spec §4.5 requires.
type Peer struct {
	id       primitives.Hash
	endpoint Endpoint
	priority bool // set only from local config; never promoted remotely

	readState  uint32 // atomic TaskState
	writeState uint32 // atomic TaskState

	outbound chan []byte
	exitOnce sync.Once
	exitCh   chan struct{}

	chainMu    sync.RWMutex
	chainState ChainState

	unsolicited *unsolicitedBlockLimiter
	fails       *failCounter

	objects   *objectRequestTable
	bootstrap *bootstrapQueue
	chainSync *chainSyncSlot

	txCache    *lru.Cache
	blockCache *lru.Cache

	propagateTxsMu sync.Mutex
	propagateTxs   bool // gated until the peer has sent its inventory

	remover PeerRemover
	cfg     PeerConfig
}

// New constructs a Peer identified by id, dialable at endpoint, backed by
// remover for self-removal from the owning list. priority must only ever
// be set true from local configuration (seed nodes, operator-added peers)
// — never in response to anything the remote peer does.
func New(id primitives.Hash, endpoint Endpoint, priority bool, remover PeerRemover, cfg PeerConfig) (*Peer, error) {
	cfg = cfg.withDefaults()

	txCache, err := lru.New(cfg.TxCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "tx cache")
	}
	blockCache, err := lru.New(cfg.BlockCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "block cache")
	}

	p := &Peer{
		id:          id,
		endpoint:    endpoint,
		priority:    priority,
		outbound:    make(chan []byte, cfg.OutboundQueueSize),
		exitCh:      make(chan struct{}),
		unsolicited: newUnsolicitedBlockLimiter(cfg.UnsolicitedBlockRateLimit, cfg.UnsolicitedBlockWindow),
		fails:       newFailCounter(cfg.FailTimeReset, cfg.FailBanThreshold),
		txCache:     txCache,
		blockCache:  blockCache,
		remover:     remover,
		cfg:         cfg,
	}
	p.objects = newObjectRequestTable(cfg.ObjectsConcurrency)
	p.bootstrap = newBootstrapQueue()
	p.chainSync = newChainSyncSlot()

	atomic.StoreUint32(&p.readState, uint32(TaskInactive))
	atomic.StoreUint32(&p.writeState, uint32(TaskInactive))
	return p, nil
}

// ID returns the peer's identifier.
func (p *Peer) ID() primitives.Hash { return p.id }

// Endpoint returns the network location this peer was dialed at or
// accepted from.
func (p *Peer) Endpoint() Endpoint { return p.endpoint }

// Priority reports whether this is an operator-configured priority peer,
// exempt from temp-ban and allowed to trigger deep rewinds.
func (p *Peer) Priority() bool { return p.priority }

// ReadState and WriteState report the current lifecycle of each task.
func (p *Peer) ReadState() TaskState  { return TaskState(atomic.LoadUint32(&p.readState)) }
func (p *Peer) WriteState() TaskState { return TaskState(atomic.LoadUint32(&p.writeState)) }

// SetReadState and SetWriteState transition a task's lifecycle state.
func (p *Peer) SetReadState(s TaskState)  { atomic.StoreUint32(&p.readState, uint32(s)) }
func (p *Peer) SetWriteState(s TaskState) { atomic.StoreUint32(&p.writeState, uint32(s)) }

// Send enqueues a packet on the bounded outbound channel, applying
// back-pressure on the writer. Returns ErrDisconnected if the peer's exit
// channel fires first.
func (p *Peer) Send(packet []byte) error {
	select {
	case <-p.exitCh:
		return ErrDisconnected
	default:
	}
	select {
	case p.outbound <- packet:
		return nil
	case <-p.exitCh:
		return ErrDisconnected
	}
}

// Outbound exposes the outbound channel for the write task to drain.
func (p *Peer) Outbound() <-chan []byte { return p.outbound }

// Exit returns the broadcast exit channel: closed exactly once, by
// SignalExit, so every select on it wakes simultaneously.
func (p *Peer) Exit() <-chan struct{} { return p.exitCh }

// SignalExit closes the exit channel (idempotent), causing both tasks and
// every outstanding multiplexed request to resolve to Disconnected, and
// unregisters the peer from its owning list.
func (p *Peer) SignalExit() {
	p.exitOnce.Do(func() {
		close(p.exitCh)
		p.objects.cancelAll()
		p.bootstrap.cancelAll()
		p.chainSync.cancel()
		if p.remover != nil {
			p.remover.RemovePeer(p.id)
		}
	})
}

// RecordUnsolicitedBlock counts one unsolicited block at now and reports
// whether the peer has exceeded the sliding-window rate limit — a
// punishable protocol violation per spec §4.5.
func (p *Peer) RecordUnsolicitedBlock(now time.Time) bool {
	return p.unsolicited.Count(now.UnixMilli())
}

// RecordFailure records a protocol failure at now and reports whether the
// peer should be closed and banned. Priority peers are exempt from the
// ban even when the threshold is crossed.
func (p *Peer) RecordFailure(now time.Time) bool {
	banned := p.fails.Fail(now)
	return banned && !p.priority
}

// FailCount returns the current consecutive-failure count.
func (p *Peer) FailCount() int { return p.fails.Count() }

// ChainState returns the peer's last-advertised chain position.
func (p *Peer) ChainState() ChainState {
	p.chainMu.RLock()
	defer p.chainMu.RUnlock()
	return p.chainState
}

// SetChainState updates the peer's advertised chain position, e.g. on
// receipt of an inventory or header announcement.
func (p *Peer) SetChainState(s ChainState) {
	p.chainMu.Lock()
	defer p.chainMu.Unlock()
	p.chainState = s
}

// Outranks reports whether this peer's advertised chain should be
// preferred over other's, per spec §4.5: comparison is by BlueWork only,
// never height or topoheight.
func (p *Peer) Outranks(other *Peer) bool {
	a, b := p.ChainState(), other.ChainState()
	return a.BlueWork.Cmp(b.BlueWork) > 0
}

// SeenTx and MarkSeenTx dedup transaction propagation per direction,
// backed by the peer's tx LRU.
func (p *Peer) SeenTx(hash primitives.Hash) bool {
	_, ok := p.txCache.Get(hash)
	return ok
}
func (p *Peer) MarkSeenTx(hash primitives.Hash) { p.txCache.Add(hash, struct{}{}) }

// SeenBlock and MarkSeenBlock dedup block propagation per direction,
// backed by the peer's block LRU.
func (p *Peer) SeenBlock(hash primitives.Hash) bool {
	_, ok := p.blockCache.Get(hash)
	return ok
}
func (p *Peer) MarkSeenBlock(hash primitives.Hash) { p.blockCache.Add(hash, struct{}{}) }

// ReadyForMempool reports whether this peer has sent its inventory, and
// so may now receive ours — the propagate_txs gate from spec §4.5,
// preventing ordering violations at the receiver.
func (p *Peer) ReadyForMempool() bool {
	p.propagateTxsMu.Lock()
	defer p.propagateTxsMu.Unlock()
	return p.propagateTxs
}

// MarkInventoryReceived opens the propagate_txs gate.
func (p *Peer) MarkInventoryReceived() {
	p.propagateTxsMu.Lock()
	defer p.propagateTxsMu.Unlock()
	p.propagateTxs = true
}

// Objects, Bootstrap, and ChainSync expose the three request-multiplexing
// families (spec §4.5's request-family table).
func (p *Peer) Objects() *objectRequestTable { return p.objects }
func (p *Peer) Bootstrap() *bootstrapQueue   { return p.bootstrap }
func (p *Peer) ChainSync() *chainSyncSlot    { return p.chainSync }
