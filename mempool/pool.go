// Package mempool implements the pending-transaction half of L6: a pool of
// verified-but-unconfirmed transactions, nonce-sequence chaining per source
// account, fee-based prioritization, and capacity/TTL eviction, per spec
// §2's L6 row ("pending tx pool, nonce tracking, account/contract state
// mutators") and SPEC_FULL.md's mempool eviction-policy supplement.
//
// Grounded on the teacher's domain/mempool.TxPool and
// domain/miningmanager/mempool.transactionsPool, generalized from UTXO
// outpoint-chaining (a transaction depends on its parents' outputs) to this
// account model's nonce-sequence chaining (a transaction at nonce N depends
// on nonce N-1 from the same source already being confirmed or pending).
package mempool

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/transaction"
)

// NonceReader is the narrow capability the pool needs from chain state to
// decide which pending transactions are ready: just the confirmed nonce per
// account. transaction.AccountState and chainstate.Store both satisfy it.
type NonceReader interface {
	Nonce(account primitives.PublicKey) (uint64, error)
}

// Entry is one pending transaction tracked by the pool.
type Entry struct {
	Tx        *transaction.Transaction
	Hash      primitives.Hash
	AddedAtMs int64

	heapIndex int
}

// Pool holds verified-but-unconfirmed transactions. Safe for concurrent use.
type Pool struct {
	mu sync.RWMutex

	maxSize     int
	orphanTTLMs int64

	byHash        map[primitives.Hash]*Entry
	bySourceNonce map[primitives.PublicKey]map[uint64]*Entry
	feeOrder      minFeeHeap
}

// New returns an empty Pool. maxSize bounds the total number of pending
// entries (0 disables the bound); orphanTTLMs is how long a transaction may
// sit behind a missing predecessor nonce before ExpireStale evicts it,
// mirroring the teacher's orphanTTL for transactions that never find their
// missing parent.
func New(maxSize int, orphanTTLMs int64) *Pool {
	return &Pool{
		maxSize:       maxSize,
		orphanTTLMs:   orphanTTLMs,
		byHash:        make(map[primitives.Hash]*Entry),
		bySourceNonce: make(map[primitives.PublicKey]map[uint64]*Entry),
	}
}

// Add verifies tx against state (without mutating it, per readOnlyView) and,
// if it passes, admits it to the pool. A transaction whose nonce the chain
// has already consumed is rejected outright; one that lands on a
// (source, nonce) pair already occupied replaces the incumbent only if it
// pays a strictly higher fee (replace-by-fee), mirroring the teacher's
// checkPoolDoubleSpend policy generalized from outpoint conflicts to nonce
// conflicts.
func (p *Pool) Add(tx *transaction.Transaction, signingBytes []byte, state transaction.AccountState, vm transaction.ModuleValidator, nowMs int64) (*Entry, error) {
	hash, err := transaction.Hash(tx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[hash]; exists {
		return nil, ErrAlreadyInPool
	}

	chainNonce, err := state.Nonce(tx.Source)
	if err != nil {
		return nil, err
	}
	if tx.Nonce < chainNonce {
		return nil, &ErrNonceTooLow{Current: chainNonce, Attempted: tx.Nonce}
	}

	if bySource, ok := p.bySourceNonce[tx.Source]; ok {
		if existing, ok := bySource[tx.Nonce]; ok {
			if tx.Fee <= existing.Tx.Fee {
				return nil, ErrReplacementUnderpriced
			}
			p.removeLocked(existing.Hash)
		}
	}

	view := &readOnlyView{AccountState: state}
	if err := transaction.Verify(view, vm, tx, signingBytes); err != nil {
		return nil, err
	}

	entry := &Entry{Tx: tx, Hash: hash, AddedAtMs: nowMs}
	p.byHash[hash] = entry
	bySource, ok := p.bySourceNonce[tx.Source]
	if !ok {
		bySource = make(map[uint64]*Entry)
		p.bySourceNonce[tx.Source] = bySource
	}
	bySource[tx.Nonce] = entry
	heap.Push(&p.feeOrder, entry)

	p.evictIfOverCapacityLocked()
	return entry, nil
}

// Get returns the pending entry for hash, if any.
func (p *Pool) Get(hash primitives.Hash) (*Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byHash[hash]
	return e, ok
}

// Len returns the number of pending entries.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// Remove drops hash from the pool, if present. Removing a transaction never
// cascades to transactions chained behind it: they simply remain pending,
// no longer ready, until something else fills the gap or they expire.
func (p *Pool) Remove(hash primitives.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash primitives.Hash) {
	entry, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if bySource, ok := p.bySourceNonce[entry.Tx.Source]; ok {
		delete(bySource, entry.Tx.Nonce)
		if len(bySource) == 0 {
			delete(p.bySourceNonce, entry.Tx.Source)
		}
	}
	heap.Remove(&p.feeOrder, entry.heapIndex)
}

// RemoveMined drops every hash in mined from the pool, per spec's data flow:
// once a block commits, its transactions leave every other pending pool.
// Grounded on the teacher's HandleNewBlock/RemoveTransactions.
func (p *Pool) RemoveMined(mined []primitives.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range mined {
		p.removeLocked(h)
	}
}

// PruneStaleNonces drops every pending entry whose nonce has fallen behind
// chain's current nonce for its source: once some other transaction at that
// nonce has been mined, this entry's nonce CAS can never succeed again (spec
// invariant 7), so it would otherwise sit in the pool forever.
func (p *Pool) PruneStaleNonces(chain NonceReader) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for source, bySource := range p.bySourceNonce {
		chainNonce, err := chain.Nonce(source)
		if err != nil {
			return err
		}
		for nonce, entry := range bySource {
			if nonce < chainNonce {
				p.removeLocked(entry.Hash)
			}
		}
	}
	return nil
}

// ExpireStale evicts pending entries that are not part of their source's
// contiguous ready run (i.e. sit behind a missing predecessor nonce) and
// have been pending longer than orphanTTLMs, mirroring the teacher's orphan
// TTL eviction (domain/mempool.orphanTTL) generalized from "missing parent
// output" to "missing predecessor nonce".
func (p *Pool) ExpireStale(nowMs int64, chain NonceReader) error {
	if p.orphanTTLMs <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for source, bySource := range p.bySourceNonce {
		chainNonce, err := chain.Nonce(source)
		if err != nil {
			return err
		}
		readyThrough := chainNonce
		for {
			if _, ok := bySource[readyThrough]; !ok {
				break
			}
			readyThrough++
		}
		for nonce, entry := range bySource {
			if nonce < readyThrough {
				continue
			}
			if nowMs-entry.AddedAtMs > p.orphanTTLMs {
				p.removeLocked(entry.Hash)
			}
		}
	}
	return nil
}

// ReadyTransactions returns, per source account, the maximal contiguous run
// of pending transactions starting at that account's current chain nonce —
// the set immediately includable in the next block, per spec §4.4's
// sequential nonce-CAS requirement. The result is sorted by descending fee,
// mirroring the teacher's allReadyTransactions plus fee-rate ordering,
// generalized from UTXO-outpoint chaining to nonce-sequence chaining.
func (p *Pool) ReadyTransactions(chain NonceReader) ([]*Entry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ready []*Entry
	for source, bySource := range p.bySourceNonce {
		nonce, err := chain.Nonce(source)
		if err != nil {
			return nil, err
		}
		for {
			entry, ok := bySource[nonce]
			if !ok {
				break
			}
			ready = append(ready, entry)
			nonce++
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Tx.Fee != ready[j].Tx.Fee {
			return ready[i].Tx.Fee > ready[j].Tx.Fee
		}
		return ready[i].AddedAtMs < ready[j].AddedAtMs
	})
	return ready, nil
}

// evictIfOverCapacityLocked drops the lowest-fee pending entry, repeatedly,
// until the pool is back at or under maxSize. Mirrors the teacher's
// limitTransactionCount.
func (p *Pool) evictIfOverCapacityLocked() {
	for p.maxSize > 0 && len(p.byHash) > p.maxSize {
		if p.feeOrder.Len() == 0 {
			return
		}
		victim := p.feeOrder[0]
		p.removeLocked(victim.Hash)
	}
}
