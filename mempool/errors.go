package mempool

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrAlreadyInPool is returned when a transaction with the same wire hash is
// already pending.
var ErrAlreadyInPool = errors.New("transaction already in mempool")

// ErrReplacementUnderpriced is returned when a transaction arrives at a
// (source, nonce) pair already occupied by a pending transaction, but does
// not pay a strictly higher fee than the one it would displace.
var ErrReplacementUnderpriced = errors.New("replacement transaction does not exceed the fee of the transaction it would replace")

// ErrNonceTooLow is returned when a transaction's nonce has already been
// consumed on chain, per spec's nonce-CAS invariant: once chain advances
// past a nonce, no transaction at or below it can ever apply again.
type ErrNonceTooLow struct {
	Current, Attempted uint64
}

func (e *ErrNonceTooLow) Error() string {
	return fmt.Sprintf("mempool: nonce %d already consumed, chain is at %d", e.Attempted, e.Current)
}
