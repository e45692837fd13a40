package blockprocessor

import "github.com/pkg/errors"

// ErrDuplicateBlock is returned when ProcessBlock is called with a header
// already recorded in block.Store.
var ErrDuplicateBlock = errors.New("block already processed")

// ErrNoParents is returned for a non-genesis header declaring zero parents.
var ErrNoParents = errors.New("block declares no parents")

// ErrTooManyParents is returned when a header's parent count exceeds
// block.MaxParents.
var ErrTooManyParents = errors.New("block declares too many parents")

// ErrDuplicateParent is returned when a header lists the same parent twice.
var ErrDuplicateParent = errors.New("block declares a duplicate parent")

// ErrParentNotFound is returned when a header names a parent this node has
// not itself accepted yet.
var ErrParentNotFound = errors.New("parent block not found")

// ErrTxsHashMismatch is returned when a block's declared tips_hash_of_txs
// does not match the hash of the transaction bodies actually supplied.
var ErrTxsHashMismatch = errors.New("transaction hash root does not match supplied transactions")

// ErrTimestampTooFarFuture is returned when a header's timestamp exceeds the
// network's timestamp deviation tolerance ahead of local time.
var ErrTimestampTooFarFuture = errors.New("block timestamp too far in the future")

// ErrProofOfWork is returned when a header's hash does not meet the
// difficulty target computed for its position in the DAG.
var ErrProofOfWork = errors.New("block does not meet its proof-of-work target")
