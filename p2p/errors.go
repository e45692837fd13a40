// Package p2p implements the L7 per-peer state machine: request
// multiplexing across the object/bootstrap/chain-sync families, rate
// limiting of unsolicited blocks, fail-count tracking with ban escalation,
// and the non-owning peer-list back-reference design from spec §9.
//
// Grounded on the teacher's protocol/peer package (readyPeers registry,
// MarkAsReady/ID/SelectedTipHash accessors) and app/protocol/flowcontext's
// peer map, generalized from a package-level singleton registry to an
// instance-owned List so multiple independent node instances (as in
// tests) never share global state.
package p2p

import "github.com/pkg/errors"

// ErrDisconnected is returned to every outstanding waiter when a peer's
// exit channel fires.
var ErrDisconnected = errors.New("peer disconnected")

// ErrObjectRequestTimedOut is returned when an object request's timeout
// elapses before a response (or disconnection) arrives.
var ErrObjectRequestTimedOut = errors.New("object request timed out")

// ErrInvalidObjectResponse is returned by the chain-sync slot's Resolve when
// a response arrives while no chain-sync request is outstanding. Object
// responses that match no waiter are dropped without an error.
var ErrInvalidObjectResponse = errors.New("invalid or unmatched object response")

// ErrObjectNotFound is returned by a responder-side lookup, not by the
// requester; kept here since it shares the same p2p error family.
var ErrObjectNotFound = errors.New("requested object not found")

// ErrInvalidBootstrapStep is returned when a bootstrap-chain response
// arrives while no bootstrap step is outstanding (the queue is empty).
var ErrInvalidBootstrapStep = errors.New("bootstrap step response out of order")

// ErrChainSyncAlreadyInFlight is returned when a second chain-sync request
// is attempted while one is already outstanding (the single-slot oneshot
// is occupied).
var ErrChainSyncAlreadyInFlight = errors.New("chain sync request already in flight")

// ErrUnsolicitedBlockRateExceeded is a punishable protocol violation: the
// peer sent unsolicited blocks faster than the sliding-window threshold
// allows.
var ErrUnsolicitedBlockRateExceeded = errors.New("unsolicited block rate exceeded")

// ErrPeerAlreadyReady mirrors the teacher's ErrPeerWithSameIDExists: a peer
// with the same ID is already registered in the list.
var ErrPeerAlreadyReady = errors.New("a ready peer with this ID already exists")

// ErrPeerBanned names the state of a peer whose fail count has crossed the
// ban threshold; no function in this package returns it.
var ErrPeerBanned = errors.New("peer is banned")
