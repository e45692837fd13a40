package p2p

import (
	"sync"

	"github.com/tos-network/tos-core/primitives"
)

// List is the shared registry of currently-connected peers. Grounded on
// the teacher's package-level readyPeers/AddToReadyPeers/GetReadyPeerIDs
// functions, generalized from global state into an instance-owned type so
// each node (and each test) gets its own registry, and so a Peer's
// back-reference to it (PeerRemover) is an interface rather than a direct
// dependency on this package — per spec §9's non-owning-reference design
// note: the list holds weak (lookup-only) references, never the other way
// around.
type List struct {
	mu    sync.RWMutex
	peers map[primitives.Hash]*Peer
	book  *AddressBook
}

// NewList returns an empty peer list, backed by its own AddressBook of
// dialable endpoints.
func NewList() *List {
	return &List{peers: make(map[primitives.Hash]*Peer), book: NewAddressBook()}
}

// Book returns the list's address book, for a connection manager to read
// candidates from when it needs to dial out.
func (l *List) Book() *AddressBook { return l.book }

// Add registers peer, marking it ready for lookup, and records its
// endpoint in the address book as a future dial candidate. Returns
// ErrPeerAlreadyReady if a peer with the same ID is already registered.
func (l *List) Add(peer *Peer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.peers[peer.ID()]; ok {
		return ErrPeerAlreadyReady
	}
	l.peers[peer.ID()] = peer
	l.book.Add(peer.Endpoint())
	return nil
}

// RemovePeer implements PeerRemover: it is what a Peer calls on itself via
// its back-reference when it signals exit.
func (l *List) RemovePeer(id primitives.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, id)
}

// BanPeer bans the registered peer's endpoint in the address book so a
// connection manager never redials it, then signals the peer to exit.
// Returns ErrPeerAlreadyReady's counterpart false if no such peer is
// registered.
func (l *List) BanPeer(id primitives.Hash) bool {
	l.mu.RLock()
	peer, ok := l.peers[id]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	_ = l.book.Ban(peer.Endpoint())
	peer.SignalExit()
	return true
}

// Get returns the peer registered under id, if any.
func (l *List) Get(id primitives.Hash) (*Peer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.peers[id]
	return p, ok
}

// IDExists reports whether a peer with id is currently registered.
func (l *List) IDExists(id primitives.Hash) bool {
	_, ok := l.Get(id)
	return ok
}

// All returns a snapshot slice of every currently registered peer.
func (l *List) All() []*Peer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Peer, 0, len(l.peers))
	for _, p := range l.peers {
		out = append(out, p)
	}
	return out
}

// Len returns the number of currently registered peers.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.peers)
}

// BestChain returns the peer with the highest advertised BlueWork (spec
// §4.5's chain-selection-across-peers rule), or nil if the list is empty.
func (l *List) BestChain() *Peer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var best *Peer
	for _, p := range l.peers {
		if best == nil || p.Outranks(best) {
			best = p
		}
	}
	return best
}
