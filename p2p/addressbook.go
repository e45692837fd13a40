package p2p

import (
	"math/rand"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// ErrAddressNotFound is returned by AddressBook operations that require an
// already-known address.
var ErrAddressNotFound = errors.New("address not found")

// Endpoint is a candidate peer network location: a bare IP:port pair,
// deliberately independent of primitives.Hash (a peer's identity hash is
// only known once connected; the address book deals purely in where to
// dial).
type Endpoint struct {
	Host string
	Port uint16
}

// key is the map key for an Endpoint.
type key string

func keyOf(e Endpoint) key {
	return key(e.Host + ":" + strconv.Itoa(int(e.Port)))
}

// AddressBook tracks known peer endpoints for the connection manager to dial
// and bans misbehaving ones. Grounded on the teacher's
// infrastructure/network/addressmanager.AddressManager, generalized from
// appmessage.NetAddress (the teacher's wire-level address type, tied to the
// out-of-scope gRPC/wire transport) to the bare Endpoint this package
// already needs nothing else to define, and from its DNS/local-address
// discovery machinery (out of scope: this core never dials, it only tracks
// candidates for a connection manager that is itself out of scope) down to
// the add/remove/ban/random-selection core the spec's DOMAIN STACK table
// calls out explicitly.
type AddressBook struct {
	mu      sync.Mutex
	known   map[key]Endpoint
	banned  map[key]Endpoint
}

// NewAddressBook returns an empty AddressBook.
func NewAddressBook() *AddressBook {
	return &AddressBook{
		known:  make(map[key]Endpoint),
		banned: make(map[key]Endpoint),
	}
}

// Add registers endpoint as a known, dialable candidate, if not already
// banned.
func (b *AddressBook) Add(e Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := keyOf(e)
	if _, banned := b.banned[k]; banned {
		return
	}
	if _, ok := b.known[k]; !ok {
		b.known[k] = e
	}
}

// Remove drops endpoint from both the known and banned sets.
func (b *AddressBook) Remove(e Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := keyOf(e)
	delete(b.known, k)
	delete(b.banned, k)
}

// Known returns every currently known, non-banned endpoint.
func (b *AddressBook) Known() []Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Endpoint, 0, len(b.known))
	for _, e := range b.known {
		out = append(out, e)
	}
	return out
}

// Ban moves endpoint from the known set into the banned set.
func (b *AddressBook) Ban(e Endpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := keyOf(e)
	addr, ok := b.known[k]
	if !ok {
		return errors.Wrapf(ErrAddressNotFound, "%s:%d", e.Host, e.Port)
	}
	delete(b.known, k)
	b.banned[k] = addr
	return nil
}

// IsBanned reports whether endpoint is currently banned.
func (b *AddressBook) IsBanned(e Endpoint) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.banned[keyOf(e)]
	return ok
}

// Random returns up to n known, non-banned endpoints chosen at random,
// excluding any endpoint present in exceptions.
func (b *AddressBook) Random(n int, exceptions []Endpoint) []Endpoint {
	excluded := make(map[key]bool, len(exceptions))
	for _, e := range exceptions {
		excluded[keyOf(e)] = true
	}

	b.mu.Lock()
	candidates := make([]Endpoint, 0, len(b.known))
	for k, e := range b.known {
		if !excluded[k] {
			candidates = append(candidates, e)
		}
	}
	b.mu.Unlock()

	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}
