package p2p

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/tos-network/tos-core/primitives"
)

func testHash(b byte) primitives.Hash {
	var h primitives.Hash
	h[0] = b
	return h
}

func newTestPeer(t *testing.T, list *List, priority bool) *Peer {
	t.Helper()
	p, err := New(testHash(1), Endpoint{Host: "127.0.0.1", Port: 8111}, priority, list, PeerConfig{
		ObjectRequestTimeout: 50 * time.Millisecond,
		BootstrapStepTimeout: 50 * time.Millisecond,
		ChainSyncTimeout:     50 * time.Millisecond,
		FailTimeReset:        50 * time.Millisecond,
		FailBanThreshold:     3,

		UnsolicitedBlockRateLimit: 2,
		UnsolicitedBlockWindow:    time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestUnsolicitedBlockRateLimit(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	now := time.Unix(1000, 0)
	if p.RecordUnsolicitedBlock(now) {
		t.Fatal("first block should not exceed the limit")
	}
	if p.RecordUnsolicitedBlock(now) {
		t.Fatal("second block (at limit) should not exceed")
	}
	if !p.RecordUnsolicitedBlock(now) {
		t.Fatal("third block within the same window should exceed the limit")
	}
	// A new window resets the count.
	later := now.Add(2 * time.Second)
	if p.RecordUnsolicitedBlock(later) {
		t.Fatal("first block in a fresh window should not exceed the limit")
	}
}

func TestFailCounterBanAndReset(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	now := time.Unix(2000, 0)
	for i := 0; i < 3; i++ {
		if p.RecordFailure(now) {
			t.Fatalf("failure %d should not yet cross the ban threshold", i)
		}
	}
	if !p.RecordFailure(now) {
		t.Fatal("fourth failure should cross the ban threshold")
	}

	// After resetAfter has elapsed with no intervening failure, the count
	// resets and a single new failure does not re-trigger a ban.
	later := now.Add(time.Second)
	if p.RecordFailure(later) {
		t.Fatal("failure after the reset window should not immediately ban")
	}
}

func TestPriorityPeerExemptFromBan(t *testing.T) {
	p := newTestPeer(t, NewList(), true)
	now := time.Unix(3000, 0)
	var banned bool
	for i := 0; i < 5; i++ {
		banned = p.RecordFailure(now)
	}
	if banned {
		t.Fatal("a priority peer must never be reported as banned")
	}
}

func TestPropagateTxsGate(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	if p.ReadyForMempool() {
		t.Fatal("a freshly connected peer must not be ready for mempool propagation")
	}
	p.MarkInventoryReceived()
	if !p.ReadyForMempool() {
		t.Fatal("expected the gate to open after inventory is received")
	}
}

func TestOutranksByBlueWork(t *testing.T) {
	list := NewList()
	a := newTestPeer(t, list, false)
	b, err := New(testHash(2), Endpoint{Host: "127.0.0.1", Port: 8112}, false, list, PeerConfig{})
	if err != nil {
		t.Fatal(err)
	}

	a.SetChainState(ChainState{BlueWork: primitives.BlueWorkFromBig(big.NewInt(100))})
	b.SetChainState(ChainState{BlueWork: primitives.BlueWorkFromBig(big.NewInt(200))})

	if a.Outranks(b) {
		t.Fatal("lower blue work must not outrank higher blue work")
	}
	if !b.Outranks(a) {
		t.Fatal("higher blue work must outrank lower blue work")
	}
}

func TestSignalExitRemovesFromList(t *testing.T) {
	list := NewList()
	p := newTestPeer(t, list, false)
	if err := list.Add(p); err != nil {
		t.Fatal(err)
	}
	if !list.IDExists(p.ID()) {
		t.Fatal("expected peer to be registered")
	}
	p.SignalExit()
	if list.IDExists(p.ID()) {
		t.Fatal("expected SignalExit to remove the peer from its list")
	}

	select {
	case <-p.Exit():
	default:
		t.Fatal("expected the exit channel to be closed")
	}
}

func TestBanPeerBansEndpointAndRemovesFromList(t *testing.T) {
	list := NewList()
	p := newTestPeer(t, list, false)
	if err := list.Add(p); err != nil {
		t.Fatal(err)
	}

	if !list.BanPeer(p.ID()) {
		t.Fatal("expected BanPeer to find the registered peer")
	}
	if list.IDExists(p.ID()) {
		t.Fatal("expected BanPeer to remove the peer from the list")
	}
	if !list.Book().IsBanned(p.Endpoint()) {
		t.Fatal("expected BanPeer to ban the peer's endpoint in the address book")
	}

	select {
	case <-p.Exit():
	default:
		t.Fatal("expected BanPeer to signal the peer to exit")
	}

	if list.BanPeer(testHash(99)) {
		t.Fatal("expected BanPeer to report false for an unregistered peer")
	}
}

func TestSendRespectsExit(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	p.SignalExit()
	if err := p.Send([]byte("x")); err != ErrDisconnected {
		t.Fatalf("expected ErrDisconnected after exit, got %v", err)
	}
}

func TestObjectRequestDedupAndFulfill(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	hash := testHash(7)

	type result struct {
		resp   []byte
		leader bool
		err    error
	}
	results := make(chan result, 2)

	go func() {
		resp, leader, err := p.Objects().Request(context.Background(), hash, p.Exit(), time.Second)
		results <- result{resp, leader, err}
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		resp, leader, err := p.Objects().Request(context.Background(), hash, p.Exit(), time.Second)
		results <- result{resp, leader, err}
	}()
	time.Sleep(10 * time.Millisecond)

	p.Objects().Fulfill(hash, []byte("payload"))

	first := <-results
	second := <-results
	if first.leader == second.leader {
		t.Fatal("exactly one of the two requesters must be the leader")
	}
	if string(first.resp) != "payload" || string(second.resp) != "payload" {
		t.Fatal("both requesters must observe the fulfilled payload")
	}
}

func TestObjectRequestTimeout(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	hash := testHash(8)
	_, leader, err := p.Objects().Request(context.Background(), hash, p.Exit(), 20*time.Millisecond)
	if !leader {
		t.Fatal("expected the sole requester to be the leader")
	}
	if err != ErrObjectRequestTimedOut {
		t.Fatalf("expected ErrObjectRequestTimedOut, got %v", err)
	}
}

func TestBootstrapQueueFIFOOrder(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	w1 := p.Bootstrap().Enqueue()
	w2 := p.Bootstrap().Enqueue()

	if err := p.Bootstrap().Resolve([]byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := p.Bootstrap().Resolve([]byte("two")); err != nil {
		t.Fatal(err)
	}

	resp1, err := p.Bootstrap().Wait(w1, p.Exit(), time.Second)
	if err != nil || string(resp1) != "one" {
		t.Fatalf("expected first enqueued waiter to resolve to the first response, got %q err=%v", resp1, err)
	}
	resp2, err := p.Bootstrap().Wait(w2, p.Exit(), time.Second)
	if err != nil || string(resp2) != "two" {
		t.Fatalf("expected second enqueued waiter to resolve to the second response, got %q err=%v", resp2, err)
	}
}

func TestBootstrapResolveWithEmptyQueue(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	if err := p.Bootstrap().Resolve([]byte("unexpected")); err != ErrInvalidBootstrapStep {
		t.Fatalf("expected ErrInvalidBootstrapStep, got %v", err)
	}
}

func TestChainSyncSingleSlot(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	w1, err := p.ChainSync().Begin()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.ChainSync().Begin(); err != ErrChainSyncAlreadyInFlight {
		t.Fatalf("expected ErrChainSyncAlreadyInFlight, got %v", err)
	}

	if err := p.ChainSync().Resolve([]byte("chain")); err != nil {
		t.Fatal(err)
	}
	resp, err := p.ChainSync().Wait(w1, p.Exit(), time.Second)
	if err != nil || string(resp) != "chain" {
		t.Fatalf("unexpected resolution: %q err=%v", resp, err)
	}

	// The slot is free again after resolution.
	if _, err := p.ChainSync().Begin(); err != nil {
		t.Fatal(err)
	}
}

func TestSignalExitCancelsOutstandingRequests(t *testing.T) {
	p := newTestPeer(t, NewList(), false)
	hash := testHash(9)

	done := make(chan error, 1)
	go func() {
		_, _, err := p.Objects().Request(context.Background(), hash, p.Exit(), time.Minute)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	p.SignalExit()

	select {
	case err := <-done:
		if err != ErrDisconnected {
			t.Fatalf("expected ErrDisconnected, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected SignalExit to cancel the outstanding object request promptly")
	}
}
