package mempool

import (
	"testing"

	"lukechampine.com/blake3"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/transaction"
)

type testVerifier struct{}

func (testVerifier) IsValidPoint(_ [primitives.PublicKeySize]byte) bool { return true }
func (testVerifier) VerifySignature(pub primitives.PublicKey, message []byte, sig primitives.Signature) bool {
	return sig == testSign(pub, message)
}

func testSign(pub primitives.PublicKey, message []byte) primitives.Signature {
	h := blake3.New(primitives.SignatureSize, nil)
	h.Write(pub.Bytes())
	h.Write(message)
	var sig primitives.Signature
	copy(sig[:], h.Sum(nil))
	return sig
}

func init() {
	primitives.SetVerifier(testVerifier{})
}

func pk(b byte) primitives.PublicKey {
	var k primitives.PublicKey
	k[0] = b
	return k
}

// fakeState is a minimal in-memory transaction.AccountState, local to this
// package's tests (the equivalent helper in the transaction package is
// unexported there too).
type fakeState struct {
	nonces   map[primitives.PublicKey]uint64
	balances map[primitives.PublicKey]uint64
}

func newFakeState() *fakeState {
	return &fakeState{
		nonces:   map[primitives.PublicKey]uint64{},
		balances: map[primitives.PublicKey]uint64{},
	}
}

func (s *fakeState) Topoheight() uint64 { return 1 }

func (s *fakeState) Nonce(account primitives.PublicKey) (uint64, error) {
	return s.nonces[account], nil
}
func (s *fakeState) SetNonce(account primitives.PublicKey, nonce uint64) error {
	s.nonces[account] = nonce
	return nil
}

func (s *fakeState) Balance(account primitives.PublicKey, _ primitives.Hash) (uint64, bool, error) {
	bal, ok := s.balances[account]
	return bal, ok, nil
}
func (s *fakeState) SetBalance(account primitives.PublicKey, _ primitives.Hash, amount uint64) error {
	s.balances[account] = amount
	return nil
}
func (s *fakeState) AccountExists(account primitives.PublicKey) (bool, error) {
	_, ok := s.balances[account]
	return ok, nil
}

func (s *fakeState) MultisigConfig(primitives.PublicKey) (*transaction.MultiSigConfig, error) {
	return nil, nil
}
func (s *fakeState) SetMultisigConfig(primitives.PublicKey, *transaction.MultiSigConfig) error {
	return nil
}

func (s *fakeState) EnergyResource(primitives.PublicKey) (*transaction.EnergyResource, error) {
	return nil, nil
}
func (s *fakeState) SetEnergyResource(primitives.PublicKey, *transaction.EnergyResource) error {
	return nil
}

func (s *fakeState) ContractModule(primitives.Hash) (*transaction.ContractModule, error) {
	return nil, nil
}
func (s *fakeState) InstallContractModule(primitives.Hash, *transaction.ContractModule) error {
	return nil
}
func (s *fakeState) UninstallContractModule(primitives.Hash) error { return nil }

func (s *fakeState) AddBurned(uint64) error { return nil }

var tosAsset primitives.Hash

func makeTransfer(t *testing.T, source, dest primitives.PublicKey, nonce, fee uint64) *transaction.Transaction {
	t.Helper()
	tx := &transaction.Transaction{
		Version: transaction.VersionT0,
		Source:  source,
		Nonce:   nonce,
		Fee:     fee,
		FeeType: transaction.FeeTypeTOS,
		Data: transaction.TransactionData{
			Kind: transaction.KindTransfers,
			Transfers: []transaction.Transfer{
				{Destination: dest, Asset: tosAsset, Amount: 1},
			},
		},
	}
	bytes, err := transaction.SigningBytes(tx)
	if err != nil {
		t.Fatal(err)
	}
	tx.Signature = testSign(tx.Source, bytes)
	return tx
}

func TestAddAndReadyTransactions(t *testing.T) {
	source := pk(1)
	dest := pk(2)
	state := newFakeState()
	state.balances[dest] = 0 // dest pre-exists

	pool := New(0, 0)
	tx := makeTransfer(t, source, dest, 0, 100)
	bytes, _ := transaction.SigningBytes(tx)
	if _, err := pool.Add(tx, bytes, state, nil, 1000); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ready, err := pool.ReadyTransactions(state)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 1 || ready[0].Hash != entryHash(t, tx) {
		t.Fatalf("expected 1 ready transaction matching tx, got %d", len(ready))
	}
}

func TestNonceGapIsNotReady(t *testing.T) {
	source := pk(3)
	dest := pk(4)
	state := newFakeState()
	state.balances[dest] = 0

	pool := New(0, 0)
	tx := makeTransfer(t, source, dest, 1, 100) // chain nonce is 0; this is nonce 1
	bytes, _ := transaction.SigningBytes(tx)
	if _, err := pool.Add(tx, bytes, state, nil, 1000); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ready, err := pool.ReadyTransactions(state)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 0 {
		t.Fatalf("expected no ready transactions with a nonce gap, got %d", len(ready))
	}

	// Filling the gap makes both ready (their fees are equal, so they are
	// ordered by arrival time).
	tx0 := makeTransfer(t, source, dest, 0, 100)
	bytes0, _ := transaction.SigningBytes(tx0)
	if _, err := pool.Add(tx0, bytes0, state, nil, 1001); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ready, err = pool.ReadyTransactions(state)
	if err != nil {
		t.Fatal(err)
	}
	if len(ready) != 2 {
		t.Fatalf("expected both transactions ready once the gap is filled, got %d", len(ready))
	}
}

func TestNonceTooLowRejected(t *testing.T) {
	source := pk(5)
	dest := pk(6)
	state := newFakeState()
	state.balances[dest] = 0
	state.nonces[source] = 5

	pool := New(0, 0)
	tx := makeTransfer(t, source, dest, 2, 100)
	bytes, _ := transaction.SigningBytes(tx)
	_, err := pool.Add(tx, bytes, state, nil, 1000)
	if err == nil {
		t.Fatal("expected ErrNonceTooLow")
	}
	if _, ok := err.(*ErrNonceTooLow); !ok {
		t.Fatalf("expected *ErrNonceTooLow, got %T: %v", err, err)
	}
}

func TestReplaceByFee(t *testing.T) {
	source := pk(7)
	dest := pk(8)
	state := newFakeState()
	state.balances[dest] = 0

	pool := New(0, 0)
	low := makeTransfer(t, source, dest, 0, 100)
	lowBytes, _ := transaction.SigningBytes(low)
	if _, err := pool.Add(low, lowBytes, state, nil, 1000); err != nil {
		t.Fatal(err)
	}

	cheaper := makeTransfer(t, source, dest, 0, 50)
	cheaperBytes, _ := transaction.SigningBytes(cheaper)
	if _, err := pool.Add(cheaper, cheaperBytes, state, nil, 1001); err != ErrReplacementUnderpriced {
		t.Fatalf("expected ErrReplacementUnderpriced, got %v", err)
	}

	higher := makeTransfer(t, source, dest, 0, 200)
	higherBytes, _ := transaction.SigningBytes(higher)
	if _, err := pool.Add(higher, higherBytes, state, nil, 1002); err != nil {
		t.Fatalf("expected replacement to succeed: %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("expected exactly one entry after replacement, got %d", pool.Len())
	}
	if _, ok := pool.Get(entryHash(t, low)); ok {
		t.Fatal("original lower-fee transaction should have been evicted")
	}
}

func TestEvictLowestFeeOverCapacity(t *testing.T) {
	source := pk(9)
	dest := pk(10)
	state := newFakeState()
	state.balances[dest] = 0

	pool := New(1, 0)
	first := makeTransfer(t, source, dest, 0, 100)
	firstBytes, _ := transaction.SigningBytes(first)
	if _, err := pool.Add(first, firstBytes, state, nil, 1000); err != nil {
		t.Fatal(err)
	}

	other := pk(11)
	second := makeTransfer(t, other, dest, 0, 500)
	secondBytes, _ := transaction.SigningBytes(second)
	if _, err := pool.Add(second, secondBytes, state, nil, 1001); err != nil {
		t.Fatal(err)
	}

	if pool.Len() != 1 {
		t.Fatalf("expected capacity eviction to keep exactly 1 entry, got %d", pool.Len())
	}
	if _, ok := pool.Get(entryHash(t, second)); !ok {
		t.Fatal("expected the higher-fee transaction to survive eviction")
	}
}

func TestPruneStaleNoncesAfterMining(t *testing.T) {
	source := pk(12)
	dest := pk(13)
	state := newFakeState()
	state.balances[dest] = 0

	pool := New(0, 0)
	tx := makeTransfer(t, source, dest, 0, 100)
	bytes, _ := transaction.SigningBytes(tx)
	if _, err := pool.Add(tx, bytes, state, nil, 1000); err != nil {
		t.Fatal(err)
	}

	// Simulate the block processor mining nonce 0 through a different path
	// and advancing chain state.
	state.nonces[source] = 1

	if err := pool.PruneStaleNonces(state); err != nil {
		t.Fatal(err)
	}
	if pool.Len() != 0 {
		t.Fatalf("expected the now-stale entry to be pruned, got %d remaining", pool.Len())
	}
}

func entryHash(t *testing.T, tx *transaction.Transaction) primitives.Hash {
	t.Helper()
	h, err := transaction.Hash(tx)
	if err != nil {
		t.Fatal(err)
	}
	return h
}
