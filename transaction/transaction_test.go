package transaction

import (
	"testing"

	"lukechampine.com/blake3"

	"github.com/tos-network/tos-core/primitives"
)

// testVerifier is a deterministic stand-in curve so tests can sign and
// verify without wiring a real curve library: a "signature" is simply
// blake3(pub || message), and verification checks equality. It exists only
// in this test file; production code installs a real primitives.Verifier.
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
	var p primitives.PublicKey
	p[0] = b
	return p
}

// fakeState is a minimal in-memory AccountState for testing the builder,
// verify, and apply pipelines without a real chainstate/storage layer.
type fakeState struct {
	topoheight uint64
	nonces     map[primitives.PublicKey]uint64
	balances   map[primitives.PublicKey]map[primitives.Hash]uint64
	multisig   map[primitives.PublicKey]*MultiSigConfig
	energy     map[primitives.PublicKey]*EnergyResource
	modules    map[primitives.Hash]*ContractModule
	burned     uint64
}

func newFakeState() *fakeState {
	return &fakeState{
		nonces:   map[primitives.PublicKey]uint64{},
		balances: map[primitives.PublicKey]map[primitives.Hash]uint64{},
		multisig: map[primitives.PublicKey]*MultiSigConfig{},
		energy:   map[primitives.PublicKey]*EnergyResource{},
		modules:  map[primitives.Hash]*ContractModule{},
	}
}

func (s *fakeState) Topoheight() uint64 { return s.topoheight }

func (s *fakeState) Nonce(account primitives.PublicKey) (uint64, error) {
	return s.nonces[account], nil
}
func (s *fakeState) SetNonce(account primitives.PublicKey, nonce uint64) error {
	s.nonces[account] = nonce
	return nil
}

func (s *fakeState) Balance(account primitives.PublicKey, asset primitives.Hash) (uint64, bool, error) {
	assets, ok := s.balances[account]
	if !ok {
		return 0, false, nil
	}
	amount, exists := assets[asset]
	return amount, exists, nil
}
func (s *fakeState) SetBalance(account primitives.PublicKey, asset primitives.Hash, amount uint64) error {
	if s.balances[account] == nil {
		s.balances[account] = map[primitives.Hash]uint64{}
	}
	s.balances[account][asset] = amount
	return nil
}
func (s *fakeState) AccountExists(account primitives.PublicKey) (bool, error) {
	_, ok := s.balances[account]
	return ok, nil
}

func (s *fakeState) MultisigConfig(account primitives.PublicKey) (*MultiSigConfig, error) {
	return s.multisig[account], nil
}
func (s *fakeState) SetMultisigConfig(account primitives.PublicKey, cfg *MultiSigConfig) error {
	s.multisig[account] = cfg
	return nil
}

func (s *fakeState) EnergyResource(account primitives.PublicKey) (*EnergyResource, error) {
	return s.energy[account], nil
}
func (s *fakeState) SetEnergyResource(account primitives.PublicKey, er *EnergyResource) error {
	s.energy[account] = er
	return nil
}

func (s *fakeState) ContractModule(contract primitives.Hash) (*ContractModule, error) {
	return s.modules[contract], nil
}
func (s *fakeState) InstallContractModule(contract primitives.Hash, module *ContractModule) error {
	s.modules[contract] = module
	return nil
}
func (s *fakeState) UninstallContractModule(contract primitives.Hash) error {
	delete(s.modules, contract)
	return nil
}

func (s *fakeState) AddBurned(amount uint64) error {
	s.burned += amount
	return nil
}

func signTx(t *testing.T, tx *Transaction) {
	t.Helper()
	bytes, err := SigningBytes(tx)
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	tx.Signature = testSign(tx.Source, bytes)
}

// seedLedger returns a fresh state with source/dest balances set, used as
// the independent ledger view that Verify/Apply run against. Build runs
// against its own separate state instance (the wallet's local mirror) since
// Build advances source's nonce immediately as part of chaining successive
// unsigned transactions together, before any of them reach the network.
func seedLedger(source, dest primitives.PublicKey, sourceBalance uint64, destExists bool) *fakeState {
	state := newFakeState()
	state.SetBalance(source, tosAsset, sourceBalance)
	if destExists {
		state.SetBalance(dest, tosAsset, 0)
	}
	return state
}

// TestSimpleTransfer covers spec §8 S1: a funded source transfers to an
// already-existing destination; balances move exactly by amount+fee.
func TestSimpleTransfer(t *testing.T) {
	source := pk(1)
	dest := pk(2)
	buildState := seedLedger(source, dest, 10_000_000_000, true)

	tx, err := Build(buildState, BuildParams{
		Version: VersionT0,
		Source:  source,
		Data:    TransactionData{Kind: KindTransfers, Transfers: []Transfer{{Destination: dest, Asset: tosAsset, Amount: 1_000_000}}},
		FeeType: FeeTypeTOS,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	signTx(t, tx)

	ledger := seedLedger(source, dest, 10_000_000_000, true)
	if err := Verify(ledger, nil, tx, mustSigningBytes(t, tx)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Apply(ledger, nil, tx, pk(99)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	destBalance, _, _ := ledger.Balance(dest, tosAsset)
	if destBalance != 1_000_000 {
		t.Fatalf("expected dest balance 1_000_000, got %d", destBalance)
	}
	sourceBalance, _, _ := ledger.Balance(source, tosAsset)
	if sourceBalance != 10_000_000_000-1_000_000-tx.Fee {
		t.Fatalf("unexpected source balance %d", sourceBalance)
	}
}

// TestTransferToNewAccountChargesCreationFee covers spec §8 S2: a transfer to
// a never-before-seen destination deducts FEE_PER_ACCOUNT_CREATION from the
// credited amount, and an amount below that fee is rejected at Apply time.
func TestTransferToNewAccountChargesCreationFee(t *testing.T) {
	source := pk(1)
	dest := pk(2)
	buildState := seedLedger(source, dest, 10_000_000_000, false)

	tx, err := Build(buildState, BuildParams{
		Version: VersionT0,
		Source:  source,
		Data:    TransactionData{Kind: KindTransfers, Transfers: []Transfer{{Destination: dest, Asset: tosAsset, Amount: 50_000_000}}},
		FeeType: FeeTypeTOS,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	signTx(t, tx)

	ledger := seedLedger(source, dest, 10_000_000_000, false)
	if err := Verify(ledger, nil, tx, mustSigningBytes(t, tx)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := Apply(ledger, nil, tx, pk(99)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	destBalance, _, _ := ledger.Balance(dest, tosAsset)
	if destBalance != 50_000_000-FeePerAccountCreation {
		t.Fatalf("expected dest balance %d, got %d", 50_000_000-FeePerAccountCreation, destBalance)
	}
}

func TestTransferToNewAccountBelowCreationFeeRejected(t *testing.T) {
	state := newFakeState()
	source := pk(1)
	dest := pk(2)
	state.SetBalance(source, tosAsset, 10_000_000_000)

	tx := &Transaction{
		Version: VersionT0,
		Source:  source,
		Nonce:   0,
		FeeType: FeeTypeTOS,
		Fee:     1000,
		Data:    TransactionData{Kind: KindTransfers, Transfers: []Transfer{{Destination: dest, Asset: tosAsset, Amount: FeePerAccountCreation - 1}}},
	}
	signTx(t, tx)
	if err := Apply(state, nil, tx, pk(99)); err == nil {
		t.Fatal("expected rejection for amount below account creation fee")
	}
}

// TestMultiSigInsufficientBalance covers spec §8 S3: a multisig-configured
// source without enough balance to cover amount+fee+signature surcharge is
// rejected at Build time (balance deduction fails, not signature checks).
func TestMultiSigInsufficientBalance(t *testing.T) {
	state := newFakeState()
	source := pk(1)
	p1, p2 := pk(2), pk(3)
	dest := pk(4)
	state.SetBalance(dest, tosAsset, 0)
	state.SetMultisigConfig(source, &MultiSigConfig{Participants: []primitives.PublicKey{p1, p2}, Threshold: 2})
	state.SetBalance(source, tosAsset, 100) // far below any plausible fee+amount

	_, err := Build(state, BuildParams{
		Version: VersionT0,
		Source:  source,
		Data:    TransactionData{Kind: KindTransfers, Transfers: []Transfer{{Destination: dest, Asset: tosAsset, Amount: 1_000_000}}},
		FeeType: FeeTypeTOS,
	})
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if _, ok := err.(*ErrInsufficientFunds); !ok {
		t.Fatalf("expected *ErrInsufficientFunds, got %T: %v", err, err)
	}
}

// TestNonceRace covers spec §8 S4: two Verify calls against the same
// (source, nonce) race on the nonce CAS; exactly one succeeds.
func TestNonceRace(t *testing.T) {
	state := newFakeState()
	source := pk(1)
	dest := pk(2)
	state.SetBalance(source, tosAsset, 10_000_000_000)
	state.SetBalance(dest, tosAsset, 0)

	mk := func() *Transaction {
		tx := &Transaction{
			Version: VersionT0,
			Source:  source,
			Nonce:   0,
			FeeType: FeeTypeTOS,
			Fee:     1000,
			Data:    TransactionData{Kind: KindTransfers, Transfers: []Transfer{{Destination: dest, Asset: tosAsset, Amount: 1_000_000}}},
		}
		signTx(t, tx)
		return tx
	}
	txA := mk()
	txB := mk()

	if err := Verify(state, nil, txA, mustSigningBytes(t, txA)); err != nil {
		t.Fatalf("first Verify should succeed: %v", err)
	}
	if err := Verify(state, nil, txB, mustSigningBytes(t, txB)); err == nil {
		t.Fatal("second Verify of the same nonce should fail")
	} else if _, ok := err.(*ErrInvalidNonce); !ok {
		t.Fatalf("expected *ErrInvalidNonce, got %T: %v", err, err)
	}
}

// TestDoubleApplyFailsSecondTime covers invariant 7 (idempotence):
// re-verifying the same signed transaction after it already advanced the
// nonce must fail deterministically.
func TestDoubleApplyFailsSecondTime(t *testing.T) {
	source := pk(1)
	dest := pk(2)
	buildState := seedLedger(source, dest, 10_000_000_000, true)

	tx, err := Build(buildState, BuildParams{
		Version: VersionT0,
		Source:  source,
		Data:    TransactionData{Kind: KindTransfers, Transfers: []Transfer{{Destination: dest, Asset: tosAsset, Amount: 1_000_000}}},
		FeeType: FeeTypeTOS,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	signTx(t, tx)

	ledger := seedLedger(source, dest, 10_000_000_000, true)
	if err := Verify(ledger, nil, tx, mustSigningBytes(t, tx)); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	if err := Verify(ledger, nil, tx, mustSigningBytes(t, tx)); err == nil {
		t.Fatal("second Verify of the same transaction should fail via nonce CAS")
	}
}

// TestBuilderDeterministic covers invariant 9: two builds with identical
// inputs against independent but identically-seeded state produce
// byte-identical unsigned transactions.
func TestBuilderDeterministic(t *testing.T) {
	build := func() *Transaction {
		state := newFakeState()
		source := pk(1)
		dest := pk(2)
		state.SetBalance(source, tosAsset, 10_000_000_000)
		state.SetBalance(dest, tosAsset, 0)
		tx, err := Build(state, BuildParams{
			Version: VersionV2,
			Source:  source,
			Data:    TransactionData{Kind: KindTransfers, Transfers: []Transfer{{Destination: dest, Asset: tosAsset, Amount: 1_000_000}}},
			FeeType: FeeTypeTOS,
		})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return tx
	}
	txA, txB := build(), build()
	bytesA, err := SigningBytes(txA)
	if err != nil {
		t.Fatalf("SigningBytes A: %v", err)
	}
	bytesB, err := SigningBytes(txB)
	if err != nil {
		t.Fatalf("SigningBytes B: %v", err)
	}
	if string(bytesA) != string(bytesB) {
		t.Fatal("expected byte-identical unsigned transactions from equal inputs")
	}
}

func mustSigningBytes(t *testing.T, tx *Transaction) []byte {
	t.Helper()
	b, err := SigningBytes(tx)
	if err != nil {
		t.Fatalf("SigningBytes: %v", err)
	}
	return b
}
