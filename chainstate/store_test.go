package chainstate

import (
	"testing"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/storage"
	"github.com/tos-network/tos-core/storage/memdb"
	"github.com/tos-network/tos-core/transaction"
)

func testAccount(b byte) primitives.PublicKey {
	var k primitives.PublicKey
	k[0] = b
	return k
}

func testAsset(b byte) primitives.Hash {
	var h primitives.Hash
	h[0] = b
	return h
}

func TestBalanceVersioning(t *testing.T) {
	db := memdb.New()
	account := testAccount(1)
	asset := testAsset(1)

	s10 := NewStore(db, 10, false)
	if err := s10.SetBalance(account, asset, 100); err != nil {
		t.Fatal(err)
	}

	s20 := NewStore(db, 20, false)
	if err := s20.SetBalance(account, asset, 250); err != nil {
		t.Fatal(err)
	}

	got, exists, err := s20.Balance(account, asset)
	if err != nil || !exists || got != 250 {
		t.Fatalf("latest balance: got %d exists=%v err=%v", got, exists, err)
	}

	if got, err := s20.BalanceAsOf(account, asset, 15); err != nil || got != 100 {
		t.Fatalf("balance as of topo 15: got %d err=%v", got, err)
	}
	if got, err := s20.BalanceAsOf(account, asset, 5); err != nil || got != 0 {
		t.Fatalf("balance before any write: got %d err=%v", got, err)
	}
	if got, err := s20.BalanceAsOf(account, asset, 20); err != nil || got != 250 {
		t.Fatalf("balance as of topo 20: got %d err=%v", got, err)
	}
}

func TestAccountExistsTracksAnyAsset(t *testing.T) {
	db := memdb.New()
	account := testAccount(2)
	store := NewStore(db, 1, false)

	exists, err := store.AccountExists(account)
	if err != nil || exists {
		t.Fatalf("fresh account should not exist: exists=%v err=%v", exists, err)
	}

	if err := store.SetBalance(account, testAsset(9), 1); err != nil {
		t.Fatal(err)
	}
	exists, err = store.AccountExists(account)
	if err != nil || !exists {
		t.Fatalf("account should exist after a credit: exists=%v err=%v", exists, err)
	}

	// A different account sharing no prefix bytes must not be confused with
	// account's existence.
	other := testAccount(3)
	exists, err = store.AccountExists(other)
	if err != nil || exists {
		t.Fatalf("unrelated account should not exist: exists=%v err=%v", exists, err)
	}
}

func TestMultisigConfigRoundTripAndClear(t *testing.T) {
	db := memdb.New()
	account := testAccount(4)
	store := NewStore(db, 1, false)

	cfg, err := store.MultisigConfig(account)
	if err != nil || cfg != nil {
		t.Fatalf("expected no config yet, got %+v err=%v", cfg, err)
	}

	want := &transaction.MultiSigConfig{
		Participants: []primitives.PublicKey{testAccount(10), testAccount(11)},
		Threshold:    2,
	}
	store2 := NewStore(db, 2, false)
	if err := store2.SetMultisigConfig(account, want); err != nil {
		t.Fatal(err)
	}
	got, err := store2.MultisigConfig(account)
	if err != nil {
		t.Fatal(err)
	}
	if got.Threshold != want.Threshold || len(got.Participants) != len(want.Participants) {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, want)
	}
	for i := range want.Participants {
		if got.Participants[i] != want.Participants[i] {
			t.Fatalf("participant %d mismatch", i)
		}
	}

	store3 := NewStore(db, 3, false)
	if err := store3.SetMultisigConfig(account, nil); err != nil {
		t.Fatal(err)
	}
	cfg, err = store3.MultisigConfig(account)
	if err != nil || cfg != nil {
		t.Fatalf("expected cleared config, got %+v err=%v", cfg, err)
	}
}

func TestContractModuleInstallUninstall(t *testing.T) {
	db := memdb.New()
	contract := testAsset(5)
	store := NewStore(db, 1, false)

	if err := store.InstallContractModule(contract, &transaction.ContractModule{Bytes: []byte{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}
	mod, err := store.ContractModule(contract)
	if err != nil || mod == nil || len(mod.Bytes) != 3 {
		t.Fatalf("expected installed module, got %+v err=%v", mod, err)
	}

	store2 := NewStore(db, 2, false)
	if err := store2.UninstallContractModule(contract); err != nil {
		t.Fatal(err)
	}
	mod, err = store2.ContractModule(contract)
	if err != nil || mod != nil {
		t.Fatalf("expected uninstalled module, got %+v err=%v", mod, err)
	}

	// A read at the earlier topoheight still sees the installed module, per
	// spec §6.5's versioned-history invariant.
	raw, err := store2.contracts.AsOf(storage.HashKey(contract), 1)
	if err != nil {
		t.Fatal(err)
	}
	old, err := decodeContractModule(raw)
	if err != nil || len(old.Bytes) != 3 {
		t.Fatalf("expected prior module still readable as of topo 1, got %+v err=%v", old, err)
	}
}

func TestAddBurnedAccumulates(t *testing.T) {
	db := memdb.New()
	store := NewStore(db, 1, false)

	if err := store.AddBurned(100); err != nil {
		t.Fatal(err)
	}
	if err := store.AddBurned(50); err != nil {
		t.Fatal(err)
	}
	total, err := store.TotalBurned()
	if err != nil || total != 150 {
		t.Fatalf("expected total 150, got %d err=%v", total, err)
	}
}

func TestEnergyLedgerRecoversLinearly(t *testing.T) {
	db := memdb.New()
	account := testAccount(6)
	store := NewStore(db, 1, false)

	er := &transaction.EnergyResource{
		FreeQuotaUsed:       transaction.EnergyFreeQuotaPerDay,
		LastQuotaRecoveryMs: 1_000,
	}
	if err := store.SetEnergyResource(account, er); err != nil {
		t.Fatal(err)
	}

	ledger := NewEnergyLedger(store)
	halfWindow := int64(transaction.EnergyRecoveryWindowMs / 2)
	if err := ledger.Recover(account, 1_000+halfWindow); err != nil {
		t.Fatal(err)
	}

	got, err := store.EnergyResource(account)
	if err != nil {
		t.Fatal(err)
	}
	wantUsed := transaction.EnergyFreeQuotaPerDay - transaction.EnergyFreeQuotaPerDay/2
	if got.FreeQuotaUsed != uint64(wantUsed) {
		t.Fatalf("expected free quota used %d after half the window, got %d", wantUsed, got.FreeQuotaUsed)
	}

	if err := ledger.Recover(account, 1_000+int64(transaction.EnergyRecoveryWindowMs)*2); err != nil {
		t.Fatal(err)
	}
	got, err = store.EnergyResource(account)
	if err != nil {
		t.Fatal(err)
	}
	if got.FreeQuotaUsed != 0 {
		t.Fatalf("expected full recovery after a full window, got %d used", got.FreeQuotaUsed)
	}
}
