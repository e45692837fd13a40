// Package chainstate implements the account/contract state half of L6: a
// transaction.AccountState backed by storage's versioned columns, plus the
// energy-recovery ledger as its own component (SPEC_FULL.md's supplement:
// original_source treats energy recovery as a time-driven recomputation
// separate from the balance ledger, so it is not folded into Store).
//
// Grounded on the teacher's per-apply UTXO diff application
// (domain/consensus/processes/blockprocessor, domain/consensus/utxodiffstore),
// generalized from UTXO spends/creates to this account model's balance,
// nonce, energy, multisig, and contract-module columns.
package chainstate

import (
	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/storage"
	"github.com/tos-network/tos-core/transaction"
)

// Source is the capability set Store needs: versioned point-in-time
// reads/writes (via storage.KV) plus prefix iteration for account-existence
// checks. Both storage.Backend and *storage.Snapshot satisfy it, so the same
// Store code path serves read-only queries against committed storage and
// buffered writes against one block-apply's snapshot, per spec §9's
// "polymorphism over storage backends" design note.
type Source interface {
	storage.KV
	Iterator(column storage.Column, mode storage.IterMode) (storage.Iterator, error)
}

var totalBurnedKey = []byte("total-burned")

// Store implements transaction.AccountState over a Source at a fixed
// topoheight: every write this Store issues lands at that topoheight in the
// versioned column pairs storage/columns.go defines. One Store is
// constructed per block application (or per mempool speculative check)
// against the topoheight being written.
type Store struct {
	source     Source
	topoheight uint64
	durable    bool

	balances  *storage.VersionedStore
	nonces    *storage.VersionedStore
	energy    *storage.VersionedStore
	contracts *storage.VersionedStore
	multisig  *storage.VersionedStore
}

var _ transaction.AccountState = (*Store)(nil)

// NewStore opens a Store writing at topoheight. durable controls whether
// every write this Store issues is fsync'd before returning (spec §4.1's
// critical-vs-non-critical write distinction): the block-commit path passes
// true, mempool-side speculative validation against a throwaway snapshot
// passes false.
func NewStore(source Source, topoheight uint64, durable bool) *Store {
	return &Store{
		source:     source,
		topoheight: topoheight,
		durable:    durable,
		balances:   storage.NewVersionedStore(source, storage.ColumnBalances, storage.ColumnVersionedBalances),
		nonces:     storage.NewVersionedStore(source, storage.ColumnNonces, storage.ColumnVersionedNonces),
		energy:     storage.NewVersionedStore(source, storage.ColumnEnergyResources, storage.ColumnVersionedEnergyResources),
		contracts:  storage.NewVersionedStore(source, storage.ColumnContracts, storage.ColumnVersionedContractData),
		multisig:   storage.NewVersionedStore(source, storage.ColumnMultisigState, storage.ColumnVersionedMultisigState),
	}
}

// Topoheight returns the topoheight this Store writes at.
func (s *Store) Topoheight() uint64 { return s.topoheight }

// Nonce returns account's current nonce, or 0 if account has never
// transacted.
func (s *Store) Nonce(account primitives.PublicKey) (uint64, error) {
	b, err := s.nonces.Latest(storage.AccountKey(account))
	if err == storage.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeUint64(b)
}

// SetNonce writes account's nonce at this Store's topoheight.
func (s *Store) SetNonce(account primitives.PublicKey, nonce uint64) error {
	return s.nonces.Put(storage.AccountKey(account), s.topoheight, encodeUint64(nonce), s.durable)
}

// Balance returns account's balance of asset, and whether that (account,
// asset) pair has ever been written.
func (s *Store) Balance(account primitives.PublicKey, asset primitives.Hash) (uint64, bool, error) {
	b, err := s.balances.Latest(storage.AccountAssetKey(account, asset))
	if err == storage.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	amount, err := decodeUint64(b)
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}

// SetBalance writes account's balance of asset at this Store's topoheight.
func (s *Store) SetBalance(account primitives.PublicKey, asset primitives.Hash, amount uint64) error {
	return s.balances.Put(storage.AccountAssetKey(account, asset), s.topoheight, encodeUint64(amount), s.durable)
}

// BalanceAsOf returns account's balance of asset at a past topoheight, per
// spec §6.5's point-in-time read requirement. Not part of
// transaction.AccountState (which only ever reads the latest value): this
// serves RPC/wallet-side historical queries instead.
func (s *Store) BalanceAsOf(account primitives.PublicKey, asset primitives.Hash, topoheight uint64) (uint64, error) {
	b, err := s.balances.AsOf(storage.AccountAssetKey(account, asset), topoheight)
	if err == storage.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeUint64(b)
}

// NonceAsOf returns account's nonce at a past topoheight. See BalanceAsOf.
func (s *Store) NonceAsOf(account primitives.PublicKey, topoheight uint64) (uint64, error) {
	b, err := s.nonces.AsOf(storage.AccountKey(account), topoheight)
	if err == storage.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeUint64(b)
}

// AccountExists reports whether account has a balance entry for any asset,
// per spec's "previously-unseen account" distinction governing the
// account-creation fee (transaction.applyTransfers). There is no dedicated
// existence column: the Balances pointer column is keyed by (account ‖
// asset), so every entry for account shares a common 32-byte key prefix, and
// a prefix scan answers the question without an extra index to keep in
// sync.
func (s *Store) AccountExists(account primitives.PublicKey) (bool, error) {
	it, err := s.source.Iterator(storage.ColumnBalances, storage.WithPrefix(account.Bytes(), storage.Ascending))
	if err != nil {
		return false, err
	}
	defer it.Close()
	found := it.Next()
	if err := it.Err(); err != nil {
		return false, err
	}
	return found, nil
}

// MultisigConfig returns account's configured multisig, or nil if none (or
// cleared).
func (s *Store) MultisigConfig(account primitives.PublicKey) (*transaction.MultiSigConfig, error) {
	b, err := s.multisig.Latest(storage.AccountKey(account))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return decodeMultisigConfig(b)
}

// SetMultisigConfig installs (cfg != nil) or clears (cfg == nil) account's
// multisig at this Store's topoheight.
func (s *Store) SetMultisigConfig(account primitives.PublicKey, cfg *transaction.MultiSigConfig) error {
	var encoded []byte
	if cfg != nil {
		encoded = encodeMultisigConfig(cfg)
	}
	return s.multisig.Put(storage.AccountKey(account), s.topoheight, encoded, s.durable)
}

// EnergyResource returns account's energy state, or nil if none is recorded
// yet.
func (s *Store) EnergyResource(account primitives.PublicKey) (*transaction.EnergyResource, error) {
	b, err := s.energy.Latest(storage.AccountKey(account))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEnergyResource(b)
}

// SetEnergyResource writes account's energy state at this Store's
// topoheight.
func (s *Store) SetEnergyResource(account primitives.PublicKey, er *transaction.EnergyResource) error {
	return s.energy.Put(storage.AccountKey(account), s.topoheight, encodeEnergyResource(er), s.durable)
}

// ContractModule returns the module installed at contract, or nil if none.
func (s *Store) ContractModule(contract primitives.Hash) (*transaction.ContractModule, error) {
	b, err := s.contracts.Latest(storage.HashKey(contract))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return decodeContractModule(b)
}

// InstallContractModule installs module at contract at this Store's
// topoheight.
func (s *Store) InstallContractModule(contract primitives.Hash, module *transaction.ContractModule) error {
	return s.contracts.Put(storage.HashKey(contract), s.topoheight, encodeContractModule(module), s.durable)
}

// UninstallContractModule removes any module installed at contract, by
// writing an empty entry at this Store's topoheight (so point-in-time reads
// before this topoheight still see the prior module, per spec §6.5's
// versioned-history invariant).
func (s *Store) UninstallContractModule(contract primitives.Hash) error {
	return s.contracts.Put(storage.HashKey(contract), s.topoheight, nil, s.durable)
}

// AddBurned increments the chain's cumulative burned-TOS counter, stored
// unversioned in the topoheight-metadata column (a running total has no
// point-in-time query requirement the way account state does, unlike spec
// §3.2's versioned entities).
func (s *Store) AddBurned(amount uint64) error {
	if amount == 0 {
		return nil
	}
	current, err := s.TotalBurned()
	if err != nil {
		return err
	}
	return s.source.Put(storage.ColumnTopoHeightMetadata, totalBurnedKey, encodeUint64(current+amount), s.durable)
}

// TotalBurned returns the chain's cumulative burned-TOS counter. Exposed
// separately from AccountState since it is chain-wide metadata, not
// per-account state.
func (s *Store) TotalBurned() (uint64, error) {
	b, err := s.source.Get(storage.ColumnTopoHeightMetadata, totalBurnedKey)
	if err == storage.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeUint64(b)
}
