package transaction

import "github.com/tos-network/tos-core/primitives"

// EnergyResource is the energy-producing state attached to an account, per
// spec §3.2's "energy resource (frozen TOS + free quota)". Grounded on
// original_source's time-driven recovery model (supplemented per
// SPEC_FULL.md's chainstate.EnergyLedger note): FreeQuotaUsed recovers
// linearly over EnergyRecoveryWindowMs, independent of the frozen-TOS
// balance, which is why the two are tracked as separate fields rather than
// folded into one number.
type EnergyResource struct {
	FrozenTos           uint64
	FreeQuotaUsed       uint64
	LastQuotaRecoveryMs int64
	// FreezeExpiryTopoheight is the topoheight at which FrozenTos matures
	// and becomes eligible for UnfreezeTos. Zero if nothing is frozen.
	FreezeExpiryTopoheight uint64
}

// ContractModule is the installed state of a deployed contract, per spec
// §3.2's "contract module (if account is a deployed contract)". The core
// treats module bytes as opaque; only ModuleValidator and ContractVM
// (external collaborators, per spec §9's "dynamic-typed contract outputs")
// interpret them.
type ContractModule struct {
	Bytes []byte
}

// EntryKind discriminates an invocation's entry point, per spec §4.4's
// "entry=Entry(chunk_id)" for InvokeContract and "entry=Hook(0)" for a
// deploy's constructor call.
type EntryKind uint8

const (
	EntryKindChunk EntryKind = iota
	EntryKindHook
)

// EntryPoint identifies where execution begins inside a contract module.
type EntryPoint struct {
	Kind    EntryKind
	ChunkID uint32
}

// StorageWrite is one contract storage mutation returned by the VM.
type StorageWrite struct {
	Key   []byte
	Value []byte
}

// Event is an opaque contract-emitted event returned by the VM.
type Event struct {
	Data []byte
}

// ContractOutput is the VM's result for one invocation, per spec §9's sum
// type `ContractOutput ∈ { Transfer, StorageWrite, Event }`: expressed here
// as a struct of slices (the core applies every element, regardless of
// kind) rather than as a Go sum type, since the apply step always consumes
// all three categories together.
type ContractOutput struct {
	Transfers     []Transfer
	StorageWrites []StorageWrite
	Events        []Event
	GasUsed       uint64
}

// ModuleValidator validates a contract module's bytecode at deploy time.
// The VM/contract-runtime internals themselves are out of core scope per
// spec's Non-goals; this narrow interface is the boundary the core depends
// on.
type ModuleValidator interface {
	// Validate parses moduleBytes and reports whether a constructor entry
	// point is present. Returns an error if the module does not parse.
	Validate(moduleBytes []byte) (hasConstructor bool, err error)
	// ValidateEntryChunk reports whether chunkID names a valid entry chunk
	// in the already-installed module, and that every raw parameter is
	// acceptable to that chunk's declared parameter types.
	ValidateEntryChunk(module *ContractModule, chunkID uint32, parameters []byte) error
}

// ContractVM executes a contract entry point against the active state
// snapshot, per spec §4.4's "call into the VM (external collaborator)".
type ContractVM interface {
	Invoke(state AccountState, contract primitives.Hash, entry EntryPoint, deposits []Deposit, parameters []byte, maxGas uint64) (*ContractOutput, error)
}

// AccountState is the account/contract state view that Verify and Apply
// operate against — normally backed by a storage.Snapshot-wrapped
// chainstate store during block application, per spec §9's "polymorphism
// over storage backends" design note: transaction depends only on this
// capability set, never on a concrete storage type.
type AccountState interface {
	// Topoheight returns the topoheight the active apply is writing at,
	// used for energy-freeze maturity and versioned-state writes.
	Topoheight() uint64

	// Nonce returns account's current nonce (0 if the account has never
	// transacted).
	Nonce(account primitives.PublicKey) (uint64, error)
	// SetNonce advances account's nonce.
	SetNonce(account primitives.PublicKey, nonce uint64) error

	// Balance returns account's balance of asset and whether the account
	// has ever been credited any asset (spec's "previously-unseen account"
	// distinction for the account-creation fee).
	Balance(account primitives.PublicKey, asset primitives.Hash) (amount uint64, exists bool, err error)
	// SetBalance writes account's balance of asset.
	SetBalance(account primitives.PublicKey, asset primitives.Hash, amount uint64) error
	// AccountExists reports whether account has ever been credited any
	// asset, independent of which asset is being queried.
	AccountExists(account primitives.PublicKey) (bool, error)

	// MultisigConfig returns account's configured multisig, or nil if none.
	MultisigConfig(account primitives.PublicKey) (*MultiSigConfig, error)
	// SetMultisigConfig installs or clears (cfg == nil) account's multisig.
	SetMultisigConfig(account primitives.PublicKey, cfg *MultiSigConfig) error

	// EnergyResource returns account's energy state, or the zero value if
	// none is recorded yet.
	EnergyResource(account primitives.PublicKey) (*EnergyResource, error)
	// SetEnergyResource writes account's energy state.
	SetEnergyResource(account primitives.PublicKey, er *EnergyResource) error

	// ContractModule returns the module installed at contract, or nil if
	// none.
	ContractModule(contract primitives.Hash) (*ContractModule, error)
	// InstallContractModule installs module at contract.
	InstallContractModule(contract primitives.Hash, module *ContractModule) error
	// UninstallContractModule removes any module installed at contract.
	UninstallContractModule(contract primitives.Hash) error

	// AddBurned increments the chain's total burned-TOS counter.
	AddBurned(amount uint64) error
}
