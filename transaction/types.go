// Package transaction implements the L5 transaction core: the unsigned
// builder, pre-apply verification, and state application, per spec §4.4.
// Grounded on the teacher's validator/transactionvalidator packages for the
// sequential-checks shape of verification (checkTransactionInIsolation's
// chain of small, single-purpose check functions), generalized from the
// teacher's UTXO input/output model to the spec's account-based, multi-
// asset, multi-type transaction model.
package transaction

import "github.com/tos-network/tos-core/primitives"

// Version discriminates the wire format, per spec §6.1/§4.4 step 1.
type Version uint8

const (
	// VersionT0 and VersionV2 both verify; V2 adds parallel-execution
	// metadata (account_keys) without changing the verify/apply semantics
	// themselves.
	VersionT0 Version = 0
	VersionV2 Version = 2
)

// FeeType selects which resource a transaction's fee is paid from.
type FeeType uint8

const (
	FeeTypeTOS FeeType = iota
	FeeTypeEnergy
)

// Kind discriminates TransactionData's active variant, per spec §3.2's
// TransactionType sum type.
type Kind uint8

const (
	KindTransfers Kind = iota
	KindBurn
	KindMultiSig
	KindFreezeTos
	KindUnfreezeTos
	KindInvokeContract
	KindDeployContract
	KindAIMining
)

// Transfer is one destination/asset/amount entry of a Transfers transaction.
type Transfer struct {
	Destination primitives.PublicKey
	Asset       primitives.Hash
	Amount      uint64
	ExtraData   []byte
}

// Deposit is an asset/amount pair attached to a contract invocation.
type Deposit struct {
	Asset  primitives.Hash
	Amount uint64
}

// MultiSigConfig is both the transaction body for a MultiSig transaction and
// the persisted per-account multisig configuration (spec §3.2: "multisig
// config (optional)" on account state). A zero-value Threshold with an empty
// Participants list is the "reset" form, which requires a pre-existing
// configuration to operate on (spec §4.4 builder step).
type MultiSigConfig struct {
	Participants []primitives.PublicKey
	Threshold    uint8
}

// IsReset reports whether this is the "clear the multisig configuration"
// form: no participants and a zero threshold.
func (c MultiSigConfig) IsReset() bool {
	return c.Threshold == 0 && len(c.Participants) == 0
}

// InvokeContractData is the body of an InvokeContract transaction.
type InvokeContractData struct {
	Contract   primitives.Hash
	ChunkID    uint32
	Parameters []byte
	Deposits   []Deposit
	MaxGas     uint64
}

// DeployContractData is the body of a DeployContract transaction. Invoke, if
// present, is the constructor call made against the freshly installed
// module (spec: "constructor presence matches invoke.is_some()").
type DeployContractData struct {
	ModuleBytes []byte
	Invoke      *InvokeContractData
}

// TransactionData holds every type-specific body as an optional field;
// exactly one matching Kind's tag is populated. Grounded on the teacher's
// convention of tagging a domain object with an explicit Kind/SubnetworkID
// discriminant (wire.MsgTx's payload + subnetwork tag) rather than an
// interface-typed sum, since this shape serializes deterministically with
// the existing codec's WriteOption helpers.
type TransactionData struct {
	Kind Kind

	Transfers    []Transfer
	Burn         *BurnData
	MultiSig     *MultiSigConfig
	FreezeTos    *FreezeTosData
	UnfreezeTos  *UnfreezeTosData
	Invoke       *InvokeContractData
	Deploy       *DeployContractData
	AIMiningData []byte
}

// BurnData is the body of a Burn transaction.
type BurnData struct {
	Asset  primitives.Hash
	Amount uint64
}

// FreezeTosData is the body of an Energy(FreezeTos) transaction.
type FreezeTosData struct {
	Amount   uint64
	Duration uint64 // topoheight-denominated freeze duration
}

// UnfreezeTosData is the body of an Energy(UnfreezeTos) transaction.
type UnfreezeTosData struct {
	Amount uint64
}

// AccountMeta declares one account's access pattern for V2 parallel
// execution, per spec §4.4's "auto-declare account_keys" requirement.
type AccountMeta struct {
	Account    primitives.PublicKey
	Asset      primitives.Hash
	IsSigner   bool
	IsWritable bool
}

// MultisigSignature is one participant's signature within a transaction's
// multisig block.
type MultisigSignature struct {
	ParticipantIndex uint8
	Signature        primitives.Signature
}

// Transaction is the full signed (or about-to-be-signed) transaction, per
// spec §3.2/§6.1.
type Transaction struct {
	Version             Version
	Source              primitives.PublicKey
	Nonce               uint64
	ReferenceHash       primitives.Hash
	ReferenceTopoheight uint64
	Fee                 uint64
	FeeType             FeeType
	Data                TransactionData
	AccountKeys         []AccountMeta // only meaningful when Version == VersionV2
	Signature           primitives.Signature
	Multisig            []MultisigSignature
}
