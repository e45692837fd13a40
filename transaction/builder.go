package transaction

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-core/primitives"
)

// ErrSelfTransfer and the other errors below are returned by
// Build for invariant violations caught before a transaction is ever
// broadcast, per spec §4.4's "Validate type-specific invariants" list.
var (
	ErrSelfTransfer                  = errors.New("transfer destination equals source")
	ErrDuplicateParticipant          = errors.New("duplicate multisig participant")
	ErrParticipantIsSource           = errors.New("multisig participant equals source")
	ErrInvalidThreshold              = errors.New("multisig threshold out of range")
	ErrMultiSigResetRequiresExisting = errors.New("multisig reset requires a pre-existing configuration")
	ErrMaxGasExceeded                = errors.New("max_gas exceeds MAX_GAS_USAGE_PER_TX")
	ErrZeroDepositAmount             = errors.New("deposit amount must be > 0")
	ErrZeroBurnAmount                = errors.New("burn amount must be > 0")
	ErrEnergyOnlyTransfers           = errors.New("energy fee type is only valid for Transfers transactions")
	ErrEnergyUnregisteredDest        = errors.New("energy fee type cannot be used to create new accounts")
)

// BuildParams bundles the inputs to Build, per spec §4.4's
// "(version, source, threshold?, data, fee_builder, optional fee_type)".
type BuildParams struct {
	Version           Version
	Source            primitives.PublicKey
	Data              TransactionData
	FeeBuilder        FeeBuilder
	FeeType           FeeType
	ReferenceHash     primitives.Hash
	ReferenceTopo     uint64
	ModuleValidator   ModuleValidator // required only for DeployContract
}

// Build constructs and returns an unsigned Transaction, advancing source's
// nonce in state immediately so a subsequent Build call for the same
// source observes a fresh nonce (spec §4.4: "the transaction's nonce is the
// old value, state is advanced immediately").
func Build(state AccountState, p BuildParams) (*Transaction, error) {
	if p.FeeType == FeeTypeEnergy {
		if p.Data.Kind != KindTransfers {
			return nil, ErrEnergyOnlyTransfers
		}
		for _, t := range p.Data.Transfers {
			exists, err := state.AccountExists(t.Destination)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, ErrEnergyUnregisteredDest
			}
		}
	}

	if err := validateTypeInvariants(state, p.Source, p.Data, p.ModuleValidator); err != nil {
		return nil, err
	}

	nonce, err := state.Nonce(p.Source)
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		Version:             p.Version,
		Source:              p.Source,
		Nonce:               nonce,
		ReferenceHash:       p.ReferenceHash,
		ReferenceTopoheight: p.ReferenceTopo,
		FeeType:             p.FeeType,
		Data:                p.Data,
	}

	var estimate uint64
	if p.FeeType == FeeTypeTOS {
		cfg, err := state.MultisigConfig(p.Source)
		if err != nil {
			return nil, err
		}
		var threshold uint8
		if cfg != nil {
			threshold = cfg.Threshold
		}
		estimate, err = estimateTOSFee(state, tx, threshold)
		if err != nil {
			return nil, err
		}
	} else {
		estimate, err = estimateEnergyCost(state, tx)
		if err != nil {
			return nil, err
		}
	}
	tx.Fee = p.FeeBuilder.apply(estimate)

	if p.Version == VersionV2 {
		tx.AccountKeys = DeclareAccountKeys(tx)
	}

	if err := deductCosts(state, tx); err != nil {
		return nil, err
	}
	if err := state.SetNonce(p.Source, nonce+1); err != nil {
		return nil, err
	}
	return tx, nil
}

// costPerAsset computes, per asset, the total the builder must deduct from source's
// balance up front, per spec §4.4's cost(asset) formula.
func costPerAsset(tx *Transaction) map[primitives.Hash]uint64 {
	costs := map[primitives.Hash]uint64{}
	add := func(asset primitives.Hash, amount uint64) { costs[asset] += amount }

	switch tx.Data.Kind {
	case KindTransfers:
		for _, t := range tx.Data.Transfers {
			add(t.Asset, t.Amount)
		}
	case KindInvokeContract:
		if inv := tx.Data.Invoke; inv != nil {
			for _, d := range inv.Deposits {
				add(d.Asset, d.Amount)
			}
			if tx.FeeType == FeeTypeTOS {
				add(tosAsset, inv.MaxGas)
			}
		}
	case KindDeployContract:
		if dep := tx.Data.Deploy; dep != nil && dep.Invoke != nil {
			for _, d := range dep.Invoke.Deposits {
				add(d.Asset, d.Amount)
			}
			if tx.FeeType == FeeTypeTOS {
				add(tosAsset, dep.Invoke.MaxGas)
			}
		}
	}
	if tx.FeeType == FeeTypeTOS {
		add(tosAsset, tx.Fee)
	}
	return costs
}

// tosAsset is the zero hash, the canonical asset identifier for the native
// TOS token (every other asset is identified by a non-zero hash).
var tosAsset = primitives.Hash{}

func deductCosts(state AccountState, tx *Transaction) error {
	costs := costPerAsset(tx)
	// Deterministic iteration order for reproducible builder output (spec
	// invariant 9: byte-identical unsigned transactions from equal inputs).
	assets := make([]primitives.Hash, 0, len(costs))
	for a := range costs {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Less(assets[j]) })

	for _, asset := range assets {
		cost := costs[asset]
		balance, _, err := state.Balance(tx.Source, asset)
		if err != nil {
			return err
		}
		if balance < cost {
			return &ErrInsufficientFunds{Asset: asset, Required: cost, Have: balance}
		}
		if err := state.SetBalance(tx.Source, asset, balance-cost); err != nil {
			return err
		}
	}
	return nil
}

func validateTypeInvariants(state AccountState, source primitives.PublicKey, data TransactionData, mv ModuleValidator) error {
	switch data.Kind {
	case KindTransfers:
		if len(data.Transfers) == 0 || len(data.Transfers) > MaxTransferCount {
			return newError(CodeTransferCount, "transfer count %d out of range [1, %d]", len(data.Transfers), MaxTransferCount)
		}
		var sumExtra int
		for _, t := range data.Transfers {
			if t.Destination == source {
				return ErrSelfTransfer
			}
			if len(t.ExtraData) > ExtraDataLimitSize {
				return newError(CodeExtraDataTooLarge, "extra_data of %d bytes exceeds per-entry limit %d", len(t.ExtraData), ExtraDataLimitSize)
			}
			sumExtra += len(t.ExtraData)
		}
		if sumExtra > ExtraDataLimitSumSize {
			return newError(CodeExtraDataTooLarge, "sum of extra_data sizes %d exceeds limit %d", sumExtra, ExtraDataLimitSumSize)
		}
	case KindBurn:
		if data.Burn == nil || data.Burn.Amount == 0 {
			return ErrZeroBurnAmount
		}
	case KindMultiSig:
		if data.MultiSig == nil {
			return ErrInvalidThreshold
		}
		cfg := data.MultiSig
		if cfg.IsReset() {
			existing, err := state.MultisigConfig(source)
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrMultiSigResetRequiresExisting
			}
			return nil
		}
		if int(cfg.Threshold) < 1 || int(cfg.Threshold) > len(cfg.Participants) {
			return ErrInvalidThreshold
		}
		seen := map[primitives.PublicKey]bool{}
		for _, p := range cfg.Participants {
			if p == source {
				return ErrParticipantIsSource
			}
			if seen[p] {
				return ErrDuplicateParticipant
			}
			seen[p] = true
		}
	case KindInvokeContract:
		if data.Invoke == nil {
			return newError(CodeInvalidInvokeContract, "missing invoke body")
		}
		if data.Invoke.MaxGas > MaxGasUsagePerTx {
			return ErrMaxGasExceeded
		}
		for _, d := range data.Invoke.Deposits {
			if d.Amount == 0 {
				return ErrZeroDepositAmount
			}
		}
	case KindDeployContract:
		if data.Deploy == nil {
			return newError(CodeInvalidModule, "missing deploy body")
		}
		if mv == nil {
			return newError(CodeInvalidModule, "no module validator configured")
		}
		hasConstructor, err := mv.Validate(data.Deploy.ModuleBytes)
		if err != nil {
			return newError(CodeInvalidModule, "module validation failed: %v", err)
		}
		if hasConstructor != (data.Deploy.Invoke != nil) {
			return newError(CodeInvalidModule, "constructor presence does not match invoke presence")
		}
		if data.Deploy.Invoke != nil {
			if data.Deploy.Invoke.MaxGas > MaxGasUsagePerTx {
				return ErrMaxGasExceeded
			}
			for _, d := range data.Deploy.Invoke.Deposits {
				if d.Amount == 0 {
					return ErrZeroDepositAmount
				}
			}
		}
	}
	return nil
}

// DeclareAccountKeys computes the deterministic account_keys vector for a
// V2 transaction, per spec §4.4: "auto-declare account_keys as
// (pubkey, asset, is_signer, is_writable) records for every touched
// account, merge duplicates by ORing permissions, preserve insertion order
// deterministically." Grounded on
// original_source/common/src/transaction/builder/mod.rs's account-keys pass,
// expressed as its own testable function per SPEC_FULL.md's module note
// rather than inlined into Build.
func DeclareAccountKeys(tx *Transaction) []AccountMeta {
	type key struct {
		account primitives.PublicKey
		asset   primitives.Hash
	}
	index := map[key]int{}
	var metas []AccountMeta

	declare := func(account primitives.PublicKey, asset primitives.Hash, isSigner, isWritable bool) {
		k := key{account, asset}
		if i, ok := index[k]; ok {
			metas[i].IsSigner = metas[i].IsSigner || isSigner
			metas[i].IsWritable = metas[i].IsWritable || isWritable
			return
		}
		index[k] = len(metas)
		metas = append(metas, AccountMeta{Account: account, Asset: asset, IsSigner: isSigner, IsWritable: isWritable})
	}

	declare(tx.Source, tosAsset, true, true)

	switch tx.Data.Kind {
	case KindTransfers:
		for _, t := range tx.Data.Transfers {
			declare(tx.Source, t.Asset, true, true)
			declare(t.Destination, t.Asset, false, true)
		}
	case KindBurn:
		declare(tx.Source, tx.Data.Burn.Asset, true, true)
	case KindInvokeContract:
		if inv := tx.Data.Invoke; inv != nil {
			declare(primitives.PublicKey(inv.Contract), tosAsset, false, true)
			for _, d := range inv.Deposits {
				declare(tx.Source, d.Asset, true, true)
			}
		}
	case KindDeployContract:
		if dep := tx.Data.Deploy; dep != nil && dep.Invoke != nil {
			for _, d := range dep.Invoke.Deposits {
				declare(tx.Source, d.Asset, true, true)
			}
		}
	}
	return metas
}
