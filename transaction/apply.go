package transaction

import (
	"github.com/pkg/errors"

	"github.com/tos-network/tos-core/primitives"
)

// ErrUnmaturedFreeze is returned when UnfreezeTos requests more than the
// matured portion of an account's frozen TOS.
var ErrUnmaturedFreeze = errors.New("unfreeze amount exceeds matured frozen balance")

// ErrContractInvokeFailed wraps a ContractVM error encountered during Apply.
var ErrContractInvokeFailed = errors.New("contract invocation failed")

// Apply executes tx's effects against state, per spec §4.4's Apply step.
// The caller must have already run Verify (and signature checks) against
// the same state snapshot; Apply re-derives nothing about validity beyond
// what it needs to compute concrete amounts, and trusts the caller's prior
// Verify pass for everything else. miner receives the non-burned share of
// any fee.
//
// Grounded on the teacher's block-application sequencing (apply nonce/UTXO
// changes, then run consensus-level accounting) generalized from UTXO
// spends to this account model's balance/energy/contract mutations.
func Apply(state AccountState, vm ContractVM, tx *Transaction, miner primitives.PublicKey) error {
	if err := deductCosts(state, tx); err != nil {
		return err
	}

	switch tx.FeeType {
	case FeeTypeEnergy:
		if err := consumeEnergy(state, tx); err != nil {
			return err
		}
	case FeeTypeTOS:
		if err := applyFeeDistribution(state, tx, miner); err != nil {
			return err
		}
	}

	if err := applyMultisigFeeSurcharge(state, tx, miner); err != nil {
		return err
	}

	switch tx.Data.Kind {
	case KindTransfers:
		return applyTransfers(state, tx)
	case KindBurn:
		return applyBurn(state, tx)
	case KindMultiSig:
		return state.SetMultisigConfig(tx.Source, normalizeMultisig(tx.Data.MultiSig))
	case KindFreezeTos:
		return applyFreeze(state, tx)
	case KindUnfreezeTos:
		return applyUnfreeze(state, tx)
	case KindInvokeContract:
		return applyInvoke(state, vm, tx.Data.Invoke, tx)
	case KindDeployContract:
		return applyDeploy(state, vm, tx)
	default:
		return nil
	}
}

func normalizeMultisig(cfg *MultiSigConfig) *MultiSigConfig {
	if cfg.IsReset() {
		return nil
	}
	return cfg
}

// applyFeeDistribution splits tx.Fee per spec §6.4: burn_share = fee *
// TXGasBurnPercent / 100, the remainder credited to miner.
func applyFeeDistribution(state AccountState, tx *Transaction, miner primitives.PublicKey) error {
	burnShare := tx.Fee * TXGasBurnPercent / 100
	minerShare := tx.Fee - burnShare

	if burnShare > 0 {
		if err := state.AddBurned(burnShare); err != nil {
			return err
		}
	}
	if minerShare > 0 {
		balance, _, err := state.Balance(miner, tosAsset)
		if err != nil {
			return err
		}
		if err := state.SetBalance(miner, tosAsset, balance+minerShare); err != nil {
			return err
		}
	}
	return nil
}

// applyMultisigFeeSurcharge charges the additional per-signature fee, per
// spec's multisig fee policy: "when |multisig signatures| >= 2, the
// transaction owes an additional FEE_PER_MULTISIG_SIGNATURE * |signatures|."
// This is on top of tx.Fee (the builder's estimate already anticipated it
// via estimateTOSFee's multisigThreshold parameter, but the actual charge is
// computed here from the signatures that were actually attached).
func applyMultisigFeeSurcharge(state AccountState, tx *Transaction, miner primitives.PublicKey) error {
	if len(tx.Multisig) < 2 {
		return nil
	}
	surcharge := uint64(len(tx.Multisig)) * FeePerMultiSigSignature
	balance, _, err := state.Balance(tx.Source, tosAsset)
	if err != nil {
		return err
	}
	if balance < surcharge {
		return &ErrInsufficientFunds{Asset: tosAsset, Required: surcharge, Have: balance}
	}
	if err := state.SetBalance(tx.Source, tosAsset, balance-surcharge); err != nil {
		return err
	}
	minerBalance, _, err := state.Balance(miner, tosAsset)
	if err != nil {
		return err
	}
	return state.SetBalance(miner, tosAsset, minerBalance+surcharge)
}

// consumeEnergy pays for tx using source's energy resource instead of TOS,
// per spec §6.4's priority order: free quota (recovering linearly over
// EnergyRecoveryWindowMs) first, then frozen-TOS-derived energy, then
// auto-burn TOS at TOSPerEnergy atomic units per energy unit. Fails with
// ErrInsufficientEnergy if all three are insufficient to cover the cost.
func consumeEnergy(state AccountState, tx *Transaction) error {
	cost, err := estimateEnergyCost(state, tx)
	if err != nil {
		return err
	}

	er, err := state.EnergyResource(tx.Source)
	if err != nil {
		return err
	}
	if er == nil {
		er = &EnergyResource{}
	}

	now := state.Topoheight()
	recovered := recoverFreeQuota(er, now)
	remaining := cost

	if recovered >= remaining {
		er.FreeQuotaUsed = (EnergyFreeQuotaPerDay - recovered) + remaining
		return state.SetEnergyResource(tx.Source, er)
	}
	remaining -= recovered
	er.FreeQuotaUsed = EnergyFreeQuotaPerDay

	// Frozen TOS funds energy 1:1 with TOSPerEnergy atomic units staked per
	// energy unit available (spec §3.2's frozen-TOS-backed energy).
	fromFrozen := er.FrozenTos / TOSPerEnergy
	if fromFrozen > remaining {
		fromFrozen = remaining
	}
	remaining -= fromFrozen

	if remaining > 0 {
		// Auto-burn: convert the shortfall directly to a TOS balance deduction.
		autoBurnCost := remaining * TOSPerEnergy
		balance, _, err := state.Balance(tx.Source, tosAsset)
		if err != nil {
			return err
		}
		if balance < autoBurnCost {
			return &ErrInsufficientEnergy{Cost: cost}
		}
		if err := state.SetBalance(tx.Source, tosAsset, balance-autoBurnCost); err != nil {
			return err
		}
		if err := state.AddBurned(autoBurnCost); err != nil {
			return err
		}
	}

	return state.SetEnergyResource(tx.Source, er)
}

// recoverFreeQuota returns how much of the free daily quota is unused:
// EnergyFreeQuotaPerDay minus FreeQuotaUsed. It neither reads nor advances
// LastQuotaRecoveryMs. The linear refill over EnergyRecoveryWindowMs is done
// beforehand by chainstate.EnergyLedger.Recover, which the block processor
// runs for each source account, with the block's timestamp, before applying
// that account's transactions.
func recoverFreeQuota(er *EnergyResource, nowTopoheight uint64) uint64 {
	if er.FreeQuotaUsed == 0 {
		return EnergyFreeQuotaPerDay
	}
	return EnergyFreeQuotaPerDay - er.FreeQuotaUsed
}

func applyTransfers(state AccountState, tx *Transaction) error {
	for _, t := range tx.Data.Transfers {
		balance, _, err := state.Balance(t.Destination, t.Asset)
		if err != nil {
			return err
		}
		amount := t.Amount
		exists, err := state.AccountExists(t.Destination)
		if err != nil {
			return err
		}
		if !exists {
			if t.Asset == tosAsset {
				if amount < FeePerAccountCreation {
					return newError(CodeAccountCreationFeeTooLow, "transfer amount %d below account creation fee %d", amount, FeePerAccountCreation)
				}
				amount -= FeePerAccountCreation
				if err := state.AddBurned(FeePerAccountCreation); err != nil {
					return err
				}
			}
		}
		if err := state.SetBalance(t.Destination, t.Asset, balance+amount); err != nil {
			return err
		}
	}
	return nil
}

func applyBurn(state AccountState, tx *Transaction) error {
	return state.AddBurned(tx.Data.Burn.Amount)
}

func applyFreeze(state AccountState, tx *Transaction) error {
	balance, _, err := state.Balance(tx.Source, tosAsset)
	if err != nil {
		return err
	}
	if balance < tx.Data.FreezeTos.Amount {
		return &ErrInsufficientFunds{Asset: tosAsset, Required: tx.Data.FreezeTos.Amount, Have: balance}
	}
	if err := state.SetBalance(tx.Source, tosAsset, balance-tx.Data.FreezeTos.Amount); err != nil {
		return err
	}

	er, err := state.EnergyResource(tx.Source)
	if err != nil {
		return err
	}
	if er == nil {
		er = &EnergyResource{}
	}
	er.FrozenTos += tx.Data.FreezeTos.Amount
	er.FreezeExpiryTopoheight = state.Topoheight() + tx.Data.FreezeTos.Duration
	return state.SetEnergyResource(tx.Source, er)
}

func applyUnfreeze(state AccountState, tx *Transaction) error {
	er, err := state.EnergyResource(tx.Source)
	if err != nil {
		return err
	}
	if er == nil || er.FrozenTos < tx.Data.UnfreezeTos.Amount {
		return ErrUnmaturedFreeze
	}
	if state.Topoheight() < er.FreezeExpiryTopoheight {
		return ErrUnmaturedFreeze
	}
	er.FrozenTos -= tx.Data.UnfreezeTos.Amount
	if err := state.SetEnergyResource(tx.Source, er); err != nil {
		return err
	}

	balance, _, err := state.Balance(tx.Source, tosAsset)
	if err != nil {
		return err
	}
	return state.SetBalance(tx.Source, tosAsset, balance+tx.Data.UnfreezeTos.Amount)
}

func applyInvoke(state AccountState, vm ContractVM, inv *InvokeContractData, tx *Transaction) error {
	if vm == nil {
		return errors.New("no contract VM configured")
	}
	out, err := vm.Invoke(state, inv.Contract, EntryPoint{Kind: EntryKindChunk, ChunkID: inv.ChunkID}, inv.Deposits, inv.Parameters, inv.MaxGas)
	if err != nil {
		return errors.Wrap(ErrContractInvokeFailed, err.Error())
	}
	return applyContractOutput(state, out)
}

func applyDeploy(state AccountState, vm ContractVM, tx *Transaction) error {
	dep := tx.Data.Deploy
	contract := primitives.Hash(tx.Source)
	if err := state.InstallContractModule(contract, &ContractModule{Bytes: dep.ModuleBytes}); err != nil {
		return err
	}
	if dep.Invoke == nil {
		return nil
	}
	if vm == nil {
		return errors.New("no contract VM configured")
	}
	out, err := vm.Invoke(state, contract, EntryPoint{Kind: EntryKindHook, ChunkID: 0}, dep.Invoke.Deposits, dep.Invoke.Parameters, dep.Invoke.MaxGas)
	if err != nil {
		if uninstallErr := state.UninstallContractModule(contract); uninstallErr != nil {
			return uninstallErr
		}
		return errors.Wrap(ErrContractInvokeFailed, err.Error())
	}
	return applyContractOutput(state, out)
}

func applyContractOutput(state AccountState, out *ContractOutput) error {
	for _, t := range out.Transfers {
		balance, _, err := state.Balance(t.Destination, t.Asset)
		if err != nil {
			return err
		}
		if err := state.SetBalance(t.Destination, t.Asset, balance+t.Amount); err != nil {
			return err
		}
	}
	// StorageWrites and Events are opaque to the core; a contract-storage
	// backed AccountState implementation applies StorageWrites directly and
	// forwards Events to a subscriber, neither of which this package owns.
	_ = out.StorageWrites
	_ = out.Events
	return nil
}
