package transaction

import (
	"github.com/pkg/errors"

	"github.com/tos-network/tos-core/primitives"
)

// ErrInvalidVersion is returned when a transaction's version is neither
// VersionT0 nor VersionV2.
var ErrInvalidVersion = errors.New("invalid transaction version")

// ErrInvalidSignature is returned when the primary signature, or any
// required multisig participant signature, fails verification.
var ErrInvalidSignature = errors.New("invalid signature")

// ErrMultiSigNotConfigured is returned when a transaction carries multisig
// signatures but source has no multisig configuration on file.
var ErrMultiSigNotConfigured = errors.New("multisig signatures present but source has no multisig configuration")

// ErrMultiSigNotFound is returned when a multisig signature's participant
// index does not name a configured participant.
var ErrMultiSigNotFound = errors.New("multisig signature references unknown participant")

// Verify runs the full pre-apply check sequence for tx (whose primary
// signature is checked over signingBytes, i.e. SigningBytes(tx)), per spec
// §4.4's numbered Verify steps. It does NOT mutate balances
// or install multisig/contract state — only the nonce is advanced, via its
// CAS semantics, so a second Verify of the same (source, nonce) pair
// deterministically fails (spec invariant 7: "applying a transaction twice
// must fail the second time"). Grounded on the teacher's
// checkTransactionInIsolation chain of single-purpose check calls
// (domain/consensus/processes/validator/transaction_in_isolation.go),
// generalized from UTXO input/output checks to this account-based model.
func Verify(state AccountState, vm ModuleValidator, tx *Transaction, signingBytes []byte) error {
	if tx.Version != VersionT0 && tx.Version != VersionV2 {
		return ErrInvalidVersion
	}

	if tx.FeeType == FeeTypeEnergy {
		if tx.Data.Kind != KindTransfers {
			return ErrEnergyOnlyTransfers
		}
		for _, t := range tx.Data.Transfers {
			exists, err := state.AccountExists(t.Destination)
			if err != nil {
				return err
			}
			if !exists {
				return ErrEnergyUnregisteredDest
			}
		}
	}

	if err := casAdvanceNonce(state, tx); err != nil {
		return err
	}

	if err := checkStructural(tx); err != nil {
		return err
	}

	if !primitives.Verify(tx.Source, signingBytes, tx.Signature) {
		return ErrInvalidSignature
	}

	if err := verifyMultisig(state, tx); err != nil {
		return err
	}

	switch tx.Data.Kind {
	case KindInvokeContract:
		if err := checkInvoke(state, vm, tx.Data.Invoke); err != nil {
			return err
		}
	case KindDeployContract:
		if err := checkDeploy(vm, tx.Data.Deploy); err != nil {
			return err
		}
	}

	return nil
}

// casAdvanceNonce implements spec step 3: "read stored nonce; only succeed
// if equal to tx.nonce; advance to tx.nonce+1." This is the one state
// mutation Verify performs, so two concurrent verifications of the same
// (source, nonce) race here and exactly one observes the expected value.
func casAdvanceNonce(state AccountState, tx *Transaction) error {
	current, err := state.Nonce(tx.Source)
	if err != nil {
		return err
	}
	if current != tx.Nonce {
		return &ErrInvalidNonce{Current: current, Attempted: tx.Nonce}
	}
	return state.SetNonce(tx.Source, tx.Nonce+1)
}

func checkStructural(tx *Transaction) error {
	switch tx.Data.Kind {
	case KindTransfers:
		if len(tx.Data.Transfers) == 0 || len(tx.Data.Transfers) > MaxTransferCount {
			return newError(CodeTransferCount, "transfer count %d out of range [1, %d]", len(tx.Data.Transfers), MaxTransferCount)
		}
		var sumExtra int
		for _, t := range tx.Data.Transfers {
			if t.Destination == tx.Source {
				return newError(CodeSenderIsReceiver, "transfer destination equals source")
			}
			if len(t.ExtraData) > ExtraDataLimitSize {
				return newError(CodeExtraDataTooLarge, "extra_data of %d bytes exceeds limit %d", len(t.ExtraData), ExtraDataLimitSize)
			}
			sumExtra += len(t.ExtraData)
		}
		if sumExtra > ExtraDataLimitSumSize {
			return newError(CodeExtraDataTooLarge, "sum of extra_data sizes %d exceeds limit %d", sumExtra, ExtraDataLimitSumSize)
		}
	case KindBurn:
		if tx.Data.Burn == nil || tx.Data.Burn.Amount == 0 {
			return newError(CodeBurnZero, "burn amount must be > 0")
		}
	case KindMultiSig:
		if tx.Data.MultiSig == nil {
			return newError(CodeMultiSigThreshold, "missing multisig body")
		}
		cfg := tx.Data.MultiSig
		if !cfg.IsReset() && (int(cfg.Threshold) < 1 || int(cfg.Threshold) > len(cfg.Participants)) {
			return newError(CodeMultiSigThreshold, "threshold %d out of range for %d participants", cfg.Threshold, len(cfg.Participants))
		}
	}
	return nil
}

// verifyMultisig checks every participant signature attached to tx against
// source's configured multisig, per spec step 5: "exactly threshold
// signatures required; participant ids unique." Transactions from a source
// with no multisig configuration, and carrying no multisig signatures,
// skip this check entirely (the primary signature alone governs). Per spec
// §6.2, participants sign MultisigSigningHash(tx), not the raw signing
// bytes the primary source signature covers.
func verifyMultisig(state AccountState, tx *Transaction) error {
	cfg, err := state.MultisigConfig(tx.Source)
	if err != nil {
		return err
	}
	if cfg == nil {
		if len(tx.Multisig) == 0 {
			return nil
		}
		return ErrMultiSigNotConfigured
	}
	if len(tx.Multisig) != int(cfg.Threshold) {
		return newError(CodeMultiSigParticipants, "expected exactly %d multisig signatures, got %d", cfg.Threshold, len(tx.Multisig))
	}
	multisigHash, err := MultisigSigningHash(tx)
	if err != nil {
		return err
	}
	seen := map[uint8]bool{}
	for _, sig := range tx.Multisig {
		if seen[sig.ParticipantIndex] {
			return newError(CodeMultiSigParticipants, "duplicate participant index %d", sig.ParticipantIndex)
		}
		seen[sig.ParticipantIndex] = true
		if int(sig.ParticipantIndex) >= len(cfg.Participants) {
			return ErrMultiSigNotFound
		}
		participant := cfg.Participants[sig.ParticipantIndex]
		if !primitives.Verify(participant, multisigHash.Bytes(), sig.Signature) {
			return ErrInvalidSignature
		}
	}
	return nil
}

func checkInvoke(state AccountState, vm ModuleValidator, inv *InvokeContractData) error {
	if inv == nil {
		return newError(CodeInvalidInvokeContract, "missing invoke body")
	}
	module, err := state.ContractModule(inv.Contract)
	if err != nil {
		return err
	}
	if module == nil {
		return newError(CodeInvalidInvokeContract, "contract %s not found", inv.Contract)
	}
	if vm == nil {
		return newError(CodeInvalidInvokeContract, "no module validator configured")
	}
	if err := vm.ValidateEntryChunk(module, inv.ChunkID, inv.Parameters); err != nil {
		return newError(CodeInvalidInvokeContract, "entry chunk validation failed: %v", err)
	}
	return nil
}

func checkDeploy(vm ModuleValidator, dep *DeployContractData) error {
	if dep == nil {
		return newError(CodeInvalidModule, "missing deploy body")
	}
	if vm == nil {
		return newError(CodeInvalidModule, "no module validator configured")
	}
	hasConstructor, err := vm.Validate(dep.ModuleBytes)
	if err != nil {
		return newError(CodeInvalidModule, "module validation failed: %v", err)
	}
	if hasConstructor != (dep.Invoke != nil) {
		return newError(CodeInvalidModule, "constructor presence does not match invoke presence")
	}
	return nil
}
