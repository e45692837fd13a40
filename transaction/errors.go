package transaction

import (
	"fmt"

	"github.com/tos-network/tos-core/primitives"
)

// Error is a numeric-coded transaction error, per spec §7's "Transaction"
// error family. Grounded on the teacher's ruleerrors idiom (a stable code
// paired with a human-readable message) referenced throughout
// domain/consensus/processes/validator, generalized here into a concrete
// type (the teacher's ruleerrors package itself was not retrieved into the
// pack) instead of sentinel errors.New values, since several of these
// errors (InvalidNonce, InsufficientFunds, InsufficientEnergy) carry
// caller-relevant data that a bare sentinel cannot.
type Error struct {
	code    Code
	message string
}

func (e *Error) Error() string { return e.message }

// Code returns the stable numeric error code, for serialization into
// protocol error packets per spec §7.
func (e *Error) Code() Code { return e.code }

// Code enumerates the transaction error family from spec §7.
type Code int

const (
	CodeInvalidVersion Code = iota + 1
	CodeInvalidNonce
	CodeInsufficientFunds
	CodeInsufficientEnergy
	CodeSenderIsReceiver
	CodeTransferCount
	CodeExtraDataTooLarge
	CodeMultiSigParticipants
	CodeMultiSigThreshold
	CodeMultiSigNotConfigured
	CodeMultiSigNotFound
	CodeBurnZero
	CodeDepositZero
	CodeInvalidModule
	CodeMaxGasReached
	CodeInvalidInvokeContract
	CodeInvalidSignature
	CodeOverflow
	CodeEnergyOnlyTransfers
	CodeEnergyUnregisteredDestination
	CodeAccountCreationFeeTooLow
	CodeUnmaturedFreeze
)

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// ErrInvalidNonce reports the CAS mismatch per spec's
// "InvalidNonce(current, attempted)".
type ErrInvalidNonce struct {
	Current, Attempted uint64
}

func (e *ErrInvalidNonce) Error() string {
	return fmt.Sprintf("invalid nonce: current %d, attempted %d", e.Current, e.Attempted)
}
func (e *ErrInvalidNonce) Code() Code { return CodeInvalidNonce }

// ErrInsufficientFunds reports a checked-balance shortfall for one asset.
type ErrInsufficientFunds struct {
	Asset    primitives.Hash
	Required uint64
	Have     uint64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, have %d", e.Required, e.Have)
}
func (e *ErrInsufficientFunds) Code() Code { return CodeInsufficientFunds }

// ErrInsufficientEnergy reports that free quota, frozen-TOS energy, and
// auto-burn combined cannot cover cost.
type ErrInsufficientEnergy struct {
	Cost uint64
}

func (e *ErrInsufficientEnergy) Error() string {
	return fmt.Sprintf("insufficient energy: cost %d", e.Cost)
}
func (e *ErrInsufficientEnergy) Code() Code { return CodeInsufficientEnergy }
