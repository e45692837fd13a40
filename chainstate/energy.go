package chainstate

import (
	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/transaction"
)

// EnergyLedger recovers an account's free energy quota from elapsed
// wall-clock time, per SPEC_FULL.md's supplement (grounded on
// original_source's energy module): recovery is linear over
// transaction.EnergyRecoveryWindowMs and is driven by block timestamps, not
// by topoheight, so it is a separate component from Store rather than folded
// into transaction.Apply's consumeEnergy — that function only has the
// topoheight available and treats free-quota recovery as already settled by
// the time it runs.
//
// Grounded on the teacher's DAA-window recomputation pattern
// (domain/consensus/processes/pastmediantimemanager), generalized from a
// block-timestamp median to a single account's linear quota refill.
type EnergyLedger struct {
	store *Store
}

// NewEnergyLedger opens a ledger over store. The two share the same
// topoheight-scoped writes: Recover's SetEnergyResource calls land at
// store's topoheight exactly like any other energy-resource mutation.
func NewEnergyLedger(store *Store) *EnergyLedger {
	return &EnergyLedger{store: store}
}

// Recover advances account's recorded free-quota usage down to what it
// would be at nowMs, persisting the result. The block processor calls this
// once per source account before transaction.Verify/Apply runs that
// account's transactions in a block, stamping nowMs from the block's
// timestamp (spec §6.1's header `timestamp ms` field).
func (l *EnergyLedger) Recover(account primitives.PublicKey, nowMs int64) error {
	er, err := l.store.EnergyResource(account)
	if err != nil {
		return err
	}
	if er == nil {
		return nil
	}
	if er.LastQuotaRecoveryMs == 0 {
		er.LastQuotaRecoveryMs = nowMs
		return l.store.SetEnergyResource(account, er)
	}
	if er.FreeQuotaUsed == 0 {
		return nil
	}

	elapsed := nowMs - er.LastQuotaRecoveryMs
	if elapsed <= 0 {
		return nil
	}
	recovered := uint64(elapsed) * transaction.EnergyFreeQuotaPerDay / transaction.EnergyRecoveryWindowMs
	if recovered == 0 {
		return nil
	}
	if recovered >= er.FreeQuotaUsed {
		er.FreeQuotaUsed = 0
	} else {
		er.FreeQuotaUsed -= recovered
	}
	er.LastQuotaRecoveryMs = nowMs
	return l.store.SetEnergyResource(account, er)
}
