package mempool

import (
	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/transaction"
)

// readOnlyView wraps a transaction.AccountState so transaction.Verify's one
// mutation (casAdvanceNonce's SetNonce call, spec §4.4 step 3) does not
// persist anywhere. The mempool speculatively verifies an incoming
// transaction without committing a block-apply; every write-side method is a
// no-op here, while every read-side method is promoted straight through to
// the wrapped state via embedding.
type readOnlyView struct {
	transaction.AccountState
}

func (v *readOnlyView) SetNonce(primitives.PublicKey, uint64) error { return nil }

func (v *readOnlyView) SetBalance(primitives.PublicKey, primitives.Hash, uint64) error { return nil }

func (v *readOnlyView) SetMultisigConfig(primitives.PublicKey, *transaction.MultiSigConfig) error {
	return nil
}

func (v *readOnlyView) SetEnergyResource(primitives.PublicKey, *transaction.EnergyResource) error {
	return nil
}

func (v *readOnlyView) InstallContractModule(primitives.Hash, *transaction.ContractModule) error {
	return nil
}

func (v *readOnlyView) UninstallContractModule(primitives.Hash) error { return nil }

func (v *readOnlyView) AddBurned(uint64) error { return nil }
