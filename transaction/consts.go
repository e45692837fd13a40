package transaction

// Monetary unit: 1 TOS = AtomicPerTOS atomic units, matching spec §8 S2's
// "FEE_PER_ACCOUNT_CREATION = 10_000_000" being described as "0.1 TOS" in
// §6.4.
const AtomicPerTOS = 100_000_000

// Fee constants, per spec §6.4 (enforced exactly).
const (
	FeePerAccountCreation   = AtomicPerTOS / 10 // 0.1 TOS
	FeePerMultiSigSignature = AtomicPerTOS      // 1 TOS per participant signature
	TXGasBurnPercent        = 30
)

// Energy cost constants, per spec §6.4.
const (
	EnergyPerTransferOutput    = 100
	EnergyPerUNOTransferOutput = 500
	EnergyNewAccountSurcharge  = 25_000
	EnergyBurnCost             = 1_000
	EnergyDeployBaseCost       = 32_000
	EnergyDeployPerByteCost    = 10
	EnergyFreeQuotaPerDay      = 1_500
	EnergyRecoveryWindowMs     = 24 * 60 * 60 * 1000
	TOSPerEnergy               = 100 // atomic TOS burned per energy unit, auto-burn tier
)

// Structural limits. Spec §4.4/§7 names these checks (TransferCount,
// ExtraDataTooLarge, MaxGasReached) without fixing their numeric bounds;
// these values are a judgment call recorded in DESIGN.md, chosen to be
// generous enough not to reject ordinary transactions while still bounding
// worst-case block/state growth.
const (
	MaxTransferCount      = 255
	ExtraDataLimitSize    = 1024
	ExtraDataLimitSumSize = 4096
	MaxGasUsagePerTx      = 10_000_000
)
