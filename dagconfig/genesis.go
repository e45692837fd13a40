package dagconfig

import (
	"github.com/tos-network/tos-core/block"
	"github.com/tos-network/tos-core/primitives"
)

// Genesis returns p's genesis header: zero parents, zero nonce, the
// network's declared genesis timestamp, and an empty transaction-hash
// commitment. Grounded on the teacher's domain/dagconfig/genesis.go
// hand-built genesisBlock, generalized from a hard-coded UTXO coinbase
// transaction to this account model's header-only genesis (the core never
// mints a coinbase transaction; miner rewards are fee-only, per spec
// §4.4's fee distribution).
func Genesis(p *Params) *block.Header {
	return &block.Header{
		Version:     0,
		Parents:     nil,
		TimestampMs: p.GenesisTimestampMs,
		Height:      0,
		Nonce:       0,
		Miner:       GenesisMiner,
		ExtraNonce:  primitives.Hash{},
		TxsHashRoot: block.TxsHashRootOf(nil),
	}
}
