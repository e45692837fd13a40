package storage

// Column identifies one of the disjoint keyspaces listed in spec §4.1.
// Grounded on the teacher's per-concern bucket pattern (e.g.
// dbaccess.reachabilityDataBucket = database2.MakeBucket([]byte("reachability"))),
// generalized into a closed enum so every backend shares one canonical
// namespace layout instead of each store inventing its own bucket name.
type Column string

// Canonical columns, per spec §4.1's table.
const (
	ColumnBlocks                      Column = "blocks"
	ColumnBlockTransactions           Column = "block-transactions"
	ColumnTransactions                Column = "transactions"
	ColumnTopoByHash                  Column = "topo-by-hash"
	ColumnHashAtTopo                  Column = "hash-at-topo"
	ColumnBlocksExecutionOrder        Column = "blocks-execution-order"
	ColumnBlockDifficulty             Column = "block-difficulty"
	ColumnTopoHeightMetadata          Column = "topoheight-metadata"
	ColumnBlocksAtBlueScore           Column = "blocks-at-blue-score"
	ColumnGhostdagData                Column = "ghostdag-data"
	ColumnReachability                Column = "reachability"
	ColumnBalances                    Column = "balances"
	ColumnVersionedBalances           Column = "versioned-balances"
	ColumnNonces                      Column = "nonces"
	ColumnVersionedNonces             Column = "versioned-nonces"
	ColumnEnergyResources             Column = "energy-resources"
	ColumnVersionedEnergyResources    Column = "versioned-energy-resources"
	ColumnContracts                   Column = "contracts"
	ColumnVersionedContractData       Column = "versioned-contract-data"
	ColumnMultisigState               Column = "multisig-state"
	ColumnVersionedMultisigState      Column = "versioned-multisig-state"
)

// AllColumns enumerates every column, used by backends that need to
// pre-create namespaces (e.g. one LevelDB prefix per column) at open time.
func AllColumns() []Column {
	return []Column{
		ColumnBlocks, ColumnBlockTransactions, ColumnTransactions,
		ColumnTopoByHash, ColumnHashAtTopo, ColumnBlocksExecutionOrder,
		ColumnBlockDifficulty, ColumnTopoHeightMetadata, ColumnBlocksAtBlueScore,
		ColumnGhostdagData, ColumnReachability, ColumnBalances,
		ColumnVersionedBalances, ColumnNonces, ColumnVersionedNonces,
		ColumnEnergyResources, ColumnVersionedEnergyResources,
		ColumnContracts, ColumnVersionedContractData, ColumnMultisigState,
		ColumnVersionedMultisigState,
	}
}
