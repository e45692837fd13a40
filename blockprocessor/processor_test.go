package blockprocessor

import (
	"testing"
	"time"

	"github.com/tos-network/tos-core/block"
	"github.com/tos-network/tos-core/dagconfig"
	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/storage/memdb"
	"github.com/tos-network/tos-core/transaction"
)

// testParams keeps genesis's own difficulty-1 block trivially retargetable:
// a two-block-wide DAA window means the very first post-genesis block's
// expected span equals its actual (padded) span, so NextDifficulty returns
// 1 and any hash meets target — no real mining needed to exercise
// ProcessBlock's full accept path.
var testParams = &dagconfig.Params{
	Name:                          "blockprocessor-test",
	K:                             3,
	DAAWindowSize:                 2,
	AncestryGap:                   dagconfig.DefaultAncestryGap,
	TargetTimePerBlock:            time.Second,
	TimestampDeviationToleranceMs: 132 * 1000,
	GenesisTimestampMs:            1700000000000,
}

func miner(b byte) primitives.PublicKey {
	var k primitives.PublicKey
	k[0] = b
	return k
}

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := New(testParams, memdb.New(), nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func childHeader(parent primitives.Hash, timestampMs int64, height uint64) *block.Header {
	return &block.Header{
		Version:     0,
		Parents:     []primitives.Hash{parent},
		TimestampMs: timestampMs,
		Height:      height,
		Nonce:       0,
		Miner:       miner(7),
		ExtraNonce:  primitives.Hash{},
		TxsHashRoot: block.TxsHashRootOf(nil),
	}
}

func TestNewBootstrapsGenesisOnce(t *testing.T) {
	backend := memdb.New()
	p1, err := New(testParams, backend, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	genesisHash := p1.GenesisHash()

	blocks := block.NewStore(backend)
	has, err := blocks.HasHeader(genesisHash)
	if err != nil || !has {
		t.Fatalf("expected genesis header to be persisted, has=%v err=%v", has, err)
	}

	p2, err := New(testParams, backend, nil, nil, nil)
	if err != nil {
		t.Fatalf("second New over the same backend should not fail: %v", err)
	}
	if p2.GenesisHash() != genesisHash {
		t.Fatal("expected the same genesis hash across Processor instances over the same backend")
	}
}

func TestProcessBlockAcceptsValidChild(t *testing.T) {
	p := newTestProcessor(t)
	genesisHash := p.GenesisHash()

	header := childHeader(genesisHash, testParams.GenesisTimestampMs+1000, 1)
	if err := p.ProcessBlock(header, nil); err != nil {
		t.Fatalf("ProcessBlock on a valid child of genesis: %v", err)
	}

	hash := header.Hash()
	blocks := block.NewStore(p.backend)
	has, err := blocks.HasHeader(hash)
	if err != nil || !has {
		t.Fatalf("expected accepted block's header to be persisted, has=%v err=%v", has, err)
	}
	topo, err := blocks.TopoByHash(hash)
	if err != nil {
		t.Fatalf("TopoByHash: %v", err)
	}
	if topo != 1 {
		t.Fatalf("expected genesis's first child at topoheight 1, got %d", topo)
	}
}

func TestProcessBlockRejectsDuplicate(t *testing.T) {
	p := newTestProcessor(t)
	header := childHeader(p.GenesisHash(), testParams.GenesisTimestampMs+1000, 1)
	if err := p.ProcessBlock(header, nil); err != nil {
		t.Fatalf("first ProcessBlock: %v", err)
	}
	if err := p.ProcessBlock(header, nil); err != ErrDuplicateBlock {
		t.Fatalf("expected ErrDuplicateBlock on resubmission, got %v", err)
	}
}

func TestProcessBlockRejectsUnknownParent(t *testing.T) {
	p := newTestProcessor(t)
	var unknown primitives.Hash
	unknown[0] = 0xff
	header := childHeader(unknown, testParams.GenesisTimestampMs+1000, 1)
	if err := p.ProcessBlock(header, nil); err != ErrParentNotFound {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
}

func TestProcessBlockRejectsNoParents(t *testing.T) {
	p := newTestProcessor(t)
	header := childHeader(p.GenesisHash(), testParams.GenesisTimestampMs+1000, 1)
	header.Parents = nil
	header.TxsHashRoot = block.TxsHashRootOf(nil)
	if err := p.ProcessBlock(header, nil); err != ErrNoParents {
		t.Fatalf("expected ErrNoParents, got %v", err)
	}
}

func TestProcessBlockRejectsTimestampTooFarInFuture(t *testing.T) {
	p := newTestProcessor(t)
	header := childHeader(p.GenesisHash(), time.Now().UnixMilli()+10*testParams.TimestampDeviationToleranceMs, 1)
	if err := p.ProcessBlock(header, nil); err != ErrTimestampTooFarFuture {
		t.Fatalf("expected ErrTimestampTooFarFuture, got %v", err)
	}
}

func TestProcessBlockRejectsTxsHashMismatch(t *testing.T) {
	p := newTestProcessor(t)
	header := childHeader(p.GenesisHash(), testParams.GenesisTimestampMs+1000, 1)
	header.TxsHashRoot = primitives.Hash{0x01}
	if err := p.ProcessBlock(header, nil); err != ErrTxsHashMismatch {
		t.Fatalf("expected ErrTxsHashMismatch, got %v", err)
	}
}

func TestEncodeDecodeTransactionRoundTrip(t *testing.T) {
	tx := &transaction.Transaction{
		Version: transaction.VersionT0,
		Source:  miner(1),
		Nonce:   42,
		Fee:     10,
		FeeType: transaction.FeeTypeTOS,
		Data: transaction.TransactionData{
			Kind: transaction.KindTransfers,
			Transfers: []transaction.Transfer{
				{Destination: miner(2), Amount: 100},
			},
		},
	}
	tx.Signature[0] = 0xab

	encoded := EncodeTransaction(tx)
	decoded, err := DecodeTransaction(encoded)
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if decoded.Nonce != tx.Nonce || decoded.Fee != tx.Fee {
		t.Fatalf("round-tripped scalar fields mismatch: %+v", decoded)
	}
	if decoded.Signature != tx.Signature {
		t.Fatalf("expected the real signature to survive the round trip, got %x", decoded.Signature)
	}
	if len(decoded.Data.Transfers) != 1 || decoded.Data.Transfers[0].Amount != 100 {
		t.Fatalf("round-tripped transfer mismatch: %+v", decoded.Data)
	}
}
