package fork

import (
	"math/big"
	"testing"
	"time"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// mineChild builds a child block of parent and returns it once it mines a
// nonce satisfying params' (very easy, on simnet) proof-of-work target.
func mineChild(t *testing.T, params *chaincfg.Params, parent *wire.BlockHeader, extraNonce uint64) *wire.Block {
	t.Helper()
	parentHash, err := parent.Hash()
	if err != nil {
		t.Fatalf("parent.Hash: %v", err)
	}
	coinbase := wire.NewCoinbaseTransaction(params.InitialSubsidy, "miner", parent.Height+1, time.Unix(parent.Timestamp+1, 0))
	root, err := wire.BuildMerkleRoot([]*wire.Transaction{coinbase})
	if err != nil {
		t.Fatalf("BuildMerkleRoot: %v", err)
	}
	header := wire.BlockHeader{
		PreviousHash: parentHash,
		MerkleRoot:   root,
		Timestamp:    parent.Timestamp + 1,
		Bits:         chaincfg.BigToCompact(params.PowLimit),
		Height:       parent.Height + 1,
	}
	for nonce := extraNonce; nonce < extraNonce+256; nonce++ {
		header.Nonce = nonce
		block := &wire.Block{Header: header, Transactions: []*wire.Transaction{coinbase}}
		hash, err := header.Hash()
		if err != nil {
			t.Fatalf("header.Hash: %v", err)
		}
		hashNum := new(big.Int).SetBytes(hash[:])
		target := chaincfg.CompactToBig(header.Bits)
		if hashNum.Cmp(target) <= 0 {
			return block
		}
	}
	t.Fatalf("failed to mine a valid nonce in range [%d, %d)", extraNonce, extraNonce+256)
	return nil
}

func newManager(t *testing.T) (*Manager, *chaincfg.Params, *wire.Block) {
	t.Helper()
	params := chaincfg.SimNetParams
	genesis, err := params.GenesisWireBlock()
	if err != nil {
		t.Fatalf("GenesisWireBlock: %v", err)
	}
	var genesisAmount uint64
	for _, out := range genesis.Transactions[0].TxOut {
		genesisAmount += out.Amount
	}
	set := ledger.NewUTXOSet()
	if _, err := set.ApplyBlock(genesis, 0, params.MaxSupply, genesisAmount); err != nil {
		t.Fatalf("ApplyBlock(genesis): %v", err)
	}
	m, err := New(&params, genesis, set)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, &params, genesis
}

func TestAcceptBlockExtendsTip(t *testing.T) {
	m, params, genesis := newManager(t)
	child := mineChild(t, params, &genesis.Header, 0)

	result, _, err := m.AcceptBlock(child)
	if err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}
	if result != AcceptExtendedTip {
		t.Fatalf("AcceptBlock result = %v, want AcceptExtendedTip", result)
	}
	_, tipHash := m.Tip()
	wantHash, _ := child.Hash()
	if tipHash != wantHash {
		t.Fatalf("tip hash = %s, want %s", tipHash, wantHash)
	}
}

func TestAcceptBlockOrphansUnknownParent(t *testing.T) {
	m, params, genesis := newManager(t)
	a := mineChild(t, params, &genesis.Header, 0)
	orphanChild := mineChild(t, params, &a.Header, 0) // a is never submitted

	result, _, err := m.AcceptBlock(orphanChild)
	if err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}
	if result != AcceptOrphan {
		t.Fatalf("AcceptBlock result = %v, want AcceptOrphan", result)
	}
}

func TestAcceptBlockReorganizesOnMoreWork(t *testing.T) {
	m, params, genesis := newManager(t)

	mainA := mineChild(t, params, &genesis.Header, 0)
	if _, _, err := m.AcceptBlock(mainA); err != nil {
		t.Fatalf("AcceptBlock(mainA): %v", err)
	}
	mainB := mineChild(t, params, &mainA.Header, 0)
	if _, _, err := m.AcceptBlock(mainB); err != nil {
		t.Fatalf("AcceptBlock(mainB): %v", err)
	}

	// A side chain starting at genesis overtakes the two-block main chain
	// only once it carries strictly more total work: at two blocks it merely
	// ties, so the reorganization happens when its third block lands.
	sideA := mineChild(t, params, &genesis.Header, 1000)
	if _, _, err := m.AcceptBlock(sideA); err != nil {
		t.Fatalf("AcceptBlock(sideA): %v", err)
	}
	_, tipHash := m.Tip()
	mainBHash, _ := mainB.Hash()
	if tipHash != mainBHash {
		t.Fatalf("tip should still be mainB after a shorter side chain block, got %s", tipHash)
	}

	sideB := mineChild(t, params, &sideA.Header, 1000)
	sideC := mineChild(t, params, &sideB.Header, 1000)
	if _, _, err := m.AcceptBlock(sideB); err != nil {
		t.Fatalf("AcceptBlock(sideB): %v", err)
	}
	result, _, err := m.AcceptBlock(sideC)
	if err != nil {
		t.Fatalf("AcceptBlock(sideC): %v", err)
	}
	if result != AcceptReorganized {
		t.Fatalf("AcceptBlock(sideC) result = %v, want AcceptReorganized", result)
	}

	_, tipHash = m.Tip()
	sideCHash, _ := sideC.Hash()
	if tipHash != sideCHash {
		t.Fatalf("tip after reorganization = %s, want %s", tipHash, sideCHash)
	}
}
