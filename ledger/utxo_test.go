package ledger

import (
	"testing"

	"github.com/xai-blockchain/xai-sub002/crypto"
	"github.com/xai-blockchain/xai-sub002/util"
	"github.com/xai-blockchain/xai-sub002/wire"
)

func mustPrivKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	return priv
}

func addressFor(t *testing.T, priv *crypto.PrivateKey) string {
	t.Helper()
	return priv.PubKey().Address(util.AddressVersion(0)).Encode()
}

// signedSpend builds a one-input, one-output transaction spending outpoint,
// signed by priv, the way a wallet would construct one.
func signedSpend(t *testing.T, priv *crypto.PrivateKey, outpoint wire.Outpoint, amount, fee uint64, payTo string) *wire.Transaction {
	t.Helper()
	tx := &wire.Transaction{
		Version:   1,
		TxIn:      []*wire.TxIn{{PreviousOutpoint: outpoint}},
		TxOut:     []*wire.TxOut{{Address: payTo, Amount: amount - fee}},
		Fee:       fee,
		Timestamp: 1700000000,
		Nonce:     1,
		PubKeys:   [][]byte{priv.PubKey().SerializeCompressed()},
	}
	pre, err := tx.CanonicalPreimage()
	if err != nil {
		t.Fatalf("CanonicalPreimage: %v", err)
	}
	hash := util.Hash256(pre)
	sig := priv.Sign(hash)
	tx.Sigs = [][]byte{sig.Serialize()}
	return tx
}

func TestApplyBlockGenesisThenSpend(t *testing.T) {
	alice := mustPrivKey(t)
	bob := mustPrivKey(t)
	aliceAddr := addressFor(t, alice)
	bobAddr := addressFor(t, bob)

	set := NewUTXOSet()

	genesis := &wire.Block{
		Header: wire.BlockHeader{Height: 0},
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 5000000000}}, Timestamp: 1700000000},
		},
	}
	if _, err := set.ApplyBlock(genesis, 0, 21000000*1e8, 5000000000); err != nil {
		t.Fatalf("ApplyBlock(genesis): %v", err)
	}
	if set.CirculatingSupply() != 5000000000 {
		t.Fatalf("circulating supply = %d, want 5000000000", set.CirculatingSupply())
	}

	genesisCoinbaseID, err := genesis.Transactions[0].TxID()
	if err != nil {
		t.Fatalf("TxID: %v", err)
	}
	outpoint := wire.Outpoint{TxID: genesisCoinbaseID, Index: 0}
	if !set.Contains(outpoint) {
		t.Fatalf("genesis output not present in UTXO set")
	}

	spend := signedSpend(t, alice, outpoint, 5000000000, 1000, bobAddr)
	block2 := &wire.Block{
		Header: wire.BlockHeader{Height: 1},
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 2500000000}}, Timestamp: 1700000120},
			spend,
		},
	}
	if _, err := set.ApplyBlock(block2, 1, 21000000*1e8, 2500000000); err != nil {
		t.Fatalf("ApplyBlock(block2): %v", err)
	}
	if set.Contains(outpoint) {
		t.Fatalf("spent outpoint still present after ApplyBlock")
	}
	wantSupply := uint64(5000000000 - 1000 + 2500000000)
	if set.CirculatingSupply() != wantSupply {
		t.Fatalf("circulating supply after spend = %d, want %d", set.CirculatingSupply(), wantSupply)
	}
}

func TestApplyBlockRejectsDoubleSpendWithinBlock(t *testing.T) {
	alice := mustPrivKey(t)
	bob := mustPrivKey(t)
	aliceAddr := addressFor(t, alice)
	bobAddr := addressFor(t, bob)

	set := NewUTXOSet()
	genesis := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 1000}}, Timestamp: 1},
		},
	}
	if _, err := set.ApplyBlock(genesis, 0, 1e18, 1000); err != nil {
		t.Fatalf("ApplyBlock(genesis): %v", err)
	}
	coinbaseID, _ := genesis.Transactions[0].TxID()
	outpoint := wire.Outpoint{TxID: coinbaseID, Index: 0}

	spendA := signedSpend(t, alice, outpoint, 1000, 10, bobAddr)
	spendB := signedSpend(t, alice, outpoint, 1000, 10, bobAddr)
	block := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 20}}, Timestamp: 2},
			spendA,
			spendB,
		},
	}
	_, err := set.ApplyBlock(block, 1, 1e18, 20)
	if err == nil {
		t.Fatalf("ApplyBlock: expected double-spend rejection, got nil error")
	}
	ve, ok := err.(ValidationError)
	if !ok || ve.ErrorCode != ErrDoubleSpend {
		t.Fatalf("ApplyBlock: got error %v, want ErrDoubleSpend", err)
	}
}

func TestApplyBlockRejectsUnownedSpend(t *testing.T) {
	alice := mustPrivKey(t)
	mallory := mustPrivKey(t)
	aliceAddr := addressFor(t, alice)
	bobAddr := addressFor(t, mallory)

	set := NewUTXOSet()
	genesis := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 1000}}, Timestamp: 1},
		},
	}
	if _, err := set.ApplyBlock(genesis, 0, 1e18, 1000); err != nil {
		t.Fatalf("ApplyBlock(genesis): %v", err)
	}
	coinbaseID, _ := genesis.Transactions[0].TxID()
	outpoint := wire.Outpoint{TxID: coinbaseID, Index: 0}

	// mallory signs a spend of alice's output: valid signature, wrong owner.
	forged := signedSpend(t, mallory, outpoint, 1000, 0, bobAddr)
	block := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 0}}, Timestamp: 2},
			forged,
		},
	}
	_, err := set.ApplyBlock(block, 1, 1e18, 0)
	ve, ok := err.(ValidationError)
	if !ok || ve.ErrorCode != ErrUnownedOutput {
		t.Fatalf("ApplyBlock: got error %v, want ErrUnownedOutput", err)
	}
}

func TestRevertBlockRestoresSet(t *testing.T) {
	alice := mustPrivKey(t)
	bob := mustPrivKey(t)
	aliceAddr := addressFor(t, alice)
	bobAddr := addressFor(t, bob)

	set := NewUTXOSet()
	genesis := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 1000}}, Timestamp: 1},
		},
	}
	if _, err := set.ApplyBlock(genesis, 0, 1e18, 1000); err != nil {
		t.Fatalf("ApplyBlock(genesis): %v", err)
	}
	coinbaseID, _ := genesis.Transactions[0].TxID()
	outpoint := wire.Outpoint{TxID: coinbaseID, Index: 0}
	supplyBefore := set.CirculatingSupply()

	spend := signedSpend(t, alice, outpoint, 1000, 10, bobAddr)
	block2 := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 10}}, Timestamp: 2},
			spend,
		},
	}
	diff, err := set.ApplyBlock(block2, 1, 1e18, 0)
	if err != nil {
		t.Fatalf("ApplyBlock(block2): %v", err)
	}

	set.RevertBlock(diff)
	if !set.Contains(outpoint) {
		t.Fatalf("RevertBlock did not restore spent outpoint")
	}
	if set.CirculatingSupply() != supplyBefore {
		t.Fatalf("circulating supply after revert = %d, want %d", set.CirculatingSupply(), supplyBefore)
	}
}

func TestApplyBlockRejectsSupplyCapBreach(t *testing.T) {
	alice := mustPrivKey(t)
	aliceAddr := addressFor(t, alice)

	set := NewUTXOSet()
	genesis := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 100}}, Timestamp: 1},
		},
	}
	_, err := set.ApplyBlock(genesis, 0, 100, 100)
	if err != nil {
		t.Fatalf("ApplyBlock(genesis): %v", err)
	}

	block2 := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 1}}, Timestamp: 2},
		},
	}
	_, err = set.ApplyBlock(block2, 1, 100, 1)
	ve, ok := err.(ValidationError)
	if !ok || ve.ErrorCode != ErrSupplyCapExceeded {
		t.Fatalf("ApplyBlock: got error %v, want ErrSupplyCapExceeded", err)
	}
}
