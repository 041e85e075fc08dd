package mempool

import (
	"testing"

	"github.com/xai-blockchain/xai-sub002/crypto"
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/util"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// harness bundles a funded UTXO set and the keys that own it, the way the
// teacher's fakeDAG gave mempool tests a controllable chain state to test
// against.
type harness struct {
	t     *testing.T
	set   *ledger.UTXOSet
	alice *crypto.PrivateKey
	bob   *crypto.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	alice, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	bob, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	set := ledger.NewUTXOSet()
	aliceAddr := alice.PubKey().Address(util.AddressVersion(0)).Encode()
	genesis := &wire.Block{
		Transactions: []*wire.Transaction{
			{Version: 1, TxOut: []*wire.TxOut{{Address: aliceAddr, Amount: 1000000}}, Timestamp: 1},
		},
	}
	if _, err := set.ApplyBlock(genesis, 0, 1e18, 1000000); err != nil {
		t.Fatalf("ApplyBlock(genesis): %v", err)
	}
	return &harness{t: t, set: set, alice: alice, bob: bob}
}

func (h *harness) spend(outpoint wire.Outpoint, amount, fee uint64, payTo string) *wire.Transaction {
	h.t.Helper()
	tx := &wire.Transaction{
		Version:   1,
		TxIn:      []*wire.TxIn{{PreviousOutpoint: outpoint}},
		TxOut:     []*wire.TxOut{{Address: payTo, Amount: amount - fee}},
		Fee:       fee,
		Timestamp: 1,
		Nonce:     1,
		PubKeys:   [][]byte{h.alice.PubKey().SerializeCompressed()},
	}
	pre, err := tx.CanonicalPreimage()
	if err != nil {
		h.t.Fatalf("CanonicalPreimage: %v", err)
	}
	hash := util.Hash256(pre)
	tx.Sigs = [][]byte{h.alice.Sign(hash).Serialize()}
	return tx
}

// spendAs builds a transaction like spend, but signed by signer rather than
// always alice, so a test can spend an output owned by whichever key it was
// actually paid to (e.g. a mempool parent's output paid to bob).
func (h *harness) spendAs(signer *crypto.PrivateKey, outpoint wire.Outpoint, amount, fee uint64, payTo string) *wire.Transaction {
	h.t.Helper()
	tx := &wire.Transaction{
		Version:   1,
		TxIn:      []*wire.TxIn{{PreviousOutpoint: outpoint}},
		TxOut:     []*wire.TxOut{{Address: payTo, Amount: amount - fee}},
		Fee:       fee,
		Timestamp: 1,
		Nonce:     1,
		PubKeys:   [][]byte{signer.PubKey().SerializeCompressed()},
	}
	pre, err := tx.CanonicalPreimage()
	if err != nil {
		h.t.Fatalf("CanonicalPreimage: %v", err)
	}
	hash := util.Hash256(pre)
	tx.Sigs = [][]byte{signer.Sign(hash).Serialize()}
	return tx
}

func (h *harness) genesisOutpoint() wire.Outpoint {
	h.t.Helper()
	// The harness always funds a single genesis coinbase output at index 0.
	for outpoint := range h.outpoints() {
		return outpoint
	}
	h.t.Fatalf("no outpoints in funded UTXO set")
	return wire.Outpoint{}
}

func (h *harness) outpoints() map[wire.Outpoint]bool {
	// Reconstructing the genesis coinbase TxID directly keeps the harness
	// independent of UTXOSet internals.
	tx := &wire.Transaction{
		Version:   1,
		TxOut:     []*wire.TxOut{{Address: h.alice.PubKey().Address(util.AddressVersion(0)).Encode(), Amount: 1000000}},
		Timestamp: 1,
	}
	id, err := tx.TxID()
	if err != nil {
		h.t.Fatalf("TxID: %v", err)
	}
	return map[wire.Outpoint]bool{{TxID: id, Index: 0}: true}
}

func TestAddTransactionAdmitsValidSpend(t *testing.T) {
	h := newHarness(t)
	pool := New(Policy{MinRelayFee: 100, MaxMempoolSize: 1 << 20, MaxMempoolCount: 100})

	bobAddr := h.bob.PubKey().Address(util.AddressVersion(0)).Encode()
	tx := h.spend(h.genesisOutpoint(), 1000000, 500, bobAddr)

	entry, err := pool.AddTransaction(tx, h.set)
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if entry.Fee != 500 {
		t.Fatalf("entry.Fee = %d, want 500", entry.Fee)
	}
	if !pool.Has(entry.TxID) {
		t.Fatalf("pool does not contain admitted transaction")
	}
}

func TestAddTransactionRejectsBelowMinRelayFee(t *testing.T) {
	h := newHarness(t)
	pool := New(Policy{MinRelayFee: 1000, MaxMempoolSize: 1 << 20, MaxMempoolCount: 100})

	bobAddr := h.bob.PubKey().Address(util.AddressVersion(0)).Encode()
	tx := h.spend(h.genesisOutpoint(), 1000000, 10, bobAddr)

	_, err := pool.AddTransaction(tx, h.set)
	pe, ok := err.(PolicyError)
	if !ok || pe.RejectCode != RejectInsufficientFee {
		t.Fatalf("AddTransaction: got error %v, want RejectInsufficientFee", err)
	}
}

func TestAddTransactionRBFReplacesLowerFeeConflict(t *testing.T) {
	h := newHarness(t)
	pool := New(Policy{MinRelayFee: 1, MaxMempoolSize: 1 << 20, MaxMempoolCount: 100})

	bobAddr := h.bob.PubKey().Address(util.AddressVersion(0)).Encode()
	outpoint := h.genesisOutpoint()

	low := h.spend(outpoint, 1000000, 100, bobAddr)
	lowEntry, err := pool.AddTransaction(low, h.set)
	if err != nil {
		t.Fatalf("AddTransaction(low): %v", err)
	}

	high := h.spend(outpoint, 1000000, 100000, bobAddr)
	highEntry, err := pool.AddTransaction(high, h.set)
	if err != nil {
		t.Fatalf("AddTransaction(high): %v", err)
	}

	if pool.Has(lowEntry.TxID) {
		t.Fatalf("lower fee-rate conflicting transaction was not evicted by RBF replacement")
	}
	if !pool.Has(highEntry.TxID) {
		t.Fatalf("replacement transaction was not admitted")
	}
}

func TestAddTransactionRejectsLowerFeeConflict(t *testing.T) {
	h := newHarness(t)
	pool := New(Policy{MinRelayFee: 1, MaxMempoolSize: 1 << 20, MaxMempoolCount: 100})

	bobAddr := h.bob.PubKey().Address(util.AddressVersion(0)).Encode()
	outpoint := h.genesisOutpoint()

	high := h.spend(outpoint, 1000000, 100000, bobAddr)
	if _, err := pool.AddTransaction(high, h.set); err != nil {
		t.Fatalf("AddTransaction(high): %v", err)
	}

	low := h.spend(outpoint, 1000000, 100, bobAddr)
	_, err := pool.AddTransaction(low, h.set)
	pe, ok := err.(PolicyError)
	if !ok || pe.RejectCode != RejectConflict {
		t.Fatalf("AddTransaction(low): got error %v, want RejectConflict", err)
	}
}

func TestAddTransactionAdmitsChainedMempoolSpend(t *testing.T) {
	h := newHarness(t)
	pool := New(Policy{MinRelayFee: 1, MaxMempoolSize: 1 << 20, MaxMempoolCount: 100})

	bobAddr := h.bob.PubKey().Address(util.AddressVersion(0)).Encode()
	aliceAddr := h.alice.PubKey().Address(util.AddressVersion(0)).Encode()

	parent := h.spend(h.genesisOutpoint(), 1000000, 100, bobAddr)
	parentEntry, err := pool.AddTransaction(parent, h.set)
	if err != nil {
		t.Fatalf("AddTransaction(parent): %v", err)
	}

	// child spends parent's output, which the committed UTXO set (h.set)
	// has never heard of: only the pool's chained-mempool overlay makes it
	// visible.
	childOutpoint := wire.Outpoint{TxID: parentEntry.TxID, Index: 0}
	child := h.spendAs(h.bob, childOutpoint, parentEntry.Tx.TxOut[0].Amount, 100, aliceAddr)

	childEntry, err := pool.AddTransaction(child, h.set)
	if err != nil {
		t.Fatalf("AddTransaction(child): %v", err)
	}
	if len(childEntry.Deps) != 1 || childEntry.Deps[0] != parentEntry.TxID {
		t.Fatalf("child.Deps = %v, want [%s]", childEntry.Deps, parentEntry.TxID)
	}
}
