package relay

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/xai-blockchain/xai-sub002/chaincfg"
	"github.com/xai-blockchain/xai-sub002/fork"
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/mempool"
	"github.com/xai-blockchain/xai-sub002/wire"
)

// fakeNetwork is an in-memory stand-in for the node's real peer transport:
// Sign just wraps the payload without a real signature, and Broadcast/SendTo
// record what was sent instead of hitting a socket.
type fakeNetwork struct {
	mu        sync.Mutex
	connected []string
	sent      []*wire.Envelope
	broadcast []*wire.Envelope
}

func (f *fakeNetwork) Sign(payload wire.Payload) (*wire.Envelope, error) {
	return &wire.Envelope{Message: wire.Message{Payload: payload, Timestamp: time.Now().Unix()}}, nil
}

func (f *fakeNetwork) SendTo(nodeID string, env *wire.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeNetwork) Broadcast(env *wire.Envelope, excludeNodeID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, env)
	var sentTo []string
	for _, id := range f.connected {
		if id != excludeNodeID {
			sentTo = append(sentTo, id)
		}
	}
	return sentTo
}

func (f *fakeNetwork) ConnectedPeerIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.connected...)
}

// fakePersister records every block Relay checkpoints after accepting it,
// standing in for persist.Checkpointer.
type fakePersister struct {
	mu        sync.Mutex
	connected []uint64
}

func (f *fakePersister) OnConnect(height uint64, _ wire.BlockHash, _ string, _ *wire.Block, _ *ledger.UTXOSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, height)
	return nil
}

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

func newChainAndRelay(t *testing.T) (*Relay, *fork.Manager, *chaincfg.Params, *wire.Block, *fakeNetwork) {
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
	chain, err := fork.New(&params, genesis, set)
	if err != nil {
		t.Fatalf("fork.New: %v", err)
	}
	pool := mempool.New(mempool.Policy{MinRelayFee: 1, MaxMempoolSize: 1 << 20, MaxMempoolCount: 100})
	net := &fakeNetwork{}
	r := New(net, chain, pool, nil)
	return r, chain, &params, genesis, net
}

func TestHandleBlockBroadcastsAndExtendsTip(t *testing.T) {
	r, chain, params, genesis, net := newChainAndRelay(t)
	child := mineChild(t, params, &genesis.Header, 0)
	net.connected = []string{"peer-b", "peer-c"}

	env := &wire.Envelope{Message: wire.Message{Payload: wire.Payload{Kind: wire.KindBlock, Block: child}}}
	if err := r.HandleEnvelope("peer-b", env); err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}

	_, tipHash := chain.Tip()
	wantHash, _ := child.Hash()
	if tipHash != wantHash {
		t.Fatalf("tip hash = %s, want %s", tipHash, wantHash)
	}
	if len(net.broadcast) != 1 {
		t.Fatalf("broadcast count = %d, want 1", len(net.broadcast))
	}
}

func TestHandleBlockDemotesSenderOnInvalidBlock(t *testing.T) {
	r, _, params, genesis, _ := newChainAndRelay(t)
	child := mineChild(t, params, &genesis.Header, 0)
	child.Header.MerkleRoot = wire.BlockHash{} // corrupt it

	env := &wire.Envelope{Message: wire.Message{Payload: wire.Payload{Kind: wire.KindBlock, Block: child}}}
	if err := r.HandleEnvelope("peer-b", env); err == nil {
		t.Fatal("expected an error for an invalid block")
	}
	if r.scores.scores["peer-b"] >= 0 {
		t.Fatalf("peer-b score = %d, want negative after invalid block", r.scores.scores["peer-b"])
	}
}

func TestHandleGetHeadersReturnsChainFromGenesis(t *testing.T) {
	r, chain, params, genesis, net := newChainAndRelay(t)
	child := mineChild(t, params, &genesis.Header, 0)
	if _, _, err := chain.AcceptBlock(child); err != nil {
		t.Fatalf("AcceptBlock: %v", err)
	}
	genesisHash, _ := genesis.Hash()

	req := &wire.GetHeadersPayload{StartHash: genesisHash, Limit: 10, RequestID: "req-1"}
	if err := r.handleGetHeaders("peer-b", req); err != nil {
		t.Fatalf("handleGetHeaders: %v", err)
	}
	if len(net.sent) != 1 {
		t.Fatalf("sent count = %d, want 1", len(net.sent))
	}
	headers := net.sent[0].Message.Payload.Headers
	if headers == nil || len(headers.Headers) != 1 {
		t.Fatalf("got %d headers, want 1", len(headers.Headers))
	}
}

func TestRequestCatchUpPicksHighestScoringPeer(t *testing.T) {
	r, _, _, _, net := newChainAndRelay(t)
	net.connected = []string{"peer-a", "peer-b"}
	r.scores.Promote("peer-b")
	r.scores.Promote("peer-b")

	if err := r.RequestCatchUp(); err != nil {
		t.Fatalf("RequestCatchUp: %v", err)
	}
	if len(net.sent) != 1 {
		t.Fatalf("sent count = %d, want 1", len(net.sent))
	}
	if net.sent[0].Message.Payload.Kind != wire.KindGetHeaders {
		t.Fatalf("kind = %s, want get_headers", net.sent[0].Message.Payload.Kind)
	}
	if len(r.tracker.pending) != 1 {
		t.Fatalf("pending requests = %d, want 1", len(r.tracker.pending))
	}
	for _, pr := range r.tracker.pending {
		if pr.nodeID != "peer-b" {
			t.Fatalf("request sent to %s, want peer-b", pr.nodeID)
		}
	}
}

func TestHandleHeadersIgnoresReplyFromWrongPeer(t *testing.T) {
	r, _, _, _, net := newChainAndRelay(t)
	net.connected = []string{"peer-a"}
	if err := r.requestHeadersFrom("peer-a"); err != nil {
		t.Fatalf("requestHeadersFrom: %v", err)
	}
	requestID := net.sent[0].Message.Payload.GetHeaders.RequestID

	err := r.handleHeaders("peer-b", &wire.HeadersPayload{RequestID: requestID})
	if err != nil {
		t.Fatalf("handleHeaders: %v", err)
	}
	// peer-a should not have been promoted since the reply claimed to come
	// from peer-b instead.
	if r.scores.scores["peer-a"] != 0 {
		t.Fatalf("peer-a score = %d, want 0", r.scores.scores["peer-a"])
	}
}

func TestHandleBlockCheckpointsOnAcceptedTip(t *testing.T) {
	r, _, params, genesis, net := newChainAndRelay(t)
	persister := &fakePersister{}
	r.persister = persister
	net.connected = []string{"peer-b"}

	child := mineChild(t, params, &genesis.Header, 0)
	env := &wire.Envelope{Message: wire.Message{Payload: wire.Payload{Kind: wire.KindBlock, Block: child}}}
	if err := r.HandleEnvelope("peer-a", env); err != nil {
		t.Fatalf("HandleEnvelope: %v", err)
	}

	persister.mu.Lock()
	defer persister.mu.Unlock()
	if len(persister.connected) != 1 || persister.connected[0] != 1 {
		t.Fatalf("checkpointed heights = %v, want [1]", persister.connected)
	}
}
