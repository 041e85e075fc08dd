// Package node wires together every subsystem — chain, mempool, peer
// manager, connection manager, relay, persistence, and mining — into the
// running process, the way kaspad's top-level kaspad struct does for its
// own subsystems.
package node

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/xai-blockchain/xai-sub002/addrmgr"
	"github.com/xai-blockchain/xai-sub002/config"
	"github.com/xai-blockchain/xai-sub002/connmgr"
	"github.com/xai-blockchain/xai-sub002/crypto"
	"github.com/xai-blockchain/xai-sub002/fork"
	"github.com/xai-blockchain/xai-sub002/ledger"
	"github.com/xai-blockchain/xai-sub002/logger"
	"github.com/xai-blockchain/xai-sub002/mempool"
	"github.com/xai-blockchain/xai-sub002/mining"
	"github.com/xai-blockchain/xai-sub002/peermgr"
	"github.com/xai-blockchain/xai-sub002/persist"
	"github.com/xai-blockchain/xai-sub002/relay"
	"github.com/xai-blockchain/xai-sub002/util"
	"github.com/xai-blockchain/xai-sub002/util/panics"
	"github.com/xai-blockchain/xai-sub002/wire"
)

var nodeLog, _ = logger.Get(logger.SubsystemTags.NODE)

var spawn = panics.GoroutineWrapperFuncWithPanicHandler(nodeLog)

// Node is a wrapper for all of the node's concurrent services, the way
// kaspad's own top-level struct holds its address manager, net adapter,
// and connection manager side by side.
type Node struct {
	cfg *config.Config

	chain       *fork.Manager
	pool        *mempool.TxPool
	peers       *peermgr.Manager
	book        *addrmgr.AddressBook
	conns       *connmgr.Manager
	net         *network
	relay       *relay.Relay
	store       *persist.Store
	blocks      *persist.BlockLog
	headerIndex *persist.HeaderIndex
	checkpt     *persist.Checkpointer

	listener *peermgr.TCPListener

	started, shutdown int32
}

// New assembles every subsystem from cfg, recovering chain state from disk
// if a prior snapshot/block log exists, or bootstrapping from genesis
// otherwise.
func New(cfg *config.Config) (*Node, error) {
	params := cfg.NetParams()

	store, err := persist.NewStore(cfg.DataDir, cfg.BackupCount)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}
	blockLog, err := persist.OpenBlockLog(filepath.Join(cfg.DataDir, "blocks.log"))
	if err != nil {
		return nil, fmt.Errorf("opening block log: %w", err)
	}
	headerIndex, err := persist.OpenHeaderIndex(filepath.Join(cfg.DataDir, "headers"))
	if err != nil {
		return nil, fmt.Errorf("opening header index: %w", err)
	}

	snapshot, pending, err := persist.Recover(store, blockLog)
	if err != nil {
		return nil, fmt.Errorf("recovering chain state: %w", err)
	}

	var chain *fork.Manager
	if snapshot == nil {
		genesis, err := params.GenesisWireBlock()
		if err != nil {
			return nil, fmt.Errorf("materializing genesis block: %w", err)
		}
		chain, err = fork.New(params, genesis, ledger.NewUTXOSet())
		if err != nil {
			return nil, fmt.Errorf("initializing chain: %w", err)
		}
		chain.SetHeaderStore(headerIndex)
		for _, block := range pending {
			if _, _, err := chain.AcceptBlock(block); err != nil {
				return nil, fmt.Errorf("replaying logged block: %w", err)
			}
		}
	} else {
		tipBlock := &wire.Block{Header: snapshot.TipHeader}
		chain, err = fork.NewFromTip(params, tipBlock, snapshot.CumulativeWork, snapshot.UTXOSet())
		if err != nil {
			return nil, fmt.Errorf("resuming chain from snapshot: %w", err)
		}
		if err := seedHistoricalHeaders(chain, headerIndex); err != nil {
			return nil, fmt.Errorf("restoring historical headers: %w", err)
		}
		chain.SetHeaderStore(headerIndex)
		for _, block := range pending {
			if _, _, err := chain.AcceptBlock(block); err != nil {
				return nil, fmt.Errorf("replaying block logged since last snapshot: %w", err)
			}
		}
	}

	policy := mempool.PolicyFromParams(params)
	policy.MinRelayFee = cfg.MinRelayTxFee
	policy.MaxMempoolSize = int(cfg.MaxMempoolSize)
	policy.MaxOrphans = cfg.MaxOrphanTxs
	pool := mempool.New(policy)
	chain.SetCallbacks(
		func(block *wire.Block) { reAdmitTransactions(pool, chain, block) },
		func(block *wire.Block) { confirmTransactions(pool, block) },
	)

	keyPath := filepath.Join(cfg.DataDir, "keys", "signing_key.pem")
	signingKey, err := crypto.LoadOrCreatePrivateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading node identity: %w", err)
	}

	peers := peermgr.New(signingKey, peermgr.DefaultRateLimits())
	book := addrmgr.New()
	book.AddMany(cfg.AddPeer)
	net := newNetwork(peers)

	checkpt := persist.NewCheckpointer(store, blockLog, cfg.CheckpointInterval)
	r := relay.New(net, chain, pool, checkpt)

	return &Node{
		cfg:         cfg,
		chain:       chain,
		pool:        pool,
		peers:       peers,
		book:        book,
		net:         net,
		relay:       r,
		store:       store,
		blocks:      blockLog,
		headerIndex: headerIndex,
		checkpt:     checkpt,
	}, nil
}

// seedHistoricalHeaders restores every header persisted by a prior run into
// chain's arena, ascending by height so each header's parent is already
// present when it's seeded. Without this, a resumed node would only be able
// to answer get_headers requests starting from its snapshot's tip, since
// NewFromTip seeds just that one node.
func seedHistoricalHeaders(chain *fork.Manager, headerIndex *persist.HeaderIndex) error {
	records, err := headerIndex.All()
	if err != nil {
		return err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Header.Height < records[j].Header.Height })
	for _, record := range records {
		chain.SeedHeader(record.Hash, record.Header)
	}
	return nil
}

func dialTCP(address string, timeout time.Duration) (peermgr.Conn, error) {
	return peermgr.DialTCP(address, timeout)
}

// reAdmitTransactions returns every non-coinbase transaction in a
// disconnected block back to the mempool, so they're eligible for mining
// again on whichever chain wins.
func reAdmitTransactions(pool *mempool.TxPool, chain *fork.Manager, block *wire.Block) {
	utxo := chain.CommittedUTXOSet()
	for _, tx := range block.Transactions {
		if tx.IsCoinbase() {
			continue
		}
		if _, err := pool.AddTransaction(tx, utxo); err != nil {
			nodeLog.Debugf("dropping disconnected transaction: %s", err)
		}
	}
}

// confirmTransactions removes every transaction newly committed by block
// from the mempool.
func confirmTransactions(pool *mempool.TxPool, block *wire.Block) {
	for _, tx := range block.Transactions {
		if tx.IsCoinbase() {
			continue
		}
		txid, err := tx.TxID()
		if err != nil {
			continue
		}
		pool.RemoveTransaction(txid)
	}
}

// Start launches every concurrent service: inbound/outbound peer I/O,
// mempool and chain maintenance, persistence checkpointing, and — if
// configured — the CPU miner.
func (n *Node) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&n.started, 0, 1) {
		return nil
	}
	nodeLog.Infof("starting node on %s", n.cfg.NetParams().Name)

	listener, err := peermgr.ListenTCP(n.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", n.cfg.Listen, err)
	}
	n.listener = listener

	spawn("node-accept", func() {
		err := connmgr.Accept(ctx, listener, func(conn peermgr.Conn) { n.handleConn(ctx, conn, conn.RemoteAddr()) })
		if err != nil {
			nodeLog.Errorf("accept loop stopped: %s", err)
		}
	})

	n.conns = connmgr.New(n.connConfig(), n.book, dialTCP,
		func(conn peermgr.Conn, address string) { n.handleConn(ctx, conn, address) },
		func(address string, err error) { nodeLog.Debugf("dial %s failed: %s", address, err) })
	spawn("node-connmgr", func() { n.conns.Run(ctx, func() int { return len(n.peers.Peers()) }) })

	for _, address := range n.cfg.ConnectPeer {
		n.book.Add(address)
	}

	if n.cfg.MineTo != "" {
		spawn("node-miner", func() { n.mineLoop(ctx) })
	}

	return nil
}

func (n *Node) connConfig() connmgr.Config {
	cfg := connmgr.DefaultConfig()
	cfg.TargetOutbound = n.cfg.TargetOutbound
	return cfg
}

// handleConn completes the handshake over conn and, once connected, runs
// its inbound envelope read loop until the connection closes or ctx ends.
func (n *Node) handleConn(ctx context.Context, conn peermgr.Conn, address string) {
	nodeID := address
	if _, err := n.peers.AddPeer(nodeID, address); err != nil {
		conn.Close() //nolint:errcheck
		return
	}
	if err := n.peers.BeginHandshake(nodeID); err != nil {
		conn.Close() //nolint:errcheck
		return
	}

	tipHeader, tipHash := n.chain.Tip()
	hello := &wire.HelloPayload{
		ProtocolVersion: 1,
		UserAgent:       "xai-sub002",
		TipHeight:       tipHeader.Height,
		TipWork:         n.chain.TipCumulativeWork(),
		TipHash:         tipHash,
		ListenAddr:      n.cfg.Listen,
	}
	env, err := n.peers.Sign(wire.Payload{Kind: wire.KindHello, Hello: hello})
	if err != nil {
		conn.Close() //nolint:errcheck
		return
	}
	if err := conn.WriteEnvelope(env); err != nil {
		conn.Close() //nolint:errcheck
		return
	}

	n.net.registerConn(nodeID, conn)
	defer func() {
		n.net.removeConn(nodeID)
		n.peers.RemovePeer(nodeID)
		conn.Close() //nolint:errcheck
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		inbound, err := conn.ReadEnvelope()
		if err != nil {
			return
		}
		n.dispatch(nodeID, inbound)
	}
}

func (n *Node) dispatch(nodeID string, env *wire.Envelope) {
	if env.Message.Payload.Kind == wire.KindHello {
		if err := peermgr.Verify(env, time.Now()); err != nil {
			nodeLog.Debugf("rejecting hello from %s: %s", nodeID, err)
			return
		}
		if err := n.peers.CompleteHandshake(nodeID, env.Message.Payload.Hello); err != nil {
			nodeLog.Debugf("handshake with %s failed: %s", nodeID, err)
		}
		if remoteWorkExceedsOurs(env.Message.Payload.Hello.TipWork, n.chain.TipCumulativeWork()) {
			if err := n.relay.RequestCatchUp(); err != nil {
				nodeLog.Debugf("catch-up request failed: %s", err)
			}
		}
		return
	}

	contentHash, err := payloadContentHash(env.Message.Payload)
	if err != nil {
		return
	}
	result, err := n.peers.Accept(nodeID, env, contentHash)
	if err != nil {
		nodeLog.Debugf("rejecting envelope from %s: %s", nodeID, err)
		return
	}
	if result != peermgr.AcceptMessage {
		return
	}
	if err := n.relay.HandleEnvelope(nodeID, env); err != nil {
		nodeLog.Debugf("handling envelope from %s: %s", nodeID, err)
	}
}

// mineLoop repeatedly assembles a block template against the current tip,
// searches for a winning nonce, and submits the solved block to the chain
// and to the network, the way the teacher's standalone CPU miner does but
// driven in-process rather than over RPC.
func (n *Node) mineLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, tipHash := n.chain.Tip()
		tip := chainTip{chain: n.chain}
		template, err := mining.NewTemplate(n.cfg.NetParams(), tip, n.pool, n.cfg.MineTo,
			uint32(n.cfg.NetParams().MaxBlockSize), nil, time.Now(), time.Now())
		if err != nil {
			nodeLog.Errorf("building block template: %s", err)
			time.Sleep(time.Second)
			continue
		}

		solved, err := mining.Solve(ctx, template)
		if err != nil || !solved {
			continue
		}

		result, _, err := n.chain.AcceptBlock(template.Block)
		if err != nil {
			nodeLog.Errorf("mined block rejected: %s", err)
			continue
		}
		if result == fork.AcceptExtendedTip || result == fork.AcceptReorganized {
			blockHash, _ := template.Block.Hash()
			nodeLog.Infof("mined block %s at height %d, extending from %s", blockHash, template.Height, tipHash)
			env, err := n.peers.Sign(wire.Payload{Kind: wire.KindBlock, Block: template.Block})
			if err == nil {
				n.net.Broadcast(env, "")
			}
		}
		if err := n.checkpt.OnConnect(template.Height, blockHashOrZero(template.Block), n.chain.TipCumulativeWork(), template.Block, n.chain.CommittedUTXOSet()); err != nil {
			nodeLog.Errorf("checkpointing mined block: %s", err)
		}
	}
}

// payloadContentHash hashes the canonical encoding of a payload, for
// duplicate suppression keyed on (kind, content) rather than (sender,
// nonce) — this catches the same block or transaction arriving from two
// different peers.
func payloadContentHash(payload wire.Payload) (string, error) {
	canonical, err := util.CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	hash := util.Hash256(canonical)
	return hex.EncodeToString(hash[:]), nil
}

// remoteWorkExceedsOurs compares two decimal-encoded cumulative work
// totals numerically; a plain string comparison would sort "9" ahead of
// "10".
func remoteWorkExceedsOurs(remote, ours string) bool {
	remoteWork, ok := new(big.Int).SetString(remote, 10)
	if !ok {
		return false
	}
	ourWork, ok := new(big.Int).SetString(ours, 10)
	if !ok {
		return true
	}
	return remoteWork.Cmp(ourWork) > 0
}

func blockHashOrZero(block *wire.Block) wire.BlockHash {
	hash, err := block.Hash()
	if err != nil {
		return wire.BlockHash{}
	}
	return hash
}

// chainTip adapts fork.Manager to mining.ChainTip.
type chainTip struct {
	chain *fork.Manager
}

func (c chainTip) Tip() (wire.BlockHeader, wire.BlockHash) {
	return c.chain.Tip()
}

// Stop gracefully shuts down every running service.
func (n *Node) Stop() error {
	if !atomic.CompareAndSwapInt32(&n.shutdown, 0, 1) {
		return nil
	}
	nodeLog.Warnf("node shutting down")
	if n.listener != nil {
		if err := n.listener.Close(); err != nil {
			nodeLog.Errorf("closing listener: %s", err)
		}
	}
	if err := n.blocks.Close(); err != nil {
		nodeLog.Errorf("closing block log: %s", err)
	}
	if err := n.headerIndex.Close(); err != nil {
		nodeLog.Errorf("closing header index: %s", err)
	}
	return nil
}
