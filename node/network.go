package node

import (
	"sync"

	"github.com/xai-blockchain/xai-sub002/logger"
	"github.com/xai-blockchain/xai-sub002/peermgr"
	"github.com/xai-blockchain/xai-sub002/wire"
)

var log, _ = logger.Get(logger.SubsystemTags.PEER)

// network adapts peermgr.Manager plus a live set of transport connections
// into the relay.Network interface: signing delegates to the manager, and
// sending/broadcasting writes to whichever Conn is currently associated
// with a peer's node ID.
type network struct {
	peers *peermgr.Manager

	mu    sync.RWMutex
	conns map[string]peermgr.Conn
}

func newNetwork(peers *peermgr.Manager) *network {
	return &network{peers: peers, conns: make(map[string]peermgr.Conn)}
}

// registerConn associates a live connection with a handshaken peer's node
// ID, replacing any prior connection for that ID.
func (n *network) registerConn(nodeID string, conn peermgr.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conns[nodeID] = conn
}

func (n *network) removeConn(nodeID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.conns, nodeID)
}

func (n *network) Sign(payload wire.Payload) (*wire.Envelope, error) {
	return n.peers.Sign(payload)
}

func (n *network) SendTo(nodeID string, env *wire.Envelope) error {
	n.mu.RLock()
	conn, ok := n.conns[nodeID]
	n.mu.RUnlock()
	if !ok {
		return nil
	}
	return conn.WriteEnvelope(env)
}

func (n *network) Broadcast(env *wire.Envelope, excludeNodeID string) []string {
	n.mu.RLock()
	targets := make(map[string]peermgr.Conn, len(n.conns))
	for nodeID, conn := range n.conns {
		if nodeID == excludeNodeID {
			continue
		}
		targets[nodeID] = conn
	}
	n.mu.RUnlock()

	var sentTo []string
	for nodeID, conn := range targets {
		if err := conn.WriteEnvelope(env); err != nil {
			log.Warnf("broadcast to %s failed: %s", nodeID, err)
			continue
		}
		sentTo = append(sentTo, nodeID)
	}
	return sentTo
}

func (n *network) ConnectedPeerIDs() []string {
	peers := n.peers.Peers()
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.NodeID)
	}
	return ids
}
