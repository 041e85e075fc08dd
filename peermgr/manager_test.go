package peermgr

import (
	"testing"
	"time"

	"github.com/xai-blockchain/xai-sub002/crypto"
	"github.com/xai-blockchain/xai-sub002/wire"
)

func TestManagerAcceptRejectsDuplicateNonce(t *testing.T) {
	self, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	peerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	m := New(self, DefaultRateLimits())
	nodeID := peerKey.PubKey().Fingerprint()
	if _, err := m.AddPeer(nodeID, "127.0.0.1:9000"); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := m.BeginHandshake(nodeID); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	if err := m.CompleteHandshake(nodeID, &wire.HelloPayload{}); err != nil {
		t.Fatalf("CompleteHandshake: %v", err)
	}

	env, err := Sign(wire.Payload{Kind: wire.KindPing, Ping: &wire.PingPayload{Nonce: 1}}, peerKey, time.Now())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	result, err := m.Accept(nodeID, env, "")
	if err != nil {
		t.Fatalf("Accept #1: %v", err)
	}
	if result != AcceptMessage {
		t.Fatalf("Accept #1 = %v, want AcceptMessage", result)
	}

	result, err = m.Accept(nodeID, env, "")
	if err != nil {
		t.Fatalf("Accept #2: %v", err)
	}
	if result != AcceptDuplicateMessage {
		t.Fatalf("Accept #2 = %v, want AcceptDuplicateMessage", result)
	}
}

func TestManagerAcceptRateLimits(t *testing.T) {
	self, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	peerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	limits := DefaultRateLimits()
	limits.PerKindCapacity = 1
	limits.PerKindRefill = 0
	m := New(self, limits)
	nodeID := peerKey.PubKey().Fingerprint()
	if _, err := m.AddPeer(nodeID, "127.0.0.1:9000"); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := m.BeginHandshake(nodeID); err != nil {
		t.Fatalf("BeginHandshake: %v", err)
	}
	if err := m.CompleteHandshake(nodeID, &wire.HelloPayload{}); err != nil {
		t.Fatalf("CompleteHandshake: %v", err)
	}

	now := time.Now()
	env1, _ := Sign(wire.Payload{Kind: wire.KindPing, Ping: &wire.PingPayload{Nonce: 1}}, peerKey, now)
	env2, _ := Sign(wire.Payload{Kind: wire.KindPing, Ping: &wire.PingPayload{Nonce: 2}}, peerKey, now)

	if result, err := m.Accept(nodeID, env1, ""); err != nil || result != AcceptMessage {
		t.Fatalf("Accept #1 = %v, %v", result, err)
	}
	result, err := m.Accept(nodeID, env2, "")
	if err != nil {
		t.Fatalf("Accept #2: %v", err)
	}
	if result != AcceptRateLimited {
		t.Fatalf("Accept #2 = %v, want AcceptRateLimited", result)
	}
}

func TestPeerRecordSessionTransitions(t *testing.T) {
	rec := newPeerRecord("node", "addr", DefaultRateLimits())
	if rec.State() != StateUnconnected {
		t.Fatalf("initial state = %v, want unconnected", rec.State())
	}
	if err := rec.transition(StateConnected); err == nil {
		t.Fatal("expected illegal transition unconnected -> connected to fail")
	}
	if err := rec.transition(StateHandshaking); err != nil {
		t.Fatalf("transition to handshaking: %v", err)
	}
	if err := rec.transition(StateConnected); err != nil {
		t.Fatalf("transition to connected: %v", err)
	}
}

func TestPeerRecordBansOnLowReputation(t *testing.T) {
	rec := newPeerRecord("node", "addr", DefaultRateLimits())
	rec.AdjustReputation(-200)
	if rec.State() != StateBanned {
		t.Fatalf("state after reputation collapse = %v, want banned", rec.State())
	}
	if rec.Reputation != minReputation {
		t.Fatalf("reputation = %d, want clamped to %d", rec.Reputation, minReputation)
	}
}

func TestPeerRecordBansAtThresholdWithoutReachingFloor(t *testing.T) {
	rec := newPeerRecord("node", "addr", DefaultRateLimits())
	rec.AdjustReputation(-60)
	if rec.Reputation != -60 {
		t.Fatalf("reputation = %d, want -60 (unclamped)", rec.Reputation)
	}
	if rec.State() != StateBanned {
		t.Fatalf("state at reputation -60 = %v, want banned (banThreshold is %d)", rec.State(), banThreshold)
	}
}

func TestAddPeerRejectsDuplicateNodeID(t *testing.T) {
	self, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	m := New(self, DefaultRateLimits())
	if _, err := m.AddPeer("node-a", "addr"); err != nil {
		t.Fatalf("AddPeer #1: %v", err)
	}
	if _, err := m.AddPeer("node-a", "addr2"); err == nil {
		t.Fatal("expected second AddPeer with the same node ID to fail")
	}
}
