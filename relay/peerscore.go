// Package relay gossips transactions and blocks between peers, and drives
// header-first catch-up sync against whichever peer the node currently
// trusts most to answer promptly.
package relay

import (
	"sort"
	"sync"
)

// peerScore tracks how reliably a peer answers sync requests: every
// successful, on-time reply promotes it; every timeout demotes it. Sync
// requests are sent to the highest-scoring peer first.
type peerScore struct {
	mu     sync.RWMutex
	scores map[string]int
}

func newPeerScore() *peerScore {
	return &peerScore{scores: make(map[string]int)}
}

const (
	scorePromote  = 1
	scoreDemote   = -3
	scoreMinFloor = -20
	scoreMaxCeil  = 50
)

func (s *peerScore) Promote(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[nodeID] += scorePromote
	if s.scores[nodeID] > scoreMaxCeil {
		s.scores[nodeID] = scoreMaxCeil
	}
}

func (s *peerScore) Demote(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[nodeID] += scoreDemote
	if s.scores[nodeID] < scoreMinFloor {
		s.scores[nodeID] = scoreMinFloor
	}
}

// Rank returns candidates ordered best-first by current score (ties
// broken by the order candidates were given, so callers can pre-sort by
// e.g. reported cumulative work).
func (s *peerScore) Rank(candidates []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ranked := append([]string(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return s.scores[ranked[i]] > s.scores[ranked[j]]
	})
	return ranked
}
