package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// requestTimeout bounds how long a header/block request may go unanswered
// before the peer it was sent to is demoted (and, for a header request, the
// request is retried against another peer).
const requestTimeout = 15 * time.Second

// pendingRequest is one outstanding get_headers or get_block request this
// node is waiting on.
type pendingRequest struct {
	nodeID string
	timer  *time.Timer
	kind   wire.MessageKind
}

// requestTracker correlates outgoing requests with their eventual reply by
// request ID, and fires onTimeout if no reply arrives in time.
type requestTracker struct {
	mu       sync.Mutex
	pending  map[string]*pendingRequest
	onTimeout func(nodeID, requestID string, kind wire.MessageKind)
}

func newRequestTracker(onTimeout func(nodeID, requestID string, kind wire.MessageKind)) *requestTracker {
	return &requestTracker{pending: make(map[string]*pendingRequest), onTimeout: onTimeout}
}

// NewRequestID mints a fresh correlation ID for an outgoing request.
func NewRequestID() string {
	return uuid.New().String()
}

// Track registers a new outstanding request, starting its deadline timer.
func (t *requestTracker) Track(requestID, nodeID string, kind wire.MessageKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pr := &pendingRequest{nodeID: nodeID, kind: kind}
	pr.timer = time.AfterFunc(requestTimeout, func() {
		t.mu.Lock()
		_, stillPending := t.pending[requestID]
		delete(t.pending, requestID)
		t.mu.Unlock()
		if stillPending && t.onTimeout != nil {
			t.onTimeout(nodeID, requestID, kind)
		}
	})
	t.pending[requestID] = pr
}

// Resolve marks a request as answered, stopping its deadline timer and
// returning the node ID it was sent to (so the caller can validate the
// reply came from the peer that was asked) and whether it was found.
func (t *requestTracker) Resolve(requestID string) (nodeID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pr, ok := t.pending[requestID]
	if !ok {
		return "", false
	}
	pr.timer.Stop()
	delete(t.pending, requestID)
	return pr.nodeID, true
}
