// Package connmgr orchestrates outbound dialing and inbound accepting of
// peer connections: it pulls candidates from addrmgr, retries failed dials
// with exponential backoff, and trips a circuit breaker for addresses that
// keep failing so the node stops wasting effort on them.
package connmgr

import (
	"context"
	"sync"
	"time"

	"github.com/xai-blockchain/xai-sub002/addrmgr"
	"github.com/xai-blockchain/xai-sub002/peermgr"
)

// Config controls retry/backoff/circuit-breaker behavior.
type Config struct {
	TargetOutbound int
	DialTimeout    time.Duration
	MinBackoff     time.Duration
	MaxBackoff     time.Duration
	// BreakerThreshold is how many consecutive failures trip the circuit
	// breaker for an address.
	BreakerThreshold int
	// BreakerCooldown is how long a tripped breaker stays open before the
	// address becomes dialable again.
	BreakerCooldown time.Duration
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() Config {
	return Config{
		TargetOutbound:   8,
		DialTimeout:      10 * time.Second,
		MinBackoff:       time.Second,
		MaxBackoff:       5 * time.Minute,
		BreakerThreshold: 5,
		BreakerCooldown:  10 * time.Minute,
	}
}

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
	backoff             time.Duration
}

// Dialer abstracts peermgr's transport dial functions, so tests can supply
// a fake without opening real sockets.
type Dialer func(address string, timeout time.Duration) (peermgr.Conn, error)

// Manager drives outbound connection attempts and tracks per-address
// backoff/circuit-breaker state. It does not itself perform the peer
// handshake; OnConnected is called with a live Conn for the caller (the
// node package) to hand off to peermgr.
type Manager struct {
	cfg     Config
	book    *addrmgr.AddressBook
	dial    Dialer
	onConn  func(conn peermgr.Conn, address string)
	onError func(address string, err error)

	mu       sync.Mutex
	breakers map[string]*breakerState
}

// New builds a Manager that dials addresses from book using dial, handing
// successful connections to onConn.
func New(cfg Config, book *addrmgr.AddressBook, dial Dialer, onConn func(conn peermgr.Conn, address string), onError func(address string, err error)) *Manager {
	return &Manager{
		cfg:      cfg,
		book:     book,
		dial:     dial,
		onConn:   onConn,
		onError:  onError,
		breakers: make(map[string]*breakerState),
	}
}

// Run dials out until ctx is canceled, maintaining up to cfg.TargetOutbound
// connections by periodically topping up from the address book.
func (m *Manager) Run(ctx context.Context, activeCount func() int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			need := m.cfg.TargetOutbound - activeCount()
			if need <= 0 {
				continue
			}
			for _, addr := range m.book.GetAddresses(need * 3) {
				if need <= 0 {
					break
				}
				if !m.dialableLocked(addr) {
					continue
				}
				need--
				go m.attempt(ctx, addr)
			}
		}
	}
}

func (m *Manager) dialableLocked(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[address]
	if !ok {
		return true
	}
	if b.openUntil.IsZero() {
		return true
	}
	return time.Now().After(b.openUntil)
}

func (m *Manager) attempt(ctx context.Context, address string) {
	m.book.MarkAttempt(address)

	if delay := m.backoffDelay(address); delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	conn, err := m.dial(address, m.cfg.DialTimeout)
	if err != nil {
		m.recordFailure(address)
		if m.onError != nil {
			m.onError(address, err)
		}
		return
	}

	m.recordSuccess(address)
	m.book.MarkSuccess(address)
	if m.onConn != nil {
		m.onConn(conn, address)
	}
}

func (m *Manager) backoffDelay(address string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[address]
	if !ok || b.consecutiveFailures == 0 {
		return 0
	}
	return b.backoff
}

func (m *Manager) recordFailure(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[address]
	if !ok {
		b = &breakerState{backoff: m.cfg.MinBackoff}
		m.breakers[address] = b
	}
	b.consecutiveFailures++
	if b.backoff == 0 {
		b.backoff = m.cfg.MinBackoff
	} else {
		b.backoff *= 2
		if b.backoff > m.cfg.MaxBackoff {
			b.backoff = m.cfg.MaxBackoff
		}
	}
	if b.consecutiveFailures >= m.cfg.BreakerThreshold {
		b.openUntil = time.Now().Add(m.cfg.BreakerCooldown)
	}
}

func (m *Manager) recordSuccess(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, address)
}

// Accept wraps a listener's Accept loop, handing every inbound connection
// to onConn until ctx is canceled or the listener errors.
func Accept(ctx context.Context, listener *peermgr.TCPListener, onConn func(conn peermgr.Conn)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		onConn(conn)
	}
}
