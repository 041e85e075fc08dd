package addrmgr

import (
	"math/rand"
	"sync"
	"time"
)

// knownAddress is one entry in the address book: a peer's dial address
// plus bookkeeping about whether and when it was last reachable.
type knownAddress struct {
	address      string
	lastSeen     time.Time
	lastAttempt  time.Time
	lastSuccess  time.Time
	attempts     int
}

// reachable reports whether this address is a reasonable dial candidate:
// known to have worked at least once, or never tried yet.
func (ka *knownAddress) reachable() bool {
	return ka.attempts == 0 || !ka.lastSuccess.IsZero()
}

// AddressBook is the node's persistent-for-the-process record of peer
// addresses it has learned of, either from configuration or from other
// peers' hello/address gossip, used by connmgr to pick dial candidates.
type AddressBook struct {
	mu        sync.RWMutex
	addresses map[string]*knownAddress
}

// New returns an empty address book.
func New() *AddressBook {
	return &AddressBook{addresses: make(map[string]*knownAddress)}
}

// Add records address as known, if not already present.
func (b *AddressBook) Add(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.addresses[address]; ok {
		return
	}
	b.addresses[address] = &knownAddress{address: address, lastSeen: time.Now()}
}

// AddMany records every address in addrs.
func (b *AddressBook) AddMany(addrs []string) {
	for _, a := range addrs {
		b.Add(a)
	}
}

// MarkAttempt records that a dial to address was just attempted.
func (b *AddressBook) MarkAttempt(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ka, ok := b.addresses[address]
	if !ok {
		return
	}
	ka.attempts++
	ka.lastAttempt = time.Now()
}

// MarkSuccess records that a connection to address succeeded.
func (b *AddressBook) MarkSuccess(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ka, ok := b.addresses[address]
	if !ok {
		return
	}
	ka.lastSuccess = time.Now()
	ka.attempts = 0
}

// Remove drops an address entirely, e.g. after it repeatedly refuses
// connections.
func (b *AddressBook) Remove(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.addresses, address)
}

// Len returns how many addresses are known.
func (b *AddressBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.addresses)
}

// GetAddresses returns up to count known addresses, only ones never tried
// or previously successful (others are left out), in randomized order so many nodes
// bootstrapping from the same seed list don't all dial in the same order.
func (b *AddressBook) GetAddresses(count int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	candidates := make([]string, 0, len(b.addresses))
	for addr, ka := range b.addresses {
		if ka.reachable() {
			candidates = append(candidates, addr)
		}
	}
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if count < len(candidates) {
		candidates = candidates[:count]
	}
	return candidates
}
