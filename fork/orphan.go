// Package fork tracks every known block, selects the chain with the most
// cumulative work, and performs atomic reorganizations when a competing
// chain overtakes the current tip.
package fork

import (
	"time"

	"github.com/xai-blockchain/xai-sub002/wire"
)

// maxOrphanBlocks caps how many not-yet-connectable blocks are held at
// once, to bound memory a peer flooding unconnectable blocks could consume.
const maxOrphanBlocks = 500

// orphanTTL is how long an orphan is held before it expires, on the
// assumption its missing ancestor will never arrive.
const orphanTTL = time.Hour

type orphanBlock struct {
	block      *wire.Block
	receivedAt time.Time
	expiration time.Time
}

// orphanPool holds blocks received before their parent, keyed by both their
// own hash and their parent's hash, so a newly connected block can cheaply
// find the orphans waiting on it.
type orphanPool struct {
	byHash       map[wire.BlockHash]*orphanBlock
	byParentHash map[wire.BlockHash][]*orphanBlock
	newest       *orphanBlock
}

func newOrphanPool() *orphanPool {
	return &orphanPool{
		byHash:       make(map[wire.BlockHash]*orphanBlock),
		byParentHash: make(map[wire.BlockHash][]*orphanBlock),
	}
}

// add inserts block into the pool, evicting expired orphans first and, if
// still at capacity, the orphan that arrived earliest.
func (p *orphanPool) add(block *wire.Block, hash wire.BlockHash) {
	now := time.Now()
	for h, o := range p.byHash {
		if now.After(o.expiration) {
			p.remove(h)
		}
	}

	if len(p.byHash)+1 > maxOrphanBlocks {
		var oldest *orphanBlock
		var oldestHash wire.BlockHash
		for h, o := range p.byHash {
			if oldest == nil || o.receivedAt.Before(oldest.receivedAt) {
				oldest, oldestHash = o, h
			}
		}
		if oldest != nil {
			p.remove(oldestHash)
		}
	}

	o := &orphanBlock{block: block, receivedAt: now, expiration: now.Add(orphanTTL)}
	p.byHash[hash] = o
	p.byParentHash[block.Header.PreviousHash] = append(p.byParentHash[block.Header.PreviousHash], o)
	if p.newest == nil || o.receivedAt.After(p.newest.receivedAt) {
		p.newest = o
	}
}

func (p *orphanPool) has(hash wire.BlockHash) bool {
	_, ok := p.byHash[hash]
	return ok
}

func (p *orphanPool) remove(hash wire.BlockHash) {
	o, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)

	siblings := p.byParentHash[o.block.Header.PreviousHash]
	for i, sib := range siblings {
		if sib == o {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(p.byParentHash, o.block.Header.PreviousHash)
	} else {
		p.byParentHash[o.block.Header.PreviousHash] = siblings
	}

	if p.newest == o {
		p.newest = nil
		for _, other := range p.byHash {
			if p.newest == nil || other.receivedAt.After(p.newest.receivedAt) {
				p.newest = other
			}
		}
	}
}

// claimChildren detaches and returns every orphan directly waiting on
// parentHash, so the caller can attempt to connect them now that their
// parent is known.
func (p *orphanPool) claimChildren(parentHash wire.BlockHash) []*wire.Block {
	children := p.byParentHash[parentHash]
	if len(children) == 0 {
		return nil
	}
	blocks := make([]*wire.Block, 0, len(children))
	for _, o := range children {
		hash, err := o.block.Hash()
		if err != nil {
			continue
		}
		blocks = append(blocks, o.block)
		p.remove(hash)
	}
	return blocks
}
