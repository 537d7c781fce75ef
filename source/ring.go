package source

import (
	"sync"
)

// DefaultRingCapacity is the number of recent blocks a StreamSource keeps.
const DefaultRingCapacity = 100

// BlockRing keeps the most recent audio blocks. The producer appends under
// a short lock and never waits for the consumer; the consumer only ever
// looks at the newest block, so older ones are dropped under load.
type BlockRing struct {
	mu       sync.Mutex
	blocks   [][]float64
	writePos int
	count    int
	ready    bool
	pushed   uint64
}

// NewBlockRing creates a ring holding up to capacity blocks.
func NewBlockRing(capacity int) *BlockRing {
	capacity = max(capacity, 1)
	return &BlockRing{
		blocks: make([][]float64, capacity),
	}
}

// Push stores block, overwriting the oldest one when full, and raises the
// data-ready flag. The ring takes ownership of block.
func (r *BlockRing) Push(block []float64) {
	r.mu.Lock()
	r.blocks[r.writePos] = block
	r.writePos = (r.writePos + 1) % len(r.blocks)
	if r.count < len(r.blocks) {
		r.count++
	}
	r.ready = true
	r.pushed++
	r.mu.Unlock()
}

// TakeLatest returns the newest block if one arrived since the previous
// call, and clears the data-ready flag.
func (r *BlockRing) TakeLatest() ([]float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready || r.count == 0 {
		return nil, false
	}
	r.ready = false
	return r.blocks[r.newest()], true
}

// Latest returns the newest block regardless of the data-ready flag.
func (r *BlockRing) Latest() ([]float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil, false
	}
	return r.blocks[r.newest()], true
}

func (r *BlockRing) newest() int {
	return (r.writePos - 1 + len(r.blocks)) % len(r.blocks)
}

// Len returns the number of stored blocks.
func (r *BlockRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Pushed returns the total number of blocks ever pushed.
func (r *BlockRing) Pushed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pushed
}

// Clear empties the ring.
func (r *BlockRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.blocks {
		r.blocks[i] = nil
	}
	r.writePos = 0
	r.count = 0
	r.ready = false
}
