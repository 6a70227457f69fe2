// Package database maintains the in memory chain of blocks owned by a node.
package database

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a block number is outside the chain.
var ErrNotFound = errors.New("block not found")

// Database manages the ordered set of blocks for a node. Index 0 is always
// the genesis block and the chain only grows.
type Database struct {
	mu     sync.RWMutex
	blocks []Block
}

// New constructs a chain holding only the genesis block.
func New() *Database {
	return &Database{
		blocks: []Block{GenesisBlock},
	}
}

// Append adds the block to the end of the chain. Validation is the
// caller's responsibility.
func (db *Database) Append(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.blocks = append(db.blocks, block)
}

// LatestBlock returns the tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Length returns the number of blocks in the chain, genesis included.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// GetBlock returns the block at the specified position in the chain.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, ErrNotFound
	}

	return db.blocks[num], nil
}

// Blocks returns a copy of the chain.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// ForEach calls the function for every block in order until it returns false.
func (db *Database) ForEach(fn func(num uint64, block Block) bool) {
	for num, block := range db.Blocks() {
		if !fn(uint64(num), block) {
			return
		}
	}
}
