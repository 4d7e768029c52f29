// Package database handles the in memory ledger of blocks for the node.
package database

import (
	"errors"
	"sync"

	"github.com/ardanlabs/koin/foundation/blockchain/genesis"
)

// ErrNotFound is returned when a block does not exist in the ledger.
var ErrNotFound = errors.New("block not found")

// =============================================================================

// Database manages the ordered sequence of blocks. Index 0 always holds the
// genesis block. Every mutation swaps the sequence as a whole, readers never
// see a half appended block.
type Database struct {
	mu     sync.RWMutex
	blocks []Block
}

// New constructs a ledger holding only the genesis block.
func New(gen genesis.Genesis) *Database {
	return &Database{
		blocks: []Block{GenesisBlock(gen)},
	}
}

// LatestBlock returns the most recently appended block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1].Clone()
}

// Length returns the number of blocks in the ledger.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// SealBlock constructs the next block from the specified values and appends
// it to the ledger. No validation is performed, the caller is responsible for
// providing a proof that solves the puzzle.
func (db *Database) SealBlock(proof int64, prevBlockHash string, trans []Tx) Block {
	db.mu.Lock()
	defer db.mu.Unlock()

	block := newBlock(db.blocks[len(db.blocks)-1], proof, prevBlockHash, trans)

	blocks := make([]Block, len(db.blocks), len(db.blocks)+1)
	copy(blocks, db.blocks)
	db.blocks = append(blocks, block)

	return block.Clone()
}

// Replace overwrites the ledger with the specified chain. The caller must
// have confirmed the chain is valid and longer than the current one. An
// empty chain is ignored since the ledger always holds a genesis block.
func (db *Database) Replace(chain []Block) {
	if len(chain) == 0 {
		return
	}

	blocks := make([]Block, len(chain))
	for i, block := range chain {
		blocks[i] = block.Clone()
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.blocks = blocks
}

// Copy returns a deep copy of the blocks in the ledger.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	for i, block := range db.blocks {
		blocks[i] = block.Clone()
	}

	return blocks
}

// GetBlock returns the block at the specified 1-based index.
func (db *Database) GetBlock(index uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if index == 0 || index > uint64(len(db.blocks)) {
		return Block{}, ErrNotFound
	}

	return db.blocks[index-1].Clone(), nil
}
