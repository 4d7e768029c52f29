package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/koin/foundation/blockchain/genesis"
	"github.com/ardanlabs/koin/foundation/blockchain/pow"
	"github.com/ardanlabs/koin/foundation/blockchain/signature"
)

// TimeLayout is the layout used for block timestamps.
const TimeLayout = "2006-01-02 15:04:05.000000"

// ErrChainInvalid is returned when a block or chain fails validation.
var ErrChainInvalid = errors.New("chain invalid")

// =============================================================================

// Block represents a group of transactions batched together. A block is
// never modified once it has been appended to the ledger.
type Block struct {
	Index         uint64 `json:"index"`         // Position in the chain starting at 1.
	TimeStamp     string `json:"timestamp"`     // Time the block was sealed, advisory only.
	Proof         int64  `json:"proof"`         // Solution to the puzzle relative to the previous proof.
	PrevBlockHash string `json:"previous_hash"` // Hash of the previous block, "0" for genesis.
	Trans         []Tx   `json:"transactions"`  // Transactions sealed into this block.
}

// GenesisBlock constructs the first block of every chain.
func GenesisBlock(gen genesis.Genesis) Block {
	return Block{
		Index:         1,
		TimeStamp:     gen.TimeStamp,
		Proof:         gen.Proof,
		PrevBlockHash: signature.ZeroHash,
		Trans:         []Tx{},
	}
}

// newBlock constructs the block that follows the specified block.
func newBlock(prevBlock Block, proof int64, prevBlockHash string, trans []Tx) Block {
	txs := make([]Tx, len(trans))
	copy(txs, trans)

	return Block{
		Index:         prevBlock.Index + 1,
		TimeStamp:     time.Now().UTC().Format(TimeLayout),
		Proof:         proof,
		PrevBlockHash: prevBlockHash,
		Trans:         txs,
	}
}

// Hash returns the unique hash for the Block computed over its canonical form.
func (b Block) Hash() string {
	return signature.Hash(b.canonical())
}

// Sum is Hash for callers that must not continue with a block that has no
// canonical form.
func (b Block) Sum() (string, error) {
	hash, err := signature.Sum(b.canonical())
	if err != nil {
		return "", fmt.Errorf("hashing blk[%d]: %w", b.Index, err)
	}

	return hash, nil
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	nb := b
	nb.Trans = make([]Tx, len(b.Trans))
	copy(nb.Trans, b.Trans)

	return nb
}

// canonical returns the value hashed for this block. Every field is present
// even when empty.
func (b Block) canonical() signature.Object {
	trans := make([]signature.Object, len(b.Trans))
	for i, tx := range b.Trans {
		trans[i] = tx.canonical()
	}

	return signature.Object{
		"index":         b.Index,
		"timestamp":     b.TimeStamp,
		"proof":         b.Proof,
		"previous_hash": b.PrevBlockHash,
		"transactions":  trans,
	}
}

// ValidateBlock takes a block and validates it against the block that
// precedes it in the chain.
func (b Block) ValidateBlock(previousBlock Block, p *pow.POW, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Index)

	nextNumber := previousBlock.Index + 1
	if b.Index != nextNumber {
		return fmt.Errorf("%w: this block is not the next number, got %d, exp %d", ErrChainInvalid, b.Index, nextNumber)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Index)

	prevHash := previousBlock.Hash()
	if prevHash == "" || b.PrevBlockHash != prevHash {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrChainInvalid, b.PrevBlockHash, prevHash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: proof solves the puzzle", b.Index)

	if !p.Verify(b.Proof, previousBlock.Proof) {
		return fmt.Errorf("%w: proof %d does not solve the puzzle for previous proof %d", ErrChainInvalid, b.Proof, previousBlock.Proof)
	}

	return nil
}

// =============================================================================

// ValidateChain walks the chain from the first block forward, validating each
// block against its parent. The first violation is returned. Empty and
// single block chains are valid. The chain is not modified.
func ValidateChain(chain []Block, p *pow.POW, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	for i := 1; i < len(chain); i++ {
		if err := chain[i].ValidateBlock(chain[i-1], p, evHandler); err != nil {
			return err
		}
	}

	return nil
}

// IsChainValid reports whether the chain passes ValidateChain.
func IsChainValid(chain []Block, p *pow.POW) bool {
	return ValidateChain(chain, p, nil) == nil
}
