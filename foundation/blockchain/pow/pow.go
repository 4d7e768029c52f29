// Package pow implements the proof of work puzzle miners must solve before a
// block can be sealed.
package pow

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ardanlabs/koin/foundation/blockchain/signature"
)

// DefaultDifficulty is the number of leading zeros used when none is configured.
const DefaultDifficulty = 4

// maxDifficulty is the number of hex characters in a SHA-256 digest.
const maxDifficulty = 64

// checkInterval is the number of attempts made between context checks.
const checkInterval = 1 << 12

// =============================================================================

// POW solves and verifies puzzles at a fixed difficulty. The difficulty is a
// consensus parameter, every node in the network must use the same value.
type POW struct {
	difficulty uint
	prefix     string
	evHandler  func(v string, args ...any)
}

// New constructs a POW for the specified difficulty.
func New(difficulty uint, evHandler func(v string, args ...any)) (*POW, error) {
	if difficulty == 0 || difficulty > maxDifficulty {
		return nil, fmt.Errorf("difficulty %d out of range [1, %d]", difficulty, maxDifficulty)
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	p := POW{
		difficulty: difficulty,
		prefix:     strings.Repeat("0", int(difficulty)),
		evHandler:  ev,
	}

	return &p, nil
}

// Difficulty returns the number of leading zeros required of a solution.
func (p *POW) Difficulty() uint {
	return p.difficulty
}

// Solve performs an exhaustive search starting at 1 for a proof that solves
// the puzzle relative to the previous proof. The search only stops early if
// the context is cancelled.
func (p *POW) Solve(ctx context.Context, previousProof int64) (int64, error) {
	p.evHandler("pow: Solve: MINING: started: prevProof[%d]", previousProof)
	defer p.evHandler("pow: Solve: MINING: completed")

	prev := new(big.Int).SetInt64(previousProof)
	prev.Mul(prev, prev)

	var attempts uint64
	for proof := int64(1); ; proof++ {
		attempts++
		if attempts%checkInterval == 0 {
			if ctx.Err() != nil {
				p.evHandler("pow: Solve: MINING: CANCELLED: attempts[%d]", attempts)
				return 0, ctx.Err()
			}
		}

		if p.isSolved(proof, prev) {
			p.evHandler("pow: Solve: MINING: SOLVED: proof[%d]: attempts[%d]", proof, attempts)
			return proof, nil
		}
	}
}

// Verify reports whether the proof solves the puzzle relative to the
// previous proof.
func (p *POW) Verify(proof int64, previousProof int64) bool {
	prev := new(big.Int).SetInt64(previousProof)
	prev.Mul(prev, prev)

	return p.isSolved(proof, prev)
}

// isSolved checks the digest of proof² - previous² for the required
// number of leading zeros. The previous value is already squared.
func (p *POW) isSolved(proof int64, prevSquared *big.Int) bool {
	n := new(big.Int).SetInt64(proof)
	n.Mul(n, n)
	n.Sub(n, prevSquared)

	hash := signature.Digest([]byte(n.String()))
	return strings.HasPrefix(hash, p.prefix)
}
