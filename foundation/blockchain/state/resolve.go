package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
)

// Outcome describes the result of a consensus resolution.
type Outcome int

// Set of possible outcomes for Resolve.
const (
	Kept Outcome = iota
	Replaced
)

// String implements the fmt.Stringer interface.
func (o Outcome) String() string {
	if o == Replaced {
		return "replaced"
	}
	return "kept"
}

// candidate represents a peer chain that passed validation.
type candidate struct {
	peer     peer.Peer
	chain    []database.Block
	lastHash string
}

// better reports whether c should win over the current best candidate.
// Longer chains win. Equal length chains are ordered by the hash of their
// latest block so every node picks the same one.
func (c candidate) better(best *candidate) bool {
	if best == nil {
		return true
	}

	if len(c.chain) != len(best.chain) {
		return len(c.chain) > len(best.chain)
	}

	return c.lastHash < best.lastHash
}

// =============================================================================

// Resolve applies the longest valid chain rule. Every known peer is asked
// for its chain concurrently, each under the configured peer timeout. Peers
// that fail are skipped for this round. A peer chain becomes a candidate when
// it is strictly longer than the local chain, starts from our genesis block
// and passes validation. The local chain is replaced by the best candidate.
func (s *State) Resolve(ctx context.Context) (Outcome, []database.Block, error) {
	s.evHandler("state: Resolve: started")
	defer s.evHandler("state: Resolve: completed")

	localLength := s.db.Length()

	genesisBlock, err := s.db.GetBlock(1)
	if err != nil {
		return Kept, nil, fmt.Errorf("retrieving genesis block: %w", err)
	}
	genesisHash, err := genesisBlock.Sum()
	if err != nil {
		return Kept, nil, err
	}

	peers := s.RetrieveKnownPeers()
	candidates := make([]*candidate, len(peers))

	// Fetching and validating happens outside of the state lock.
	var wg sync.WaitGroup
	wg.Add(len(peers))

	for i, pr := range peers {
		go func(i int, pr peer.Peer) {
			defer wg.Done()

			c, err := s.fetchCandidate(ctx, pr, localLength, genesisHash)
			if err != nil {
				s.evHandler("state: Resolve: peer[%s]: skipped: %s", pr, err)
				return
			}

			if c != nil {
				s.evHandler("state: Resolve: peer[%s]: candidate: length[%d]: lastHash[%s]", pr, len(c.chain), c.lastHash)
				candidates[i] = c
			}
		}(i, pr)
	}

	wg.Wait()

	if ctx.Err() != nil {
		return Kept, s.db.Copy(), ctx.Err()
	}

	var best *candidate
	for _, c := range candidates {
		if c != nil && c.better(best) {
			best = c
		}
	}

	if best == nil {
		s.evHandler("state: Resolve: no longer valid chain found: length[%d]", localLength)
		return Kept, s.db.Copy(), nil
	}

	if !s.replaceChain(best.chain) {
		s.evHandler("state: Resolve: local chain grew during resolution: candidate[%d]", len(best.chain))
		return Kept, s.db.Copy(), nil
	}

	s.evHandler("state: Resolve: REPLACED: peer[%s]: length[%d] -> length[%d]", best.peer, localLength, len(best.chain))

	return Replaced, s.db.Copy(), nil
}

// fetchCandidate retrieves the chain of the specified peer and checks if it
// can replace the local chain. A nil candidate with a nil error means the
// peer chain is not longer than ours.
func (s *State) fetchCandidate(ctx context.Context, pr peer.Peer, localLength int, genesisHash string) (*candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.peerTimeout)
	defer cancel()

	pc, err := s.fetcher.FetchChain(ctx, pr)
	if err != nil {
		return nil, err
	}

	if pc.Length != len(pc.Chain) {
		return nil, fmt.Errorf("%w: reported length %d, received %d blocks", database.ErrChainInvalid, pc.Length, len(pc.Chain))
	}

	if pc.Length <= localLength {
		return nil, nil
	}

	if pc.Chain[0].Index != 1 || pc.Chain[0].Hash() != genesisHash {
		return nil, fmt.Errorf("%w: genesis block does not match", database.ErrChainInvalid)
	}

	if err := database.ValidateChain(pc.Chain, s.pow, s.evHandler); err != nil {
		return nil, err
	}

	lastHash, err := pc.Chain[len(pc.Chain)-1].Sum()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrChainInvalid, err)
	}

	c := candidate{
		peer:     pr,
		chain:    pc.Chain,
		lastHash: lastHash,
	}

	return &c, nil
}

// replaceChain swaps in the chain if it is still longer than the local chain.
func (s *State) replaceChain(chain []database.Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chain) <= s.db.Length() {
		return false
	}

	s.db.Replace(chain)

	return true
}
