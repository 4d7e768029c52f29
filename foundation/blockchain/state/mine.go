package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/koin/foundation/blockchain/database"
)

// errStaleBlock is returned when the latest block changed while a proof
// was being searched for.
var errStaleBlock = errors.New("latest block changed during mining")

// =============================================================================

// MineNewBlock solves the puzzle relative to the latest block, then seals
// the transactions in the mempool into a new block. The search happens
// without holding the state lock. If another seal or a chain replacement
// changes the latest block in the meantime, the solution is thrown away and
// the search starts again from the new latest block. When a beneficiary is
// provided, the genesis mining reward is paid to it in the same block.
func (s *State) MineNewBlock(ctx context.Context, beneficiary string) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: started")
	defer s.evHandler("state: MineNewBlock: MINING: completed")

	// A bad beneficiary is reported before any work is spent on the puzzle.
	if _, err := s.rewardTx(beneficiary); err != nil {
		return database.Block{}, err
	}

	for {
		prevBlock := s.db.LatestBlock()
		prevHash, err := prevBlock.Sum()
		if err != nil {
			return database.Block{}, err
		}

		s.evHandler("state: MineNewBlock: MINING: perform POW: prevBlk[%d]: prevHash[%s]", prevBlock.Index, prevHash)

		proof, err := s.pow.Solve(ctx, prevBlock.Proof)
		if err != nil {
			return database.Block{}, err
		}

		// Just check one more time we were not cancelled.
		if ctx.Err() != nil {
			return database.Block{}, ctx.Err()
		}

		block, err := s.sealBlock(prevHash, proof, beneficiary)
		if err != nil {
			if errors.Is(err, errStaleBlock) {
				s.evHandler("state: MineNewBlock: MINING: WARNING: %s: restarting", err)
				continue
			}
			return database.Block{}, err
		}

		s.evHandler("state: MineNewBlock: MINING: SEALED: blk[%d]: proof[%d]: numTrans[%d]", block.Index, block.Proof, len(block.Trans))

		return block, nil
	}
}

// sealBlock drains the mempool into a new block as long as the latest block
// still has the specified hash.
func (s *State) sealBlock(prevHash string, proof int64, beneficiary string) (database.Block, error) {
	if prevHash == "" {
		return database.Block{}, errors.New("sealing against an empty previous hash")
	}

	reward, err := s.rewardTx(beneficiary)
	if err != nil {
		return database.Block{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	latestHash, err := s.db.LatestBlock().Sum()
	if err != nil {
		return database.Block{}, err
	}

	if latestHash != prevHash {
		return database.Block{}, errStaleBlock
	}

	trans := s.mempool.Drain()
	if reward != nil {
		trans = append(trans, *reward)
	}

	return s.db.SealBlock(proof, prevHash, trans), nil
}

// rewardTx constructs the mining reward paid to the beneficiary. No reward
// is paid without a beneficiary or when the genesis reward is zero.
func (s *State) rewardTx(beneficiary string) (*database.Tx, error) {
	if beneficiary == "" || s.genesis.MiningReward == 0 {
		return nil, nil
	}

	tx, err := database.NewTx(s.nodeID, beneficiary, s.genesis.MiningReward)
	if err != nil {
		return nil, NewValidationError(fmt.Errorf("mining reward: %w", err))
	}

	return &tx, nil
}
