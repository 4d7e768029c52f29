package state

import (
	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/genesis"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
)

// RetrieveHost returns a copy of host information.
func (s *State) RetrieveHost() string {
	return s.host
}

// RetrieveNodeID returns the identity of this node.
func (s *State) RetrieveNodeID() string {
	return s.nodeID
}

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChain returns a consistent snapshot of the chain and its length.
// It never waits on a mining operation in progress.
func (s *State) RetrieveChain() ([]database.Block, int) {
	chain := s.db.Copy()
	return chain, len(chain)
}

// RetrieveBlock returns the block at the specified 1-based index.
func (s *State) RetrieveBlock(index uint64) (database.Block, error) {
	return s.db.GetBlock(index)
}

// RetrieveMempool returns a copy of the mempool.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.Copy()
}

// RetrieveKnownPeers retrieves a copy of the known peer list.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// RetrieveStatus returns the status document this node shares with peers.
func (s *State) RetrieveStatus() peer.PeerStatus {
	chain := s.db.Copy()

	return peer.PeerStatus{
		LatestBlockHash: chain[len(chain)-1].Hash(),
		Length:          len(chain),
		KnownPeers:      s.RetrieveKnownPeers(),
	}
}

// IsChainValid validates the local chain. A nil error means the chain is valid.
func (s *State) IsChainValid() error {
	return database.ValidateChain(s.db.Copy(), s.pow, s.evHandler)
}
