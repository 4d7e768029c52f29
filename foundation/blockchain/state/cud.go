package state

import (
	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
)

// SubmitTransaction validates and adds a transaction to the mempool. The
// returned index is the block the transaction is expected to land in. It is
// advisory since a concurrent seal or chain replacement can move it.
func (s *State) SubmitTransaction(sender string, receiver string, amount float64) (uint64, error) {
	tx, err := database.NewTx(sender, receiver, amount)
	if err != nil {
		return 0, NewValidationError(err)
	}

	s.mu.Lock()
	s.mempool.Add(tx)
	next := s.db.LatestBlock().Index + 1
	s.mu.Unlock()

	s.evHandler("state: SubmitTransaction: tx[%s]: expected blk[%d]", tx, next)

	s.Worker.SignalStartMining()

	return next, nil
}

// AddKnownPeer parses the address and adds the peer to the known peer list.
// It reports whether the peer was not already known.
func (s *State) AddKnownPeer(address string) (bool, error) {
	pr, err := peer.Parse(address)
	if err != nil {
		return false, NewValidationError(err)
	}

	if pr.Match(s.host) {
		return false, nil
	}

	added := s.knownPeers.Add(pr)
	if added {
		s.evHandler("state: AddKnownPeer: peer[%s]", pr)
	}

	return added, nil
}

// AddKnownPeers parses every address before adding any of them, so a
// malformed address leaves the known peer list unchanged. It returns the
// number of peers that were not already known.
func (s *State) AddKnownPeers(addresses []string) (int, error) {
	peers := make([]peer.Peer, 0, len(addresses))
	for _, address := range addresses {
		pr, err := peer.Parse(address)
		if err != nil {
			return 0, NewValidationError(err)
		}
		peers = append(peers, pr)
	}

	var added int
	for _, pr := range peers {
		if pr.Match(s.host) {
			continue
		}

		if s.knownPeers.Add(pr) {
			s.evHandler("state: AddKnownPeers: peer[%s]", pr)
			added++
		}
	}

	return added, nil
}

// RemoveKnownPeer removes the peer from the known peer list.
func (s *State) RemoveKnownPeer(pr peer.Peer) {
	s.knownPeers.Remove(pr)
}
