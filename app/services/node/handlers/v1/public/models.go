package public

import (
	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
)

// message is the basic acknowledgement returned by the public API.
type message struct {
	Message string `json:"message"`
}

type mined struct {
	Message string `json:"message"`
	database.Block
}

type chain struct {
	Chain  []database.Block `json:"chain"`
	Length int              `json:"length"`
}

type resolved struct {
	Message string           `json:"message"`
	Outcome string           `json:"outcome"`
	Chain   []database.Block `json:"chain"`
}

type submitted struct {
	Message string `json:"message"`
	Index   uint64 `json:"index"`
}

type connected struct {
	Message    string      `json:"message"`
	TotalNodes int         `json:"total_nodes"`
	KnownPeers []peer.Peer `json:"known_peers"`
}

// NewTx is what a client submits to add a transaction to the mempool. The
// amount is a pointer so a missing amount can be told apart from zero.
type NewTx struct {
	Sender   string   `json:"sender" validate:"required"`
	Receiver string   `json:"receiver" validate:"required"`
	Amount   *float64 `json:"amount" validate:"required"`
}

// ConnectNodes is what a client submits to register peers with the node.
type ConnectNodes struct {
	Nodes []string `json:"nodes" validate:"required,min=1,dive,required"`
}
