// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/genesis"
	"github.com/ardanlabs/koin/foundation/blockchain/mempool"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
	"github.com/ardanlabs/koin/foundation/blockchain/pow"
)

// defaultPeerTimeout is used when no per peer fetch timeout is configured.
const defaultPeerTimeout = 5 * time.Second

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and consensus.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalResolve()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	NodeID      string
	Host        string
	Genesis     genesis.Genesis
	KnownPeers  *peer.PeerSet
	PeerTimeout time.Duration
	Fetcher     ChainFetcher
	EvHandler   EventHandler

	// MaxResponseBytes caps every peer response body, zero means
	// DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// State manages the blockchain database and the mempool. Every mutation of
// the ledger and the pool is serialized by mu.
type State struct {
	mu sync.Mutex

	nodeID      string
	host        string
	peerTimeout time.Duration
	evHandler   EventHandler

	maxResponseBytes int64

	knownPeers *peer.PeerSet
	client     *http.Client
	fetcher    ChainFetcher
	genesis    genesis.Genesis
	pow        *pow.POW
	mempool    *mempool.Mempool
	db         *database.Database

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// The difficulty is a consensus parameter and is taken from the genesis
	// information so every node validates against the same value.
	p, err := pow.New(cfg.Genesis.Difficulty, ev)
	if err != nil {
		return nil, fmt.Errorf("constructing proof of work: %w", err)
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	peerTimeout := cfg.PeerTimeout
	if peerTimeout <= 0 {
		peerTimeout = defaultPeerTimeout
	}

	maxResponseBytes := cfg.MaxResponseBytes
	if maxResponseBytes <= 0 {
		maxResponseBytes = DefaultMaxResponseBytes
	}

	// Each request carries its own deadline through the context.
	client := &http.Client{}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(client, maxResponseBytes)
	}

	// Create the State to provide support for managing the blockchain.
	state := State{
		nodeID:      cfg.NodeID,
		host:        cfg.Host,
		peerTimeout: peerTimeout,
		evHandler:   ev,

		maxResponseBytes: maxResponseBytes,

		knownPeers: knownPeers,
		client:     client,
		fetcher:    fetcher,
		genesis:    cfg.Genesis,
		pow:        p,
		mempool:    mempool.New(),
		db:         database.New(cfg.Genesis),

		// The call to worker.Run will replace this value with a worker
		// that runs the background operations for the node.
		Worker: nopWorker{},
	}

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return nil
}

// =============================================================================

// nopWorker is used until a real worker registers itself.
type nopWorker struct{}

func (nopWorker) Shutdown()          {}
func (nopWorker) Sync()              {}
func (nopWorker) SignalStartMining() {}
func (nopWorker) SignalResolve()     {}
