// Package worker implements mining, peer updates, and consensus for the
// blockchain.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/koin/foundation/blockchain/state"
)

// Default intervals used when the configuration leaves them unset.
const (
	defaultResolveInterval = 30 * time.Second
	defaultPeerInterval    = time.Minute
)

// Config represents the settings for the background operations.
type Config struct {
	ResolveInterval time.Duration
	PeerInterval    time.Duration
	AutoMine        bool
	Beneficiary     string
}

// =============================================================================

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	cfg          Config
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	peerTicker   *time.Ticker
	resolveTick  *time.Ticker
	startMining  chan bool
	startResolve chan bool
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config, evHandler state.EventHandler) *Worker {
	if cfg.ResolveInterval <= 0 {
		cfg.ResolveInterval = defaultResolveInterval
	}
	if cfg.PeerInterval <= 0 {
		cfg.PeerInterval = defaultPeerInterval
	}
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:        st,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		peerTicker:   time.NewTicker(cfg.PeerInterval),
		resolveTick:  time.NewTicker(cfg.ResolveInterval),
		startMining:  make(chan bool, 1),
		startResolve: make(chan bool, 1),
		evHandler:    evHandler,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Update this node before starting any support G's.
	w.Sync()

	// Load the set of operations we need to run.
	operations := []func(){
		w.peerOperations,
		w.resolveOperations,
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work. Any mining or
// resolution in progress is cancelled through the worker context.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop tickers")
	w.peerTicker.Stop()
	w.resolveTick.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	w.cancel()
	w.wg.Wait()
}

// SignalStartMining starts a mining operation when auto mining is enabled.
// If there is already a signal pending in the channel, just return since a
// mining operation will start.
func (w *Worker) SignalStartMining() {
	if !w.cfg.AutoMine {
		return
	}

	select {
	case w.startMining <- true:
		w.evHandler("worker: SignalStartMining: mining signaled")
	default:
	}
}

// SignalResolve requests a consensus round outside of the regular interval.
func (w *Worker) SignalResolve() {
	select {
	case w.startResolve <- true:
		w.evHandler("worker: SignalResolve: resolve signaled")
	default:
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	return w.ctx.Err() != nil
}
