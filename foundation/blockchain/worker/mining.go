package worker

import (
	"time"
)

// miningOperations mines a block each time a submitted transaction signals
// the worker.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.ctx.Done():
			w.evHandler("worker: miningOperations: shutdown")
			return
		}
	}
}

// runMiningOperation seals the pending transactions into a block, paying the
// configured beneficiary. An empty mempool is left alone so auto mining never
// produces empty blocks.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	if len(w.state.RetrieveMempool()) == 0 {
		w.evHandler("worker: runMiningOperation: MINING: mempool empty")
		return
	}

	t := time.Now()
	block, err := w.state.MineNewBlock(w.ctx, w.cfg.Beneficiary)
	duration := time.Since(t)

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	if err != nil {
		if w.isShutdown() {
			w.evHandler("worker: runMiningOperation: MINING: cancelled by shutdown")
			return
		}
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: blk[%d]: numTrans[%d]", block.Index, len(block.Trans))

	// Transactions may have arrived while mining.
	if length := len(w.state.RetrieveMempool()); length > 0 {
		w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", length)
		w.SignalStartMining()
	}
}
