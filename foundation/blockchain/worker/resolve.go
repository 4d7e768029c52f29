package worker

// resolveOperations runs consensus on the configured interval or when
// signaled.
func (w *Worker) resolveOperations() {
	w.evHandler("worker: resolveOperations: G started")
	defer w.evHandler("worker: resolveOperations: G completed")

	for {
		select {
		case <-w.resolveTick.C:
			if !w.isShutdown() {
				w.runResolveOperation()
			}
		case <-w.startResolve:
			if !w.isShutdown() {
				w.runResolveOperation()
			}
		case <-w.ctx.Done():
			w.evHandler("worker: resolveOperations: received shut signal")
			return
		}
	}
}

// runResolveOperation replaces the local chain with the longest valid chain
// held by the known peers.
func (w *Worker) runResolveOperation() {
	w.evHandler("worker: runResolveOperation: started")
	defer w.evHandler("worker: runResolveOperation: completed")

	outcome, chain, err := w.state.Resolve(w.ctx)
	if err != nil {
		w.evHandler("worker: runResolveOperation: ERROR: %s", err)
		return
	}

	w.evHandler("worker: runResolveOperation: outcome[%s]: length[%d]", outcome, len(chain))
}
