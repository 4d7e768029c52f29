// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/koin/business/web/errs"
	"github.com/ardanlabs/koin/foundation/blockchain/state"
	"github.com/ardanlabs/koin/foundation/events"
	"github.com/ardanlabs/koin/foundation/validate"
	"github.com/ardanlabs/koin/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// MineBlock performs the proof of work and seals the mempool into a new
// block. The optional user header names the beneficiary of the reward.
func (h Handlers) MineBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	beneficiary := r.Header.Get("user")

	h.Log.Infow("mine block", "traceid", v.TraceID, "beneficiary", beneficiary)

	block, err := h.State.MineNewBlock(ctx, beneficiary)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return errs.NewTrusted(errors.New("mining was cancelled"), http.StatusServiceUnavailable)
		}
		return fmt.Errorf("mining block: %w", err)
	}

	resp := mined{
		Message: "Congratulations, you just mined a block",
		Block:   block,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Chain returns the full chain and its length.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks, length := h.State.RetrieveChain()

	resp := chain{
		Chain:  blocks,
		Length: length,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Valid reports whether the local chain passes validation.
func (h Handlers) Valid(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := h.State.IsChainValid(); err != nil {
		h.Log.Errorw("chain validation", "traceid", web.GetTraceID(ctx), "ERROR", err)
		return web.Respond(ctx, w, message{Message: "Blockchain is not valid"}, http.StatusInternalServerError)
	}

	return web.Respond(ctx, w, message{Message: "Blockchain is valid"}, http.StatusOK)
}

// Resolve replaces the local chain with the longest valid chain held by
// the known peers.
func (h Handlers) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	outcome, blocks, err := h.State.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving chain: %w", err)
	}

	resp := resolved{
		Message: "Current chain is the largest chain",
		Outcome: outcome.String(),
		Chain:   blocks,
	}
	if outcome == state.Replaced {
		resp.Message = "Nodes had different chains. Chain was replaced by the longest chain"
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTransaction adds a new transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tx NewTx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(tx); err != nil {
		return err
	}

	h.Log.Infow("add tran", "traceid", v.TraceID, "sender", tx.Sender, "receiver", tx.Receiver, "amount", *tx.Amount)

	index, err := h.State.SubmitTransaction(tx.Sender, tx.Receiver, *tx.Amount)
	if err != nil {
		return err
	}

	resp := submitted{
		Message: fmt.Sprintf("This transaction will be added to block %d", index),
		Index:   index,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveMempool(), http.StatusOK)
}

// ConnectNodes registers the provided peers. A malformed address rejects
// the whole batch.
func (h Handlers) ConnectNodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var cn ConnectNodes
	if err := web.Decode(r, &cn); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(cn); err != nil {
		return err
	}

	if _, err := h.State.AddKnownPeers(cn.Nodes); err != nil {
		return err
	}

	peers := h.State.RetrieveKnownPeers()

	resp := connected{
		Message:    "nodes added",
		TotalNodes: len(peers),
		KnownPeers: peers,
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Peers returns the set of known peers.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveKnownPeers(), http.StatusOK)
}
