package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
)

const baseURL = "http://%s/v1/node"

// DefaultMaxResponseBytes caps the size of a peer response body when no
// limit is configured.
const DefaultMaxResponseBytes int64 = 32 << 20

// PeerChain is the chain and length reported by a peer.
type PeerChain struct {
	Chain  []database.Block `json:"chain"`
	Length int              `json:"length"`
}

// ChainFetcher represents the behavior required to retrieve the chain held
// by a peer. Implementations must return when the context is done.
type ChainFetcher interface {
	FetchChain(ctx context.Context, pr peer.Peer) (PeerChain, error)
}

// =============================================================================

// HTTPFetcher retrieves peer chains from the private node API. A chain
// larger than maxBytes fails to decode.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher constructs a fetcher that uses the specified client. A zero
// maxBytes uses DefaultMaxResponseBytes.
func NewHTTPFetcher(client *http.Client, maxBytes int64) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}

	return &HTTPFetcher{
		client:   client,
		maxBytes: maxBytes,
	}
}

// FetchChain implements the ChainFetcher interface.
func (hf *HTTPFetcher) FetchChain(ctx context.Context, pr peer.Peer) (PeerChain, error) {
	url := fmt.Sprintf("%s/chain", fmt.Sprintf(baseURL, pr.Host))

	var pc PeerChain
	if err := send(ctx, hf.client, hf.maxBytes, http.MethodGet, url, nil, &pc); err != nil {
		return PeerChain{}, &NetworkError{Host: pr.Host, Err: err}
	}

	return pc, nil
}

// =============================================================================

// NetRequestPeerStatus looks for new nodes on the blockchain by asking
// known nodes for their peer list.
func (s *State) NetRequestPeerStatus(ctx context.Context, pr peer.Peer) (peer.PeerStatus, error) {
	s.evHandler("state: NetRequestPeerStatus: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerStatus: completed: %s", pr)

	ctx, cancel := context.WithTimeout(ctx, s.peerTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/status", fmt.Sprintf(baseURL, pr.Host))

	var ps peer.PeerStatus
	if err := send(ctx, s.client, s.maxResponseBytes, http.MethodGet, url, nil, &ps); err != nil {
		return peer.PeerStatus{}, &NetworkError{Host: pr.Host, Err: err}
	}

	s.evHandler("state: NetRequestPeerStatus: peer-node[%s]: length[%d]: peer-list[%s]", pr, ps.Length, ps.KnownPeers)

	return ps, nil
}

// NetSendNodeAvailableToPeers shares this node with the known peers so they
// can add it to their peer list.
func (s *State) NetSendNodeAvailableToPeers(ctx context.Context) {
	s.evHandler("state: NetSendNodeAvailableToPeers: started")
	defer s.evHandler("state: NetSendNodeAvailableToPeers: completed")

	host := peer.New(s.host)

	for _, pr := range s.RetrieveKnownPeers() {
		s.evHandler("state: NetSendNodeAvailableToPeers: send: host[%s] to peer[%s]", host, pr)

		ctx, cancel := context.WithTimeout(ctx, s.peerTimeout)
		url := fmt.Sprintf("%s/peers", fmt.Sprintf(baseURL, pr.Host))
		if err := send(ctx, s.client, s.maxResponseBytes, http.MethodPost, url, host, nil); err != nil {
			s.evHandler("state: NetSendNodeAvailableToPeers: WARNING: %s", &NetworkError{Host: pr.Host, Err: err})
		}
		cancel()
	}
}

// =============================================================================

// send is a helper function to send an HTTP request to a node. No more than
// maxBytes of the response body are read.
func send(ctx context.Context, client *http.Client, maxBytes int64, method string, url string, dataSend any, dataRecv any) error {
	var req *http.Request

	switch {
	case dataSend != nil:
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		req, err = http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

	default:
		var err error
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return err
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBytes)

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		return fmt.Errorf("status %d: %w", resp.StatusCode, errors.New(string(msg)))
	}

	if dataRecv != nil {
		if err := json.NewDecoder(body).Decode(dataRecv); err != nil {
			return fmt.Errorf("decoding response, limit %d bytes: %w", maxBytes, err)
		}
	}

	return nil
}
