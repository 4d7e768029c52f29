package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/koin/app/services/node/handlers"
	"github.com/ardanlabs/koin/business/web/errs"
	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/genesis"
	"github.com/ardanlabs/koin/foundation/blockchain/state"
	"github.com/ardanlabs/koin/foundation/events"
	"github.com/ardanlabs/koin/foundation/logger"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type node struct {
	state   *state.State
	public  http.Handler
	private http.Handler
}

func newNode(t *testing.T, log *zap.SugaredLogger, host string) node {
	t.Helper()

	gen := genesis.Default()
	gen.Difficulty = 2

	st, err := state.New(state.Config{
		NodeID:  "node-" + host,
		Host:    host,
		Genesis: gen,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct state: %v", failed, err)
	}

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		State:    st,
		Evts:     events.New(),
	}

	return node{
		state:   st,
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
	}
}

func call(h http.Handler, method string, path string, body string, header map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		r.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w
}

func Test_PublicAPI(t *testing.T) {
	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a logger: %v", failed, err)
	}
	defer log.Sync()

	t.Log("Given the need to drive the ledger through the public API.")
	{
		n := newNode(t, log, "localhost:9080")

		w := call(n.public, http.MethodPost, "/v1/tx/submit", `{"sender":"A","receiver":"B","amount":10}`, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould accept a transaction: %d %s", failed, w.Code, w.Body)
		}

		var sub struct {
			Message string `json:"message"`
			Index   uint64 `json:"index"`
		}
		json.NewDecoder(w.Body).Decode(&sub)
		if sub.Index != 2 || sub.Message != "This transaction will be added to block 2" {
			t.Fatalf("\t%s\tShould predict block 2: %+v", failed, sub)
		}
		t.Logf("\t%s\tShould accept a transaction and predict block 2.", success)

		w = call(n.public, http.MethodPost, "/v1/tx/submit", `{"sender":"A","receiver":"B"}`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject a transaction without an amount: %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould reject a transaction without an amount.", success)

		w = call(n.public, http.MethodPost, "/v1/blocks/mine", "", map[string]string{"user": "miner1"})
		if w.Code != http.StatusCreated {
			t.Fatalf("\t%s\tShould mine a block: %d %s", failed, w.Code, w.Body)
		}

		var mined struct {
			Message string `json:"message"`
			database.Block
		}
		json.NewDecoder(w.Body).Decode(&mined)
		if mined.Index != 2 || len(mined.Trans) != 2 || mined.Trans[1].Receiver != "miner1" {
			t.Fatalf("\t%s\tShould return the mined block with the reward: %+v", failed, mined)
		}
		t.Logf("\t%s\tShould return the mined block with the reward.", success)

		w = call(n.public, http.MethodGet, "/v1/chain", "", nil)
		var pc state.PeerChain
		json.NewDecoder(w.Body).Decode(&pc)
		if w.Code != http.StatusOK || pc.Length != 2 || len(pc.Chain) != 2 {
			t.Fatalf("\t%s\tShould return a chain of two blocks: %d %+v", failed, w.Code, pc)
		}
		t.Logf("\t%s\tShould return a chain of two blocks.", success)

		w = call(n.public, http.MethodGet, "/v1/chain/valid", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("\t%s\tShould report a valid chain: %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould report a valid chain.", success)

		w = call(n.public, http.MethodPost, "/v1/peers/connect", `{"nodes":["http://127.0.0.1:5001","not a node"]}`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject a malformed peer address: %d", failed, w.Code)
		}

		var er errs.Response
		json.NewDecoder(w.Body).Decode(&er)
		if er.Error == "" {
			t.Fatalf("\t%s\tShould explain the rejection.", failed)
		}
		t.Logf("\t%s\tShould reject a malformed peer address.", success)

		w = call(n.public, http.MethodGet, "/v1/peers/list", "", nil)
		var peers []json.RawMessage
		json.NewDecoder(w.Body).Decode(&peers)
		if w.Code != http.StatusOK || len(peers) != 0 {
			t.Fatalf("\t%s\tShould not add any peer from a rejected batch: %d %d", failed, w.Code, len(peers))
		}
		t.Logf("\t%s\tShould not add any peer from a rejected batch.", success)

		w = call(n.public, http.MethodPost, "/v1/peers/connect", `{"nodes":[]}`, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("\t%s\tShould reject an empty node list: %d", failed, w.Code)
		}
		t.Logf("\t%s\tShould reject an empty node list.", success)

		w = call(n.public, http.MethodGet, "/v1/chain/resolve", "", nil)
		var res struct {
			Outcome string `json:"outcome"`
		}
		json.NewDecoder(w.Body).Decode(&res)
		if w.Code != http.StatusOK || res.Outcome != "kept" {
			t.Fatalf("\t%s\tShould keep the chain when no peer is longer: %d %+v", failed, w.Code, res)
		}
		t.Logf("\t%s\tShould keep the chain when no peer is longer.", success)
	}
}

func Test_Consensus(t *testing.T) {
	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a logger: %v", failed, err)
	}
	defer log.Sync()

	t.Log("Given the need to adopt a longer chain from a peer over HTTP.")
	{
		b := newNode(t, log, "nodeb:9080")
		srv := httptest.NewServer(b.private)
		defer srv.Close()

		for i := 0; i < 3; i++ {
			if w := call(b.public, http.MethodPost, "/v1/blocks/mine", "", nil); w.Code != http.StatusCreated {
				t.Fatalf("\t%s\tShould mine a block on node B: %d", failed, w.Code)
			}
		}

		a := newNode(t, log, "nodea:9080")

		body := `{"nodes":["` + srv.URL + `"]}`
		w := call(a.public, http.MethodPost, "/v1/peers/connect", body, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("\t%s\tShould connect node B: %d %s", failed, w.Code, w.Body)
		}
		t.Logf("\t%s\tShould connect node B.", success)

		w = call(a.public, http.MethodGet, "/v1/chain/resolve", "", nil)
		var res struct {
			Outcome string           `json:"outcome"`
			Chain   []database.Block `json:"chain"`
		}
		json.NewDecoder(w.Body).Decode(&res)

		if w.Code != http.StatusOK || res.Outcome != "replaced" || len(res.Chain) != 4 {
			t.Fatalf("\t%s\tShould replace the chain with the one from node B: %d %s %d", failed, w.Code, res.Outcome, len(res.Chain))
		}
		t.Logf("\t%s\tShould replace the chain with the one from node B.", success)

		if a.state.RetrieveLatestBlock().Hash() != b.state.RetrieveLatestBlock().Hash() {
			t.Fatalf("\t%s\tShould hold the same latest block as node B.", failed)
		}
		t.Logf("\t%s\tShould hold the same latest block as node B.", success)
	}
}
