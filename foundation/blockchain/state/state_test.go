package state_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/koin/foundation/blockchain/database"
	"github.com/ardanlabs/koin/foundation/blockchain/genesis"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
	"github.com/ardanlabs/koin/foundation/blockchain/state"
	"github.com/ardanlabs/koin/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const nodeID = "9f3c5b7e1a2d4c6e8f0a1b2c3d4e5f60"

func ifErrFailNow(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Error(err)
		t.FailNow()
	}
}

// newState constructs a State for testing. A zero difficulty keeps the
// default genesis difficulty.
func newState(t *testing.T, difficulty uint, fetcher state.ChainFetcher, timeout time.Duration) *state.State {
	t.Helper()

	log, err := logger.New("TEST")
	ifErrFailNow(t, err)
	t.Cleanup(func() { log.Sync() })

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
	}

	gen := genesis.Default()
	if difficulty != 0 {
		gen.Difficulty = difficulty
	}

	st, err := state.New(state.Config{
		NodeID:      nodeID,
		Host:        "localhost:9080",
		Genesis:     gen,
		KnownPeers:  peer.NewPeerSet(),
		PeerTimeout: timeout,
		Fetcher:     fetcher,
		EvHandler:   ev,
	})
	ifErrFailNow(t, err)

	return st
}

// mineBlocks mines n blocks, submitting the specified transaction first if
// the sender is not empty.
func mineBlocks(t *testing.T, st *state.State, n int, tx database.Tx) {
	t.Helper()

	for i := 0; i < n; i++ {
		if tx.Sender != "" {
			_, err := st.SubmitTransaction(tx.Sender, tx.Receiver, tx.Amount)
			ifErrFailNow(t, err)
		}

		_, err := st.MineNewBlock(context.Background(), "")
		ifErrFailNow(t, err)
	}
}

// =============================================================================

// fetcher is a ChainFetcher that serves chains from memory.
type fetcher struct {
	chains map[string]state.PeerChain
	hang   map[string]bool
}

func (f *fetcher) FetchChain(ctx context.Context, pr peer.Peer) (state.PeerChain, error) {
	if f.hang[pr.Host] {
		<-ctx.Done()
		return state.PeerChain{}, &state.NetworkError{Host: pr.Host, Err: ctx.Err()}
	}

	pc, exists := f.chains[pr.Host]
	if !exists {
		return state.PeerChain{}, &state.NetworkError{Host: pr.Host, Err: errors.New("connection refused")}
	}

	return pc, nil
}

func peerChain(st *state.State) state.PeerChain {
	chain, length := st.RetrieveChain()
	return state.PeerChain{Chain: chain, Length: length}
}

// =============================================================================

func Test_EndToEnd(t *testing.T) {
	t.Log("Given the need to mine blocks and submit transactions.")
	{
		st := newState(t, 0, nil, 0)

		chain, length := st.RetrieveChain()
		if length != 1 || chain[0].Index != 1 || chain[0].PrevBlockHash != "0" {
			t.Fatalf("\t%s\tShould start with the genesis block: %+v", failed, chain)
		}
		t.Logf("\t%s\tShould start with the genesis block.", success)

		mineBlocks(t, st, 2, database.Tx{})

		index, err := st.SubmitTransaction("A", "B", 10)
		ifErrFailNow(t, err)

		if index != 4 {
			t.Fatalf("\t%s\tShould predict block 4 for the transaction: %d", failed, index)
		}
		t.Logf("\t%s\tShould predict block 4 for the transaction.", success)

		block, err := st.MineNewBlock(context.Background(), "")
		ifErrFailNow(t, err)

		chain, length = st.RetrieveChain()
		if length != 4 || block.Index != 4 {
			t.Fatalf("\t%s\tShould have four blocks: %d", failed, length)
		}
		t.Logf("\t%s\tShould have four blocks.", success)

		exp := database.Tx{Sender: "A", Receiver: "B", Amount: 10}
		if len(chain[3].Trans) != 1 || chain[3].Trans[0] != exp {
			t.Fatalf("\t%s\tShould have exactly the submitted transaction in block 4: %v", failed, chain[3].Trans)
		}
		t.Logf("\t%s\tShould have exactly the submitted transaction in block 4.", success)

		for i := 1; i < 3; i++ {
			if len(chain[i].Trans) != 0 {
				t.Fatalf("\t%s\tShould have no transactions in block %d.", failed, chain[i].Index)
			}
		}

		if err := st.IsChainValid(); err != nil {
			t.Fatalf("\t%s\tShould have a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould have a valid chain.", success)
	}
}

func Test_PoolDrain(t *testing.T) {
	t.Log("Given the need to seal the mempool into a block.")
	{
		st := newState(t, 2, nil, 0)

		t1 := database.Tx{Sender: "A", Receiver: "B", Amount: 1}
		t2 := database.Tx{Sender: "B", Receiver: "C", Amount: 2}

		for _, tx := range []database.Tx{t1, t2} {
			_, err := st.SubmitTransaction(tx.Sender, tx.Receiver, tx.Amount)
			ifErrFailNow(t, err)
		}

		block, err := st.MineNewBlock(context.Background(), "")
		ifErrFailNow(t, err)

		if len(block.Trans) != 2 || block.Trans[0] != t1 || block.Trans[1] != t2 {
			t.Fatalf("\t%s\tShould seal [T1, T2] in submission order: %v", failed, block.Trans)
		}
		t.Logf("\t%s\tShould seal [T1, T2] in submission order.", success)

		if n := len(st.RetrieveMempool()); n != 0 {
			t.Fatalf("\t%s\tShould leave the mempool empty: %d", failed, n)
		}
		t.Logf("\t%s\tShould leave the mempool empty.", success)

		block, err = st.MineNewBlock(context.Background(), "miner1")
		ifErrFailNow(t, err)

		exp := database.Tx{Sender: nodeID, Receiver: "miner1", Amount: genesis.Default().MiningReward}
		if len(block.Trans) != 1 || block.Trans[0] != exp {
			t.Fatalf("\t%s\tShould pay the mining reward to the beneficiary: %v", failed, block.Trans)
		}
		t.Logf("\t%s\tShould pay the mining reward to the beneficiary.", success)
	}
}

func Test_Validation(t *testing.T) {
	t.Log("Given the need to reject malformed input.")
	{
		st := newState(t, 2, nil, 0)

		if _, err := st.SubmitTransaction("", "B", 10); !state.IsValidationError(err) {
			t.Fatalf("\t%s\tShould reject a transaction without a sender: %v", failed, err)
		}
		if n := len(st.RetrieveMempool()); n != 0 {
			t.Fatalf("\t%s\tShould not change the mempool: %d", failed, n)
		}
		t.Logf("\t%s\tShould reject a transaction without a sender.", success)

		if _, err := st.AddKnownPeer("http://"); !state.IsValidationError(err) {
			t.Fatalf("\t%s\tShould reject a malformed peer address: %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a malformed peer address.", success)

		added, err := st.AddKnownPeer("http://127.0.0.1:5001/")
		ifErrFailNow(t, err)
		again, err := st.AddKnownPeer("127.0.0.1:5001")
		ifErrFailNow(t, err)

		if !added || again || len(st.RetrieveKnownPeers()) != 1 {
			t.Fatalf("\t%s\tShould deduplicate peers by authority: %v", failed, st.RetrieveKnownPeers())
		}
		t.Logf("\t%s\tShould deduplicate peers by authority.", success)

		if added, _ := st.AddKnownPeer("localhost:9080"); added {
			t.Fatalf("\t%s\tShould not add the node itself as a peer.", failed)
		}
		t.Logf("\t%s\tShould not add the node itself as a peer.", success)

		if _, err := st.AddKnownPeers([]string{"node2:80", "not a host"}); !state.IsValidationError(err) {
			t.Fatalf("\t%s\tShould reject a batch holding a malformed address: %v", failed, err)
		}
		if n := len(st.RetrieveKnownPeers()); n != 1 {
			t.Fatalf("\t%s\tShould not add any peer from a rejected batch: %d", failed, n)
		}
		t.Logf("\t%s\tShould not add any peer from a rejected batch.", success)

		n, err := st.AddKnownPeers([]string{"node2:80", "127.0.0.1:5001", "localhost:9080"})
		ifErrFailNow(t, err)
		if n != 1 || len(st.RetrieveKnownPeers()) != 2 {
			t.Fatalf("\t%s\tShould add only the new peers of a batch: %d %v", failed, n, st.RetrieveKnownPeers())
		}
		t.Logf("\t%s\tShould add only the new peers of a batch.", success)
	}
}

func Test_UnhashableInput(t *testing.T) {
	t.Log("Given the need to keep input without a canonical form out of the chain.")
	{
		st := newState(t, 2, nil, 0)

		for _, tx := range []database.Tx{{Sender: "A\xff", Receiver: "B", Amount: 10}, {Sender: "A", Receiver: "\xfeB", Amount: 10}} {
			if _, err := st.SubmitTransaction(tx.Sender, tx.Receiver, tx.Amount); !state.IsValidationError(err) {
				t.Fatalf("\t%s\tShould reject %q -> %q: %v", failed, tx.Sender, tx.Receiver, err)
			}
		}
		if n := len(st.RetrieveMempool()); n != 0 {
			t.Fatalf("\t%s\tShould not change the mempool: %d", failed, n)
		}
		t.Logf("\t%s\tShould reject identities that are not valid utf-8.", success)

		if _, err := st.MineNewBlock(context.Background(), "miner\xff"); !state.IsValidationError(err) {
			t.Fatalf("\t%s\tShould reject a beneficiary that is not valid utf-8: %v", failed, err)
		}
		if _, length := st.RetrieveChain(); length != 1 {
			t.Fatalf("\t%s\tShould not seal a block for a rejected beneficiary: %d", failed, length)
		}
		t.Logf("\t%s\tShould reject a beneficiary that is not valid utf-8.", success)

		mineBlocks(t, st, 2, database.Tx{Sender: "A", Receiver: "B", Amount: 10})

		chain, _ := st.RetrieveChain()
		for i := 1; i < len(chain); i++ {
			if chain[i].PrevBlockHash == "" || chain[i].PrevBlockHash != chain[i-1].Hash() {
				t.Fatalf("\t%s\tShould link blk[%d] to the hash of its parent: %q", failed, chain[i].Index, chain[i].PrevBlockHash)
			}
		}

		if err := st.IsChainValid(); err != nil {
			t.Fatalf("\t%s\tShould keep a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould keep a valid chain.", success)
	}
}

func Test_Resolve(t *testing.T) {
	t.Log("Given the need to apply the longest valid chain rule.")
	{
		long := newState(t, 2, nil, 0)
		mineBlocks(t, long, 4, database.Tx{Sender: "L", Receiver: "M", Amount: 1})

		short := newState(t, 2, nil, 0)
		mineBlocks(t, short, 1, database.Tx{})

		tampered := peerChain(long)
		tampered.Chain[1].Trans[0].Amount = 1000

		lying := peerChain(long)
		lying.Length = 50

		type table struct {
			name   string
			chains map[string]state.PeerChain
			hang   map[string]bool
			exp    state.Outcome
			length int
		}

		tt := []table{
			{
				name:   "longer",
				chains: map[string]state.PeerChain{"node1:80": peerChain(long)},
				exp:    state.Replaced,
				length: 5,
			},
			{
				name:   "shorter",
				chains: map[string]state.PeerChain{"node1:80": peerChain(short)},
				exp:    state.Kept,
				length: 3,
			},
			{
				name:   "tampered",
				chains: map[string]state.PeerChain{"node1:80": tampered},
				exp:    state.Kept,
				length: 3,
			},
			{
				name:   "length",
				chains: map[string]state.PeerChain{"node1:80": lying},
				exp:    state.Kept,
				length: 3,
			},
			{
				name:   "unreachable",
				chains: map[string]state.PeerChain{"node2:80": peerChain(long)},
				exp:    state.Replaced,
				length: 5,
			},
			{
				name:   "hung",
				chains: map[string]state.PeerChain{"node2:80": peerChain(long)},
				hang:   map[string]bool{"node1:80": true},
				exp:    state.Replaced,
				length: 5,
			},
		}

		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen resolving against a %s peer chain.", testID, tst.name)
			{
				f := func(t *testing.T) {
					st := newState(t, 2, &fetcher{chains: tst.chains, hang: tst.hang}, 100*time.Millisecond)
					mineBlocks(t, st, 2, database.Tx{})
					before, _ := st.RetrieveChain()

					for _, host := range []string{"node1:80", "node2:80"} {
						_, err := st.AddKnownPeer(host)
						ifErrFailNow(t, err)
					}

					outcome, chain, err := st.Resolve(context.Background())
					ifErrFailNow(t, err)

					if outcome != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould get back %s, got %s.", failed, testID, tst.exp, outcome)
					}
					t.Logf("\t%s\tTest %d:\tShould get back %s.", success, testID, tst.exp)

					if len(chain) != tst.length {
						t.Fatalf("\t%s\tTest %d:\tShould have %d blocks, got %d.", failed, testID, tst.length, len(chain))
					}
					t.Logf("\t%s\tTest %d:\tShould have %d blocks.", success, testID, tst.length)

					if outcome == state.Kept && chain[len(chain)-1].Hash() != before[len(before)-1].Hash() {
						t.Fatalf("\t%s\tTest %d:\tShould leave the local chain unchanged.", failed, testID)
					}

					if err := st.IsChainValid(); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould have a valid chain: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould have a valid chain.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_ResolveTieBreak(t *testing.T) {
	t.Log("Given the need to pick between equally long chains.")
	{
		a := newState(t, 2, nil, 0)
		mineBlocks(t, a, 3, database.Tx{Sender: "A", Receiver: "B", Amount: 1})

		b := newState(t, 2, nil, 0)
		mineBlocks(t, b, 3, database.Tx{Sender: "C", Receiver: "D", Amount: 2})

		exp := a.RetrieveLatestBlock().Hash()
		if h := b.RetrieveLatestBlock().Hash(); h < exp {
			exp = h
		}

		for _, hosts := range [][2]string{{"node1:80", "node2:80"}, {"node2:80", "node1:80"}} {
			chains := map[string]state.PeerChain{
				hosts[0]: peerChain(a),
				hosts[1]: peerChain(b),
			}

			st := newState(t, 2, &fetcher{chains: chains}, time.Second)
			st.AddKnownPeer(hosts[0])
			st.AddKnownPeer(hosts[1])

			outcome, _, err := st.Resolve(context.Background())
			ifErrFailNow(t, err)

			if outcome != state.Replaced {
				t.Fatalf("\t%s\tShould replace the chain, got %s.", failed, outcome)
			}

			if h := st.RetrieveLatestBlock().Hash(); h != exp {
				t.Logf("\t%s\tgot: %s", failed, h)
				t.Logf("\t%s\texp: %s", failed, exp)
				t.Fatalf("\t%s\tShould adopt the chain with the smallest latest block hash.", failed)
			}
		}
		t.Logf("\t%s\tShould adopt the same chain regardless of peer order.", success)
	}
}

func Test_ResolveDifferentGenesis(t *testing.T) {
	other := genesis.Default()
	other.TimeStamp = "2020-01-01 00:00:00.000000"
	other.Difficulty = 2

	foreign, err := state.New(state.Config{Genesis: other})
	ifErrFailNow(t, err)
	mineBlocks(t, foreign, 4, database.Tx{})

	st := newState(t, 2, &fetcher{chains: map[string]state.PeerChain{"node1:80": peerChain(foreign)}}, time.Second)
	st.AddKnownPeer("node1:80")

	outcome, chain, err := st.Resolve(context.Background())
	ifErrFailNow(t, err)

	if outcome != state.Kept || len(chain) != 1 {
		t.Fatalf("\t%s\tShould not adopt a chain from a different genesis: %s %d", failed, outcome, len(chain))
	}
	t.Logf("\t%s\tShould not adopt a chain from a different genesis.", success)
}

func Test_ConcurrentMining(t *testing.T) {
	t.Log("Given the need to mine from many goroutines at once.")
	{
		st := newState(t, 2, nil, 0)

		const miners = 4
		const txPerMiner = 5

		var wg sync.WaitGroup
		wg.Add(miners)

		for i := 0; i < miners; i++ {
			go func(i int) {
				defer wg.Done()

				for j := 0; j < txPerMiner; j++ {
					if _, err := st.SubmitTransaction(fmt.Sprintf("S%d", i), "R", float64(j)); err != nil {
						t.Errorf("\t%s\tShould be able to submit: %v", failed, err)
						return
					}
				}

				if _, err := st.MineNewBlock(context.Background(), ""); err != nil {
					t.Errorf("\t%s\tShould be able to mine: %v", failed, err)
				}
			}(i)
		}

		wg.Wait()

		chain, length := st.RetrieveChain()
		if length != miners+1 {
			t.Fatalf("\t%s\tShould seal one block per request: %d", failed, length)
		}
		t.Logf("\t%s\tShould seal one block per request.", success)

		var count int
		for _, block := range chain {
			count += len(block.Trans)
		}
		count += len(st.RetrieveMempool())

		if count != miners*txPerMiner {
			t.Fatalf("\t%s\tShould not lose or duplicate transactions: %d", failed, count)
		}
		t.Logf("\t%s\tShould not lose or duplicate transactions.", success)

		if err := st.IsChainValid(); err != nil {
			t.Fatalf("\t%s\tShould have a valid chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould have a valid chain.", success)
	}
}

func Test_MineCancel(t *testing.T) {
	gen := genesis.Default()
	gen.Difficulty = 64

	st, err := state.New(state.Config{Genesis: gen})
	ifErrFailNow(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := st.MineNewBlock(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("\t%s\tShould stop mining when the context is cancelled: %v", failed, err)
	}

	if _, length := st.RetrieveChain(); length != 1 {
		t.Fatalf("\t%s\tShould not seal a block when cancelled: %d", failed, length)
	}
	t.Logf("\t%s\tShould stop mining when the context is cancelled.", success)
}
