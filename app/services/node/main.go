package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/koin/app/services/node/handlers"
	"github.com/ardanlabs/koin/foundation/blockchain/genesis"
	"github.com/ardanlabs/koin/foundation/blockchain/peer"
	"github.com/ardanlabs/koin/foundation/blockchain/state"
	"github.com/ardanlabs/koin/foundation/blockchain/worker"
	"github.com/ardanlabs/koin/foundation/events"
	"github.com/ardanlabs/koin/foundation/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// Genesis parameters are consensus values and come from the genesis file,
	// everything else here is local to this node.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		State struct {
			NodeID          string        `conf:"help:identity used as the sender of mining rewards, generated when empty"`
			Beneficiary     string        `conf:"help:receiver of the mining reward for auto mined blocks"`
			GenesisPath     string        `conf:"help:optional genesis file layered over the defaults"`
			KnownPeers      []string      `conf:"default:0.0.0.0:9080;0.0.0.0:9180"`
			PeerTimeout     time.Duration `conf:"default:5s"`
			PeerMaxBytes    int64         `conf:"default:33554432,help:largest peer response body read during consensus"`
			ResolveInterval time.Duration `conf:"default:30s"`
			PeerInterval    time.Duration `conf:"default:1m"`
			AutoMine        bool          `conf:"default:false"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "koin proof of work ledger node",
		},
	}

	// Values are overridden with NODE_ prefixed environment variables or
	// command line flags, for example NODE_STATE_AUTO_MINE=true.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(` _  _____ ___ _   _ `)
	fmt.Println(`| |/ / _ \_ _| \ | |`)
	fmt.Println(`| ' / | | | ||  \| |`)
	fmt.Println(`| . \ |_| | || |\  |`)
	fmt.Println(`|_|\_\___/___|_| \_|`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	// Every node in the network must agree on the genesis parameters since
	// the genesis block hash and the difficulty are part of consensus.
	gen := genesis.Default()
	if cfg.State.GenesisPath != "" {
		gen, err = genesis.Load(cfg.State.GenesisPath)
		if err != nil {
			return fmt.Errorf("unable to load genesis file: %w", err)
		}
	}
	log.Infow("startup", "status", "genesis", "timestamp", gen.TimeStamp, "difficulty", gen.Difficulty, "reward", gen.MiningReward)

	nodeID := cfg.State.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	// A peer set is a collection of known nodes in the network so chains
	// can be compared during consensus.
	peerSet := peer.NewPeerSet()
	for _, host := range cfg.State.KnownPeers {
		pr, err := peer.Parse(host)
		if err != nil {
			return fmt.Errorf("parsing known peer: %w", err)
		}
		if !pr.Match(cfg.Web.PrivateHost) {
			peerSet.Add(pr)
		}
	}

	// Every event raised by the blockchain packages is logged and streamed to
	// the websocket clients of the public API.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// State owns the ledger, the mempool and the peer set.
	st, err := state.New(state.Config{
		NodeID:           nodeID,
		Host:             cfg.Web.PrivateHost,
		Genesis:          gen,
		KnownPeers:       peerSet,
		PeerTimeout:      cfg.State.PeerTimeout,
		MaxResponseBytes: cfg.State.PeerMaxBytes,
		EvHandler:        ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The worker resolves against the peers on an interval, discovers new
	// peers, and mines when auto mining is enabled.
	worker.Run(st, worker.Config{
		ResolveInterval: cfg.State.ResolveInterval,
		PeerInterval:    cfg.State.PeerInterval,
		AutoMine:        cfg.State.AutoMine,
		Beneficiary:     cfg.State.Beneficiary,
	}, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log)

	// The debug server is not shut down gracefully.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// A handler returning a shutdown error also sends on this channel.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Both servers report here, the first failure stops the node.
	serverErrors := make(chan error, 2)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct the mux for the private API calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
	})

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Closing the event channels ends the websocket handlers so the public
		// server can drain.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
