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
	"github.com/ardanlabs/powchain/app/services/node/handlers"
	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/ardanlabs/powchain/foundation/blockchain/network"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Chain struct {
			Nodes          int     `conf:"default:3"`
			Difficulty     int     `conf:"default:4"`
			AutoMine       bool    `conf:"default:false"`
			Connect        bool    `conf:"default:true"`
			MaxAttempts    uint64  `conf:"default:0"`
			TargetHashRate float64 `conf:"default:0"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work chain simulation",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Chain.Nodes < 1 {
		return fmt.Errorf("parsing config: chain nodes must be at least 1, got %d", cfg.Chain.Nodes)
	}

	// A zero difficulty would be read by the state package as the default.
	if cfg.Chain.Difficulty < 1 {
		return fmt.Errorf("parsing config: chain difficulty must be at least 1, got %d", cfg.Chain.Difficulty)
	}

	// =========================================================================
	// App Starting

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

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The network resolves peer handles to the nodes running in this process
	// and delivers mined blocks between them.
	net := network.New(ev)

	var workerOpts []worker.Option
	if cfg.Chain.AutoMine {
		workerOpts = append(workerOpts, worker.WithAutoMine())
	}

	for id := 1; id <= cfg.Chain.Nodes; id++ {
		node, err := state.New(state.Config{
			NodeID:         id,
			Difficulty:     cfg.Chain.Difficulty,
			MaxAttempts:    cfg.Chain.MaxAttempts,
			TargetHashRate: cfg.Chain.TargetHashRate,
			Propagator:     net,
			EvHandler:      ev,
		})
		if err != nil {
			return fmt.Errorf("constructing node %d: %w", id, err)
		}
		defer node.Shutdown()

		if err := net.Register(node); err != nil {
			return err
		}

		// The worker registers itself with the state and runs the mining
		// workflow for the node.
		worker.Run(node, ev, workerOpts...)
	}

	if cfg.Chain.Connect {
		net.ConnectAll()
	}

	for _, node := range net.Nodes() {
		log.Infow("startup", "status", "node ready", "node", node.RetrieveNodeID(), "host", node.RetrieveHost(),
			"difficulty", node.RetrieveDifficulty(), "peers", len(node.RetrieveKnownPeers()))
	}

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Metrics:  metrics.New(net),
		Net:      net,
		Evts:     evts,
		Origin:   cfg.Web.CORSOrigin,
		Build:    build,
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debug := http.Server{
		Addr:     cfg.Web.DebugHost,
		Handler:  handlers.DebugMux(build, muxCfg),
		ErrorLog: zap.NewStdLog(log.Desugar()),
	}

	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux, err := handlers.PublicMux(muxCfg)
	if err != nil {
		return fmt.Errorf("constructing public mux: %w", err)
	}

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
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

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking both listeners to shut down and shed load.
		g, ctx := errgroup.WithContext(ctx)
		for name, srv := range map[string]*http.Server{"public": &public, "debug": &debug} {
			g.Go(func() error {
				log.Infow("shutdown", "status", "shutdown started", "server", name)
				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("could not stop %s service gracefully: %w", name, err)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
	}

	return nil
}
