package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	metrics "github.com/docker/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hearthworld/assetd/bake"
	"github.com/hearthworld/assetd/blobstore"
	"github.com/hearthworld/assetd/config"
	"github.com/hearthworld/assetd/dispatch"
	"github.com/hearthworld/assetd/internal/dcontext"
	"github.com/hearthworld/assetd/mapping"
	"github.com/hearthworld/assetd/metastore"
	"github.com/hearthworld/assetd/stats"
	"github.com/hearthworld/assetd/storagedriver/filesystem"
	"github.com/hearthworld/assetd/sweep"
	"github.com/hearthworld/assetd/transfer"
)

// ServeCmd wires every component together, runs the startup sweep, and
// blocks until the process receives a termination signal. Grounded on the
// teacher's registry.ServeCmd: a cobra command resolving a config path
// argument, constructing the long-lived object graph, and handing off to
// a blocking run loop.
var ServeCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "`serve` boots the asset core: blob store, mapping, bake pipeline, and dispatcher",
	Long:  "`serve` boots the asset core: blob store, mapping, bake pipeline, and dispatcher",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfiguration(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			// nolint:errcheck
			cmd.Usage()
			os.Exit(1)
		}

		srv, err := New(context.Background(), cfg)
		if err != nil {
			logrus.Fatalln(err)
		}

		if err := srv.Run(context.Background()); err != nil {
			logrus.Fatalln(err)
		}
	},
}

func resolveConfiguration(args []string) (*config.Config, error) {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else if v := os.Getenv("ASSETD_CONFIGURATION_PATH"); v != "" {
		path = v
	}
	if path == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}
	return config.ParseFile(path)
}

// Server is a fully wired asset core: every package in this module
// constructed and connected, minus the transport/packet-receiver
// framework that hands decoded wire.Frames to Dispatcher.Handle -- that
// boundary is intentionally left to the caller (see Dispatcher).
type Server struct {
	config    *config.Config
	driver    *filesystem.Driver
	blobs     *blobstore.BlobStore
	mappings  *mapping.Store
	metas     *metastore.Store
	bakes     *bake.Coordinator
	transfers *transfer.Pool
	stats     *stats.Reporter
	dispatch  *dispatch.Dispatcher

	debugServer *http.Server
}

// New constructs every component in dependency order and runs the startup
// sweep, but does not yet accept any transport traffic.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	driver, err := filesystem.New(cfg.Resources)
	if err != nil {
		return nil, fmt.Errorf("server: construct filesystem driver: %w", err)
	}

	blobs := blobstore.New(driver)
	mappings := mapping.New(driver, blobs)
	metas := metastore.New(mappings, blobs)
	reporter := stats.New()
	reporter.Register()

	bakes := bake.New(
		mappings, metas, blobs,
		bake.NewPassthroughBaker(cfg.Bake.ModelExtensions...),
		bake.NewPassthroughBaker(cfg.Bake.TextureExtensions...),
		cfg.Bake.ModelExtensions,
		cfg.Bake.Version,
		os.TempDir(),
		reporter,
	)

	transferSize := cfg.Pools.Transfer
	if transferSize <= 0 {
		transferSize = transfer.DefaultSize
	}
	transfers := transfer.New(transferSize)

	disp := dispatch.New(mappings, metas, blobs, bakes, transfers, reporter)

	if err := sweep.Run(ctx, mappings, blobs, bakes); err != nil {
		return nil, fmt.Errorf("server: startup sweep: %w", err)
	}

	srv := &Server{
		config:    cfg,
		driver:    driver,
		blobs:     blobs,
		mappings:  mappings,
		metas:     metas,
		bakes:     bakes,
		transfers: transfers,
		stats:     reporter,
		dispatch:  disp,
	}

	if cfg.Stats.DebugAddr != "" {
		srv.debugServer = &http.Server{Addr: cfg.Stats.DebugAddr, Handler: metrics.Handler()}
	}

	return srv, nil
}

// Dispatcher returns the wired request dispatcher a transport layer hands
// decoded frames to.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatch }

// Run starts the debug metrics listener (if configured), logs a liveness
// heartbeat at the configured interval, and blocks until SIGINT/SIGTERM,
// then shuts everything down in reverse dependency order.
func (s *Server) Run(ctx context.Context) error {
	logger := dcontext.GetLogger(ctx)

	if s.debugServer != nil {
		go func() {
			logger.Infof("server: metrics listening on %s", s.debugServer.Addr)
			if err := s.debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("server: metrics listener: %v", err)
			}
		}()
	}

	heartbeat := s.config.Stats.IntervalSeconds
	if heartbeat <= 0 {
		heartbeat = 30
	}
	ticker := time.NewTicker(time.Duration(heartbeat) * time.Second)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	logger.Infof("server: ready, resources=%s", s.config.Resources)
	for {
		select {
		case <-ticker.C:
			logger.Debug("server: heartbeat")
		case <-quit:
			logger.Info("server: shutting down")
			return s.Shutdown(context.Background())
		}
	}
}

// Shutdown aborts in-flight bakes, drops queued transfers, and stops the
// debug listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.bakes.Shutdown(ctx)
	s.transfers.Shutdown()
	if s.debugServer != nil {
		return s.debugServer.Shutdown(ctx)
	}
	return nil
}
