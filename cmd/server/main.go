// Package main runs the token sale service:
// - HTTP API over the configured ledger (memory, LevelDB or PostgreSQL)
// - Journal of purchases and configuration changes (memory or PostgreSQL)
// - Volume rollup scheduler (memory or ClickHouse)
// - Prometheus metrics, health and status endpoints
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/api"
	"solana-token-sale/internal/config"
	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/journal"
	"solana-token-sale/internal/observability"
	"solana-token-sale/internal/pda"
	"solana-token-sale/internal/sale"
)

// Server holds the running components.
type Server struct {
	cfg     *config.Config
	logger  *logrus.Logger
	prog    *sale.Program
	stores  *stores
	rollup  *journal.Rollup
	metrics *observability.Metrics

	// State
	mu            sync.Mutex
	started       time.Time
	lastRollupRun time.Time
	rollupRuns    int
	rollupErrors  int
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv("SALE_CONFIG"), "Path to a TOML or YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithField("component", "server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, cleanup, err := newServer(ctx, cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer cleanup()

	// Channel to signal completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()

		// A second signal forces exit.
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Warn("forced shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Error("graceful shutdown timed out after 30s")
			os.Exit(1)
		case <-done:
		}
	}()

	err = server.Run(ctx)
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("server error")
	}
	log.Info("shutdown complete")
}

func newServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Server, func(), error) {
	metrics := observability.DefaultMetrics

	programID, err := domain.ParseAddress(cfg.Sale.ProgramID)
	if err != nil {
		return nil, nil, fmt.Errorf("program id: %w", err)
	}
	mint, err := saleMint(cfg, programID)
	if err != nil {
		return nil, nil, err
	}
	deployers, err := cfg.Sale.DeployerAddresses()
	if err != nil {
		return nil, nil, err
	}

	st, cleanup, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts := []sale.Option{
		sale.WithLogger(logger),
		sale.WithMetrics(metrics),
		sale.WithRecorder(journal.NewRecorder(st.purchases, st.events, metrics, logger)),
	}
	if len(deployers) > 0 {
		opts = append(opts, sale.WithDeployers(deployers...))
	}

	prog, err := sale.New(st.ledger, programID, mint, opts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("sale program: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		prog:    prog,
		stores:  st,
		rollup:  journal.NewRollup(st.purchases, st.volume, cfg.Journal.RollupGrace, metrics, logger),
		metrics: metrics,
		started: time.Now(),
	}

	if cfg.Dev.Enabled {
		if err := s.bootstrap(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("dev bootstrap: %w", err)
		}
	}
	return s, cleanup, nil
}

// saleMint returns the configured mint. In dev mode without one, a mint
// address is derived from the program id so restarts reuse it.
func saleMint(cfg *config.Config, programID domain.Address) (domain.Address, error) {
	if cfg.Sale.Mint != "" {
		return domain.ParseAddress(cfg.Sale.Mint)
	}
	addr, _, err := pda.FindProgramAddress([][]byte{[]byte("dev-mint")}, programID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive dev mint: %w", err)
	}
	return addr, nil
}

// bootstrap creates the mint and funds the pool when it is empty.
func (s *Server) bootstrap(ctx context.Context) error {
	authority, err := s.mintAuthority()
	if err != nil {
		return err
	}

	balance, err := s.prog.PoolBalance(ctx)
	if err != nil {
		return err
	}
	if balance > 0 {
		s.logger.WithField("pool_balance", balance).Info("sale pool already funded")
		return nil
	}
	return s.prog.Provision(ctx, authority, s.cfg.Sale.Decimals, s.cfg.Dev.Supply)
}

func (s *Server) mintAuthority() (domain.Address, error) {
	if s.cfg.Dev.MintAuthority != "" {
		return domain.ParseAddress(s.cfg.Dev.MintAuthority)
	}
	programID := s.prog.Addresses().Program
	addr, _, err := pda.FindProgramAddress([][]byte{[]byte("dev-mint-authority")}, programID)
	return addr, err
}

// Run serves HTTP and runs the rollup scheduler until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log := s.logger.WithField("component", "server")

	router := api.New(api.Options{
		Sale:      s.prog,
		Purchases: s.stores.purchases,
		Volume:    s.stores.volume,
		Metrics:   observability.Handler(),
		Status:    s.status,
		DevMode:   s.cfg.Dev.Enabled,
		Logger:    s.logger,
	}).Router()

	httpServer := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.cfg.HTTP.Addr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go s.runRollupScheduler(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown")
	}
	return runErr
}

// runRollupScheduler rolls journaled purchases into volume buckets on schedule.
func (s *Server) runRollupScheduler(ctx context.Context) {
	interval := s.cfg.Journal.RollupInterval
	s.logger.WithField("interval", interval.String()).Info("starting rollup scheduler")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runRollup(ctx, now)
		}
	}
}

func (s *Server) runRollup(ctx context.Context, now time.Time) {
	points, err := s.rollup.RollupClosed(ctx, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRollupRun = now
	s.rollupRuns++
	if err != nil {
		s.rollupErrors++
		if ctx.Err() == nil {
			s.logger.WithError(err).Warn("volume rollup failed")
		}
		return
	}
	if points > 0 {
		s.logger.WithField("points", points).Info("volume rollup stored")
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	Started        time.Time `json:"started"`
	Program        string    `json:"program"`
	Mint           string    `json:"mint"`
	LedgerBackend  string    `json:"ledger_backend"`
	JournalBackend string    `json:"journal_backend"`
	DevMode        bool      `json:"dev_mode"`
	LastRollupRun  time.Time `json:"last_rollup_run,omitempty"`
	RollupRuns     int       `json:"rollup_runs"`
	RollupErrors   int       `json:"rollup_errors"`
}

func (s *Server) status() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	addrs := s.prog.Addresses()
	return StatusResponse{
		Status:         "running",
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Started:        s.started,
		Program:        addrs.Program.String(),
		Mint:           addrs.Mint.String(),
		LedgerBackend:  s.cfg.Ledger.Backend,
		JournalBackend: s.cfg.Journal.Backend,
		DevMode:        s.cfg.Dev.Enabled,
		LastRollupRun:  s.lastRollupRun,
		RollupRuns:     s.rollupRuns,
		RollupErrors:   s.rollupErrors,
	}
}
