// Command salewatch follows the sale program's transaction logs on a cluster
// and counts the instructions it executes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/config"
	"solana-token-sale/internal/observability"
	"solana-token-sale/internal/solana"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint (overrides config)")
	programFlag := flag.String("program", "", "Program id to follow (overrides config)")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	cfg := config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *wsEndpoint != "" {
		cfg.Cluster.WSEndpoint = *wsEndpoint
	}
	if *programFlag != "" {
		cfg.Sale.ProgramID = *programFlag
	}

	logger, err := observability.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithField("component", "salewatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *metricsAddr != "" {
		go serveMetrics(ctx, *metricsAddr, log)
	}

	// Channel to signal main goroutine completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()

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

	err = watch(ctx, cfg.Cluster.WSEndpoint, cfg.Sale.ProgramID, observability.DefaultMetrics, logger)
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("watch failed")
	}
	log.Info("shutdown complete")
}

// watch subscribes to logs mentioning program until ctx is cancelled.
func watch(ctx context.Context, endpoint, program string, metrics *observability.Metrics, logger logrus.FieldLogger) error {
	log := logger.WithField("component", "salewatch")

	client, err := solana.NewLogsClient(ctx, endpoint, nil, metrics, logger)
	if err != nil {
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer client.Close()

	notifications, err := client.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{program}})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.WithFields(logrus.Fields{"program": program, "endpoint": endpoint}).Info("following program logs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				return errors.New("subscription closed")
			}
			handleNotification(n, program, metrics, log)
		}
	}
}

func handleNotification(n solana.LogNotification, program string, metrics *observability.Metrics, log logrus.FieldLogger) {
	entry := log.WithFields(logrus.Fields{"signature": n.Signature, "slot": n.Slot})
	if n.Err != nil {
		entry.WithField("tx_error", n.Err).Debug("failed transaction")
		return
	}
	for _, ins := range solana.InstructionsOf(program, solana.ParseInstructions(n.Logs)) {
		metrics.RecordInstruction(ins.Name)
		entry.WithField("instruction", ins.Name).Info("sale instruction")
	}
}

func serveMetrics(ctx context.Context, addr string, log logrus.FieldLogger) {
	r := chi.NewRouter()
	r.Handle("/metrics", observability.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.WithField("addr", addr).Info("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server")
	}
}
