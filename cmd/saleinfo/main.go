// Command saleinfo reads a deployed sale from a cluster over JSON-RPC and
// prints its configuration, pool balance and optionally one buyer as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/config"
	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/observability"
	"solana-token-sale/internal/solana"
)

type saleInfo struct {
	Program     string            `json:"program"`
	Mint        string            `json:"mint"`
	ConfigAddr  string            `json:"config_address"`
	Authority   string            `json:"authority"`
	Pool        string            `json:"pool"`
	PoolBalance uint64            `json:"pool_balance"`
	Price       uint64            `json:"price"`
	Treasury    string            `json:"treasury"`
	Owner       string            `json:"owner"`
	Slot        int64             `json:"slot"`
	Buyer       *buyerSummary     `json:"buyer,omitempty"`
	Recent      []solana.Activity `json:"recent,omitempty"`
}

type buyerSummary struct {
	Address             string `json:"address"`
	Registered          bool   `json:"registered"`
	TotalTokensReceived uint64 `json:"total_tokens_received"`
	TokenBalance        uint64 `json:"token_balance"`
	Lamports            uint64 `json:"lamports"`
}

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", os.Getenv("SALE_CONFIG"), "Path to a TOML or YAML config file")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint (overrides config)")
	mintFlag := flag.String("mint", "", "Sale token mint (overrides config)")
	buyerFlag := flag.String("buyer", "", "Buyer address to report on")
	recent := flag.Int("recent", 0, "Number of recent program transactions to list")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall request timeout")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	log := logger.WithField("component", "saleinfo")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if *rpcEndpoint != "" {
		cfg.Cluster.RPCEndpoint = *rpcEndpoint
	}
	if *mintFlag != "" {
		cfg.Sale.Mint = *mintFlag
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	info, err := run(ctx, cfg, *buyerFlag, *recent)
	if err != nil {
		log.WithError(err).Fatal("read sale")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		log.WithError(err).Fatal("encode output")
	}
}

// loadConfig loads the config file without requiring the server-only fields.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path != "" {
		return nil, err
	}
	cfg = config.Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, buyerArg string, recent int) (*saleInfo, error) {
	if cfg.Sale.Mint == "" {
		return nil, errors.New("mint is required (--mint or SALE_MINT)")
	}
	programID, err := domain.ParseAddress(cfg.Sale.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	mint, err := domain.ParseAddress(cfg.Sale.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	rpc := solana.NewHTTPClient(cfg.Cluster.RPCEndpoint,
		solana.WithRateLimit(cfg.Cluster.RateLimit, cfg.Cluster.Burst),
		solana.WithMetrics(observability.DefaultMetrics),
	)
	reader, err := solana.NewSaleReader(rpc, programID, mint)
	if err != nil {
		return nil, err
	}
	addrs := reader.Addresses()

	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	saleCfg, err := reader.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("sale config: %w", err)
	}
	pool, err := reader.PoolBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool balance: %w", err)
	}

	info := &saleInfo{
		Program:     addrs.Program.String(),
		Mint:        addrs.Mint.String(),
		ConfigAddr:  addrs.Config.String(),
		Authority:   addrs.Authority.String(),
		Pool:        addrs.Pool.String(),
		PoolBalance: pool,
		Price:       saleCfg.Price,
		Treasury:    saleCfg.Treasury.String(),
		Owner:       saleCfg.Owner.String(),
		Slot:        slot,
	}

	if buyerArg != "" {
		buyer, err := domain.ParseAddress(buyerArg)
		if err != nil {
			return nil, fmt.Errorf("buyer: %w", err)
		}
		if info.Buyer, err = summarizeBuyer(ctx, reader, buyer); err != nil {
			return nil, err
		}
	}
	if recent > 0 {
		if info.Recent, err = reader.Recent(ctx, recent); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func summarizeBuyer(ctx context.Context, reader *solana.SaleReader, buyer domain.Address) (*buyerSummary, error) {
	sum := &buyerSummary{Address: buyer.String()}

	rec, err := reader.BuyerRecord(ctx, buyer)
	switch {
	case errors.Is(err, solana.ErrAccountNotFound):
	case err != nil:
		return nil, fmt.Errorf("buyer record: %w", err)
	default:
		sum.Registered = true
		sum.TotalTokensReceived = rec.TotalTokensReceived
	}

	if sum.TokenBalance, err = reader.TokenBalance(ctx, buyer); err != nil {
		return nil, fmt.Errorf("token balance: %w", err)
	}
	if sum.Lamports, err = reader.Lamports(ctx, buyer); err != nil {
		return nil, fmt.Errorf("lamports: %w", err)
	}
	return sum, nil
}
