package sale

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/layout"
	"solana-token-sale/internal/ledger"
)

// Initialize creates the sale configuration. payer funds the record; the
// first successful caller wins unless deployers are configured.
func (p *Program) Initialize(ctx context.Context, payer domain.Address, price uint64, treasury, owner domain.Address) error {
	cfg := domain.SaleConfig{Price: price, Treasury: treasury, Owner: owner}
	txID, err := p.execute(ctx, "initialize", func(tx ledger.Tx) error {
		if price == 0 {
			return ErrInvalidAmount
		}
		if len(p.deployers) > 0 {
			if _, ok := p.deployers[payer]; !ok {
				return fmt.Errorf("payer %s: %w", payer, ErrUnauthorized)
			}
		}

		_, err := ledger.Allocate(ctx, tx, p.addrs.Config, p.addrs.Program, layout.SaleConfigSize)
		if errors.Is(err, ledger.ErrAccountExists) {
			return ErrAlreadyInitialized
		}
		if err != nil {
			return err
		}
		return ledger.Write(ctx, tx, p.addrs.Config, layout.EncodeSaleConfig(&cfg))
	})
	if err != nil {
		return err
	}

	p.configChanged(ctx, txID, domain.ConfigEventInitialize, payer, cfg)
	return nil
}

// UpdatePrice sets a new price. Only the owner may call it; zero is rejected
// as in Initialize.
func (p *Program) UpdatePrice(ctx context.Context, signer domain.Address, price uint64) error {
	return p.mutate(ctx, "update_price", domain.ConfigEventUpdatePrice, signer, func(cfg *domain.SaleConfig) error {
		if price == 0 {
			return ErrInvalidAmount
		}
		cfg.Price = price
		return nil
	})
}

// TransferOwnership hands the sale to newOwner.
func (p *Program) TransferOwnership(ctx context.Context, signer, newOwner domain.Address) error {
	return p.mutate(ctx, "transfer_ownership", domain.ConfigEventTransferOwnership, signer, func(cfg *domain.SaleConfig) error {
		cfg.Owner = newOwner
		return nil
	})
}

// UpdateTreasury redirects future proceeds to newTreasury.
func (p *Program) UpdateTreasury(ctx context.Context, signer, newTreasury domain.Address) error {
	return p.mutate(ctx, "update_treasury", domain.ConfigEventUpdateTreasury, signer, func(cfg *domain.SaleConfig) error {
		cfg.Treasury = newTreasury
		return nil
	})
}

// Config returns the current sale configuration.
func (p *Program) Config(ctx context.Context) (*domain.SaleConfig, error) {
	var cfg *domain.SaleConfig
	err := p.view(ctx, func(tx ledger.Tx) error {
		var err error
		cfg, err = p.loadConfig(ctx, tx)
		return err
	})
	return cfg, err
}

// mutate applies an owner-gated change to the configuration.
func (p *Program) mutate(ctx context.Context, op string, kind domain.ConfigEventKind, signer domain.Address, apply func(*domain.SaleConfig) error) error {
	var cfg *domain.SaleConfig
	txID, err := p.execute(ctx, op, func(tx ledger.Tx) error {
		var err error
		if cfg, err = p.loadConfig(ctx, tx); err != nil {
			return err
		}
		if cfg.Owner != signer {
			return fmt.Errorf("signer %s: %w", signer, ErrUnauthorized)
		}
		if err := apply(cfg); err != nil {
			return err
		}
		return ledger.Write(ctx, tx, p.addrs.Config, layout.EncodeSaleConfig(cfg))
	})
	if err != nil {
		return err
	}

	p.configChanged(ctx, txID, kind, signer, *cfg)
	return nil
}

func (p *Program) loadConfig(ctx context.Context, tx ledger.Tx) (*domain.SaleConfig, error) {
	acct, err := tx.Get(ctx, p.addrs.Config)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	if acct.Owner != p.addrs.Program {
		return nil, fmt.Errorf("config %s owned by %s: %w", p.addrs.Config, acct.Owner, ErrAccountMismatch)
	}
	cfg, err := layout.DecodeSaleConfig(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w: %v", p.addrs.Config, ErrAccountMismatch, err)
	}
	return cfg, nil
}

func (p *Program) configChanged(ctx context.Context, txID string, kind domain.ConfigEventKind, signer domain.Address, cfg domain.SaleConfig) {
	p.log.WithFields(logrus.Fields{
		"op":       string(kind),
		"tx_id":    txID,
		"signer":   signer.String(),
		"price":    cfg.Price,
		"treasury": cfg.Treasury.String(),
		"owner":    cfg.Owner.String(),
	}).Info("sale configuration changed")

	if p.metrics != nil {
		p.metrics.RecordPrice(cfg.Price)
	}
	if p.recorder != nil {
		p.recorder.RecordConfigChange(ctx, &domain.ConfigEvent{
			TxID:        txID,
			Kind:        kind,
			Signer:      signer,
			Config:      cfg,
			TimestampMs: p.now().UnixMilli(),
		})
	}
}
