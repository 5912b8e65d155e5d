package sale

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/token"
)

// Provision creates the sale mint and the authority-owned pool, and mints
// supply into the pool. It stands in for the deployment scripts that set up
// a sale on a live cluster. Existing mints are reused.
func (p *Program) Provision(ctx context.Context, mintAuthority domain.Address, decimals uint8, supply uint64) error {
	_, err := p.execute(ctx, "provision", func(tx ledger.Tx) error {
		_, err := p.token.Mint(ctx, tx, p.addrs.Mint)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			err = p.token.InitializeMint(ctx, tx, p.addrs.Mint, mintAuthority, decimals)
		}
		if err != nil {
			return fmt.Errorf("mint: %w", err)
		}

		pool, err := p.token.GetOrCreateAssociatedAccount(ctx, tx, p.addrs.Authority, p.addrs.Mint)
		if err != nil {
			return fmt.Errorf("pool: %w", err)
		}
		if pool != p.addrs.Pool {
			return fmt.Errorf("pool %s != %s: %w", pool, p.addrs.Pool, ErrAccountMismatch)
		}
		if supply == 0 {
			return nil
		}
		return p.token.MintTo(ctx, tx, p.addrs.Mint, pool, supply, token.KeySigner(mintAuthority))
	})
	if err != nil {
		return err
	}

	p.log.WithFields(logrus.Fields{
		"mint":      p.addrs.Mint.String(),
		"pool":      p.addrs.Pool.String(),
		"authority": p.addrs.Authority.String(),
		"supply":    supply,
	}).Info("sale pool provisioned")
	return nil
}

// Airdrop credits lamports to addr. Development and tests only.
func (p *Program) Airdrop(ctx context.Context, addr domain.Address, lamports uint64) error {
	_, err := p.execute(ctx, "airdrop", func(tx ledger.Tx) error {
		return p.system.Airdrop(ctx, tx, addr, lamports)
	})
	return err
}
