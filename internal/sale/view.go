package sale

import (
	"context"
	"errors"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/pda"
)

// Quote previews the tokens lamports would buy at the current price.
func (p *Program) Quote(ctx context.Context, lamports uint64) (uint64, error) {
	if lamports == 0 {
		return 0, ErrInvalidAmount
	}
	cfg, err := p.Config(ctx)
	if err != nil {
		return 0, err
	}
	return TokenAmount(lamports, cfg.Price)
}

// Lamports returns the native balance of addr.
func (p *Program) Lamports(ctx context.Context, addr domain.Address) (uint64, error) {
	var balance uint64
	err := p.view(ctx, func(tx ledger.Tx) error {
		var err error
		balance, err = p.system.Balance(ctx, tx, addr)
		return err
	})
	return balance, err
}

// TokenBalance returns the sale tokens held by owner's associated account.
// Owners without an account hold zero.
func (p *Program) TokenBalance(ctx context.Context, owner domain.Address) (uint64, error) {
	ata, _, err := pda.FindAssociatedTokenAddress(owner, p.addrs.Mint)
	if err != nil {
		return 0, err
	}
	return p.tokenAccountBalance(ctx, ata)
}

// PoolBalance returns the tokens left for sale.
func (p *Program) PoolBalance(ctx context.Context) (uint64, error) {
	return p.tokenAccountBalance(ctx, p.addrs.Pool)
}

func (p *Program) tokenAccountBalance(ctx context.Context, addr domain.Address) (uint64, error) {
	var balance uint64
	err := p.view(ctx, func(tx ledger.Tx) error {
		var err error
		balance, err = p.token.Balance(ctx, tx, addr)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			balance, err = 0, nil
		}
		return err
	})
	return balance, err
}
