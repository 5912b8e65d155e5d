package solana

import (
	"context"
	"errors"
	"fmt"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/layout"
	"solana-token-sale/internal/pda"
	"solana-token-sale/internal/sale"
)

// ErrAccountNotFound is returned when an expected account does not exist on the cluster.
var ErrAccountNotFound = errors.New("account not found")

// SaleReader decodes the accounts of a deployed sale program over RPC.
type SaleReader struct {
	rpc   RPCClient
	addrs *sale.Addresses
}

// NewSaleReader creates a reader for the sale of mint under programID.
func NewSaleReader(rpc RPCClient, programID, mint domain.Address) (*SaleReader, error) {
	addrs, err := sale.DeriveAddresses(programID, mint)
	if err != nil {
		return nil, err
	}
	return &SaleReader{rpc: rpc, addrs: addrs}, nil
}

// Addresses returns the derived sale accounts.
func (r *SaleReader) Addresses() sale.Addresses {
	return *r.addrs
}

// Config fetches the sale configuration record.
func (r *SaleReader) Config(ctx context.Context) (*domain.SaleConfig, error) {
	data, err := r.programData(ctx, r.addrs.Config)
	if err != nil {
		return nil, fmt.Errorf("sale config: %w", err)
	}
	return layout.DecodeSaleConfig(data)
}

// BuyerRecord fetches the record of buyer.
func (r *SaleReader) BuyerRecord(ctx context.Context, buyer domain.Address) (*domain.BuyerRecord, error) {
	addr, err := sale.BuyerRecordAddress(r.addrs.Program, buyer)
	if err != nil {
		return nil, err
	}
	data, err := r.programData(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("buyer record %s: %w", buyer, err)
	}
	return layout.DecodeBuyerRecord(data)
}

// PoolBalance returns the tokens left in the sale pool.
func (r *SaleReader) PoolBalance(ctx context.Context) (uint64, error) {
	return r.tokenBalance(ctx, r.addrs.Pool)
}

// TokenBalance returns the token balance of owner's associated account.
// A missing account holds zero tokens.
func (r *SaleReader) TokenBalance(ctx context.Context, owner domain.Address) (uint64, error) {
	ata, _, err := pda.FindAssociatedTokenAddress(owner, r.addrs.Mint)
	if err != nil {
		return 0, err
	}
	balance, err := r.tokenBalance(ctx, ata)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	return balance, err
}

// Lamports returns the lamport balance of addr.
func (r *SaleReader) Lamports(ctx context.Context, addr domain.Address) (uint64, error) {
	return r.rpc.GetBalance(ctx, addr.String())
}

func (r *SaleReader) tokenBalance(ctx context.Context, addr domain.Address) (uint64, error) {
	data, err := r.ownedData(ctx, addr, domain.TokenProgramID)
	if err != nil {
		return 0, fmt.Errorf("token account %s: %w", addr, err)
	}
	acct, err := layout.DecodeTokenAccount(data)
	if err != nil {
		return 0, fmt.Errorf("token account %s: %w", addr, err)
	}
	if acct.Mint != r.addrs.Mint {
		return 0, fmt.Errorf("token account %s: mint %s, want %s", addr, acct.Mint, r.addrs.Mint)
	}
	return acct.Amount, nil
}

func (r *SaleReader) programData(ctx context.Context, addr domain.Address) ([]byte, error) {
	return r.ownedData(ctx, addr, r.addrs.Program)
}

func (r *SaleReader) ownedData(ctx context.Context, addr, owner domain.Address) ([]byte, error) {
	info, err := r.rpc.GetAccountInfo(ctx, addr.String())
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrAccountNotFound
	}
	if info.Owner != owner.String() {
		return nil, fmt.Errorf("owned by %s, want %s", info.Owner, owner)
	}
	return info.DecodeData()
}
