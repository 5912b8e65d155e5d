// Package token implements the SPL token operations the sale needs: mints,
// token accounts, associated account resolution, minting and transfers.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/layout"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/pda"
)

var (
	// ErrInsufficientFunds is returned when the source holds fewer tokens than requested.
	ErrInsufficientFunds = errors.New("token: insufficient funds")

	// ErrOwnerMismatch is returned when the authority does not own the source account.
	ErrOwnerMismatch = errors.New("token: owner does not match")

	// ErrMintMismatch is returned when accounts of different mints are combined.
	ErrMintMismatch = errors.New("token: mint mismatch")

	// ErrAccountFrozen is returned when moving tokens in or out of a frozen account.
	ErrAccountFrozen = errors.New("token: account is frozen")

	// ErrInvalidOwner is returned for records the token program does not own.
	ErrInvalidOwner = errors.New("token: account not owned by token program")

	// ErrOverflow is returned when a balance or supply would exceed u64.
	ErrOverflow = errors.New("token: amount overflow")

	// ErrFixedSupply is returned when minting against a mint without authority.
	ErrFixedSupply = errors.New("token: mint has no mint authority")
)

// Authority identifies who signs for a token account.
// Program-derived signers also implement Verify and are checked before use.
type Authority interface {
	Address() domain.Address
}

type verifier interface {
	Verify() error
}

// KeySigner is an externally held signing key. Its signature is checked by the
// transaction layer before the ledger sees the instruction.
type KeySigner domain.Address

// Address implements Authority.
func (k KeySigner) Address() domain.Address { return domain.Address(k) }

// Program is the token program bound to a program id.
type Program struct {
	id domain.Address
}

// New creates the token program under the canonical SPL token program id.
func New() *Program {
	return &Program{id: domain.TokenProgramID}
}

// ID returns the program id that owns mints and token accounts.
func (p *Program) ID() domain.Address {
	return p.id
}

// InitializeMint creates a mint at addr.
func (p *Program) InitializeMint(ctx context.Context, tx ledger.Tx, addr, mintAuthority domain.Address, decimals uint8) error {
	if _, err := ledger.Allocate(ctx, tx, addr, p.id, layout.MintSize); err != nil {
		return fmt.Errorf("initialize mint: %w", err)
	}
	authority := mintAuthority
	mint := &layout.Mint{
		MintAuthority: &authority,
		Decimals:      decimals,
		IsInitialized: true,
	}
	return ledger.Write(ctx, tx, addr, layout.EncodeMint(mint))
}

// InitializeAccount creates a token account at addr holding mint for owner.
func (p *Program) InitializeAccount(ctx context.Context, tx ledger.Tx, addr, mint, owner domain.Address) error {
	if _, err := p.Mint(ctx, tx, mint); err != nil {
		return fmt.Errorf("initialize account: %w", err)
	}
	if _, err := ledger.Allocate(ctx, tx, addr, p.id, layout.TokenAccountSize); err != nil {
		return fmt.Errorf("initialize account: %w", err)
	}
	acct := &layout.TokenAccount{
		Mint:  mint,
		Owner: owner,
		State: layout.TokenStateInitialized,
	}
	return ledger.Write(ctx, tx, addr, layout.EncodeTokenAccount(acct))
}

// GetOrCreateAssociatedAccount resolves the associated token account of owner
// for mint, creating it when absent.
func (p *Program) GetOrCreateAssociatedAccount(ctx context.Context, tx ledger.Tx, owner, mint domain.Address) (domain.Address, error) {
	addr, _, err := pda.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive associated account: %w", err)
	}

	acct, err := p.Account(ctx, tx, addr)
	switch {
	case err == nil:
		if acct.Mint != mint {
			return domain.Address{}, fmt.Errorf("associated account %s: %w", addr, ErrMintMismatch)
		}
		if acct.Owner != owner {
			return domain.Address{}, fmt.Errorf("associated account %s: %w", addr, ErrOwnerMismatch)
		}
		return addr, nil
	case errors.Is(err, ledger.ErrAccountNotFound):
		if err := p.InitializeAccount(ctx, tx, addr, mint, owner); err != nil {
			return domain.Address{}, err
		}
		return addr, nil
	default:
		return domain.Address{}, err
	}
}

// MintTo increases supply and credits dest.
func (p *Program) MintTo(ctx context.Context, tx ledger.Tx, mintAddr, dest domain.Address, amount uint64, authority Authority) error {
	mint, err := p.Mint(ctx, tx, mintAddr)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil {
		return fmt.Errorf("mint %s: %w", mintAddr, ErrFixedSupply)
	}
	if err := checkAuthority(authority, *mint.MintAuthority); err != nil {
		return fmt.Errorf("mint %s: %w", mintAddr, err)
	}

	acct, err := p.Account(ctx, tx, dest)
	if err != nil {
		return err
	}
	if acct.Mint != mintAddr {
		return fmt.Errorf("mint to %s: %w", dest, ErrMintMismatch)
	}
	if acct.State == layout.TokenStateFrozen {
		return fmt.Errorf("mint to %s: %w", dest, ErrAccountFrozen)
	}

	supply, carry := bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return fmt.Errorf("mint %s supply: %w", mintAddr, ErrOverflow)
	}
	balance, carry := bits.Add64(acct.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("mint to %s: %w", dest, ErrOverflow)
	}

	mint.Supply = supply
	acct.Amount = balance
	if err := ledger.Write(ctx, tx, mintAddr, layout.EncodeMint(mint)); err != nil {
		return err
	}
	return ledger.Write(ctx, tx, dest, layout.EncodeTokenAccount(acct))
}

// Transfer moves amount tokens from one account to another of the same mint.
// authority must own the source account.
func (p *Program) Transfer(ctx context.Context, tx ledger.Tx, from, to domain.Address, amount uint64, authority Authority) error {
	src, err := p.Account(ctx, tx, from)
	if err != nil {
		return fmt.Errorf("transfer source: %w", err)
	}
	if err := checkAuthority(authority, src.Owner); err != nil {
		return fmt.Errorf("transfer from %s: %w", from, err)
	}
	if src.State == layout.TokenStateFrozen {
		return fmt.Errorf("transfer from %s: %w", from, ErrAccountFrozen)
	}

	dst, err := p.Account(ctx, tx, to)
	if err != nil {
		return fmt.Errorf("transfer destination: %w", err)
	}
	if dst.Mint != src.Mint {
		return fmt.Errorf("transfer %s -> %s: %w", from, to, ErrMintMismatch)
	}
	if dst.State == layout.TokenStateFrozen {
		return fmt.Errorf("transfer to %s: %w", to, ErrAccountFrozen)
	}
	if src.Amount < amount {
		return fmt.Errorf("transfer %d from %s (balance %d): %w", amount, from, src.Amount, ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}

	balance, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return fmt.Errorf("transfer to %s: %w", to, ErrOverflow)
	}
	src.Amount -= amount
	dst.Amount = balance

	if err := ledger.Write(ctx, tx, from, layout.EncodeTokenAccount(src)); err != nil {
		return err
	}
	return ledger.Write(ctx, tx, to, layout.EncodeTokenAccount(dst))
}

// Balance returns the token amount held by a token account.
func (p *Program) Balance(ctx context.Context, tx ledger.Tx, addr domain.Address) (uint64, error) {
	acct, err := p.Account(ctx, tx, addr)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// Account loads and decodes an initialized token account.
func (p *Program) Account(ctx context.Context, tx ledger.Tx, addr domain.Address) (*layout.TokenAccount, error) {
	data, err := p.owned(ctx, tx, addr)
	if err != nil {
		return nil, err
	}
	acct, err := layout.DecodeTokenAccount(data)
	if err != nil {
		return nil, fmt.Errorf("token account %s: %w", addr, err)
	}
	return acct, nil
}

// Mint loads and decodes an initialized mint.
func (p *Program) Mint(ctx context.Context, tx ledger.Tx, addr domain.Address) (*layout.Mint, error) {
	data, err := p.owned(ctx, tx, addr)
	if err != nil {
		return nil, err
	}
	mint, err := layout.DecodeMint(data)
	if err != nil {
		return nil, fmt.Errorf("mint %s: %w", addr, err)
	}
	return mint, nil
}

func (p *Program) owned(ctx context.Context, tx ledger.Tx, addr domain.Address) ([]byte, error) {
	acct, err := tx.Get(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", addr, err)
	}
	if acct.Owner != p.id {
		return nil, fmt.Errorf("load %s: %w", addr, ErrInvalidOwner)
	}
	return acct.Data, nil
}

func checkAuthority(authority Authority, want domain.Address) error {
	if authority == nil {
		return ErrOwnerMismatch
	}
	if v, ok := authority.(verifier); ok {
		if err := v.Verify(); err != nil {
			return fmt.Errorf("%w: %v", ErrOwnerMismatch, err)
		}
	}
	if authority.Address() != want {
		return ErrOwnerMismatch
	}
	return nil
}
