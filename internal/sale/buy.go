package sale

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/layout"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/pda"
	"solana-token-sale/internal/system"
	"solana-token-sale/internal/token"
)

// Receipt describes a committed purchase.
type Receipt struct {
	TxID         string         `json:"tx_id"`
	Buyer        domain.Address `json:"buyer"`
	Treasury     domain.Address `json:"treasury"`
	TokenAccount domain.Address `json:"token_account"`
	Lamports     uint64         `json:"lamports"`
	Tokens       uint64         `json:"tokens"`
	Price        uint64         `json:"price"`
	BuyerTotal   uint64         `json:"buyer_total"`
	NewBuyer     bool           `json:"new_buyer"`
	Timestamp    time.Time      `json:"timestamp"`
	Logs         []string       `json:"logs"`
}

// Buy exchanges lamports from buyer for tokens out of the sale pool.
// treasury must equal the configured treasury.
func (p *Program) Buy(ctx context.Context, buyer, treasury domain.Address, lamports uint64) (*Receipt, error) {
	r := &Receipt{
		Buyer:    buyer,
		Treasury: treasury,
		Lamports: lamports,
	}

	txID, err := p.execute(ctx, "buy", func(tx ledger.Tx) error {
		return p.buy(ctx, tx, r)
	})
	if err != nil {
		return nil, err
	}
	r.TxID = txID
	r.Logs = p.programLogs("Buy")

	p.log.WithFields(logrus.Fields{
		"tx_id":       txID,
		"buyer":       buyer.String(),
		"lamports":    lamports,
		"tokens":      r.Tokens,
		"price":       r.Price,
		"buyer_total": r.BuyerTotal,
	}).Info("purchase committed")

	if p.metrics != nil {
		p.metrics.RecordPurchase(r.Lamports, r.Tokens, r.NewBuyer, r.Timestamp.Unix())
	}
	if p.recorder != nil {
		p.recorder.RecordPurchase(ctx, r)
	}
	return r, nil
}

func (p *Program) buy(ctx context.Context, tx ledger.Tx, r *Receipt) error {
	// Stamped once the ledger lock is held, not while waiting for it.
	r.Timestamp = p.now()
	if r.Lamports == 0 {
		return ErrInvalidAmount
	}

	cfg, err := p.loadConfig(ctx, tx)
	if err != nil {
		return err
	}
	if r.Treasury != cfg.Treasury {
		return fmt.Errorf("treasury %s: %w", r.Treasury, ErrAccountMismatch)
	}

	tokens, err := TokenAmount(r.Lamports, cfg.Price)
	if err != nil {
		return err
	}

	balance, err := p.system.Balance(ctx, tx, r.Buyer)
	if err != nil {
		return err
	}
	if balance < r.Lamports {
		return fmt.Errorf("balance %d < %d: %w", balance, r.Lamports, ErrNotEnoughSol)
	}

	// Payment leg.
	if err := p.system.Transfer(ctx, tx, r.Buyer, cfg.Treasury, r.Lamports); err != nil {
		switch {
		case errors.Is(err, system.ErrInsufficientFunds):
			return fmt.Errorf("%w: %v", ErrNotEnoughSol, err)
		case errors.Is(err, system.ErrNotSystemOwned):
			return fmt.Errorf("buyer %s: %w: %v", r.Buyer, ErrAccountMismatch, err)
		}
		return fmt.Errorf("pay treasury: %w", err)
	}

	record, created, err := p.loadOrCreateBuyer(ctx, tx, r.Buyer)
	if err != nil {
		return err
	}

	// Token leg, signed by the program authority.
	dest, err := p.token.GetOrCreateAssociatedAccount(ctx, tx, r.Buyer, p.addrs.Mint)
	switch {
	case errors.Is(err, token.ErrInvalidOwner), errors.Is(err, token.ErrMintMismatch), errors.Is(err, token.ErrOwnerMismatch):
		return fmt.Errorf("buyer token account: %w: %v", ErrAccountMismatch, err)
	case err != nil:
		return fmt.Errorf("buyer token account: %w", err)
	}
	signer, err := pda.NewSigner(p.addrs.Program, AuthoritySeed)
	if err != nil {
		return err
	}
	if err := p.token.Transfer(ctx, tx, p.addrs.Pool, dest, tokens, signer); err != nil {
		return fmt.Errorf("deliver tokens: %w", err)
	}

	total, carry := bits.Add64(record.TotalTokensReceived, tokens, 0)
	if carry != 0 {
		return fmt.Errorf("buyer total: %w", ErrArithmeticOverflow)
	}
	record.TotalTokensReceived = total

	recordAddr, err := BuyerRecordAddress(p.addrs.Program, r.Buyer)
	if err != nil {
		return err
	}
	if err := ledger.Write(ctx, tx, recordAddr, layout.EncodeBuyerRecord(record)); err != nil {
		return err
	}

	r.TokenAccount = dest
	r.Tokens = tokens
	r.Price = cfg.Price
	r.BuyerTotal = total
	r.NewBuyer = created
	return nil
}

// loadOrCreateBuyer returns the buyer's record, allocating it on first purchase.
func (p *Program) loadOrCreateBuyer(ctx context.Context, tx ledger.Tx, buyer domain.Address) (*domain.BuyerRecord, bool, error) {
	addr, err := BuyerRecordAddress(p.addrs.Program, buyer)
	if err != nil {
		return nil, false, err
	}

	acct, err := tx.Get(ctx, addr)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		if _, err := ledger.Allocate(ctx, tx, addr, p.addrs.Program, layout.BuyerRecordSize); err != nil {
			return nil, false, fmt.Errorf("create buyer record: %w", err)
		}
		return &domain.BuyerRecord{Buyer: buyer}, true, nil
	case err != nil:
		return nil, false, err
	}

	record, err := p.decodeBuyer(addr, acct)
	if err != nil {
		return nil, false, err
	}
	if record.Buyer != buyer {
		return nil, false, fmt.Errorf("buyer record %s belongs to %s: %w", addr, record.Buyer, ErrAccountMismatch)
	}
	return record, false, nil
}

// BuyerRecord returns the accumulated purchases of buyer.
func (p *Program) BuyerRecord(ctx context.Context, buyer domain.Address) (*domain.BuyerRecord, error) {
	addr, err := BuyerRecordAddress(p.addrs.Program, buyer)
	if err != nil {
		return nil, err
	}

	var record *domain.BuyerRecord
	err = p.view(ctx, func(tx ledger.Tx) error {
		acct, err := tx.Get(ctx, addr)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ErrBuyerNotFound
		}
		if err != nil {
			return err
		}
		record, err = p.decodeBuyer(addr, acct)
		return err
	})
	return record, err
}

func (p *Program) decodeBuyer(addr domain.Address, acct *domain.Account) (*domain.BuyerRecord, error) {
	if acct.Owner != p.addrs.Program {
		return nil, fmt.Errorf("buyer record %s owned by %s: %w", addr, acct.Owner, ErrAccountMismatch)
	}
	record, err := layout.DecodeBuyerRecord(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("buyer record %s: %w: %v", addr, ErrAccountMismatch, err)
	}
	return record, nil
}

// programLogs renders the log lines the deployed program emits for an instruction.
func (p *Program) programLogs(instruction string) []string {
	id := p.addrs.Program.String()
	return []string{
		"Program " + id + " invoke [1]",
		"Program log: Instruction: " + instruction,
		"Program " + id + " success",
	}
}
