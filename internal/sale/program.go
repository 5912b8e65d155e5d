// Package sale is the token sale program: a single admin-configured price,
// native currency in, tokens out of a pool controlled by a program-derived
// authority.
//
// Every exported operation runs in exactly one ledger transaction and either
// commits completely or leaves no trace.
package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/observability"
	"solana-token-sale/internal/system"
	"solana-token-sale/internal/token"
)

// Recorder receives committed operations. Implementations must not fail the
// caller: the ledger commit has already happened.
type Recorder interface {
	RecordPurchase(ctx context.Context, r *Receipt)
	RecordConfigChange(ctx context.Context, e *domain.ConfigEvent)
}

// Program executes sale operations against a ledger.
type Program struct {
	store  ledger.Store
	addrs  *Addresses
	system *system.Program
	token  *token.Program

	deployers map[domain.Address]struct{}
	recorder  Recorder
	metrics   *observability.Metrics
	log       *logrus.Entry
	now       func() time.Time
}

// Option configures a Program.
type Option func(*Program)

// WithDeployers restricts Initialize to the given payers.
// With no deployers the first caller initializes the sale.
func WithDeployers(deployers ...domain.Address) Option {
	return func(p *Program) {
		for _, d := range deployers {
			p.deployers[d] = struct{}{}
		}
	}
}

// WithRecorder sets the receiver of committed operations.
func WithRecorder(r Recorder) Option {
	return func(p *Program) {
		p.recorder = r
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Program) {
		p.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Program) {
		p.log = l.WithField("component", "sale")
	}
}

// WithClock overrides the time source used for receipts.
func WithClock(now func() time.Time) Option {
	return func(p *Program) {
		p.now = now
	}
}

// New creates the sale program for mint under programID.
func New(store ledger.Store, programID, mint domain.Address, opts ...Option) (*Program, error) {
	addrs, err := DeriveAddresses(programID, mint)
	if err != nil {
		return nil, err
	}

	p := &Program{
		store:     store,
		addrs:     addrs,
		system:    system.New(),
		token:     token.New(),
		deployers: make(map[domain.Address]struct{}),
		log:       logrus.StandardLogger().WithField("component", "sale"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Addresses returns the fixed accounts of this sale.
func (p *Program) Addresses() Addresses {
	return *p.addrs
}

// execute runs fn in one ledger transaction and records the outcome.
func (p *Program) execute(ctx context.Context, op string, fn func(tx ledger.Tx) error) (string, error) {
	start := time.Now()
	txID, err := ledger.Run(ctx, p.store, fn)

	code := Code(err)
	if p.metrics != nil {
		p.metrics.RecordOperation(op, code, time.Since(start).Seconds())
		if errors.Is(err, ledger.ErrConflict) {
			p.metrics.RecordLedgerConflict()
		}
	}
	if err != nil {
		p.log.WithFields(logrus.Fields{
			"op":    op,
			"tx_id": txID,
			"code":  code,
		}).WithError(err).Warn("sale operation failed")
		return txID, fmt.Errorf("%s: %w", op, err)
	}
	return txID, nil
}

// view runs a read-only fn in a transaction without metrics.
func (p *Program) view(ctx context.Context, fn func(tx ledger.Tx) error) error {
	_, err := ledger.Run(ctx, p.store, fn)
	return err
}
