package sale

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/layout"
	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/ledger/ledgertest"
	"solana-token-sale/internal/ledger/memory"
	"solana-token-sale/internal/observability"
	"solana-token-sale/internal/pda"
	"solana-token-sale/internal/token"
)

const (
	sol       = 1_000_000_000
	poolUnits = 1_000_000_000_000
)

var (
	mint      = ledgertest.Addr(0x01)
	mintOwner = ledgertest.Addr(0x02)
	deployer  = ledgertest.Addr(0x03)
	owner     = ledgertest.Addr(0x04)
	treasury  = ledgertest.Addr(0x05)
	buyer     = ledgertest.Addr(0x06)
	stranger  = ledgertest.Addr(0x07)
)

type recorder struct {
	mu        sync.Mutex
	purchases []*Receipt
	events    []*domain.ConfigEvent
}

func (r *recorder) RecordPurchase(_ context.Context, rc *Receipt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchases = append(r.purchases, rc)
}

func (r *recorder) RecordConfigChange(_ context.Context, e *domain.ConfigEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type fixture struct {
	store *memory.Store
	prog  *Program
	rec   *recorder
}

// newFixture provisions a pool of poolUnits and funds buyer with 10 SOL.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	logger, _ := test.NewNullLogger()
	rec := &recorder{}
	store := memory.NewStore()
	opts = append([]Option{WithLogger(logger), WithRecorder(rec)}, opts...)

	prog, err := New(store, DefaultProgramID, mint, opts...)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, prog.Provision(ctx, mintOwner, 6, poolUnits))
	require.NoError(t, prog.Airdrop(ctx, buyer, 10*sol))

	return &fixture{store: store, prog: prog, rec: rec}
}

func (f *fixture) initialize(t *testing.T, price uint64) {
	t.Helper()
	require.NoError(t, f.prog.Initialize(context.Background(), deployer, price, treasury, owner))
}

func (f *fixture) lamports(t *testing.T, addr domain.Address) uint64 {
	t.Helper()
	v, err := f.prog.Lamports(context.Background(), addr)
	require.NoError(t, err)
	return v
}

func (f *fixture) tokens(t *testing.T, addr domain.Address) uint64 {
	t.Helper()
	v, err := f.prog.TokenBalance(context.Background(), addr)
	require.NoError(t, err)
	return v
}

func (f *fixture) pool(t *testing.T) uint64 {
	t.Helper()
	v, err := f.prog.PoolBalance(context.Background())
	require.NoError(t, err)
	return v
}

func TestTokenAmount(t *testing.T) {
	tests := []struct {
		name     string
		lamports uint64
		price    uint64
		want     uint64
		wantErr  error
	}{
		{name: "one to one", lamports: 5_000_000, price: 1_000_000, want: 5_000_000},
		{name: "two to one", lamports: 2_000_000, price: 2_000_000, want: 1_000_000},
		{name: "half price unit", lamports: 1_000_000, price: 2_000_000, want: 500_000},
		{name: "tenth of a sol at 1 sol", lamports: sol / 10, price: sol, want: 100_000},
		{name: "floor truncation", lamports: 1, price: 3, want: 333_333},
		{name: "rounds to zero", lamports: 1, price: 2_000_000, want: 0},
		{name: "largest exact product", lamports: math.MaxUint64 / TokenScale, price: 1, want: (math.MaxUint64 / TokenScale) * TokenScale},
		{name: "overflow", lamports: math.MaxUint64/TokenScale + 1, price: 1, wantErr: ErrArithmeticOverflow},
		{name: "max payment overflows", lamports: math.MaxUint64, price: math.MaxUint64, wantErr: ErrArithmeticOverflow},
		{name: "zero price", lamports: 1, price: 0, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokenAmount(tt.lamports, tt.price)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.prog.Initialize(ctx, deployer, 0, treasury, owner)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.prog.Config(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	f.initialize(t, sol)

	cfg, err := f.prog.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.SaleConfig{Price: sol, Treasury: treasury, Owner: owner}, cfg)

	err = f.prog.Initialize(ctx, stranger, 2*sol, stranger, stranger)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	cfg, err = f.prog.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, cfg.Owner)

	require.Len(t, f.rec.events, 1)
	assert.Equal(t, domain.ConfigEventInitialize, f.rec.events[0].Kind)
	assert.Equal(t, deployer, f.rec.events[0].Signer)
	assert.NotEmpty(t, f.rec.events[0].TxID)
}

func TestInitialize_Deployers(t *testing.T) {
	f := newFixture(t, WithDeployers(deployer))
	ctx := context.Background()

	err := f.prog.Initialize(ctx, stranger, sol, treasury, owner)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.prog.Initialize(ctx, deployer, sol, treasury, owner))
}

func TestInitialize_StoresLayout(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, sol)
	addrs := f.prog.Addresses()

	acct, ok := f.store.Snapshot(addrs.Config)
	require.True(t, ok)
	assert.Equal(t, DefaultProgramID, acct.Owner)
	assert.Len(t, acct.Data, layout.SaleConfigSize)

	cfg, err := layout.DecodeSaleConfig(acct.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(sol), cfg.Price)
}

func TestOwnerOperations(t *testing.T) {
	newOwner := ledgertest.Addr(0x08)
	newTreasury := ledgertest.Addr(0x09)

	tests := []struct {
		name    string
		run     func(p *Program) error
		wantErr error
		want    domain.SaleConfig
	}{
		{
			name: "owner updates price",
			run:  func(p *Program) error { return p.UpdatePrice(context.Background(), owner, sol/2) },
			want: domain.SaleConfig{Price: sol / 2, Treasury: treasury, Owner: owner},
		},
		{
			name:    "zero price rejected",
			run:     func(p *Program) error { return p.UpdatePrice(context.Background(), owner, 0) },
			wantErr: ErrInvalidAmount,
			want:    domain.SaleConfig{Price: sol, Treasury: treasury, Owner: owner},
		},
		{
			name:    "stranger cannot update price",
			run:     func(p *Program) error { return p.UpdatePrice(context.Background(), stranger, 1) },
			wantErr: ErrUnauthorized,
			want:    domain.SaleConfig{Price: sol, Treasury: treasury, Owner: owner},
		},
		{
			name: "owner transfers ownership",
			run:  func(p *Program) error { return p.TransferOwnership(context.Background(), owner, newOwner) },
			want: domain.SaleConfig{Price: sol, Treasury: treasury, Owner: newOwner},
		},
		{
			name:    "stranger cannot transfer ownership",
			run:     func(p *Program) error { return p.TransferOwnership(context.Background(), stranger, stranger) },
			wantErr: ErrUnauthorized,
			want:    domain.SaleConfig{Price: sol, Treasury: treasury, Owner: owner},
		},
		{
			name: "owner updates treasury",
			run:  func(p *Program) error { return p.UpdateTreasury(context.Background(), owner, newTreasury) },
			want: domain.SaleConfig{Price: sol, Treasury: newTreasury, Owner: owner},
		},
		{
			name:    "deployer is not the owner",
			run:     func(p *Program) error { return p.UpdateTreasury(context.Background(), deployer, newTreasury) },
			wantErr: ErrUnauthorized,
			want:    domain.SaleConfig{Price: sol, Treasury: treasury, Owner: owner},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.initialize(t, sol)

			err := tt.run(f.prog)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, f.rec.events, 1)
			} else {
				require.NoError(t, err)
				require.Len(t, f.rec.events, 2)
				assert.Equal(t, tt.want, f.rec.events[1].Config)
			}

			cfg, err := f.prog.Config(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}

func TestOwnerOperations_Uninitialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.prog.UpdatePrice(ctx, owner, 1), ErrNotInitialized)
	assert.ErrorIs(t, f.prog.TransferOwnership(ctx, owner, owner), ErrNotInitialized)
	assert.ErrorIs(t, f.prog.UpdateTreasury(ctx, owner, owner), ErrNotInitialized)

	_, err := f.prog.Buy(ctx, buyer, treasury, sol)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestTransferOwnership_NewOwnerTakesOver(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, sol)
	ctx := context.Background()
	newOwner := ledgertest.Addr(0x08)

	require.NoError(t, f.prog.TransferOwnership(ctx, owner, newOwner))
	assert.ErrorIs(t, f.prog.UpdatePrice(ctx, owner, 2*sol), ErrUnauthorized)
	require.NoError(t, f.prog.UpdatePrice(ctx, newOwner, 2*sol))

	cfg, err := f.prog.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*sol), cfg.Price)
}

func TestBuy(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, sol)
	ctx := context.Background()

	r, err := f.prog.Buy(ctx, buyer, treasury, sol/10)
	require.NoError(t, err)

	assert.Equal(t, uint64(100_000), r.Tokens)
	assert.Equal(t, uint64(100_000), r.BuyerTotal)
	assert.Equal(t, uint64(sol), r.Price)
	assert.True(t, r.NewBuyer)
	assert.NotEmpty(t, r.TxID)
	assert.Contains(t, r.Logs, "Program log: Instruction: Buy")

	assert.Equal(t, uint64(10*sol-sol/10), f.lamports(t, buyer))
	assert.Equal(t, uint64(sol/10), f.lamports(t, treasury))
	assert.Equal(t, uint64(100_000), f.tokens(t, buyer))
	assert.Equal(t, uint64(poolUnits-100_000), f.pool(t))

	record, err := f.prog.BuyerRecord(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, &domain.BuyerRecord{Buyer: buyer, TotalTokensReceived: 100_000}, record)

	require.Len(t, f.rec.purchases, 1)
	assert.Equal(t, r.TxID, f.rec.purchases[0].TxID)
}

func TestBuy_Accumulates(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, 1_000_000)
	ctx := context.Background()

	first, err := f.prog.Buy(ctx, buyer, treasury, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), first.Tokens)
	assert.Equal(t, uint64(5_000_000), first.BuyerTotal)

	second, err := f.prog.Buy(ctx, buyer, treasury, 5_000_000)
	require.NoError(t, err)
	assert.False(t, second.NewBuyer)
	assert.Equal(t, uint64(10_000_000), second.BuyerTotal)

	record, err := f.prog.BuyerRecord(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), record.TotalTokensReceived)
	assert.Equal(t, uint64(10_000_000), f.tokens(t, buyer))
}

func TestBuy_TwoToOnePrice(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, 2_000_000)

	r, err := f.prog.Buy(context.Background(), buyer, treasury, 2_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), r.Tokens)
}

func TestBuy_HalfPriceUnit(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, 2_000_000)
	ctx := context.Background()

	r, err := f.prog.Buy(ctx, buyer, treasury, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000), r.Tokens)
	assert.Equal(t, uint64(500_000), r.BuyerTotal)

	rec, err := f.prog.BuyerRecord(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, buyer, rec.Buyer)
	assert.Equal(t, uint64(500_000), rec.TotalTokensReceived)

	assert.Equal(t, uint64(500_000), f.tokens(t, buyer))
	assert.Equal(t, uint64(poolUnits-500_000), f.pool(t))
	assert.Equal(t, uint64(10*sol-1_000_000), f.lamports(t, buyer))
	assert.Equal(t, uint64(1_000_000), f.lamports(t, treasury))
}

func TestBuy_UsesUpdatedPrice(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, sol)
	ctx := context.Background()

	require.NoError(t, f.prog.UpdatePrice(ctx, owner, sol/2))

	r, err := f.prog.Buy(ctx, buyer, treasury, sol/10)
	require.NoError(t, err)
	assert.Equal(t, uint64(200_000), r.Tokens)
}

func TestBuy_FailuresLeaveNoTrace(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture)
		treasury domain.Address
		lamports uint64
		wantErr  error
	}{
		{name: "zero payment", treasury: treasury, lamports: 0, wantErr: ErrInvalidAmount},
		{name: "treasury mismatch", treasury: stranger, lamports: sol, wantErr: ErrAccountMismatch},
		{name: "not enough sol", treasury: treasury, lamports: 10*sol + 1, wantErr: ErrNotEnoughSol},
		{name: "overflow", treasury: treasury, lamports: math.MaxUint64/TokenScale + 1, wantErr: ErrArithmeticOverflow},
		{
			name: "pool exhausted",
			setup: func(t *testing.T, f *fixture) {
				// One lamport per whole token: 10 SOL asks for more than the pool holds.
				require.NoError(t, f.prog.UpdatePrice(context.Background(), owner, 1))
			},
			treasury: treasury,
			lamports: 10 * sol,
			wantErr:  token.ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.initialize(t, sol)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			ctx := context.Background()

			_, err := f.prog.Buy(ctx, buyer, tt.treasury, tt.lamports)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, uint64(10*sol), f.lamports(t, buyer))
			assert.Equal(t, uint64(0), f.lamports(t, tt.treasury))
			assert.Equal(t, uint64(0), f.tokens(t, buyer))
			assert.Equal(t, uint64(poolUnits), f.pool(t))

			_, err = f.prog.BuyerRecord(ctx, buyer)
			assert.ErrorIs(t, err, ErrBuyerNotFound)
			assert.Empty(t, f.rec.purchases)
		})
	}
}

func TestBuy_DrainsPoolExactly(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, 1)
	ctx := context.Background()

	// At one lamport per whole token the pool holds 1,000,000 lamports worth.
	_, err := f.prog.Buy(ctx, buyer, treasury, 1_000_001)
	assert.Equal(t, CodePoolExhausted, Code(err))

	r, err := f.prog.Buy(ctx, buyer, treasury, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(poolUnits), r.Tokens)
	assert.Equal(t, uint64(0), f.pool(t))
	assert.Equal(t, uint64(1_000_000), f.lamports(t, treasury))
}

func TestBuy_ConcurrentBuyers(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, sol)
	ctx := context.Background()

	const buyers = 8
	for i := 0; i < buyers; i++ {
		require.NoError(t, f.prog.Airdrop(ctx, ledgertest.Addr(byte(0x40+i)), sol))
	}

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(b domain.Address) {
			defer wg.Done()
			_, err := f.prog.Buy(ctx, b, treasury, sol)
			errs <- err
		}(ledgertest.Addr(byte(0x40 + i)))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(buyers*sol), f.lamports(t, treasury))
	assert.Equal(t, uint64(poolUnits-buyers*1_000_000), f.pool(t))
}

func TestBuy_RecordOwnedByOtherProgram(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, sol)
	ctx := context.Background()

	addr, err := BuyerRecordAddress(DefaultProgramID, buyer)
	require.NoError(t, err)
	_, err = ledger.Run(ctx, f.store, func(tx ledger.Tx) error {
		return tx.Put(ctx, &domain.Account{
			Address: addr,
			Owner:   stranger,
			Data:    layout.EncodeBuyerRecord(&domain.BuyerRecord{Buyer: buyer}),
		})
	})
	require.NoError(t, err)

	_, err = f.prog.Buy(ctx, buyer, treasury, sol)
	assert.ErrorIs(t, err, ErrAccountMismatch)
	assert.Equal(t, uint64(10*sol), f.lamports(t, buyer))
}

func TestBuy_ForeignOwnedBuyerAccounts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, ctx context.Context, f *fixture)
	}{
		{
			name: "buyer owned by another program",
			setup: func(t *testing.T, ctx context.Context, f *fixture) {
				_, err := ledger.Run(ctx, f.store, func(tx ledger.Tx) error {
					return tx.Put(ctx, &domain.Account{Address: buyer, Owner: stranger, Lamports: 10 * sol})
				})
				require.NoError(t, err)
			},
		},
		{
			name: "associated token address funded before first buy",
			setup: func(t *testing.T, ctx context.Context, f *fixture) {
				ata, _, err := pda.FindAssociatedTokenAddress(buyer, mint)
				require.NoError(t, err)
				require.NoError(t, f.prog.Airdrop(ctx, ata, 1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.initialize(t, sol)
			ctx := context.Background()
			tt.setup(t, ctx, f)

			_, err := f.prog.Buy(ctx, buyer, treasury, sol)
			assert.ErrorIs(t, err, ErrAccountMismatch)
			assert.Equal(t, CodeAccountMismatch, Code(err))

			assert.Equal(t, uint64(10*sol), f.lamports(t, buyer))
			assert.Equal(t, uint64(0), f.lamports(t, treasury))
			assert.Equal(t, uint64(poolUnits), f.pool(t))
			assert.Empty(t, f.rec.purchases)
		})
	}
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.prog.Quote(ctx, sol)
	assert.ErrorIs(t, err, ErrNotInitialized)

	f.initialize(t, sol)

	got, err := f.prog.Quote(ctx, sol/10)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), got)

	_, err = f.prog.Quote(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Quoting has no side effects
	assert.Equal(t, uint64(poolUnits), f.pool(t))
}

func TestAuthorityAndPoolAddresses(t *testing.T) {
	a, err := DeriveAddresses(DefaultProgramID, mint)
	require.NoError(t, err)
	b, err := DeriveAddresses(DefaultProgramID, mint)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a.Config, a.Authority)
	assert.NotEqual(t, a.Authority, a.Pool)

	other, err := DeriveAddresses(ledgertest.Addr(0x99), mint)
	require.NoError(t, err)
	assert.NotEqual(t, a.Authority, other.Authority)
}

func TestMetricsAndLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	m := observability.NewMetrics("test", prometheus.NewRegistry())

	f := newFixture(t, WithMetrics(m), WithLogger(logger), WithClock(func() time.Time {
		return time.Unix(1700000000, 0)
	}))
	f.initialize(t, sol)
	ctx := context.Background()

	_, err := f.prog.Buy(ctx, buyer, treasury, sol)
	require.NoError(t, err)
	_, err = f.prog.Buy(ctx, buyer, stranger, sol)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("buy", CodeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("buy", CodeAccountMismatch)))
	assert.Equal(t, float64(sol), testutil.ToFloat64(m.LamportsRaised))
	assert.Equal(t, 1_000_000.0, testutil.ToFloat64(m.TokensSold))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuyersCreated))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSuccessfulBuy))

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Equal(t, CodeAccountMismatch, last.Data["code"])
}

func TestCode(t *testing.T) {
	assert.Equal(t, CodeOK, Code(nil))
	assert.Equal(t, CodeNotEnoughSol, Code(ErrNotEnoughSol))
	assert.Equal(t, CodeConflict, Code(ledger.ErrConflict))
	assert.Equal(t, CodeCancelled, Code(context.Canceled))
	assert.Equal(t, CodeInternal, Code(assert.AnError))
}
