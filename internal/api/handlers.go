package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/sale"
)

type saleView struct {
	Program   domain.Address `json:"program"`
	Mint      domain.Address `json:"mint"`
	Config    domain.Address `json:"config"`
	Authority domain.Address `json:"authority"`
	Pool      domain.Address `json:"pool"`
	Price     uint64         `json:"price"`
	Treasury  domain.Address `json:"treasury"`
	Owner     domain.Address `json:"owner"`
	PoolTotal uint64         `json:"pool_balance"`
}

func (s *Server) getSale(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.opts.Sale.Config(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pool, err := s.opts.Sale.PoolBalance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	addrs := s.opts.Sale.Addresses()
	writeJSON(w, http.StatusOK, saleView{
		Program:   addrs.Program,
		Mint:      addrs.Mint,
		Config:    addrs.Config,
		Authority: addrs.Authority,
		Pool:      addrs.Pool,
		Price:     cfg.Price,
		Treasury:  cfg.Treasury,
		Owner:     cfg.Owner,
		PoolTotal: pool,
	})
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	lamports, err := uintQuery(r, "lamports", 0)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	tokens, err := s.opts.Sale.Quote(r.Context(), lamports)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"lamports": lamports, "tokens": tokens})
}

type initializeRequest struct {
	Payer    domain.Address `json:"payer"`
	Price    uint64         `json:"price"`
	Treasury domain.Address `json:"treasury"`
	Owner    domain.Address `json:"owner"`
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.opts.Sale.Initialize(r.Context(), req.Payer, req.Price, req.Treasury, req.Owner); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getSaleStatus(w, r, http.StatusCreated)
}

type priceRequest struct {
	Signer domain.Address `json:"signer"`
	Price  uint64         `json:"price"`
}

func (s *Server) updatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.opts.Sale.UpdatePrice(r.Context(), req.Signer, req.Price); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getSaleStatus(w, r, http.StatusOK)
}

type ownerRequest struct {
	Signer   domain.Address `json:"signer"`
	NewOwner domain.Address `json:"new_owner"`
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.opts.Sale.TransferOwnership(r.Context(), req.Signer, req.NewOwner); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getSaleStatus(w, r, http.StatusOK)
}

type treasuryRequest struct {
	Signer      domain.Address `json:"signer"`
	NewTreasury domain.Address `json:"new_treasury"`
}

func (s *Server) updateTreasury(w http.ResponseWriter, r *http.Request) {
	var req treasuryRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.opts.Sale.UpdateTreasury(r.Context(), req.Signer, req.NewTreasury); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getSaleStatus(w, r, http.StatusOK)
}

// getSaleStatus renders the committed configuration after a change.
func (s *Server) getSaleStatus(w http.ResponseWriter, r *http.Request, status int) {
	cfg, err := s.opts.Sale.Config(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{
		"price":    cfg.Price,
		"treasury": cfg.Treasury,
		"owner":    cfg.Owner,
	})
}

type buyRequest struct {
	Buyer    domain.Address `json:"buyer"`
	Treasury domain.Address `json:"treasury"`
	Lamports uint64         `json:"lamports"`
}

func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !decode(w, r, &req) {
		return
	}
	receipt, err := s.opts.Sale.Buy(r.Context(), req.Buyer, req.Treasury, req.Lamports)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type buyerView struct {
	Buyer               domain.Address `json:"buyer"`
	TotalTokensReceived uint64         `json:"total_tokens_received"`
	TokenBalance        uint64         `json:"token_balance"`
	Lamports            uint64         `json:"lamports"`
}

func (s *Server) getBuyer(w http.ResponseWriter, r *http.Request) {
	buyer, ok := addressParam(w, r, "buyer")
	if !ok {
		return
	}
	rec, err := s.opts.Sale.BuyerRecord(r.Context(), buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.opts.Sale.TokenBalance(r.Context(), buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lamports, err := s.opts.Sale.Lamports(r.Context(), buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buyerView{
		Buyer:               rec.Buyer,
		TotalTokensReceived: rec.TotalTokensReceived,
		TokenBalance:        balance,
		Lamports:            lamports,
	})
}

type purchaseView struct {
	PurchaseID  string         `json:"purchase_id"`
	TxID        string         `json:"tx_id"`
	Buyer       domain.Address `json:"buyer"`
	Treasury    domain.Address `json:"treasury"`
	Lamports    uint64         `json:"lamports"`
	Tokens      uint64         `json:"tokens"`
	Price       uint64         `json:"price"`
	BuyerTotal  uint64         `json:"buyer_total"`
	TimestampMs int64          `json:"timestamp_ms"`
}

func (s *Server) getBuyerPurchases(w http.ResponseWriter, r *http.Request) {
	if s.opts.Purchases == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: errJournalDisabled.Error(), Code: "JOURNAL_DISABLED"})
		return
	}
	buyer, ok := addressParam(w, r, "buyer")
	if !ok {
		return
	}
	purchases, err := s.opts.Purchases.GetByBuyer(r.Context(), buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]purchaseView, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, purchaseView{
			PurchaseID:  p.PurchaseID,
			TxID:        p.TxID,
			Buyer:       p.Buyer,
			Treasury:    p.Treasury,
			Lamports:    p.Lamports,
			Tokens:      p.Tokens,
			Price:       p.Price,
			BuyerTotal:  p.BuyerTotal,
			TimestampMs: p.TimestampMs,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type volumeView struct {
	TimestampMs     int64  `json:"timestamp_ms"`
	IntervalSeconds int    `json:"interval_seconds"`
	Lamports        uint64 `json:"lamports"`
	Tokens          uint64 `json:"tokens"`
	PurchaseCount   int    `json:"purchase_count"`
	UniqueBuyers    int    `json:"unique_buyers"`
}

func (s *Server) getVolume(w http.ResponseWriter, r *http.Request) {
	if s.opts.Volume == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: errJournalDisabled.Error(), Code: "JOURNAL_DISABLED"})
		return
	}

	interval, err := intQuery(r, "interval", int64(domain.VolumeInterval1Min))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if !validInterval(int(interval)) {
		writeBadRequest(w, fmt.Errorf("interval %d: want 60, 300 or 3600", interval))
		return
	}
	to, err := intQuery(r, "to", s.now().UnixMilli())
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	from, err := intQuery(r, "from", to-(24*time.Hour).Milliseconds())
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if from > to {
		writeBadRequest(w, errors.New("from is after to"))
		return
	}

	points, err := s.opts.Volume.GetByTimeRange(r.Context(), int(interval), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]volumeView, 0, len(points))
	for _, p := range points {
		out = append(out, volumeView{
			TimestampMs:     p.TimestampMs,
			IntervalSeconds: p.IntervalSeconds,
			Lamports:        p.Lamports,
			Tokens:          p.Tokens,
			PurchaseCount:   p.PurchaseCount,
			UniqueBuyers:    p.UniqueBuyers,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type airdropRequest struct {
	Address  domain.Address `json:"address"`
	Lamports uint64         `json:"lamports"`
}

func (s *Server) airdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Lamports == 0 {
		s.writeError(w, r, sale.ErrInvalidAmount)
		return
	}
	if err := s.opts.Sale.Airdrop(r.Context(), req.Address, req.Lamports); err != nil {
		s.writeError(w, r, err)
		return
	}
	lamports, err := s.opts.Sale.Lamports(r.Context(), req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": req.Address, "lamports": lamports})
}
