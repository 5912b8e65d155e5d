// Package stub is an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"encoding/base64"
	"sync"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/solana"
)

// RPCClient serves accounts, signatures and transactions from maps.
type RPCClient struct {
	mu           sync.RWMutex
	Accounts     map[string]*solana.AccountInfo
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Slot         int64
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:     make(map[string]*solana.AccountInfo),
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
	}
}

// GetAccountInfo returns nil for unknown accounts, like a node does.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetBalance returns zero for unknown accounts.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.Accounts[pubkey]; ok {
		return info.Lamports, nil
	}
	return 0, nil
}

func (c *RPCClient) GetSlot(context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Slot, nil
}

// GetTransaction returns nil for unknown signatures.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sigs := c.Signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}
	return sigs, nil
}

// SetAccount stores an account with raw data.
func (c *RPCClient) SetAccount(addr, owner domain.Address, lamports uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[addr.String()] = &solana.AccountInfo{
		Lamports: lamports,
		Owner:    owner.String(),
		Data:     base64.StdEncoding.EncodeToString(data),
	}
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

var _ solana.RPCClient = (*RPCClient)(nil)
