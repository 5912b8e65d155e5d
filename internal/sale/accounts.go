package sale

import (
	"fmt"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/pda"
)

// Seeds of the program-derived records.
var (
	ConfigSeed      = []byte("ico")
	BuyerRecordSeed = []byte("user_account")
	AuthoritySeed   = []byte("authority")
)

// DefaultProgramID is the address the sale program is deployed under.
var DefaultProgramID = domain.MustParseAddress("6utJEwmhwa51QVfi6PpH6AEgk27cfLBS3TGfGAVe9oCf")

// Addresses are the fixed accounts of one sale.
type Addresses struct {
	Program   domain.Address
	Mint      domain.Address
	Config    domain.Address
	Authority domain.Address
	// Pool is the token account the sale pays out of: the associated token
	// account of Authority for Mint.
	Pool domain.Address
}

// DeriveAddresses computes the fixed accounts of the sale of mint under programID.
func DeriveAddresses(programID, mint domain.Address) (*Addresses, error) {
	config, _, err := pda.FindProgramAddress([][]byte{ConfigSeed}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive config address: %w", err)
	}
	authority, _, err := pda.FindProgramAddress([][]byte{AuthoritySeed}, programID)
	if err != nil {
		return nil, fmt.Errorf("derive authority address: %w", err)
	}
	pool, _, err := pda.FindAssociatedTokenAddress(authority, mint)
	if err != nil {
		return nil, fmt.Errorf("derive pool address: %w", err)
	}

	return &Addresses{
		Program:   programID,
		Mint:      mint,
		Config:    config,
		Authority: authority,
		Pool:      pool,
	}, nil
}

// BuyerRecordAddress returns the record address of buyer under programID.
func BuyerRecordAddress(programID, buyer domain.Address) (domain.Address, error) {
	addr, _, err := pda.FindProgramAddress([][]byte{BuyerRecordSeed, buyer[:]}, programID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive buyer record address: %w", err)
	}
	return addr, nil
}
