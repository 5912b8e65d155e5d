package layout

import (
	"encoding/binary"
	"fmt"

	"solana-token-sale/internal/domain"
)

// SPL record sizes in bytes.
const (
	TokenAccountSize = 165
	MintSize         = 82
)

// Token account states.
const (
	TokenStateUninitialized uint8 = 0
	TokenStateInitialized   uint8 = 1
	TokenStateFrozen        uint8 = 2
)

// TokenAccount is an SPL token account.
// Layout: mint(32) | owner(32) | amount(8) | delegate COption(36) | state(1) |
// is_native COption<u64>(12) | delegated_amount(8) | close_authority COption(36)
type TokenAccount struct {
	Mint            domain.Address
	Owner           domain.Address
	Amount          uint64
	Delegate        *domain.Address
	State           uint8
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *domain.Address
}

// Mint is an SPL mint.
// Layout: mint_authority COption(36) | supply(8) | decimals(1) | is_initialized(1) |
// freeze_authority COption(36)
type Mint struct {
	MintAuthority   *domain.Address
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *domain.Address
}

// EncodeTokenAccount serializes a token account into its 165-byte layout.
func EncodeTokenAccount(a *TokenAccount) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	putOptionAddress(data[72:108], a.Delegate)
	data[108] = a.State
	if a.IsNative != nil {
		binary.LittleEndian.PutUint32(data[109:113], 1)
		binary.LittleEndian.PutUint64(data[113:121], *a.IsNative)
	}
	binary.LittleEndian.PutUint64(data[121:129], a.DelegatedAmount)
	putOptionAddress(data[129:165], a.CloseAuthority)
	return data
}

// DecodeTokenAccount parses a token account. Uninitialized accounts fail.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("decode token account: %w: %d < %d", ErrShortData, len(data), TokenAccountSize)
	}

	a := &TokenAccount{
		Amount:          binary.LittleEndian.Uint64(data[64:72]),
		Delegate:        optionAddress(data[72:108]),
		State:           data[108],
		DelegatedAmount: binary.LittleEndian.Uint64(data[121:129]),
		CloseAuthority:  optionAddress(data[129:165]),
	}
	copy(a.Mint[:], data[0:32])
	copy(a.Owner[:], data[32:64])
	if binary.LittleEndian.Uint32(data[109:113]) == 1 {
		v := binary.LittleEndian.Uint64(data[113:121])
		a.IsNative = &v
	}

	if a.State == TokenStateUninitialized {
		return nil, fmt.Errorf("decode token account: %w", ErrUninitialized)
	}
	return a, nil
}

// EncodeMint serializes a mint into its 82-byte layout.
func EncodeMint(m *Mint) []byte {
	data := make([]byte, MintSize)
	putOptionAddress(data[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(data[36:44], m.Supply)
	data[44] = m.Decimals
	if m.IsInitialized {
		data[45] = 1
	}
	putOptionAddress(data[46:82], m.FreezeAuthority)
	return data
}

// DecodeMint parses a mint. Uninitialized mints fail.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("decode mint: %w: %d < %d", ErrShortData, len(data), MintSize)
	}

	m := &Mint{
		MintAuthority:   optionAddress(data[0:36]),
		Supply:          binary.LittleEndian.Uint64(data[36:44]),
		Decimals:        data[44],
		IsInitialized:   data[45] == 1,
		FreezeAuthority: optionAddress(data[46:82]),
	}
	if !m.IsInitialized {
		return nil, fmt.Errorf("decode mint: %w", ErrUninitialized)
	}
	return m, nil
}

// putOptionAddress writes a COption<Pubkey>: u32 tag then 32 bytes.
func putOptionAddress(dst []byte, a *domain.Address) {
	if a == nil {
		return
	}
	binary.LittleEndian.PutUint32(dst[0:4], 1)
	copy(dst[4:36], a[:])
}

func optionAddress(src []byte) *domain.Address {
	if binary.LittleEndian.Uint32(src[0:4]) != 1 {
		return nil
	}
	var a domain.Address
	copy(a[:], src[4:36])
	return &a
}
