package ledger

import (
	"encoding/binary"
	"fmt"

	"solana-token-sale/internal/domain"
)

// accountHeaderSize is owner(32) | lamports(8).
const accountHeaderSize = domain.AddressLength + 8

// EncodeAccount serializes an account for key-value backends.
// Layout: owner(32) | lamports u64 LE | data
func EncodeAccount(acct *domain.Account) []byte {
	buf := make([]byte, accountHeaderSize+len(acct.Data))
	copy(buf[0:32], acct.Owner[:])
	binary.LittleEndian.PutUint64(buf[32:40], acct.Lamports)
	copy(buf[40:], acct.Data)
	return buf
}

// DecodeAccount parses an account previously written by EncodeAccount.
func DecodeAccount(addr domain.Address, buf []byte) (*domain.Account, error) {
	if len(buf) < accountHeaderSize {
		return nil, fmt.Errorf("decode account %s: %d bytes is shorter than header", addr, len(buf))
	}
	acct := &domain.Account{
		Address:  addr,
		Lamports: binary.LittleEndian.Uint64(buf[32:40]),
		Data:     make([]byte, len(buf)-accountHeaderSize),
	}
	copy(acct.Owner[:], buf[0:32])
	copy(acct.Data, buf[40:])
	return acct, nil
}
