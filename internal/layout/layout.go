// Package layout encodes and decodes the byte layouts of ledger records:
// the sale program's discriminated accounts and SPL token/mint accounts.
package layout

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"solana-token-sale/internal/domain"
)

// Account type names hashed into the discriminator. They match the deployed
// program's account structs, so records decode the same on a live cluster.
const (
	SaleConfigAccountName  = "Ico"
	BuyerRecordAccountName = "User"
)

// Record sizes in bytes.
const (
	DiscriminatorSize = 8
	SaleConfigSize    = DiscriminatorSize + 8 + 32 + 32 // 80
	BuyerRecordSize   = DiscriminatorSize + 32 + 8      // 48
)

var (
	// ErrShortData is returned when record data is smaller than its layout.
	ErrShortData = errors.New("layout: account data too short")

	// ErrDiscriminator is returned when the leading 8 bytes name a different account type.
	ErrDiscriminator = errors.New("layout: account discriminator mismatch")

	// ErrUninitialized is returned when an SPL account has not been initialized.
	ErrUninitialized = errors.New("layout: account not initialized")
)

// Discriminator computes sha256("namespace:name")[:8].
func Discriminator(namespace, name string) [8]byte {
	hash := sha256.Sum256([]byte(namespace + ":" + name))
	var disc [8]byte
	copy(disc[:], hash[:8])
	return disc
}

// AccountDiscriminator is the discriminator prefix for an account type.
func AccountDiscriminator(name string) [8]byte {
	return Discriminator("account", name)
}

var (
	saleConfigDisc  = AccountDiscriminator(SaleConfigAccountName)
	buyerRecordDisc = AccountDiscriminator(BuyerRecordAccountName)
)

// EncodeSaleConfig serializes a SaleConfig.
// Layout: disc(8) | price u64 LE | treasury(32) | owner(32)
func EncodeSaleConfig(c *domain.SaleConfig) []byte {
	data := make([]byte, SaleConfigSize)
	copy(data[0:8], saleConfigDisc[:])
	binary.LittleEndian.PutUint64(data[8:16], c.Price)
	copy(data[16:48], c.Treasury[:])
	copy(data[48:80], c.Owner[:])
	return data
}

// DecodeSaleConfig parses a SaleConfig record.
func DecodeSaleConfig(data []byte) (*domain.SaleConfig, error) {
	if err := checkDiscriminated(data, SaleConfigSize, saleConfigDisc); err != nil {
		return nil, fmt.Errorf("decode sale config: %w", err)
	}

	c := &domain.SaleConfig{
		Price: binary.LittleEndian.Uint64(data[8:16]),
	}
	copy(c.Treasury[:], data[16:48])
	copy(c.Owner[:], data[48:80])
	return c, nil
}

// EncodeBuyerRecord serializes a BuyerRecord.
// Layout: disc(8) | buyer(32) | total u64 LE
func EncodeBuyerRecord(r *domain.BuyerRecord) []byte {
	data := make([]byte, BuyerRecordSize)
	copy(data[0:8], buyerRecordDisc[:])
	copy(data[8:40], r.Buyer[:])
	binary.LittleEndian.PutUint64(data[40:48], r.TotalTokensReceived)
	return data
}

// DecodeBuyerRecord parses a BuyerRecord record.
func DecodeBuyerRecord(data []byte) (*domain.BuyerRecord, error) {
	if err := checkDiscriminated(data, BuyerRecordSize, buyerRecordDisc); err != nil {
		return nil, fmt.Errorf("decode buyer record: %w", err)
	}

	r := &domain.BuyerRecord{
		TotalTokensReceived: binary.LittleEndian.Uint64(data[40:48]),
	}
	copy(r.Buyer[:], data[8:40])
	return r, nil
}

func checkDiscriminated(data []byte, size int, disc [8]byte) error {
	if len(data) < size {
		return fmt.Errorf("%w: %d < %d", ErrShortData, len(data), size)
	}
	var got [8]byte
	copy(got[:], data[:8])
	if got != disc {
		return ErrDiscriminator
	}
	return nil
}
