// Package idhash derives deterministic record ids.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-token-sale/internal/domain"
)

// ComputePurchaseID computes a deterministic purchase_id using SHA256.
// Formula: SHA256(tx_id|buyer)
// Returns hex-encoded hash (64 characters).
func ComputePurchaseID(txID string, buyer domain.Address) string {
	data := fmt.Sprintf("%s|%s", txID, buyer)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
