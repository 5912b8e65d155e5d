// Package pda derives program-controlled addresses and the signing capability
// that lets a program authorize transfers out of accounts those addresses own.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"solana-token-sale/internal/domain"
)

// Derivation limits enforced by the runtime.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

const marker = "ProgramDerivedAddress"

var (
	// ErrMaxSeedLength is returned when a seed is longer than MaxSeedLength.
	ErrMaxSeedLength = errors.New("pda: seed exceeds maximum length")

	// ErrTooManySeeds is returned when more than MaxSeeds seeds are supplied.
	ErrTooManySeeds = errors.New("pda: too many seeds")

	// ErrOnCurve is returned when a candidate address is a valid ed25519 point,
	// meaning some private key could sign for it.
	ErrOnCurve = errors.New("pda: address lies on the ed25519 curve")

	// ErrNoViableBump is returned when every bump produced an on-curve address.
	ErrNoViableBump = errors.New("pda: no viable bump seed")

	// ErrSignerMismatch is returned when a signer's seeds no longer derive its address.
	ErrSignerMismatch = errors.New("pda: signer seeds do not derive signer address")
)

// CreateProgramAddress hashes seeds with the program id into an address.
// Formula: SHA256(seed_0 || ... || seed_n || programID || "ProgramDerivedAddress").
// The result must be off the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID domain.Address) (domain.Address, error) {
	var addr domain.Address
	if len(seeds) > MaxSeeds {
		return addr, ErrTooManySeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return addr, ErrMaxSeedLength
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(marker))
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr[:]) {
		return domain.Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 downward and returns the first
// off-curve address together with the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID domain.Address) (domain.Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return domain.Address{}, 0, err
		}
	}

	return domain.Address{}, 0, ErrNoViableBump
}

// FindAssociatedTokenAddress returns the canonical token account of owner for mint.
// Seeds: [owner, token_program_id, mint] under the associated token program.
func FindAssociatedTokenAddress(owner, mint domain.Address) (domain.Address, uint8, error) {
	return FindProgramAddress([][]byte{
		owner[:],
		domain.TokenProgramID[:],
		mint[:],
	}, domain.AssociatedTokenProgramID)
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != domain.AddressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// Signer is the signing capability of a program-derived address.
// It carries the seeds and bump needed to re-derive the address, so a
// collaborator can check the capability before honouring it.
type Signer struct {
	address   domain.Address
	programID domain.Address
	seeds     [][]byte
	bump      uint8
}

// NewSigner derives the canonical address for seeds under programID.
func NewSigner(programID domain.Address, seeds ...[]byte) (*Signer, error) {
	addr, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return nil, fmt.Errorf("derive signer: %w", err)
	}

	owned := make([][]byte, len(seeds))
	for i, s := range seeds {
		owned[i] = append([]byte(nil), s...)
	}

	return &Signer{
		address:   addr,
		programID: programID,
		seeds:     owned,
		bump:      bump,
	}, nil
}

// Address returns the derived address the signer acts for.
func (s *Signer) Address() domain.Address { return s.address }

// ProgramID returns the program that controls the address.
func (s *Signer) ProgramID() domain.Address { return s.programID }

// Bump returns the bump seed used in derivation.
func (s *Signer) Bump() uint8 { return s.bump }

// Verify re-derives the address from the stored seeds and bump.
func (s *Signer) Verify() error {
	if s == nil {
		return ErrSignerMismatch
	}
	withBump := make([][]byte, len(s.seeds)+1)
	copy(withBump, s.seeds)
	withBump[len(s.seeds)] = []byte{s.bump}

	addr, err := CreateProgramAddress(withBump, s.programID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignerMismatch, err)
	}
	if addr != s.address {
		return ErrSignerMismatch
	}
	return nil
}
