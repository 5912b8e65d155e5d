package pda

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-sale/internal/domain"
)

var upgradeableLoader = domain.MustParseAddress("BPFLoaderUpgradeab1e11111111111111111111111")

func TestCreateProgramAddress_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		seeds [][]byte
		want  string
	}{
		{
			name:  "empty seed with bump 1",
			seeds: [][]byte{{}, {1}},
			want:  "BwqrghZA2htAcqq8dzP1WDAhTXYTYWj7CHxF5j7TDBAe",
		},
		{
			name:  "two text seeds",
			seeds: [][]byte{[]byte("Talking"), []byte("Squirrels")},
			want:  "2fnQrngrQT4SeLcdToJAD96phoEjNL2man2kfRLCASVk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateProgramAddress(tt.seeds, upgradeableLoader)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, upgradeableLoader)
	assert.ErrorIs(t, err, ErrMaxSeedLength)

	_, err = CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength)}, upgradeableLoader)
	if err != nil {
		assert.ErrorIs(t, err, ErrOnCurve)
	}

	tooMany := make([][]byte, MaxSeeds+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i)}
	}
	_, err = CreateProgramAddress(tooMany, upgradeableLoader)
	assert.ErrorIs(t, err, ErrTooManySeeds)
}

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("authority")}

	addr1, bump1, err := FindProgramAddress(seeds, upgradeableLoader)
	require.NoError(t, err)
	addr2, bump2, err := FindProgramAddress(seeds, upgradeableLoader)
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, IsOnCurve(addr1[:]), "derived address must be off curve")

	// The returned bump must reproduce the address directly.
	direct, err := CreateProgramAddress([][]byte{[]byte("authority"), {bump1}}, upgradeableLoader)
	require.NoError(t, err)
	assert.Equal(t, addr1, direct)
}

func TestFindProgramAddress_DistinctInputs(t *testing.T) {
	a, _, err := FindProgramAddress([][]byte{[]byte("ico")}, upgradeableLoader)
	require.NoError(t, err)
	b, _, err := FindProgramAddress([][]byte{[]byte("authority")}, upgradeableLoader)
	require.NoError(t, err)
	c, _, err := FindProgramAddress([][]byte{[]byte("ico")}, domain.TokenProgramID)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFindProgramAddress_SeedTooLong(t *testing.T) {
	_, _, err := FindProgramAddress([][]byte{bytes.Repeat([]byte{7}, 33)}, upgradeableLoader)
	assert.ErrorIs(t, err, ErrMaxSeedLength)
}

func TestFindAssociatedTokenAddress(t *testing.T) {
	owner := domain.MustParseAddress("SeedPubey1111111111111111111111111111111111")
	mint := domain.TokenProgramID

	ata1, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	ata2, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, ata1, ata2)

	other, _, err := FindAssociatedTokenAddress(mint, owner)
	require.NoError(t, err)
	assert.NotEqual(t, ata1, other)
}

func TestIsOnCurve(t *testing.T) {
	// The ed25519 base point encoding is on the curve.
	basePoint := []byte{
		0x58, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
		0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66,
	}
	assert.True(t, IsOnCurve(basePoint))
	assert.False(t, IsOnCurve([]byte{1, 2, 3}))
}

func TestSigner(t *testing.T) {
	s, err := NewSigner(upgradeableLoader, []byte("authority"))
	require.NoError(t, err)

	want, bump, err := FindProgramAddress([][]byte{[]byte("authority")}, upgradeableLoader)
	require.NoError(t, err)

	assert.Equal(t, want, s.Address())
	assert.Equal(t, bump, s.Bump())
	assert.Equal(t, upgradeableLoader, s.ProgramID())
	assert.NoError(t, s.Verify())
}

func TestSigner_VerifyDetectsTampering(t *testing.T) {
	s, err := NewSigner(upgradeableLoader, []byte("authority"))
	require.NoError(t, err)

	forged := *s
	forged.address = domain.TokenProgramID
	assert.ErrorIs(t, forged.Verify(), ErrSignerMismatch)

	var nilSigner *Signer
	assert.ErrorIs(t, nilSigner.Verify(), ErrSignerMismatch)
}
