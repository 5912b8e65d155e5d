package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "system program", input: "11111111111111111111111111111111"},
		{name: "token program", input: "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"},
		{name: "invalid alphabet", input: "0OIl", wantErr: true},
		{name: "too short", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, a.String())
		})
	}
}

func TestSystemProgramIsZero(t *testing.T) {
	assert.True(t, SystemProgramID.IsZero())
	assert.Equal(t, "11111111111111111111111111111111", SystemProgramID.String())
	assert.False(t, TokenProgramID.IsZero())
}

func TestAddress_JSONRoundTrip(t *testing.T) {
	type payload struct {
		Owner Address `json:"owner"`
	}

	in := payload{Owner: TokenProgramID}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"owner":"nope"}`), &out))
}

func TestAccount_Clone(t *testing.T) {
	a := &Account{Address: TokenProgramID, Lamports: 5, Data: []byte{1, 2, 3}}
	c := a.Clone()
	c.Data[0] = 9
	c.Lamports = 6

	assert.Equal(t, byte(1), a.Data[0])
	assert.Equal(t, uint64(5), a.Lamports)
	assert.Nil(t, (*Account)(nil).Clone())
}
