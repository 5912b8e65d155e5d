package sale

import (
	"github.com/holiman/uint256"
)

// TokenScale is the number of token base units bought for one whole price
// unit of lamports.
const TokenScale = 1_000_000

// TokenAmount returns floor(lamports * TokenScale / price).
// The intermediate product must fit in u64; larger values fail with
// ErrArithmeticOverflow instead of wrapping.
func TokenAmount(lamports, price uint64) (uint64, error) {
	if price == 0 {
		return 0, ErrInvalidAmount
	}

	product, overflow := new(uint256.Int).MulOverflow(
		uint256.NewInt(lamports),
		uint256.NewInt(TokenScale),
	)
	if overflow || !product.IsUint64() {
		return 0, ErrArithmeticOverflow
	}

	return product.Div(product, uint256.NewInt(price)).Uint64(), nil
}
