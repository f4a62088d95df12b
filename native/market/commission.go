package market

import (
	"math/big"
)

const (
	// DefaultCommissionPercent is applied until an operator configures a rate.
	DefaultCommissionPercent uint32 = 3
	// MaxCommissionPercent bounds operator-configured rates. The bound is a
	// deliberate policy choice: high enough for any realistic marketplace fee,
	// low enough that a misconfigured operator cannot claim most of a sale.
	MaxCommissionPercent uint32 = 25
)

// SplitCommission divides a settlement price between the seller and the
// commission wallet. The commission is floor(price*percent/100) and the two
// parts always sum to the price exactly.
func SplitCommission(price *big.Int, percent uint32) (net, commission *big.Int, err error) {
	total := cloneBigInt(price)
	if total.Sign() < 0 {
		return nil, nil, ErrInvalidPriceRelation
	}
	if percent > MaxCommissionPercent {
		return nil, nil, ErrInvalidCommissionPercent
	}
	commission = new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(percent)))
	commission.Div(commission, big.NewInt(100))
	net = new(big.Int).Sub(total, commission)
	return net, commission, nil
}
