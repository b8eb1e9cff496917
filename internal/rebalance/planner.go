// Package rebalance decides whether and how much to swap so the two tracked tokens hold equal value.
package rebalance

import (
	"math/big"

	"binkeeper/internal/model"

	"github.com/shopspring/decimal"
)

// Threshold is the value imbalance, as a fraction of total, above which a swap is planned.
var Threshold = decimal.RequireFromString("0.05")

var two = decimal.NewFromInt(2)

// Plan compares the value of a (priced by rate, token A in token B) with b.
// Absent balances count as zero. The amount is floored to the sold token's smallest unit.
func Plan(a, b *model.Balance, rate decimal.Decimal) model.RebalancePlan {
	none := model.RebalancePlan{Direction: model.None, Amount: big.NewInt(0)}

	if rate.Sign() <= 0 {
		return none
	}

	valueA := a.UIAmount().Mul(rate)
	valueB := b.UIAmount()
	total := valueA.Add(valueB)
	if total.Sign() <= 0 {
		return none
	}
	target := total.Div(two)

	switch {
	case valueA.Sub(valueB).Div(total).GreaterThan(Threshold):
		excess := valueA.Sub(target).Div(rate)
		return model.RebalancePlan{
			Direction: model.AtoB,
			Amount:    toSmallest(excess, decimalsOf(a)),
		}
	case valueB.Sub(valueA).Div(total).GreaterThan(Threshold):
		excess := valueB.Sub(target)
		return model.RebalancePlan{
			Direction: model.BtoA,
			Amount:    toSmallest(excess, decimalsOf(b)),
		}
	}
	return none
}

func decimalsOf(b *model.Balance) uint8 {
	if b == nil {
		return 0
	}
	return b.Decimals
}

func toSmallest(ui decimal.Decimal, decimals uint8) *big.Int {
	return ui.Shift(int32(decimals)).Floor().BigInt()
}
