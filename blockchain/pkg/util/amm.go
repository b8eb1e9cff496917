package util

import (
	"fmt"
	"math/big"
)

const (
	MinTick = -887272
	MaxTick = 887272
)

// Q96 = 2^96, the fixed point base of sqrtPriceX96.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// sqrt(1.0001^-(2^i)) in Q128, the same constants the pool contract uses so results match on-chain.
var tickMultipliers = []string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
}

// TickToSqrtPriceX96 converts a tick to sqrt(1.0001^tick) in Q96.
func TickToSqrtPriceX96(tick int) (*big.Int, error) {
	absTick := tick
	if tick < 0 {
		absTick = -tick
	}
	if absTick > MaxTick {
		return nil, fmt.Errorf("tick %d out of range", tick)
	}

	ratio := new(big.Int).Lsh(big.NewInt(1), 128)
	for i, hexMul := range tickMultipliers {
		if absTick&(1<<i) == 0 {
			continue
		}
		mul, _ := new(big.Int).SetString(hexMul, 16)
		ratio.Mul(ratio, mul)
		ratio.Rsh(ratio, 128)
	}

	if tick > 0 {
		max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
		ratio = max.Div(max, ratio)
	}

	// round up then shift down to Q96
	ratio.Add(ratio, new(big.Int).SetUint64(0xFFFFFFFF))
	ratio.Rsh(ratio, 32)

	return ratio, nil
}

// SqrtPriceToPrice gives token1 per token0 in raw units: (sqrtPriceX96 / 2^96)^2.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int) *big.Float {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return big.NewFloat(0)
	}

	sqrtPrice := new(big.Float).SetPrec(256).SetInt(sqrtPriceX96)
	sqrtPrice.Quo(sqrtPrice, new(big.Float).SetInt(Q96))

	return new(big.Float).Mul(sqrtPrice, sqrtPrice)
}

// ComputeAmounts returns the token0 and token1 amounts a position on [tickLower, tickUpper)
// actually takes from the given budgets at the current price, and its liquidity.
func ComputeAmounts(
	sqrtPriceX96 *big.Int,
	tick int,
	tickLower int,
	tickUpper int,
	amount0Max *big.Int,
	amount1Max *big.Int,
) (amount0 *big.Int, amount1 *big.Int, L *big.Int, err error) {

	sqrtLower, err := TickToSqrtPriceX96(tickLower)
	if err != nil {
		return nil, nil, nil, err
	}
	sqrtUpper, err := TickToSqrtPriceX96(tickUpper)
	if err != nil {
		return nil, nil, nil, err
	}

	sP := new(big.Float).SetInt(sqrtPriceX96)
	sL := new(big.Float).SetInt(sqrtLower)
	sU := new(big.Float).SetInt(sqrtUpper)
	q96 := new(big.Float).SetInt(Q96)

	// below the range only token0 is taken
	if tick < tickLower {
		numer := new(big.Float).Mul(new(big.Float).Mul(new(big.Float).SetInt(amount0Max), sL), sU)
		numer.Quo(numer, q96)
		Lf := new(big.Float).Quo(numer, new(big.Float).Sub(sU, sL))

		L = new(big.Int)
		Lf.Int(L)
		return new(big.Int).Set(amount0Max), big.NewInt(0), L, nil
	}

	// above the range only token1 is taken
	if tick >= tickUpper {
		numer := new(big.Float).Mul(new(big.Float).SetInt(amount1Max), q96)
		Lf := new(big.Float).Quo(numer, new(big.Float).Sub(sU, sL))

		L = new(big.Int)
		Lf.Int(L)
		return big.NewInt(0), new(big.Int).Set(amount1Max), L, nil
	}

	// L0 = amount0Max * sqrtP * sqrtU / (sqrtU - sqrtP) / Q96
	numer0 := new(big.Float).Mul(new(big.Float).Mul(new(big.Float).SetInt(amount0Max), sP), sU)
	numer0.Quo(numer0, q96)
	L0 := new(big.Int)
	new(big.Float).Quo(numer0, new(big.Float).Sub(sU, sP)).Int(L0)

	// L1 = amount1Max * Q96 / (sqrtP - sqrtL)
	numer1 := new(big.Float).Mul(new(big.Float).SetInt(amount1Max), q96)
	L1 := new(big.Int)
	new(big.Float).Quo(numer1, new(big.Float).Sub(sP, sL)).Int(L1)

	L = L0
	if L1.Cmp(L0) < 0 {
		L = L1
	}
	Lf := new(big.Float).SetInt(L)

	// amount0 = L * (sqrtU - sqrtP) * Q96 / (sqrtP * sqrtU)
	a0 := new(big.Float).Mul(Lf, new(big.Float).Sub(sU, sP))
	a0.Mul(a0, q96)
	a0.Quo(a0, new(big.Float).Mul(sP, sU))
	amount0 = new(big.Int)
	a0.Int(amount0)

	// amount1 = L * (sqrtP - sqrtL) / Q96
	a1 := new(big.Float).Mul(Lf, new(big.Float).Sub(sP, sL))
	a1.Quo(a1, q96)
	amount1 = new(big.Int)
	a1.Int(amount1)

	return amount0, amount1, L, nil
}
