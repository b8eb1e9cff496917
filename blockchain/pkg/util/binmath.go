package util

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// A bin is one tick-spacing bucket: bin b covers ticks [b*spacing, (b+1)*spacing).

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// BinOfTick maps a tick to the bin containing it.
func BinOfTick(tick, spacing int64) int64 {
	return floorDiv(tick, spacing)
}

// BinRangeOfTicks returns the inclusive bins covered by a position on [tickLower, tickUpper).
func BinRangeOfTicks(tickLower, tickUpper, spacing int64) (lower, upper int64) {
	return floorDiv(tickLower, spacing), floorDiv(tickUpper-1, spacing)
}

// TicksOfBinRange returns the tick bounds of a position covering bins lower..upper inclusive.
func TicksOfBinRange(lower, upper, spacing int64) (tickLower, tickUpper int64) {
	return lower * spacing, (upper + 1) * spacing
}

// CalculateBinBounds centres a range of 2*halfWidth+1 bins on activeBin.
// Bounds beyond the usable tick range are clamped to the nearest aligned tick.
func CalculateBinBounds(activeBin, halfWidth, spacing int64) (tickLower, tickUpper int64, err error) {
	if spacing <= 0 {
		return 0, 0, fmt.Errorf("tick spacing must be positive, got %d", spacing)
	}
	if halfWidth < 0 {
		return 0, 0, fmt.Errorf("half width must not be negative, got %d", halfWidth)
	}

	tickLower, tickUpper = TicksOfBinRange(activeBin-halfWidth, activeBin+halfWidth, spacing)

	minAligned := -floorDiv(MaxTick, spacing) * spacing
	maxAligned := floorDiv(MaxTick, spacing) * spacing
	if tickLower < minAligned {
		tickLower = minAligned
	}
	if tickUpper > maxAligned {
		tickUpper = maxAligned
	}

	if tickLower >= tickUpper {
		return 0, 0, fmt.Errorf("tickLower (%d) must be < tickUpper (%d) for active bin %d with half width %d", tickLower, tickUpper, activeBin, halfWidth)
	}
	return tickLower, tickUpper, nil
}

// BinPrice is the raw token1-per-token0 price at the lower edge of a bin.
func BinPrice(binID, spacing int64) (decimal.Decimal, error) {
	sqrtPrice, err := TickToSqrtPriceX96(int(binID * spacing))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(SqrtPriceToPrice(sqrtPrice).Text('e', 40))
}

// UIPrice converts a raw token1-per-token0 price into the price of token A in token B,
// shifting for decimals and inverting when A is the pool's token1.
func UIPrice(raw decimal.Decimal, decimals0, decimals1 uint8, aIsToken0 bool) decimal.Decimal {
	ui := raw.Shift(int32(decimals0) - int32(decimals1))
	if aIsToken0 {
		return ui
	}
	if ui.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).DivRound(ui, 36)
}
