package util

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinOfTick(t *testing.T) {
	cases := []struct {
		tick, spacing, bin int64
	}{
		{0, 200, 0},
		{199, 200, 0},
		{200, 200, 1},
		{-1, 200, -1},
		{-200, 200, -1},
		{-201, 200, -2},
		{-250513, 200, -1253},
	}
	for _, c := range cases {
		assert.Equal(t, c.bin, BinOfTick(c.tick, c.spacing), "tick %d", c.tick)
	}
}

func TestBinRangeRoundTrip(t *testing.T) {
	tl, tu := TicksOfBinRange(-1263, -1243, 200)
	assert.Equal(t, int64(-252600), tl)
	assert.Equal(t, int64(-248400), tu)

	lower, upper := BinRangeOfTicks(tl, tu, 200)
	assert.Equal(t, int64(-1263), lower)
	assert.Equal(t, int64(-1243), upper)
}

func TestCalculateBinBounds(t *testing.T) {
	tl, tu, err := CalculateBinBounds(-1253, 10, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(-252600), tl)
	assert.Equal(t, int64(-248400), tu)

	lower, upper := BinRangeOfTicks(tl, tu, 200)
	assert.Equal(t, int64(21), upper-lower+1)

	t.Run("single_bin", func(t *testing.T) {
		tl, tu, err := CalculateBinBounds(5, 0, 60)
		require.NoError(t, err)
		assert.Equal(t, int64(300), tl)
		assert.Equal(t, int64(360), tu)
	})

	t.Run("clamped_near_max_tick", func(t *testing.T) {
		_, tu, err := CalculateBinBounds(4436, 10, 200)
		require.NoError(t, err)
		assert.LessOrEqual(t, tu, int64(MaxTick))
		assert.Equal(t, int64(0), tu%200)
	})

	t.Run("invalid", func(t *testing.T) {
		_, _, err := CalculateBinBounds(0, 1, 0)
		assert.Error(t, err)
		_, _, err = CalculateBinBounds(0, -1, 60)
		assert.Error(t, err)
	})
}

func TestBinPrice(t *testing.T) {
	p, err := BinPrice(0, 200)
	require.NoError(t, err)
	assert.True(t, p.Sub(decimal.NewFromInt(1)).Abs().LessThan(decimal.RequireFromString("0.000000001")))

	// one bin of 200 ticks is 1.0001^200
	p, err = BinPrice(1, 200)
	require.NoError(t, err)
	f, _ := p.Float64()
	assert.InDelta(t, 1.0202003, f, 1e-6)
}

func TestUIPrice(t *testing.T) {
	// WAVAX(18)/USDC(6) pool: raw 1.25e-11 means 12.5 USDC per WAVAX
	raw := decimal.RequireFromString("0.0000000000125")

	assert.True(t, decimal.RequireFromString("12.5").Equal(UIPrice(raw, 18, 6, true)))

	inverted := UIPrice(raw, 18, 6, false)
	assert.True(t, decimal.RequireFromString("0.08").Equal(inverted))
}
