package util

import (
	"math/big"
	"testing"

	"binkeeper/blockchain/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateMinAmount(t *testing.T) {
	assert.Equal(t, "9800", CalculateMinAmount(big.NewInt(10000), 200).String())
	assert.Equal(t, "0", CalculateMinAmount(nil, 200).String())
	assert.Equal(t, "0", CalculateMinAmount(big.NewInt(10000), 10000).String())
}

func TestApplyBps(t *testing.T) {
	assert.Equal(t, "5000", ApplyBps(big.NewInt(10000), 5000).String())
	assert.Equal(t, "10000", ApplyBps(big.NewInt(10000), 10000).String())
}

func TestExtractGasCost(t *testing.T) {
	cost, err := ExtractGasCost(&types.TxReceipt{GasUsed: "0x5208", EffectiveGasPrice: "0x3b9aca00"})
	require.NoError(t, err)
	assert.Equal(t, "21000000000000", cost.String())

	_, err = ExtractGasCost(&types.TxReceipt{GasUsed: "zz", EffectiveGasPrice: "0x1"})
	assert.Error(t, err)

	_, err = ExtractGasCost(nil)
	assert.Error(t, err)
}
