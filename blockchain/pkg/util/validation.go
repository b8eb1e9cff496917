package util

import (
	"fmt"
	"math/big"

	"binkeeper/blockchain/pkg/types"
)

// CalculateMinAmount applies a slippage tolerance: amountMin = amountDesired * (10000 - bps) / 10000
func CalculateMinAmount(amountDesired *big.Int, slippageBps uint32) *big.Int {
	if amountDesired == nil || slippageBps >= 10000 {
		return big.NewInt(0)
	}

	result := new(big.Int).Mul(amountDesired, big.NewInt(int64(10000-slippageBps)))
	return result.Div(result, big.NewInt(10000))
}

// ApplyBps returns amount * bps / 10000.
func ApplyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	if bps >= 10000 {
		return new(big.Int).Set(amount)
	}
	result := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return result.Div(result, big.NewInt(10000))
}

// ExtractGasCost returns GasUsed * EffectiveGasPrice in wei.
func ExtractGasCost(receipt *types.TxReceipt) (*big.Int, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt is nil")
	}

	gasUsed := new(big.Int)
	if _, ok := gasUsed.SetString(receipt.GasUsed, 0); !ok {
		return nil, fmt.Errorf("failed to parse GasUsed: %s", receipt.GasUsed)
	}

	gasPrice := new(big.Int)
	if _, ok := gasPrice.SetString(receipt.EffectiveGasPrice, 0); !ok {
		return nil, fmt.Errorf("failed to parse EffectiveGasPrice: %s", receipt.EffectiveGasPrice)
	}

	return new(big.Int).Mul(gasUsed, gasPrice), nil
}
