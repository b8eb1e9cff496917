package algebra

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AMMState is the result of safelyGetStateOfAMM, in ABI output order.
type AMMState struct {
	SqrtPrice       *big.Int
	Tick            int32
	LastFee         uint16
	PluginConfig    uint8
	ActiveLiquidity *big.Int
	NextTick        int32
	PreviousTick    int32
}

// MintParams matches INonfungiblePositionManager.MintParams.
type MintParams struct {
	Token0         common.Address `json:"token0"`
	Token1         common.Address `json:"token1"`
	Deployer       common.Address `json:"deployer"`
	TickLower      *big.Int       `json:"tickLower"`
	TickUpper      *big.Int       `json:"tickUpper"`
	Amount0Desired *big.Int       `json:"amount0Desired"`
	Amount1Desired *big.Int       `json:"amount1Desired"`
	Amount0Min     *big.Int       `json:"amount0Min"`
	Amount1Min     *big.Int       `json:"amount1Min"`
	Recipient      common.Address `json:"recipient"`
	Deadline       *big.Int       `json:"deadline"`
}

type DecreaseLiquidityParams struct {
	TokenId    *big.Int `json:"tokenId"`
	Liquidity  *big.Int `json:"liquidity"` // uint128
	Amount0Min *big.Int `json:"amount0Min"`
	Amount1Min *big.Int `json:"amount1Min"`
	Deadline   *big.Int `json:"deadline"`
}

type CollectParams struct {
	TokenId    *big.Int       `json:"tokenId"`
	Recipient  common.Address `json:"recipient"`
	Amount0Max *big.Int       `json:"amount0Max"` // uint128
	Amount1Max *big.Int       `json:"amount1Max"` // uint128
}

// PositionInfo is the positions(tokenId) result.
type PositionInfo struct {
	Nonce                    *big.Int       `json:"nonce"`
	Operator                 common.Address `json:"operator"`
	Token0                   common.Address `json:"token0"`
	Token1                   common.Address `json:"token1"`
	Deployer                 common.Address `json:"deployer"`
	TickLower                int32          `json:"tickLower"`
	TickUpper                int32          `json:"tickUpper"`
	Liquidity                *big.Int       `json:"liquidity"`
	FeeGrowthInside0LastX128 *big.Int       `json:"feeGrowthInside0LastX128"`
	FeeGrowthInside1LastX128 *big.Int       `json:"feeGrowthInside1LastX128"`
	TokensOwed0              *big.Int       `json:"tokensOwed0"`
	TokensOwed1              *big.Int       `json:"tokensOwed1"`
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
