package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Balance is one asset held by the wallet. Raw is in the asset's smallest unit.
type Balance struct {
	Raw      *big.Int        `json:"raw"`
	UI       decimal.Decimal `json:"ui"`
	Decimals uint8           `json:"decimals"`
}

func NewBalance(raw *big.Int, decimals uint8) *Balance {
	if raw == nil {
		raw = big.NewInt(0)
	}
	return &Balance{
		Raw:      new(big.Int).Set(raw),
		UI:       decimal.NewFromBigInt(raw, -int32(decimals)),
		Decimals: decimals,
	}
}

// UIAmount treats an absent balance as zero.
func (b *Balance) UIAmount() decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	return b.UI
}

// RawAmount treats an absent balance as zero.
func (b *Balance) RawAmount() *big.Int {
	if b == nil || b.Raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b.Raw)
}

// ActiveBin is the pool's current price bucket.
type ActiveBin struct {
	BinID int64           `json:"binId"`
	Price decimal.Decimal `json:"price"`
}

// PositionID is opaque to the keeper. On the Algebra pool it is the NFT token id.
type PositionID string

func (id PositionID) String() string {
	return string(id)
}

type Position struct {
	ID         PositionID `json:"id"`
	LowerBinID int64      `json:"lowerBinId"`
	UpperBinID int64      `json:"upperBinId"`
}

func (p Position) Range() BinRange {
	return BinRange{Lower: p.LowerBinID, Upper: p.UpperBinID}
}

// BinRange is inclusive on both ends.
type BinRange struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

func (r BinRange) Contains(binID int64) bool {
	return r.Lower <= binID && binID <= r.Upper
}

func (r BinRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Lower, r.Upper)
}

type Direction int

const (
	None Direction = iota
	AtoB
	BtoA
)

func (d Direction) String() string {
	switch d {
	case AtoB:
		return "AtoB"
	case BtoA:
		return "BtoA"
	default:
		return "None"
	}
}

// RebalancePlan amount is in the smallest unit of the token being sold.
type RebalancePlan struct {
	Direction Direction `json:"direction"`
	Amount    *big.Int  `json:"amount"`
}

func (p RebalancePlan) IsNone() bool {
	return p.Direction == None || p.Amount == nil || p.Amount.Sign() <= 0
}

// CreatePositionRequest places liquidity on [active-HalfWidth, active+HalfWidth].
type CreatePositionRequest struct {
	ActiveBinID int64
	HalfWidth   int64
	AmountA     *big.Int
	AmountB     *big.Int
	SlippageBps uint32
}

type RemoveOptions struct {
	Bps           uint32
	ClaimAndClose bool
}

// TxRequest is an unsigned contract call for the chain client to sign and broadcast.
type TxRequest struct {
	Label string         `json:"label"`
	To    common.Address `json:"to"`
	Data  []byte         `json:"-"`
	Value *big.Int       `json:"value,omitempty"`
	Gas   uint64         `json:"gas,omitempty"`
}

// Quote is returned by the swap service and handed back to it unchanged when building the swap.
type Quote struct {
	InputToken  common.Address `json:"inputMint"`
	OutputToken common.Address `json:"outputMint"`
	InAmount    *big.Int       `json:"-"`
	OutAmount   *big.Int       `json:"-"`
	SlippageBps uint32         `json:"slippageBps"`
	Raw         []byte         `json:"-"`
}
