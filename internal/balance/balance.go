// Package balance reads the wallet holdings the keeper decides on.
package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"binkeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const nativeDecimals = 18

type ChainReader interface {
	NativeBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context, token common.Address) (*big.Int, uint8, error)
}

type Tracker struct {
	chain ChainReader
}

func NewTracker(chain ChainReader) *Tracker {
	return &Tracker{chain: chain}
}

// NativeBalance is the gas balance in whole native units.
func (t *Tracker) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	wei, err := t.chain.NativeBalance(ctx)
	if err != nil {
		return decimal.Zero, networkError("native balance", err)
	}
	return decimal.NewFromBigInt(wei, -nativeDecimals), nil
}

// TokenBalance returns nil when the wallet holds none of token.
func (t *Tracker) TokenBalance(ctx context.Context, token common.Address) (*model.Balance, error) {
	raw, decimals, err := t.chain.TokenBalance(ctx, token)
	if err != nil {
		return nil, networkError("balance of "+token.Hex(), err)
	}
	if raw == nil || raw.Sign() == 0 {
		return nil, nil
	}
	return model.NewBalance(raw, decimals), nil
}

func networkError(what string, err error) error {
	if errors.Is(err, model.ErrNetwork) {
		return fmt.Errorf("failed to read %s: %w", what, err)
	}
	return errors.Join(model.ErrNetwork, fmt.Errorf("failed to read %s: %w", what, err))
}
