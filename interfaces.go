package binkeeper

import (
	"context"
	"math/big"
	"time"

	contracttypes "binkeeper/blockchain/pkg/types"
	m "binkeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type BalanceReader interface {
	NativeBalance(ctx context.Context) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, token common.Address) (*m.Balance, error)
}

type PoolAdapter interface {
	ActiveBin(ctx context.Context) (m.ActiveBin, error)
	PriceFromBin(price decimal.Decimal) decimal.Decimal
	PositionsForWallet(ctx context.Context) ([]m.Position, error)
	BinRangeOf(ctx context.Context, id m.PositionID) (m.BinRange, error)
	CreatePosition(ctx context.Context, req m.CreatePositionRequest) ([]m.TxRequest, error)
	RemovePosition(ctx context.Context, id m.PositionID, opts m.RemoveOptions) ([]m.TxRequest, error)
	MintedPosition(receipt *contracttypes.TxReceipt) (m.PositionID, error)
}

type SwapService interface {
	Quote(ctx context.Context, input, output common.Address, amount *big.Int) (*m.Quote, error)
	BuildSwap(ctx context.Context, quote *m.Quote) ([]m.TxRequest, error)
}

type TxSubmitter interface {
	SendAndConfirm(ctx context.Context, req m.TxRequest) (*contracttypes.TxReceipt, error)
}

// Storage is the write side of the activity journal and status cache.
type Storage interface {
	SaveActivity(act *m.Activity) error
	SetCache(key string, value interface{}, exp time.Duration)
}
