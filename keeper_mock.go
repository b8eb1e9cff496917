package binkeeper

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	contracttypes "binkeeper/blockchain/pkg/types"
	md "binkeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type BalanceReaderMock struct {
	native   decimal.Decimal
	balances map[common.Address]*md.Balance
	// swapped replaces balances once a swap is confirmed
	swapped map[common.Address]*md.Balance
	err     error
}

func (m *BalanceReaderMock) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	return m.native, nil
}

func (m *BalanceReaderMock) TokenBalance(ctx context.Context, token common.Address) (*md.Balance, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.balances[token], nil
}

type PoolAdapterMock struct {
	active    md.ActiveBin
	rate      decimal.Decimal
	positions []md.Position
	ranges    map[md.PositionID]md.BinRange
	minted    md.PositionID

	positionsErr error
	activeErr    error
	rangeErr     error
	createErr    error
	removeErr    error
	gone         bool

	calls      int
	creates    []md.CreatePositionRequest
	removes    []md.RemoveOptions
	rangeCalls int
}

func (m *PoolAdapterMock) ActiveBin(ctx context.Context) (md.ActiveBin, error) {
	m.calls++
	if m.activeErr != nil {
		return md.ActiveBin{}, m.activeErr
	}
	return m.active, nil
}

func (m *PoolAdapterMock) PriceFromBin(price decimal.Decimal) decimal.Decimal {
	if !m.rate.IsZero() {
		return m.rate
	}
	return price
}

func (m *PoolAdapterMock) PositionsForWallet(ctx context.Context) ([]md.Position, error) {
	m.calls++
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return m.positions, nil
}

func (m *PoolAdapterMock) BinRangeOf(ctx context.Context, id md.PositionID) (md.BinRange, error) {
	m.calls++
	m.rangeCalls++
	if m.rangeErr != nil {
		return md.BinRange{}, m.rangeErr
	}
	r, ok := m.ranges[id]
	if !ok {
		return md.BinRange{}, md.ErrPositionNotFound
	}
	return r, nil
}

func (m *PoolAdapterMock) CreatePosition(ctx context.Context, req md.CreatePositionRequest) ([]md.TxRequest, error) {
	m.calls++
	m.creates = append(m.creates, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.ranges != nil {
		m.ranges[m.minted] = md.BinRange{Lower: req.ActiveBinID - req.HalfWidth, Upper: req.ActiveBinID + req.HalfWidth}
	}
	return []md.TxRequest{{Label: "approve"}, {Label: "create_position"}}, nil
}

func (m *PoolAdapterMock) RemovePosition(ctx context.Context, id md.PositionID, opts md.RemoveOptions) ([]md.TxRequest, error) {
	m.calls++
	m.removes = append(m.removes, opts)
	if m.removeErr != nil {
		return nil, m.removeErr
	}
	if m.gone {
		return nil, nil
	}
	return []md.TxRequest{{Label: "remove_position"}}, nil
}

func (m *PoolAdapterMock) MintedPosition(receipt *contracttypes.TxReceipt) (md.PositionID, error) {
	return m.minted, nil
}

type SwapServiceMock struct {
	quoteErr error
	buildErr error
	quotes   []*big.Int
	builds   []*md.Quote
}

func (m *SwapServiceMock) Quote(ctx context.Context, input, output common.Address, amount *big.Int) (*md.Quote, error) {
	m.quotes = append(m.quotes, amount)
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	return &md.Quote{InputToken: input, OutputToken: output, InAmount: amount, OutAmount: big.NewInt(int64(len(m.quotes))), Raw: []byte("{}")}, nil
}

func (m *SwapServiceMock) BuildSwap(ctx context.Context, quote *md.Quote) ([]md.TxRequest, error) {
	m.builds = append(m.builds, quote)
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	return []md.TxRequest{{Label: "swap"}}, nil
}

type TxSubmitterMock struct {
	err      error
	balances *BalanceReaderMock
	sent     []string

	// lost lands the next n txs of a label but fails their receipt wait
	lost map[string]int
	// rejects fails the next n txs of a label before they land
	rejects map[string]int
	// onLand runs for every tx that reaches the chain
	onLand func(label string)
}

func (m *TxSubmitterMock) SendAndConfirm(ctx context.Context, req md.TxRequest) (*contracttypes.TxReceipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.rejects[req.Label] > 0 {
		m.rejects[req.Label]--
		return nil, errors.Join(md.ErrTxRejected, errors.New("slippage exceeded"))
	}

	m.sent = append(m.sent, req.Label)
	if req.Label == "swap" && m.balances != nil && m.balances.swapped != nil {
		m.balances.balances = m.balances.swapped
	}
	if m.onLand != nil {
		m.onLand(req.Label)
	}

	if m.lost[req.Label] > 0 {
		m.lost[req.Label]--
		return nil, errors.Join(md.ErrNetwork, errors.New("receipt wait timed out"))
	}
	return &contracttypes.TxReceipt{
		Status: "0x1",
		TxHash: common.BigToHash(big.NewInt(int64(len(m.sent)))),
	}, nil
}

type StorageMock struct {
	mu    sync.Mutex
	acts  []*md.Activity
	cache map[string]interface{}
	err   error
}

func (m *StorageMock) SaveActivity(act *md.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.acts = append(m.acts, act)
	return nil
}

func (m *StorageMock) SetCache(key string, value interface{}, exp time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache == nil {
		m.cache = make(map[string]interface{})
	}
	m.cache[key] = value
}

func (m *StorageMock) kinds() []md.ActivityKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]md.ActivityKind, 0, len(m.acts))
	for _, a := range m.acts {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}
