package algebra

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"binkeeper/blockchain/pkg/abis"
	contracttypes "binkeeper/blockchain/pkg/types"
	"binkeeper/blockchain/pkg/util"
	"binkeeper/internal/clock"
	"binkeeper/internal/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr = common.HexToAddress("0x41100C6D2c6920B10d12Cd8D59c8A9AA2eF56fC7")
	npmAddr  = common.HexToAddress("0x3fED017EC0f5517Cdf2E8a9a4156c64d74252146")
	wavax    = common.HexToAddress("0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7")
	usdc     = common.HexToAddress("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E")
	wallet   = common.HexToAddress("0x1682f533c2359834167e5e4e108c1bfb69920e78")
	other    = common.HexToAddress("0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7")
)

type onchainPosition struct {
	token1    common.Address
	tickLower int64
	tickUpper int64
	liquidity *big.Int
}

// chainMock serves the pool and position manager reads from in-memory state.
type chainMock struct {
	tick      int64
	spacing   int64
	owned     []int64
	positions map[int64]onchainPosition
	callErr   error

	approvals []common.Address
}

func (m *chainMock) Address() common.Address { return wallet }

func (m *chainMock) Caller() ethereum.ContractCaller { return m }

func (m *chainMock) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if token == usdc {
		return 6, nil
	}
	return 18, nil
}

func (m *chainMock) EnsureApproval(ctx context.Context, token, spender common.Address, amount *big.Int) ([]model.TxRequest, error) {
	if amount.Sign() == 0 {
		return nil, nil
	}
	m.approvals = append(m.approvals, token)
	return []model.TxRequest{{Label: "approve", To: token}}, nil
}

func (m *chainMock) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.callErr != nil {
		return nil, m.callErr
	}

	var contract *abi.ABI
	switch *call.To {
	case poolAddr:
		contract, _ = abis.AlgebraPool()
	case npmAddr:
		contract, _ = abis.PositionManager()
	default:
		return nil, errors.New("unknown contract")
	}
	method, err := contract.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "token0":
		return method.Outputs.Pack(wavax)
	case "token1":
		return method.Outputs.Pack(usdc)
	case "tickSpacing":
		return method.Outputs.Pack(big.NewInt(m.spacing))
	case "safelyGetStateOfAMM":
		sqrtPrice, err := util.TickToSqrtPriceX96(int(m.tick))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(sqrtPrice, big.NewInt(m.tick), uint16(500), uint8(0),
			big.NewInt(1_000_000), big.NewInt(m.tick+m.spacing), big.NewInt(m.tick-m.spacing))
	case "balanceOf":
		return method.Outputs.Pack(big.NewInt(int64(len(m.owned))))
	case "tokenOfOwnerByIndex":
		return method.Outputs.Pack(big.NewInt(m.owned[args[1].(*big.Int).Int64()]))
	case "positions":
		pos, ok := m.positions[args[0].(*big.Int).Int64()]
		if !ok {
			return nil, errors.New("execution reverted: Invalid token ID")
		}
		return method.Outputs.Pack(big.NewInt(0), common.Address{}, wavax, pos.token1, common.Address{},
			big.NewInt(pos.tickLower), big.NewInt(pos.tickUpper), pos.liquidity,
			big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0))
	}
	return nil, errors.New("unexpected call " + method.Name)
}

func newTestPool(t *testing.T, m *chainMock, tokenA, tokenB common.Address) *Pool {
	p, err := New(context.Background(), m, Config{
		Pool:   poolAddr,
		NPM:    npmAddr,
		TokenA: tokenA,
		TokenB: tokenB,
		Clock:  clock.NewFake(time.Unix(1_700_000_000, 0)),
	})
	require.NoError(t, err)
	return p
}

func decodeCall(t *testing.T, data []byte) (*abi.Method, []interface{}) {
	npm, err := abis.PositionManager()
	require.NoError(t, err)
	method, err := npm.MethodById(data[:4])
	require.NoError(t, err)
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return method, args
}

func TestNew(t *testing.T) {
	m := &chainMock{spacing: 60}

	p := newTestPool(t, m, wavax, usdc)
	assert.Equal(t, int64(60), p.TickSpacing())
	assert.True(t, p.aIsToken0)

	p = newTestPool(t, m, usdc, wavax)
	assert.False(t, p.aIsToken0)

	_, err := New(context.Background(), m, Config{Pool: poolAddr, NPM: npmAddr, TokenA: wavax, TokenB: other})
	assert.Error(t, err)

	_, err = New(context.Background(), &chainMock{spacing: 60, callErr: errors.New("connection refused")},
		Config{Pool: poolAddr, NPM: npmAddr, TokenA: wavax, TokenB: usdc})
	assert.ErrorIs(t, err, model.ErrNetwork)
}

func TestActiveBin(t *testing.T) {
	m := &chainMock{spacing: 60, tick: -125}
	p := newTestPool(t, m, wavax, usdc)

	active, err := p.ActiveBin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(-3), active.BinID)

	expected, err := util.BinPrice(-3, 60)
	require.NoError(t, err)
	assert.True(t, expected.Equal(active.Price))
	assert.True(t, active.Price.LessThan(p.PriceFromBin(active.Price)))
}

func TestPositionsForWallet(t *testing.T) {
	m := &chainMock{
		spacing: 60,
		owned:   []int64{11, 12, 13, 14},
		positions: map[int64]onchainPosition{
			11: {token1: usdc, tickLower: -600, tickUpper: 660, liquidity: big.NewInt(500)},
			12: {token1: other, tickLower: -600, tickUpper: 660, liquidity: big.NewInt(500)},
			13: {token1: usdc, tickLower: 0, tickUpper: 60, liquidity: big.NewInt(0)},
			14: {token1: usdc, tickLower: 120, tickUpper: 300, liquidity: big.NewInt(7)},
		},
	}
	p := newTestPool(t, m, wavax, usdc)

	positions, err := p.PositionsForWallet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Position{
		{ID: "11", LowerBinID: -10, UpperBinID: 10},
		{ID: "14", LowerBinID: 2, UpperBinID: 4},
	}, positions)
}

func TestBinRangeOf(t *testing.T) {
	m := &chainMock{
		spacing:   60,
		positions: map[int64]onchainPosition{11: {token1: usdc, tickLower: -600, tickUpper: 660, liquidity: big.NewInt(1)}},
	}
	p := newTestPool(t, m, wavax, usdc)

	r, err := p.BinRangeOf(context.Background(), "11")
	require.NoError(t, err)
	assert.Equal(t, model.BinRange{Lower: -10, Upper: 10}, r)

	_, err = p.BinRangeOf(context.Background(), "99")
	assert.ErrorIs(t, err, model.ErrPositionNotFound)

	_, err = p.BinRangeOf(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, model.ErrPositionNotFound)
}

func TestCreatePosition(t *testing.T) {
	m := &chainMock{spacing: 60, tick: 205}
	p := newTestPool(t, m, usdc, wavax)

	// 250 USDC against 10 WAVAX
	amountA := big.NewInt(250_000_000)
	amountB, _ := new(big.Int).SetString("10000000000000000000", 10)

	txs, err := p.CreatePosition(context.Background(), model.CreatePositionRequest{
		ActiveBinID: 3,
		HalfWidth:   10,
		AmountA:     amountA,
		AmountB:     amountB,
		SlippageBps: 200,
	})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []common.Address{wavax, usdc}, m.approvals)
	assert.Equal(t, "approve", txs[0].Label)
	assert.Equal(t, "create_position", txs[2].Label)
	assert.Equal(t, npmAddr, txs[2].To)

	method, args := decodeCall(t, txs[2].Data)
	assert.Equal(t, "mint", method.Name)
	params := *abi.ConvertType(args[0], new(MintParams)).(*MintParams)

	assert.Equal(t, wavax, params.Token0)
	assert.Equal(t, usdc, params.Token1)
	assert.Equal(t, wallet, params.Recipient)
	assert.Equal(t, int64(-420), params.TickLower.Int64())
	assert.Equal(t, int64(840), params.TickUpper.Int64())
	assert.Equal(t, amountB.String(), params.Amount0Desired.String())
	assert.Equal(t, amountA.String(), params.Amount1Desired.String())
	assert.True(t, params.Amount0Min.Cmp(params.Amount0Desired) <= 0)
	assert.True(t, params.Amount1Min.Cmp(params.Amount1Desired) <= 0)
	assert.Equal(t, int64(1_700_000_000+20*60), params.Deadline.Int64())

	t.Run("empty", func(t *testing.T) {
		_, err := p.CreatePosition(context.Background(), model.CreatePositionRequest{ActiveBinID: 3, HalfWidth: 10})
		assert.Error(t, err)
	})
}

func TestRemovePosition(t *testing.T) {
	m := &chainMock{
		spacing:   60,
		positions: map[int64]onchainPosition{11: {token1: usdc, tickLower: -600, tickUpper: 660, liquidity: big.NewInt(1000)}},
	}
	p := newTestPool(t, m, wavax, usdc)

	t.Run("close", func(t *testing.T) {
		txs, err := p.RemovePosition(context.Background(), "11", model.RemoveOptions{Bps: 10000, ClaimAndClose: true})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "remove_position", txs[0].Label)

		method, args := decodeCall(t, txs[0].Data)
		require.Equal(t, "multicall", method.Name)
		calls := args[0].([][]byte)
		require.Len(t, calls, 3)

		names := make([]string, 0, len(calls))
		for _, c := range calls {
			inner, innerArgs := decodeCall(t, c)
			names = append(names, inner.Name)
			if inner.Name == "decreaseLiquidity" {
				params := *abi.ConvertType(innerArgs[0], new(DecreaseLiquidityParams)).(*DecreaseLiquidityParams)
				assert.Equal(t, "1000", params.Liquidity.String())
				assert.Equal(t, "11", params.TokenId.String())
			}
		}
		assert.Equal(t, []string{"decreaseLiquidity", "collect", "burn"}, names)
	})

	t.Run("partial", func(t *testing.T) {
		txs, err := p.RemovePosition(context.Background(), "11", model.RemoveOptions{Bps: 5000, ClaimAndClose: true})
		require.NoError(t, err)
		require.Len(t, txs, 1)

		_, args := decodeCall(t, txs[0].Data)
		calls := args[0].([][]byte)
		require.Len(t, calls, 2)
		_, innerArgs := decodeCall(t, calls[0])
		params := *abi.ConvertType(innerArgs[0], new(DecreaseLiquidityParams)).(*DecreaseLiquidityParams)
		assert.Equal(t, "500", params.Liquidity.String())
	})

	t.Run("gone", func(t *testing.T) {
		txs, err := p.RemovePosition(context.Background(), "99", model.RemoveOptions{Bps: 10000, ClaimAndClose: true})
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	t.Run("network", func(t *testing.T) {
		m.callErr = errors.New("i/o timeout")
		defer func() { m.callErr = nil }()
		_, err := p.RemovePosition(context.Background(), "11", model.RemoveOptions{Bps: 10000})
		assert.ErrorIs(t, err, model.ErrNetwork)
	})
}

func TestMintedPosition(t *testing.T) {
	m := &chainMock{spacing: 60}
	p := newTestPool(t, m, wavax, usdc)

	npm, err := abis.PositionManager()
	require.NoError(t, err)
	transfer := npm.Events["Transfer"].ID

	receipt := &contracttypes.TxReceipt{
		Status: "0x1",
		Logs: []*types.Log{
			{
				// approval side effect on another contract
				Address: usdc,
				Topics:  []common.Hash{transfer, common.BytesToHash(wallet.Bytes()), common.BytesToHash(npmAddr.Bytes())},
			},
			{
				Address: npmAddr,
				Topics: []common.Hash{
					transfer,
					common.Hash{},
					common.BytesToHash(wallet.Bytes()),
					common.BigToHash(big.NewInt(4242)),
				},
			},
		},
	}

	id, err := p.MintedPosition(receipt)
	require.NoError(t, err)
	assert.Equal(t, model.PositionID("4242"), id)

	_, err = p.MintedPosition(&contracttypes.TxReceipt{Status: "0x1"})
	assert.Error(t, err)
}
