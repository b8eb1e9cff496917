// Package algebra adapts an Algebra Integral concentrated-liquidity pool and its
// NonfungiblePositionManager to the keeper's bin-based view. One bin is one tick-spacing bucket.
package algebra

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"binkeeper/blockchain/pkg/abis"
	"binkeeper/blockchain/pkg/contractclient"
	contracttypes "binkeeper/blockchain/pkg/types"
	"binkeeper/blockchain/pkg/util"
	"binkeeper/internal/clock"
	"binkeeper/internal/logger"
	"binkeeper/internal/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Chain is what the adapter needs from the chain client.
type Chain interface {
	Address() common.Address
	Caller() ethereum.ContractCaller
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	EnsureApproval(ctx context.Context, token, spender common.Address, amount *big.Int) ([]model.TxRequest, error)
}

type Config struct {
	Pool     common.Address
	NPM      common.Address
	Deployer common.Address // zero for pools from the default deployer
	TokenA   common.Address
	TokenB   common.Address
	Deadline time.Duration
	Clock    clock.Clock
}

type Pool struct {
	chain Chain
	pool  *contractclient.ContractClient
	npm   *contractclient.ContractClient
	conf  Config

	token0    common.Address
	token1    common.Address
	aIsToken0 bool
	spacing   int64
	decimals0 uint8
	decimals1 uint8

	lg zerolog.Logger
}

// New opens a pool session, reading the pool's tokens and tick spacing once.
func New(ctx context.Context, chain Chain, conf Config) (*Pool, error) {
	poolABI, err := abis.AlgebraPool()
	if err != nil {
		return nil, err
	}
	npmABI, err := abis.PositionManager()
	if err != nil {
		return nil, err
	}
	if conf.Deadline <= 0 {
		conf.Deadline = 20 * time.Minute
	}
	if conf.Clock == nil {
		conf.Clock = clock.Real{}
	}

	p := &Pool{
		chain: chain,
		pool:  contractclient.NewContractClient(chain.Caller(), conf.Pool, poolABI),
		npm:   contractclient.NewContractClient(chain.Caller(), conf.NPM, npmABI),
		conf:  conf,
		lg:    logger.New("AlgebraPool"),
	}

	if p.token0, err = p.address(ctx, "token0"); err != nil {
		return nil, err
	}
	if p.token1, err = p.address(ctx, "token1"); err != nil {
		return nil, err
	}

	switch {
	case conf.TokenA == p.token0 && conf.TokenB == p.token1:
		p.aIsToken0 = true
	case conf.TokenA == p.token1 && conf.TokenB == p.token0:
		p.aIsToken0 = false
	default:
		return nil, fmt.Errorf("pool %s trades %s/%s, not the configured %s/%s",
			conf.Pool.Hex(), p.token0.Hex(), p.token1.Hex(), conf.TokenA.Hex(), conf.TokenB.Hex())
	}

	rtn, err := p.pool.Call(ctx, nil, "tickSpacing")
	if err != nil {
		return nil, fmt.Errorf("failed to get tick spacing: %w", err)
	}
	p.spacing = rtn[0].(*big.Int).Int64()
	if p.spacing <= 0 {
		return nil, fmt.Errorf("invalid tick spacing %d", p.spacing)
	}

	if p.decimals0, err = chain.Decimals(ctx, p.token0); err != nil {
		return nil, err
	}
	if p.decimals1, err = chain.Decimals(ctx, p.token1); err != nil {
		return nil, err
	}

	p.lg.Info().
		Str("pool", conf.Pool.Hex()).
		Int64("tickSpacing", p.spacing).
		Bool("aIsToken0", p.aIsToken0).
		Msg("pool session opened")
	return p, nil
}

func (p *Pool) address(ctx context.Context, method string) (common.Address, error) {
	rtn, err := p.pool.Call(ctx, nil, method)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get %s: %w", method, err)
	}
	return rtn[0].(common.Address), nil
}

func (p *Pool) TickSpacing() int64 {
	return p.spacing
}

// State reads the pool's current price and tick.
func (p *Pool) State(ctx context.Context) (*AMMState, error) {
	result, err := p.pool.Call(ctx, nil, "safelyGetStateOfAMM")
	if err != nil {
		return nil, fmt.Errorf("failed to call safelyGetStateOfAMM: %w", err)
	}
	if len(result) != 7 {
		return nil, fmt.Errorf("unexpected result length: expected 7, got %d", len(result))
	}

	return &AMMState{
		SqrtPrice:       result[0].(*big.Int),
		Tick:            int32(result[1].(*big.Int).Int64()),
		LastFee:         result[2].(uint16),
		PluginConfig:    result[3].(uint8),
		ActiveLiquidity: result[4].(*big.Int),
		NextTick:        int32(result[5].(*big.Int).Int64()),
		PreviousTick:    int32(result[6].(*big.Int).Int64()),
	}, nil
}

// ActiveBin reports the bin holding the current tick and its raw token1-per-token0 price.
func (p *Pool) ActiveBin(ctx context.Context) (model.ActiveBin, error) {
	state, err := p.State(ctx)
	if err != nil {
		return model.ActiveBin{}, err
	}

	binID := util.BinOfTick(int64(state.Tick), p.spacing)
	price, err := util.BinPrice(binID, p.spacing)
	if err != nil {
		return model.ActiveBin{}, err
	}
	return model.ActiveBin{BinID: binID, Price: price}, nil
}

// PriceFromBin converts a raw bin price into token A priced in token B.
func (p *Pool) PriceFromBin(price decimal.Decimal) decimal.Decimal {
	return util.UIPrice(price, p.decimals0, p.decimals1, p.aIsToken0)
}

func (p *Pool) tokenAmounts(amountA, amountB *big.Int) (amount0, amount1 *big.Int) {
	if amountA == nil {
		amountA = big.NewInt(0)
	}
	if amountB == nil {
		amountB = big.NewInt(0)
	}
	if p.aIsToken0 {
		return amountA, amountB
	}
	return amountB, amountA
}

func (p *Pool) deadline() *big.Int {
	return big.NewInt(p.conf.Clock.Now().Add(p.conf.Deadline).Unix())
}

// CreatePosition builds the mint for bins [active-halfWidth, active+halfWidth], preceded by
// any approvals the position manager still needs.
func (p *Pool) CreatePosition(ctx context.Context, req model.CreatePositionRequest) ([]model.TxRequest, error) {
	amount0Max, amount1Max := p.tokenAmounts(req.AmountA, req.AmountB)
	if amount0Max.Sign() <= 0 && amount1Max.Sign() <= 0 {
		return nil, errors.New("nothing to deposit: both amounts are zero")
	}

	tickLower, tickUpper, err := util.CalculateBinBounds(req.ActiveBinID, req.HalfWidth, p.spacing)
	if err != nil {
		return nil, err
	}

	state, err := p.State(ctx)
	if err != nil {
		return nil, err
	}
	if bin := util.BinOfTick(int64(state.Tick), p.spacing); bin != req.ActiveBinID {
		p.lg.Warn().Int64("requested", req.ActiveBinID).Int64("current", bin).Msg("active bin moved since the request")
	}

	// expected usage at the current price, floored by slippage for the mins
	amount0, amount1, liquidity, err := util.ComputeAmounts(state.SqrtPrice, int(state.Tick), int(tickLower), int(tickUpper), amount0Max, amount1Max)
	if err != nil {
		return nil, err
	}
	if liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("amounts %s/%s give no liquidity on ticks [%d, %d)", amount0Max, amount1Max, tickLower, tickUpper)
	}

	var txs []model.TxRequest
	for _, approval := range []struct {
		token  common.Address
		amount *big.Int
	}{
		{p.token0, amount0Max},
		{p.token1, amount1Max},
	} {
		reqs, err := p.chain.EnsureApproval(ctx, approval.token, p.conf.NPM, approval.amount)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare approval of %s: %w", approval.token.Hex(), err)
		}
		txs = append(txs, reqs...)
	}

	mint, err := p.npm.Request("create_position", nil, "mint", &MintParams{
		Token0:         p.token0,
		Token1:         p.token1,
		Deployer:       p.conf.Deployer,
		TickLower:      big.NewInt(tickLower),
		TickUpper:      big.NewInt(tickUpper),
		Amount0Desired: amount0Max,
		Amount1Desired: amount1Max,
		Amount0Min:     util.CalculateMinAmount(amount0, req.SlippageBps),
		Amount1Min:     util.CalculateMinAmount(amount1, req.SlippageBps),
		Recipient:      p.chain.Address(),
		Deadline:       p.deadline(),
	})
	if err != nil {
		return nil, err
	}

	ev := p.lg.Debug().
		Int64("activeBin", req.ActiveBinID).
		Int64("tickLower", tickLower).
		Int64("tickUpper", tickUpper).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String())
	if decoded, err := p.npm.DecodeTransaction(mint.Data); err == nil {
		ev = ev.Str("call", decoded.MethodSignature)
	}
	ev.Msg("mint prepared")

	return append(txs, mint), nil
}

// MintedPosition finds the position minted to the wallet in a create receipt.
func (p *Pool) MintedPosition(receipt *contracttypes.TxReceipt) (model.PositionID, error) {
	events, err := p.npm.ParseReceipt(receipt)
	if err != nil {
		return "", fmt.Errorf("failed to parse mint receipt: %w", err)
	}

	for _, event := range events {
		if event.EventName != "Transfer" {
			continue
		}
		from, _ := event.Parameter["from"].(common.Address)
		to, _ := event.Parameter["to"].(common.Address)
		if from != (common.Address{}) || to != p.chain.Address() {
			continue
		}
		if tokenID, ok := event.Parameter["tokenId"].(*big.Int); ok {
			return model.PositionID(tokenID.String()), nil
		}
	}
	return "", errors.New("no position minted in receipt")
}

func (p *Pool) positionInfo(ctx context.Context, tokenID *big.Int) (*PositionInfo, error) {
	rtn, err := p.npm.Call(ctx, nil, "positions", tokenID)
	if err != nil {
		if errors.Is(err, model.ErrTxRejected) {
			return nil, errors.Join(model.ErrPositionNotFound, fmt.Errorf("position %s", tokenID))
		}
		return nil, fmt.Errorf("failed to get position %s: %w", tokenID, err)
	}
	if len(rtn) != 12 {
		return nil, fmt.Errorf("unexpected result length: expected 12, got %d", len(rtn))
	}

	return &PositionInfo{
		Nonce:                    rtn[0].(*big.Int),
		Operator:                 rtn[1].(common.Address),
		Token0:                   rtn[2].(common.Address),
		Token1:                   rtn[3].(common.Address),
		Deployer:                 rtn[4].(common.Address),
		TickLower:                int32(rtn[5].(*big.Int).Int64()),
		TickUpper:                int32(rtn[6].(*big.Int).Int64()),
		Liquidity:                rtn[7].(*big.Int),
		FeeGrowthInside0LastX128: rtn[8].(*big.Int),
		FeeGrowthInside1LastX128: rtn[9].(*big.Int),
		TokensOwed0:              rtn[10].(*big.Int),
		TokensOwed1:              rtn[11].(*big.Int),
	}, nil
}

func (p *Pool) belongs(info *PositionInfo) bool {
	if info.Token0 != p.token0 || info.Token1 != p.token1 {
		return false
	}
	return p.conf.Deployer == (common.Address{}) || info.Deployer == p.conf.Deployer
}

func parseTokenID(id model.PositionID) (*big.Int, error) {
	tokenID, ok := new(big.Int).SetString(id.String(), 10)
	if !ok || tokenID.Sign() < 0 {
		return nil, errors.Join(model.ErrPositionNotFound, fmt.Errorf("malformed position id %q", id))
	}
	return tokenID, nil
}

// PositionsForWallet lists the wallet's live positions on this pool, in enumeration order.
// Closed positions and positions on other pools are skipped.
func (p *Pool) PositionsForWallet(ctx context.Context) ([]model.Position, error) {
	owner := p.chain.Address()

	rtn, err := p.npm.Call(ctx, nil, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get position count: %w", err)
	}
	count := rtn[0].(*big.Int).Int64()

	positions := make([]model.Position, 0, count)
	for i := int64(0); i < count; i++ {
		rtn, err := p.npm.Call(ctx, nil, "tokenOfOwnerByIndex", owner, big.NewInt(i))
		if err != nil {
			return nil, fmt.Errorf("failed to get position at index %d: %w", i, err)
		}
		tokenID := rtn[0].(*big.Int)

		info, err := p.positionInfo(ctx, tokenID)
		if err != nil {
			return nil, err
		}
		if !p.belongs(info) || info.Liquidity.Sign() == 0 {
			continue
		}

		lower, upper := util.BinRangeOfTicks(int64(info.TickLower), int64(info.TickUpper), p.spacing)
		positions = append(positions, model.Position{
			ID:         model.PositionID(tokenID.String()),
			LowerBinID: lower,
			UpperBinID: upper,
		})
	}
	return positions, nil
}

// BinRangeOf returns the bins a position covers. A burned or unknown position yields
// model.ErrPositionNotFound.
func (p *Pool) BinRangeOf(ctx context.Context, id model.PositionID) (model.BinRange, error) {
	tokenID, err := parseTokenID(id)
	if err != nil {
		return model.BinRange{}, err
	}

	info, err := p.positionInfo(ctx, tokenID)
	if err != nil {
		return model.BinRange{}, err
	}

	lower, upper := util.BinRangeOfTicks(int64(info.TickLower), int64(info.TickUpper), p.spacing)
	return model.BinRange{Lower: lower, Upper: upper}, nil
}

// RemovePosition builds one multicall that withdraws opts.Bps of the liquidity and collects
// everything owed. With ClaimAndClose on a full withdrawal the NFT is burned as well.
// A position that no longer exists yields no requests.
func (p *Pool) RemovePosition(ctx context.Context, id model.PositionID, opts model.RemoveOptions) ([]model.TxRequest, error) {
	tokenID, err := parseTokenID(id)
	if err != nil {
		return nil, nil
	}

	info, err := p.positionInfo(ctx, tokenID)
	if err != nil {
		if errors.Is(err, model.ErrPositionNotFound) {
			p.lg.Info().Str("position", id.String()).Msg("position already gone")
			return nil, nil
		}
		return nil, err
	}

	bps := opts.Bps
	if bps == 0 || bps > 10000 {
		bps = 10000
	}
	liquidity := util.ApplyBps(info.Liquidity, bps)
	deadline := p.deadline()

	var calls [][]byte
	if liquidity.Sign() > 0 {
		data, err := p.npm.Pack("decreaseLiquidity", &DecreaseLiquidityParams{
			TokenId:    tokenID,
			Liquidity:  liquidity,
			Amount0Min: big.NewInt(0),
			Amount1Min: big.NewInt(0),
			Deadline:   deadline,
		})
		if err != nil {
			return nil, err
		}
		calls = append(calls, data)
	}

	data, err := p.npm.Pack("collect", &CollectParams{
		TokenId:    tokenID,
		Recipient:  p.chain.Address(),
		Amount0Max: maxUint128,
		Amount1Max: maxUint128,
	})
	if err != nil {
		return nil, err
	}
	calls = append(calls, data)

	if opts.ClaimAndClose && bps == 10000 {
		data, err := p.npm.Pack("burn", tokenID)
		if err != nil {
			return nil, err
		}
		calls = append(calls, data)
	}

	req, err := p.npm.Request("remove_position", nil, "multicall", calls)
	if err != nil {
		return nil, err
	}

	p.lg.Debug().
		Str("position", id.String()).
		Str("liquidity", liquidity.String()).
		Int("calls", len(calls)).
		Msg("removal prepared")

	return []model.TxRequest{req}, nil
}
