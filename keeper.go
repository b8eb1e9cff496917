package binkeeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	contracttypes "binkeeper/blockchain/pkg/types"
	"binkeeper/internal/clock"
	"binkeeper/internal/logger"
	"binkeeper/internal/metrics"
	m "binkeeper/internal/model"
	"binkeeper/internal/rebalance"
	"binkeeper/internal/retry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DefaultHalfWidth    = 10
	DefaultPollInterval = 5 * time.Second
	FullBps             = 10000

	StatusCacheKey = "binkeeper:status"
)

const (
	outcomeSkippedGas = "skipped_gas"
	outcomeInRange    = "in_range"
	outcomeCreated    = "created"
	outcomeRemoved    = "removed"
	outcomeDiscovered = "discovered"
	outcomeIdle       = "idle"
	outcomeFailed     = "failed"
)

type Phase int

const (
	Discovering Phase = iota
	NoPosition
	HasPosition
)

func (p Phase) String() string {
	return [...]string{
		"Discovering",
		"NoPosition",
		"HasPosition",
	}[p]
}

// State is the keeper's view of the one position it manages. PositionID is set only in HasPosition.
type State struct {
	Phase      Phase
	PositionID m.PositionID
}

func (s State) String() string {
	if s.Phase == HasPosition {
		return fmt.Sprintf("HasPosition(%s)", s.PositionID)
	}
	return s.Phase.String()
}

type Policies struct {
	Swap    retry.Policy
	Create  retry.Policy
	Remove  retry.Policy
	Query   retry.Policy
	Startup retry.Policy
}

type KeeperConfig struct {
	Balances BalanceReader
	Pool     PoolAdapter
	Swap     SwapService
	Chain    TxSubmitter
	Storage  Storage // optional
	Clock    clock.Clock
	Channel  chan<- string

	TokenA       common.Address
	TokenB       common.Address
	HalfWidth    int64
	SlippageBps  uint32
	RemoveBps    uint32
	MinGas       decimal.Decimal
	PollInterval time.Duration
	StatusTTL    time.Duration
	Retry        Policies
}

// Status is the last observation of the loop, served to the status API and the summary job.
type Status struct {
	State      string          `json:"state"`
	PositionID string          `json:"positionId,omitempty"`
	Range      *m.BinRange     `json:"range,omitempty"`
	ActiveBin  *m.ActiveBin    `json:"activeBin,omitempty"`
	Price      decimal.Decimal `json:"price"`
	InRange    bool            `json:"inRange"`
	Native     decimal.Decimal `json:"native"`
	BalanceA   decimal.Decimal `json:"balanceA"`
	BalanceB   decimal.Decimal `json:"balanceB"`
	TickID     string          `json:"tickId,omitempty"`
	TickAt     time.Time       `json:"tickAt"`
	Ticks      uint64          `json:"ticks"`
	LastError  string          `json:"lastError,omitempty"`
}

type Keeper struct {
	conf KeeperConfig
	rt   *retry.Executor

	mu     sync.RWMutex
	status Status

	lg zerolog.Logger
}

func NewKeeper(conf KeeperConfig) *Keeper {
	if conf.Clock == nil {
		conf.Clock = clock.Real{}
	}
	if conf.HalfWidth <= 0 {
		conf.HalfWidth = DefaultHalfWidth
	}
	if conf.PollInterval <= 0 {
		conf.PollInterval = DefaultPollInterval
	}
	if conf.RemoveBps == 0 || conf.RemoveBps > FullBps {
		conf.RemoveBps = FullBps
	}
	if conf.StatusTTL <= 0 {
		conf.StatusTTL = 10 * conf.PollInterval
	}

	return &Keeper{
		conf:   conf,
		rt:     retry.NewExecutor(conf.Clock),
		status: Status{State: Discovering.String()},
		lg:     logger.New("Keeper"),
	}
}

// Snapshot returns a copy of the last published status.
func (k *Keeper) Snapshot() Status {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.status
}

// Run discovers the current position and then ticks every PollInterval until ctx is done.
// A tick in progress always runs to completion.
func (k *Keeper) Run(ctx context.Context) error {
	state, err := k.discover(ctx, k.conf.Retry.Startup)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	k.lg.Info().Str("state", state.String()).Dur("poll", k.conf.PollInterval).Msg("keeper started")

	for {
		if err := ctx.Err(); err != nil {
			k.lg.Info().Str("state", state.String()).Msg("keeper stopped")
			return err
		}

		state = k.Tick(context.WithoutCancel(ctx), state)

		if err := k.conf.Clock.Sleep(ctx, k.conf.PollInterval); err != nil {
			k.lg.Info().Str("state", state.String()).Msg("keeper stopped")
			return err
		}
	}
}

// Discover adopts the first position the wallet holds on the pool. Several positions are
// tolerated with a warning.
func (k *Keeper) Discover(ctx context.Context) (State, error) {
	return k.discover(ctx, k.conf.Retry.Query)
}

func (k *Keeper) discover(ctx context.Context, p retry.Policy) (State, error) {
	tickID := uuid.NewString()
	lg := k.lg.With().Str("tick", tickID).Logger()

	positions, err := retry.Value(ctx, k.rt, "discover", p, k.conf.Pool.PositionsForWallet)
	if err != nil {
		k.journal(tickID, m.ActivityExhaustion, "", "", map[string]string{"op": "discover", "error": err.Error()})
		return State{Phase: Discovering}, err
	}

	state, rng := State{Phase: NoPosition}, (*m.BinRange)(nil)
	if len(positions) > 0 {
		state, rng = adopt(lg, positions)
	} else {
		lg.Info().Msg("no position on the pool")
	}
	k.journal(tickID, m.ActivityDiscover, state.PositionID, "", positions)

	k.mu.Lock()
	k.status.State = state.String()
	k.status.PositionID = state.PositionID.String()
	k.status.Range = rng
	k.mu.Unlock()
	metrics.Phase.Set(float64(state.Phase))

	return state, nil
}

// adopt takes the first of several positions and warns about the rest.
func adopt(lg zerolog.Logger, positions []m.Position) (State, *m.BinRange) {
	if len(positions) > 1 {
		lg.Warn().Int("count", len(positions)).Msg("several positions on the pool, adopting the first")
	}
	first := positions[0]
	r := first.Range()
	lg.Info().Str("position", first.ID.String()).Str("range", r.String()).Msg("position discovered")
	return State{Phase: HasPosition, PositionID: first.ID}, &r
}

// InRange reports whether the active bin lies inside the position's bins. A position that no
// longer exists is out of range.
func (k *Keeper) InRange(ctx context.Context, id m.PositionID) (bool, error) {
	obs, err := k.observeRange(ctx, id)
	if err != nil {
		return false, err
	}
	return obs.inRange, nil
}

type tick struct {
	id     string
	lg     zerolog.Logger
	status Status
}

func (k *Keeper) newTick(s State) *tick {
	id := uuid.NewString()

	k.mu.RLock()
	status := k.status
	k.mu.RUnlock()

	status.TickID = id
	status.TickAt = k.conf.Clock.Now()
	status.Ticks++
	status.LastError = ""

	return &tick{
		id:     id,
		lg:     k.lg.With().Str("tick", id).Str("state", s.String()).Logger(),
		status: status,
	}
}

// Tick evaluates one step of the state machine and returns the next state. It never fails:
// errors are logged and the prior state is kept.
func (k *Keeper) Tick(ctx context.Context, s State) State {
	t := k.newTick(s)
	start := k.conf.Clock.Now()

	next, outcome := k.evaluate(ctx, t, s)

	metrics.TickDuration.Observe(k.conf.Clock.Now().Sub(start).Seconds())
	metrics.TicksTotal.WithLabelValues(outcome).Inc()
	if next != s {
		k.transition(t, s, next)
	}

	t.status.State = next.String()
	t.status.PositionID = next.PositionID.String()
	if next.Phase != HasPosition {
		t.status.Range = nil
		t.status.InRange = false
	}
	k.publish(t.status)

	t.lg.Debug().Str("outcome", outcome).Str("next", next.String()).Msg("tick done")
	return next
}

func (k *Keeper) evaluate(ctx context.Context, t *tick, s State) (State, string) {
	native, err := retry.Value(ctx, k.rt, "gas_balance", k.conf.Retry.Query, k.conf.Balances.NativeBalance)
	if err != nil {
		k.fail(t, err, "failed to read gas balance")
		return s, outcomeFailed
	}
	t.status.Native = native
	metrics.NativeBalance.Set(native.InexactFloat64())

	if native.LessThan(k.conf.MinGas) {
		t.lg.Warn().Str("native", native.String()).Str("min", k.conf.MinGas.String()).Msg("not enough gas, skipping tick")
		return s, outcomeSkippedGas
	}

	switch s.Phase {
	case HasPosition:
		return k.checkPosition(ctx, t, s)
	case NoPosition:
		return k.openPosition(ctx, t, s)
	default:
		next, err := k.discover(ctx, k.conf.Retry.Query)
		if err != nil {
			k.fail(t, err, "discovery failed")
			return s, outcomeFailed
		}
		t.status.Range = k.Snapshot().Range
		return next, outcomeDiscovered
	}
}

type rangeObservation struct {
	rng     *m.BinRange
	active  m.ActiveBin
	inRange bool
}

func (k *Keeper) observeRange(ctx context.Context, id m.PositionID) (rangeObservation, error) {
	type lookup struct {
		rng   m.BinRange
		found bool
	}

	found, err := retry.Value(ctx, k.rt, "bin_range", k.conf.Retry.Query, func(ctx context.Context) (lookup, error) {
		rng, err := k.conf.Pool.BinRangeOf(ctx, id)
		if errors.Is(err, m.ErrPositionNotFound) {
			return lookup{}, nil
		}
		if err != nil {
			return lookup{}, err
		}
		return lookup{rng: rng, found: true}, nil
	})
	if err != nil {
		return rangeObservation{}, err
	}

	active, err := retry.Value(ctx, k.rt, "active_bin", k.conf.Retry.Query, k.conf.Pool.ActiveBin)
	if err != nil {
		return rangeObservation{}, err
	}

	obs := rangeObservation{active: active}
	if found.found {
		obs.rng = &found.rng
		obs.inRange = found.rng.Contains(active.BinID)
	}
	return obs, nil
}

func (k *Keeper) checkPosition(ctx context.Context, t *tick, s State) (State, string) {
	obs, err := k.observeRange(ctx, s.PositionID)
	if err != nil {
		k.fail(t, err, "failed to check position range")
		return s, outcomeFailed
	}
	k.observeBin(t, obs.active)
	t.status.Range = obs.rng
	t.status.InRange = obs.inRange

	if obs.inRange {
		t.lg.Debug().Int64("activeBin", obs.active.BinID).Str("range", obs.rng.String()).Msg("position in range")
		return s, outcomeInRange
	}

	ev := t.lg.Info().Int64("activeBin", obs.active.BinID)
	if obs.rng != nil {
		ev = ev.Str("range", obs.rng.String())
	}
	ev.Msg("position out of range, removing")

	if err := k.removePosition(ctx, t, s.PositionID); err != nil {
		k.fail(t, err, "failed to remove position")
		return s, outcomeFailed
	}
	return State{Phase: NoPosition}, outcomeRemoved
}

func (k *Keeper) removePosition(ctx context.Context, t *tick, id m.PositionID) error {
	opts := m.RemoveOptions{Bps: k.conf.RemoveBps, ClaimAndClose: true}

	var receipts []*contracttypes.TxReceipt
	err := k.rt.Do(ctx, "remove", k.conf.Retry.Remove, func(ctx context.Context) error {
		txs, err := k.conf.Pool.RemovePosition(ctx, id, opts)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			t.lg.Info().Str("position", id.String()).Msg("position already gone")
			return nil
		}
		receipts, err = k.submit(ctx, t, txs)
		return err
	})
	if err != nil {
		return err
	}

	hash := lastHash(receipts)
	k.journal(t.id, m.ActivityRemove, id, hash, opts)
	k.report(fmt.Sprintf("[Remove] position %s withdrawn (tx %s)", id, orNone(hash)))
	return nil
}

func (k *Keeper) openPosition(ctx context.Context, t *tick, s State) (State, string) {
	// a mint whose receipt was lost still shows up on chain
	positions, err := retry.Value(ctx, k.rt, "positions", k.conf.Retry.Query, k.conf.Pool.PositionsForWallet)
	if err != nil {
		k.fail(t, err, "failed to list positions")
		return s, outcomeFailed
	}
	if len(positions) > 0 {
		next, rng := adopt(t.lg, positions)
		t.status.Range = rng
		k.journal(t.id, m.ActivityDiscover, next.PositionID, "", positions)
		k.report(fmt.Sprintf("[Adopt] position %s on bins %s", next.PositionID, rng))
		return next, outcomeDiscovered
	}

	a, b, err := k.readBalances(ctx, t)
	if err != nil {
		k.fail(t, err, "failed to read balances")
		return s, outcomeFailed
	}

	active, err := retry.Value(ctx, k.rt, "active_bin", k.conf.Retry.Query, k.conf.Pool.ActiveBin)
	if err != nil {
		k.fail(t, err, "failed to read active bin")
		return s, outcomeFailed
	}
	k.observeBin(t, active)

	rate := k.conf.Pool.PriceFromBin(active.Price)
	plan := rebalance.Plan(a, b, rate)
	t.lg.Info().
		Str("balanceA", a.UIAmount().String()).
		Str("balanceB", b.UIAmount().String()).
		Str("rate", rate.String()).
		Str("direction", plan.Direction.String()).
		Msg("rebalance planned")

	if !plan.IsNone() {
		if err := k.swap(ctx, t, plan); err != nil {
			k.fail(t, err, "failed to rebalance")
			return s, outcomeFailed
		}
		if a, b, err = k.readBalances(ctx, t); err != nil {
			k.fail(t, err, "failed to read balances after swap")
			return s, outcomeFailed
		}
		// the swap may have moved the price of this pool
		if active, err = retry.Value(ctx, k.rt, "active_bin", k.conf.Retry.Query, k.conf.Pool.ActiveBin); err != nil {
			k.fail(t, err, "failed to read active bin after swap")
			return s, outcomeFailed
		}
		k.observeBin(t, active)
	}

	if a.RawAmount().Sign() == 0 && b.RawAmount().Sign() == 0 {
		t.lg.Warn().Msg("nothing to deposit")
		return s, outcomeIdle
	}

	id, err := k.createPosition(ctx, t, active.BinID, a, b)
	if err != nil {
		k.fail(t, err, "failed to create position")
		return s, outcomeFailed
	}
	return State{Phase: HasPosition, PositionID: id}, outcomeCreated
}

func (k *Keeper) readBalances(ctx context.Context, t *tick) (a, b *m.Balance, err error) {
	a, err = retry.Value(ctx, k.rt, "balance_a", k.conf.Retry.Query, func(ctx context.Context) (*m.Balance, error) {
		return k.conf.Balances.TokenBalance(ctx, k.conf.TokenA)
	})
	if err != nil {
		return nil, nil, err
	}
	b, err = retry.Value(ctx, k.rt, "balance_b", k.conf.Retry.Query, func(ctx context.Context) (*m.Balance, error) {
		return k.conf.Balances.TokenBalance(ctx, k.conf.TokenB)
	})
	if err != nil {
		return nil, nil, err
	}

	t.status.BalanceA = a.UIAmount()
	t.status.BalanceB = b.UIAmount()
	t.lg.Debug().Str("balanceA", a.UIAmount().String()).Str("balanceB", b.UIAmount().String()).Msg("balances")
	return a, b, nil
}

func (k *Keeper) swap(ctx context.Context, t *tick, plan m.RebalancePlan) error {
	input, output := k.conf.TokenA, k.conf.TokenB
	if plan.Direction == m.BtoA {
		input, output = output, input
	}

	// every attempt quotes afresh, a failed route is usually a stale one
	var quote *m.Quote
	var receipts []*contracttypes.TxReceipt
	err := k.rt.Do(ctx, "swap", k.conf.Retry.Swap, func(ctx context.Context) error {
		q, err := k.conf.Swap.Quote(ctx, input, output, plan.Amount)
		if err != nil {
			return err
		}
		txs, err := k.conf.Swap.BuildSwap(ctx, q)
		if err != nil {
			return err
		}
		quote = q
		receipts, err = k.submit(ctx, t, txs)
		return err
	})
	if err != nil {
		return err
	}

	hash := lastHash(receipts)
	k.journal(t.id, m.ActivitySwap, "", hash, map[string]string{
		"direction": plan.Direction.String(),
		"input":     input.Hex(),
		"output":    output.Hex(),
		"amount":    plan.Amount.String(),
		"quoted":    quote.OutAmount.String(),
	})
	k.report(fmt.Sprintf("[Swap] %s %s (tx %s)", plan.Direction, plan.Amount, orNone(hash)))
	return nil
}

func (k *Keeper) createPosition(ctx context.Context, t *tick, activeBin int64, a, b *m.Balance) (m.PositionID, error) {
	req := m.CreatePositionRequest{
		ActiveBinID: activeBin,
		HalfWidth:   k.conf.HalfWidth,
		AmountA:     a.RawAmount(),
		AmountB:     b.RawAmount(),
		SlippageBps: k.conf.SlippageBps,
	}

	// Once the mint is confirmed a later attempt only re-reads its receipt. After a submit
	// without a receipt the chain is checked first, so a landed mint is adopted, not repeated.
	var minted *contracttypes.TxReceipt
	var submitted bool
	pos, err := retry.Value(ctx, k.rt, "create", k.conf.Retry.Create, func(ctx context.Context) (m.Position, error) {
		if minted == nil && submitted {
			positions, err := k.conf.Pool.PositionsForWallet(ctx)
			if err != nil {
				return m.Position{}, err
			}
			if len(positions) > 0 {
				t.lg.Warn().Str("position", positions[0].ID.String()).Msg("mint landed without a receipt, adopting it")
				return positions[0], nil
			}
		}
		if minted == nil {
			txs, err := k.conf.Pool.CreatePosition(ctx, req)
			if err != nil {
				return m.Position{}, err
			}
			if len(txs) == 0 {
				return m.Position{}, errors.New("no transactions to create position")
			}
			submitted = true
			receipts, err := k.submit(ctx, t, txs)
			if err != nil {
				return m.Position{}, err
			}
			minted = receipts[len(receipts)-1]
		}
		id, err := k.conf.Pool.MintedPosition(minted)
		if err != nil {
			return m.Position{}, err
		}
		return m.Position{ID: id, LowerBinID: activeBin - k.conf.HalfWidth, UpperBinID: activeBin + k.conf.HalfWidth}, nil
	})
	if err != nil {
		return "", err
	}

	id := pos.ID
	rng := pos.Range()
	t.status.Range = &rng
	t.status.InRange = rng.Contains(activeBin)

	hash := ""
	if minted != nil {
		hash = minted.TxHash.Hex()
	}
	k.journal(t.id, m.ActivityCreate, id, hash, req)
	k.report(fmt.Sprintf("[Create] position %s on bins %s (tx %s)", id, rng, orNone(hash)))
	return id, nil
}

func (k *Keeper) submit(ctx context.Context, t *tick, txs []m.TxRequest) ([]*contracttypes.TxReceipt, error) {
	receipts := make([]*contracttypes.TxReceipt, 0, len(txs))
	for _, tx := range txs {
		receipt, err := k.conf.Chain.SendAndConfirm(ctx, tx)
		if err != nil {
			return receipts, fmt.Errorf("%s: %w", tx.Label, err)
		}
		t.lg.Info().Str("label", tx.Label).Str("tx", receipt.TxHash.Hex()).Msg("transaction confirmed")
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (k *Keeper) observeBin(t *tick, active m.ActiveBin) {
	t.status.ActiveBin = &active
	t.status.Price = k.conf.Pool.PriceFromBin(active.Price)
	metrics.ActiveBin.Set(float64(active.BinID))
}

func (k *Keeper) fail(t *tick, err error, msg string) {
	t.status.LastError = err.Error()
	t.lg.Error().Err(err).Msg(msg)

	if ex, ok := retry.IsExhausted(err); ok {
		k.journal(t.id, m.ActivityExhaustion, "", "", map[string]any{
			"op":       ex.Op,
			"attempts": ex.Attempts,
			"error":    ex.Last.Error(),
		})
		k.report(fmt.Sprintf("[Error] %s: %s", msg, err))
	}
}

func (k *Keeper) transition(t *tick, from, to State) {
	metrics.TransitionsTotal.WithLabelValues(from.Phase.String(), to.Phase.String()).Inc()
	metrics.Phase.Set(float64(to.Phase))
	t.lg.Info().Str("from", from.String()).Str("to", to.String()).Msg("state transition")
}

// report never blocks the loop. Messages are dropped when nobody is listening.
func (k *Keeper) report(msg string) {
	if k.conf.Channel == nil {
		return
	}
	select {
	case k.conf.Channel <- msg:
	default:
		k.lg.Warn().Str("msg", msg).Msg("report channel full, message dropped")
	}
}

func (k *Keeper) journal(tickID string, kind m.ActivityKind, id m.PositionID, txHash string, detail any) {
	if k.conf.Storage == nil {
		return
	}

	raw, err := json.Marshal(detail)
	if err != nil {
		k.lg.Warn().Err(err).Str("kind", string(kind)).Msg("failed to encode activity detail")
		raw = nil
	}

	act := &m.Activity{
		TickID:     tickID,
		Kind:       kind,
		PositionID: id.String(),
		TxHash:     txHash,
		Detail:     datatypes.JSON(raw),
		CreatedAt:  k.conf.Clock.Now(),
	}
	if err := k.conf.Storage.SaveActivity(act); err != nil {
		k.lg.Warn().Err(err).Str("kind", string(kind)).Msg("failed to journal activity")
	}
}

func (k *Keeper) publish(status Status) {
	k.mu.Lock()
	k.status = status
	k.mu.Unlock()

	if k.conf.Storage == nil {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		k.lg.Warn().Err(err).Msg("failed to encode status")
		return
	}
	k.conf.Storage.SetCache(StatusCacheKey, string(raw), k.conf.StatusTTL)
}

func lastHash(receipts []*contracttypes.TxReceipt) string {
	if len(receipts) == 0 {
		return ""
	}
	return receipts[len(receipts)-1].TxHash.Hex()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
