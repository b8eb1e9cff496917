// Package chain signs, broadcasts and confirms transactions and reads wallet balances.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"binkeeper/blockchain/pkg/abis"
	"binkeeper/blockchain/pkg/contractclient"
	"binkeeper/blockchain/pkg/txlistener"
	contracttypes "binkeeper/blockchain/pkg/types"
	"binkeeper/blockchain/pkg/util"
	"binkeeper/internal/logger"
	"binkeeper/internal/metrics"
	"binkeeper/internal/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

var (
	gasTipCap    = big.NewInt(1_500_000_000) // 1.5 gwei
	gasFeeMargin = big.NewInt(2_000_000_000) // fee cap = suggested price + 2 gwei
)

// Backend is the subset of *ethclient.Client the client needs.
type Backend interface {
	ethereum.ContractCaller
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type ReceiptWaiter interface {
	WaitForTransaction(ctx context.Context, txHash common.Hash) (*contracttypes.TxReceipt, error)
}

type Client struct {
	backend         Backend
	waiter          ReceiptWaiter
	privateKey      *ecdsa.PrivateKey
	myAddr          common.Address
	chainID         *big.Int
	defaultGasLimit uint64
	erc20           *abi.ABI

	mu       sync.Mutex
	decimals map[common.Address]uint8

	lg zerolog.Logger
}

// Option is a functional option for configuring Client
type Option func(*Client)

// WithDefaultGasLimit is used when gas estimation fails.
func WithDefaultGasLimit(gasLimit uint64) Option {
	return func(c *Client) {
		c.defaultGasLimit = gasLimit
	}
}

// Dial connects to url and builds a client whose receipts are polled with the given listener options.
func Dial(ctx context.Context, url string, privateKey *ecdsa.PrivateKey, listenerOpts []txlistener.Option, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to connect to RPC %s", url), model.ErrNetwork, err)
	}
	return New(ctx, ec, txlistener.NewTxListener(ec.Client(), listenerOpts...), privateKey, opts...)
}

func New(ctx context.Context, backend Backend, waiter ReceiptWaiter, privateKey *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	if privateKey == nil {
		return nil, errors.New("private key is required")
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Join(errors.New("failed to get chain id"), model.ErrNetwork, err)
	}

	erc20, err := abis.ERC20()
	if err != nil {
		return nil, err
	}

	c := &Client{
		backend:         backend,
		waiter:          waiter,
		privateKey:      privateKey,
		myAddr:          crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:         chainID,
		defaultGasLimit: 1_000_000,
		erc20:           erc20,
		decimals:        make(map[common.Address]uint8),
		lg:              logger.New("Chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParsePrivateKey accepts a hex key with or without 0x.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return privateKey, nil
}

func (c *Client) Address() common.Address {
	return c.myAddr
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Caller exposes read access for contract bindings built on top of this client.
func (c *Client) Caller() ethereum.ContractCaller {
	return c.backend
}

func (c *Client) token(addr common.Address) *contractclient.ContractClient {
	return contractclient.NewContractClient(c.backend, addr, c.erc20)
}

// NativeBalance returns the wallet's gas asset balance in wei.
func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	bal, err := c.backend.BalanceAt(ctx, c.myAddr, nil)
	if err != nil {
		return nil, errors.Join(errors.New("failed to get native balance"), model.ErrNetwork, err)
	}
	return bal, nil
}

// TokenBalance returns the raw ERC-20 balance and the token's decimals.
func (c *Client) TokenBalance(ctx context.Context, token common.Address) (*big.Int, uint8, error) {
	decimals, err := c.Decimals(ctx, token)
	if err != nil {
		return nil, 0, err
	}

	rtn, err := c.token(token).Call(ctx, &c.myAddr, "balanceOf", c.myAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get balance of %s: %w", token.Hex(), err)
	}
	return rtn[0].(*big.Int), decimals, nil
}

// Decimals is cached per token; it never changes for a deployed ERC-20.
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.Lock()
	d, ok := c.decimals[token]
	c.mu.Unlock()
	if ok {
		return d, nil
	}

	rtn, err := c.token(token).Call(ctx, nil, "decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to get decimals of %s: %w", token.Hex(), err)
	}
	d = rtn[0].(uint8)

	c.mu.Lock()
	c.decimals[token] = d
	c.mu.Unlock()
	return d, nil
}

// EnsureApproval returns an approve request when the spender's allowance is below amount,
// and nothing otherwise.
func (c *Client) EnsureApproval(ctx context.Context, token, spender common.Address, amount *big.Int) ([]model.TxRequest, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil
	}

	tc := c.token(token)
	rtn, err := tc.Call(ctx, &c.myAddr, "allowance", c.myAddr, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to check allowance: %w", err)
	}
	if rtn[0].(*big.Int).Cmp(amount) >= 0 {
		return nil, nil
	}

	req, err := tc.Request("approve", nil, "approve", spender, amount)
	if err != nil {
		return nil, err
	}
	return []model.TxRequest{req}, nil
}

// LatestBlockhash doubles as the startup connectivity probe.
func (c *Client) LatestBlockhash(ctx context.Context) (common.Hash, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, errors.Join(errors.New("failed to get latest block"), model.ErrNetwork, err)
	}
	return header.Hash(), nil
}

// SendAndConfirm signs req with the wallet key, broadcasts it and waits for the receipt.
func (c *Client) SendAndConfirm(ctx context.Context, req model.TxRequest) (*contracttypes.TxReceipt, error) {
	signedTx, err := c.sign(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Join(fmt.Errorf("%s: SendTransaction error", req.Label), model.ErrTxRejected, err)
	}
	c.lg.Info().Str("label", req.Label).Str("tx", signedTx.Hash().Hex()).Msg("transaction sent")

	receipt, err := c.waiter.WaitForTransaction(ctx, signedTx.Hash())
	if err != nil {
		if errors.Is(err, txlistener.ErrTransactionFailed) {
			return receipt, errors.Join(model.ErrTxRejected, err)
		}
		return receipt, err
	}

	metrics.TxSubmitted.WithLabelValues(req.Label).Inc()
	ev := c.lg.Info().Str("label", req.Label).Str("tx", receipt.TxHash.Hex()).Str("block", receipt.BlockNumber)
	if gasCost, err := util.ExtractGasCost(receipt); err == nil {
		ev = ev.Str("gasCost", gasCost.String())
	}
	ev.Msg("transaction confirmed")

	return receipt, nil
}

func (c *Client) sign(ctx context.Context, req model.TxRequest) (*types.Transaction, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, c.myAddr)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s: PendingNonceAt error", req.Label), model.ErrNetwork, err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s: SuggestGasPrice error", req.Label), model.ErrNetwork, err)
	}

	gasLimit := req.Gas
	if gasLimit == 0 {
		gasLimit, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  c.myAddr,
			To:    &req.To,
			Data:  req.Data,
			Value: req.Value,
		})
		if err != nil {
			if c.defaultGasLimit == 0 {
				return nil, errors.Join(fmt.Errorf("%s: EstimateGas error", req.Label), model.ErrTxRejected, err)
			}
			c.lg.Warn().Err(err).Str("label", req.Label).Uint64("gas", c.defaultGasLimit).Msg("gas estimation failed, using default limit")
			gasLimit = c.defaultGasLimit
		}
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: new(big.Int).Add(gasPrice, gasFeeMargin),
		Gas:       gasLimit,
		To:        &req.To,
		Value:     req.Value,
		Data:      req.Data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s: SignTx error", req.Label), err)
	}
	return signedTx, nil
}
