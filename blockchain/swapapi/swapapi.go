// Package swapapi talks to the aggregator that quotes and builds token swaps.
package swapapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"binkeeper/blockchain/pkg/util"
	"binkeeper/internal/logger"
	"binkeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

type Approver interface {
	EnsureApproval(ctx context.Context, token, spender common.Address, amount *big.Int) ([]model.TxRequest, error)
}

type Config struct {
	BaseURL     string
	ChainID     int64
	SlippageBps uint32
	User        common.Address
	Timeout     time.Duration
}

type Client struct {
	conf     Config
	approver Approver
	http     *http.Client
	lg       zerolog.Logger
}

func New(conf Config, approver Approver) *Client {
	if conf.Timeout <= 0 {
		conf.Timeout = 15 * time.Second
	}
	conf.BaseURL = strings.TrimRight(conf.BaseURL, "/")

	return &Client{
		conf:     conf,
		approver: approver,
		http:     &http.Client{Timeout: conf.Timeout},
		lg:       logger.New("SwapAPI"),
	}
}

type quoteResponse struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	InAmount    string `json:"inAmount"`
	OutAmount   string `json:"outAmount"`
	SlippageBps uint32 `json:"slippageBps"`
}

type swapRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
}

type swapResponse struct {
	Tx struct {
		To    string          `json:"to"`
		Data  string          `json:"data"`
		Value string          `json:"value"`
		Gas   json.RawMessage `json:"gas"`
	} `json:"tx"`
	ApprovalAddress string `json:"approvalAddress"`
}

// Quote asks for the best route selling amount of input for output.
func (c *Client) Quote(ctx context.Context, input, output common.Address, amount *big.Int) (*model.Quote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New("quote amount must be positive")
	}

	query := url.Values{}
	query.Set("inputMint", input.Hex())
	query.Set("outputMint", output.Hex())
	query.Set("amount", amount.String())
	query.Set("slippageBps", strconv.FormatUint(uint64(c.conf.SlippageBps), 10))
	query.Set("chainId", strconv.FormatInt(c.conf.ChainID, 10))

	raw, err := c.sendRequest(ctx, http.MethodGet, c.conf.BaseURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}

	inAmount, ok := new(big.Int).SetString(resp.InAmount, 10)
	if !ok {
		return nil, fmt.Errorf("malformed quote inAmount %q", resp.InAmount)
	}
	outAmount, ok := new(big.Int).SetString(resp.OutAmount, 10)
	if !ok {
		return nil, fmt.Errorf("malformed quote outAmount %q", resp.OutAmount)
	}

	quote := &model.Quote{
		InputToken:  common.HexToAddress(resp.InputMint),
		OutputToken: common.HexToAddress(resp.OutputMint),
		InAmount:    inAmount,
		OutAmount:   outAmount,
		SlippageBps: resp.SlippageBps,
		Raw:         raw,
	}

	c.lg.Debug().
		Str("input", input.Hex()).
		Str("output", output.Hex()).
		Str("inAmount", inAmount.String()).
		Str("outAmount", outAmount.String()).
		Msg("quote received")
	return quote, nil
}

// BuildSwap turns a quote into the transactions to submit: the router approval when the
// allowance is short, then the swap itself.
func (c *Client) BuildSwap(ctx context.Context, quote *model.Quote) ([]model.TxRequest, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, errors.New("quote is empty")
	}

	body, err := json.Marshal(swapRequest{
		QuoteResponse: json.RawMessage(quote.Raw),
		UserPublicKey: c.conf.User.Hex(),
	})
	if err != nil {
		return nil, fmt.Errorf("error request body marshaling: %w", err)
	}

	raw, err := c.sendRequest(ctx, http.MethodPost, c.conf.BaseURL+"/swap", body)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}

	var resp swapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode swap: %w", err)
	}
	if !common.IsHexAddress(resp.Tx.To) {
		return nil, fmt.Errorf("swap response has invalid target %q", resp.Tx.To)
	}

	swap := model.TxRequest{
		Label: "swap",
		To:    common.HexToAddress(resp.Tx.To),
		Data:  util.Hex2Bytes(resp.Tx.Data),
	}
	if swap.Value, err = parseQuantity(resp.Tx.Value); err != nil {
		return nil, fmt.Errorf("swap value: %w", err)
	}
	if gas, err := parseQuantity(strings.Trim(string(resp.Tx.Gas), `"`)); err != nil {
		return nil, fmt.Errorf("swap gas: %w", err)
	} else if gas.Sign() > 0 {
		swap.Gas = gas.Uint64()
	}

	var txs []model.TxRequest
	if common.IsHexAddress(resp.ApprovalAddress) {
		txs, err = c.approver.EnsureApproval(ctx, quote.InputToken, common.HexToAddress(resp.ApprovalAddress), quote.InAmount)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare swap approval: %w", err)
		}
	}
	return append(txs, swap), nil
}

// parseQuantity accepts decimal or 0x-prefixed hex. Empty means zero.
func parseQuantity(s string) (*big.Int, error) {
	if s == "" || s == "null" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("malformed quantity %q", s)
	}
	return v, nil
}

func (c *Client) sendRequest(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var rb io.Reader
	if body != nil {
		rb = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, rb)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(model.ErrNetwork, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Join(model.ErrNetwork, err)
	}

	switch {
	case res.StatusCode >= 500:
		return nil, errors.Join(model.ErrNetwork, fmt.Errorf("status %d: %s", res.StatusCode, raw))
	case res.StatusCode >= 400:
		return nil, errors.Join(model.ErrTxRejected, fmt.Errorf("status %d: %s", res.StatusCode, raw))
	}
	return raw, nil
}
