package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type DecodedParam struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// DecodedTransaction is calldata decoded against a contract ABI.
type DecodedTransaction struct {
	ContractAddress common.Address `json:"contract"`
	MethodName      string         `json:"method"`
	MethodSignature string         `json:"signature"`
	Parameters      []DecodedParam `json:"parameters"`
}

// TxReceipt mirrors the raw eth_getTransactionReceipt response. Numeric fields stay hex strings.
type TxReceipt struct {
	BlockHash         common.Hash  `json:"blockHash"`
	BlockNumber       string       `json:"blockNumber"`
	ContractAddress   string       `json:"contractAddress"`
	CumulativeGasUsed string       `json:"cumulativeGasUsed"`
	EffectiveGasPrice string       `json:"effectiveGasPrice"`
	From              string       `json:"from"`
	GasUsed           string       `json:"gasUsed"`
	Logs              []*types.Log `json:"logs"`
	Status            string       `json:"status"`
	To                string       `json:"to"`
	TxHash            common.Hash  `json:"transactionHash"`
	TransactionIndex  string       `json:"transactionIndex"`
	Type              string       `json:"type"`
}

func (r *TxReceipt) Failed() bool {
	return r != nil && r.Status == "0x0"
}

// EventInfo is one log decoded against a contract ABI.
type EventInfo struct {
	Address   common.Address         `json:"address"`
	EventName string                 `json:"event"`
	Index     uint                   `json:"index"`
	Parameter map[string]interface{} `json:"parameter"`
}
