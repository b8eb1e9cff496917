package contractclient

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	contracttypes "binkeeper/blockchain/pkg/types"
	"binkeeper/internal/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ContractClient binds one contract address to its ABI. Reads go through the caller;
// writes are only packed into TxRequests and left to the chain client to sign.
type ContractClient struct {
	contractAddress common.Address
	abi             *abi.ABI
	caller          ethereum.ContractCaller
}

func NewContractClient(caller ethereum.ContractCaller, contractAddress common.Address, abi *abi.ABI) *ContractClient {
	return &ContractClient{
		contractAddress: contractAddress,
		abi:             abi,
		caller:          caller,
	}
}

func (cm *ContractClient) Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {

	if from == nil {
		from = &common.Address{}
	}
	packed, err := cm.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s call: abi pack error", method), err)
	}

	raw, err := cm.caller.CallContract(ctx, ethereum.CallMsg{
		From: *from,
		To:   &cm.contractAddress,
		Data: packed,
	}, nil)
	if err != nil {
		if IsRevert(err) {
			return nil, errors.Join(fmt.Errorf("%s call: reverted", method), model.ErrTxRejected, err)
		}
		return nil, errors.Join(fmt.Errorf("%s call: CallContract error", method), model.ErrNetwork, err)
	}

	rtn, err := cm.abi.Unpack(method, raw)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s call: abi unpack error", method), err)
	}

	return rtn, nil
}

// IsRevert reports whether a call failed inside the EVM rather than on the way to the node.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

func (cm *ContractClient) Pack(method string, args ...interface{}) ([]byte, error) {
	packed, err := cm.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s: abi pack error", method), err)
	}
	return packed, nil
}

// Request packs a state-changing call for the chain client to sign and submit.
func (cm *ContractClient) Request(label string, value *big.Int, method string, args ...interface{}) (model.TxRequest, error) {
	packed, err := cm.Pack(method, args...)
	if err != nil {
		return model.TxRequest{}, err
	}
	return model.TxRequest{
		Label: label,
		To:    cm.contractAddress,
		Data:  packed,
		Value: value,
	}, nil
}

// ParseReceipt decodes the receipt logs emitted by this contract. Logs from other
// contracts and unknown events are skipped.
func (cm *ContractClient) ParseReceipt(receipt *contracttypes.TxReceipt) ([]*contracttypes.EventInfo, error) {
	if receipt == nil {
		return nil, errors.New("receipt is nil")
	}

	var events []*contracttypes.EventInfo
	for _, log := range receipt.Logs {
		if log == nil || log.Address != cm.contractAddress || len(log.Topics) == 0 {
			continue
		}

		abiEvent, err := cm.abi.EventByID(log.Topics[0])
		if err != nil {
			continue
		}

		paramMap := make(map[string]interface{})
		if err := abiEvent.Inputs.UnpackIntoMap(paramMap, log.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack %s data: %w", abiEvent.Name, err)
		}

		var indexed abi.Arguments
		for _, input := range abiEvent.Inputs {
			// logs raised by nested calls can carry fewer topics than the ABI declares
			if input.Indexed && len(indexed) < len(log.Topics)-1 {
				indexed = append(indexed, input)
			}
		}
		if err := abi.ParseTopicsIntoMap(paramMap, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("failed to parse %s topics: %w", abiEvent.Name, err)
		}

		events = append(events, &contracttypes.EventInfo{
			Address:   log.Address,
			EventName: abiEvent.Name,
			Index:     log.Index,
			Parameter: paramMap,
		})
	}

	return events, nil
}

// DecodeTransaction decodes calldata using the contract's ABI.
func (cm *ContractClient) DecodeTransaction(data []byte) (*contracttypes.DecodedTransaction, error) {
	if len(data) < 4 {
		return nil, errors.New("transaction data too short: must be at least 4 bytes for method selector")
	}

	method, err := cm.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("failed to find method by selector %s: %w", hex.EncodeToString(data[:4]), err)
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("failed to unpack arguments for method %s: %w", method.Name, err)
	}

	params := make([]contracttypes.DecodedParam, len(method.Inputs))
	for i, input := range method.Inputs {
		params[i] = contracttypes.DecodedParam{
			Name:  input.Name,
			Type:  input.Type.String(),
			Value: convertValueForJSON(args[i], input.Type),
		}
	}

	return &contracttypes.DecodedTransaction{
		ContractAddress: cm.contractAddress,
		MethodName:      method.Name,
		MethodSignature: buildMethodSignature(method),
		Parameters:      params,
	}, nil
}

/*********************************** internal utils *********************************************/

func buildMethodSignature(method *abi.Method) string {
	inputs := make([]string, 0, len(method.Inputs))
	for _, input := range method.Inputs {
		inputs = append(inputs, input.Type.String())
	}
	return fmt.Sprintf("%s(%s)", method.Name, strings.Join(inputs, ","))
}

// convertValueForJSON renders addresses, byte strings and big ints as strings.
func convertValueForJSON(value interface{}, abiType abi.Type) interface{} {
	switch abiType.T {
	case abi.AddressTy:
		if addr, ok := value.(common.Address); ok {
			return addr.Hex()
		}
	case abi.BytesTy:
		if b, ok := value.([]byte); ok {
			return "0x" + hex.EncodeToString(b)
		}
	case abi.IntTy, abi.UintTy:
		if bigInt, ok := value.(*big.Int); ok {
			return bigInt.String()
		}
	case abi.SliceTy, abi.ArrayTy:
		switch slice := value.(type) {
		case []common.Address:
			result := make([]string, len(slice))
			for i, addr := range slice {
				result[i] = addr.Hex()
			}
			return result
		case []*big.Int:
			result := make([]string, len(slice))
			for i, v := range slice {
				result[i] = v.String()
			}
			return result
		case [][]byte:
			result := make([]string, len(slice))
			for i, v := range slice {
				result[i] = "0x" + hex.EncodeToString(v)
			}
			return result
		}
	}
	return value
}
