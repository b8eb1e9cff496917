package util

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// hardhatArtifact is the subset of a Hardhat compilation artifact that carries the ABI.
type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
}

// ParseABI accepts either a plain ABI array or a Hardhat artifact.
func ParseABI(data []byte) (*abi.ABI, error) {
	var artifact hardhatArtifact
	if err := json.Unmarshal(data, &artifact); err == nil && len(artifact.ABI) > 0 {
		parsed, err := abi.JSON(bytes.NewReader(artifact.ABI))
		if err != nil {
			return nil, fmt.Errorf("failed to parse ABI from artifact %s: %w", artifact.ContractName, err)
		}
		return &parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &parsed, nil
}
