// Package abis embeds the contract ABIs the keeper talks to.
package abis

import (
	_ "embed"

	"binkeeper/blockchain/pkg/util"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	//go:embed erc20.json
	erc20JSON []byte

	//go:embed algebra_pool.json
	algebraPoolJSON []byte

	//go:embed position_manager.json
	positionManagerJSON []byte
)

func ERC20() (*abi.ABI, error) {
	return util.ParseABI(erc20JSON)
}

func AlgebraPool() (*abi.ABI, error) {
	return util.ParseABI(algebraPoolJSON)
}

func PositionManager() (*abi.ABI, error) {
	return util.ParseABI(positionManagerJSON)
}
