package util

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Hex2Bytes decodes hex with or without the 0x prefix.
func Hex2Bytes(str string) []byte {
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	return common.Hex2Bytes(str)
}
