package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const approveABI = `[{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`

func TestParseABI(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		parsed, err := ParseABI([]byte(approveABI))
		require.NoError(t, err)
		assert.Contains(t, parsed.Methods, "approve")
	})

	t.Run("hardhat_artifact", func(t *testing.T) {
		artifact := `{"_format":"hh-sol-artifact-1","contractName":"IERC20","abi":` + approveABI + `}`
		parsed, err := ParseABI([]byte(artifact))
		require.NoError(t, err)
		assert.Contains(t, parsed.Methods, "approve")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseABI([]byte(`{"nope":`))
		assert.Error(t, err)
	})
}
