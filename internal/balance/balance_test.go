package balance

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"binkeeper/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chainMock struct {
	native   *big.Int
	tokens   map[common.Address]*big.Int
	decimals uint8
	err      error
}

func (m chainMock) NativeBalance(ctx context.Context) (*big.Int, error) {
	return m.native, m.err
}

func (m chainMock) TokenBalance(ctx context.Context, token common.Address) (*big.Int, uint8, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	raw, ok := m.tokens[token]
	if !ok {
		raw = big.NewInt(0)
	}
	return raw, m.decimals, nil
}

var usdc = common.HexToAddress("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E")

func TestNativeBalance(t *testing.T) {
	wei, _ := new(big.Int).SetString("70000000000000000", 10)
	tr := NewTracker(chainMock{native: wei})

	bal, err := tr.NativeBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.07", bal.String())

	tr = NewTracker(chainMock{err: errors.New("dial tcp: connection refused")})
	_, err = tr.NativeBalance(context.Background())
	assert.ErrorIs(t, err, model.ErrNetwork)
}

func TestTokenBalance(t *testing.T) {
	tr := NewTracker(chainMock{tokens: map[common.Address]*big.Int{usdc: big.NewInt(123_450_000)}, decimals: 6})

	bal, err := tr.TokenBalance(context.Background(), usdc)
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, "123.45", bal.UI.String())
	assert.Equal(t, uint8(6), bal.Decimals)

	t.Run("absent", func(t *testing.T) {
		bal, err := tr.TokenBalance(context.Background(), common.HexToAddress("0x01"))
		assert.NoError(t, err)
		assert.Nil(t, bal)
	})

	t.Run("failure", func(t *testing.T) {
		tr := NewTracker(chainMock{err: errors.Join(model.ErrNetwork, errors.New("i/o timeout"))})
		bal, err := tr.TokenBalance(context.Background(), usdc)
		assert.Nil(t, bal)
		assert.ErrorIs(t, err, model.ErrNetwork)
	})
}
