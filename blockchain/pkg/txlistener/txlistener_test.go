package txlistener

import (
	"context"
	"errors"
	"testing"
	"time"

	contracttypes "binkeeper/blockchain/pkg/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcMock serves receipts in order; a nil entry means "not mined yet".
type rpcMock struct {
	receipts []*contracttypes.TxReceipt
	err      error
	calls    int
}

func (m *rpcMock) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	out := result.(**contracttypes.TxReceipt)
	if len(m.receipts) == 0 {
		*out = nil
		return nil
	}
	*out = m.receipts[0]
	m.receipts = m.receipts[1:]
	return nil
}

var hash = common.HexToHash("0xabc")

func TestWaitForTransaction(t *testing.T) {

	t.Run("mined_after_polls", func(t *testing.T) {
		rpc := &rpcMock{receipts: []*contracttypes.TxReceipt{nil, nil, {Status: "0x1", TxHash: hash}}}
		tl := NewTxListener(rpc, WithPollInterval(time.Millisecond), WithTimeout(time.Second))

		receipt, err := tl.WaitForTransaction(context.Background(), hash)
		require.NoError(t, err)
		assert.Equal(t, hash, receipt.TxHash)
		assert.Equal(t, 3, rpc.calls)
	})

	t.Run("reverted", func(t *testing.T) {
		rpc := &rpcMock{receipts: []*contracttypes.TxReceipt{{Status: "0x0"}}}
		tl := NewTxListener(rpc, WithPollInterval(time.Millisecond), WithTimeout(time.Second))

		receipt, err := tl.WaitForTransaction(context.Background(), hash)
		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.NotNil(t, receipt)
	})

	t.Run("timeout", func(t *testing.T) {
		tl := NewTxListener(&rpcMock{}, WithPollInterval(time.Millisecond), WithTimeout(20*time.Millisecond))

		_, err := tl.WaitForTransaction(context.Background(), hash)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("rpc_error", func(t *testing.T) {
		tl := NewTxListener(&rpcMock{err: errors.New("connection refused")}, WithPollInterval(time.Millisecond))

		_, err := tl.WaitForTransaction(context.Background(), hash)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrTimeout)
	})
}
