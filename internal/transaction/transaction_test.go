package transaction_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

func TestLifecycle(t *testing.T) {
	caller := common.HexToAddress("0xa11ce")
	tx := transaction.New(transaction.KindStake, caller, caller)
	require.Equal(t, transaction.PhaseProcessing, tx.ConfirmingPhase)

	tx.Finish()
	require.True(t, tx.IsConfirmed())
	require.NotZero(t, tx.TimeStamp)

	failed := transaction.New(transaction.KindUnstake, caller, caller)
	failed.Fail(fmt.Errorf("wrapped: %w", types.ErrInvalidProof))
	require.Equal(t, transaction.PhaseFailed, failed.ConfirmingPhase)
	require.Equal(t, types.KindInvalidProof, failed.ErrKind)

	data, err := failed.MarshalToJSON()
	require.NoError(t, err)
	back := new(transaction.Transaction)
	require.NoError(t, json.Unmarshal(data, back))
	require.Equal(t, failed.UUID, back.UUID)
	require.Equal(t, failed.ErrKind, back.ErrKind)
}
