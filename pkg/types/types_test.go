package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_OperationStateTransitions(t *testing.T) {
	t.Run("Should allow the documented lifecycle", func(t *testing.T) {
		assert.True(t, OperationStateValidating.CanTransitionTo(OperationStateSubmitted))
		assert.True(t, OperationStateValidating.CanTransitionTo(OperationStateRejected))
		assert.True(t, OperationStateSubmitted.CanTransitionTo(OperationStateConfirmed))
		assert.True(t, OperationStateSubmitted.CanTransitionTo(OperationStateFailed))
	})

	t.Run("Should never move back from submitted", func(t *testing.T) {
		assert.False(t, OperationStateSubmitted.CanTransitionTo(OperationStateValidating))
		assert.False(t, OperationStateSubmitted.CanTransitionTo(OperationStateRejected))
		assert.False(t, OperationStateValidating.CanTransitionTo(OperationStateConfirmed))
	})

	t.Run("Should treat outcomes as terminal", func(t *testing.T) {
		for _, s := range []OperationState{OperationStateConfirmed, OperationStateRejected, OperationStateFailed} {
			assert.True(t, s.IsTerminal(), s)
			assert.False(t, s.CanTransitionTo(OperationStateSubmitted), s)
		}
		assert.False(t, OperationStateValidating.IsTerminal())
	})

	t.Run("Should update the record on a valid transition only", func(t *testing.T) {
		op := &OperationRecord{ID: "op", State: OperationStateValidating, CreatedAt: 1, UpdatedAt: 1}
		require.NoError(t, op.Transition(OperationStateSubmitted, 2))
		assert.Equal(t, int64(2), op.UpdatedAt)

		assert.Error(t, op.Transition(OperationStateRejected, 3))
		assert.Equal(t, OperationStateSubmitted, op.State)
		assert.Equal(t, int64(2), op.UpdatedAt)
	})
}

func Test_OperationRecordClone(t *testing.T) {
	op := &OperationRecord{ID: "op", Params: map[string]string{"amount": "1"}}
	c := op.Clone()
	c.Params["amount"] = "2"
	assert.Equal(t, "1", op.Params["amount"])
}

func Test_Amount(t *testing.T) {
	t.Run("Should accept strings and numbers", func(t *testing.T) {
		var req MintRequest
		require.NoError(t, json.Unmarshal([]byte(`{"amount":"10.5","walletAddress":"0xabc"}`), &req))
		assert.Equal(t, Amount("10.5"), req.Amount)

		require.NoError(t, json.Unmarshal([]byte(`{"amount":10.5}`), &req))
		assert.Equal(t, Amount("10.5"), req.Amount)

		var burn BurnRequest
		require.NoError(t, json.Unmarshal([]byte(`{"amount":0.000001}`), &burn))
		assert.Equal(t, "0.000001", burn.Amount.String())
	})

	t.Run("Should reject other JSON types", func(t *testing.T) {
		var req BurnRequest
		assert.Error(t, json.Unmarshal([]byte(`{"amount":true}`), &req))
		assert.Error(t, json.Unmarshal([]byte(`{"amount":{"v":1}}`), &req))
	})
}

func Test_WalletRecordPermitExpired(t *testing.T) {
	w := &WalletRecord{PermitDeadline: 100}
	assert.False(t, w.PermitExpired(99))
	assert.True(t, w.PermitExpired(100))
	assert.False(t, (&WalletRecord{}).PermitExpired(100))
}
