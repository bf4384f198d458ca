package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
)

// MarshalWallet serializes a WalletRecord to JSON bytes.
func MarshalWallet(w *types.WalletRecord) ([]byte, error) {
	if w == nil {
		return nil, fmt.Errorf("cannot marshal nil WalletRecord")
	}
	if w.Address == "" {
		return nil, fmt.Errorf("cannot marshal WalletRecord without an address")
	}
	return json.Marshal(w)
}

// UnmarshalWallet deserializes a WalletRecord from JSON bytes.
func UnmarshalWallet(data []byte) (*types.WalletRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var w types.WalletRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to WalletRecord: %w", err)
	}
	return &w, nil
}

// MarshalOperation serializes an OperationRecord to JSON bytes.
func MarshalOperation(op *types.OperationRecord) ([]byte, error) {
	if op == nil {
		return nil, fmt.Errorf("cannot marshal nil OperationRecord")
	}
	if op.ID == "" {
		return nil, fmt.Errorf("cannot marshal OperationRecord without an ID")
	}
	return json.Marshal(op)
}

// UnmarshalOperation deserializes an OperationRecord from JSON bytes.
func UnmarshalOperation(data []byte) (*types.OperationRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var op types.OperationRecord
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to OperationRecord: %w", err)
	}
	return &op, nil
}
