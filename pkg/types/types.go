package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// WalletStatus tracks a provisioned wallet through authorization.
type WalletStatus string

const (
	// WalletStatusGenerated means the owner key exists but the permit is not yet confirmed.
	WalletStatusGenerated WalletStatus = "generated"
	// WalletStatusAuthorized means the standing permit to the treasury is on chain.
	WalletStatusAuthorized WalletStatus = "authorized"
	// WalletStatusUnusable means authorization failed. The owner key is gone, so
	// the wallet can never be authorized and is not retried.
	WalletStatusUnusable WalletStatus = "unusable"
)

// WalletRecord is the registry entry for a provisioned wallet. It never holds key material.
type WalletRecord struct {
	Address        string       `json:"address"`
	Status         WalletStatus `json:"status"`
	Spender        string       `json:"spender"`
	PermitDeadline int64        `json:"permitDeadline"`
	PermitTxHash   string       `json:"permitTxHash,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      int64        `json:"createdAt"`
	UpdatedAt      int64        `json:"updatedAt"`
}

// PermitExpired reports whether the wallet's permit deadline has passed at unix time now.
func (w *WalletRecord) PermitExpired(now int64) bool {
	return w.PermitDeadline > 0 && now >= w.PermitDeadline
}

type OperationType string

const (
	OperationTypeCreateWallet OperationType = "create-wallet"
	OperationTypeMint         OperationType = "mint"
	OperationTypeCollect      OperationType = "collect"
	OperationTypeBurn         OperationType = "burn"
)

// OperationState is the lifecycle of a single treasury operation:
//
//	validating -> submitted -> confirmed
//	validating -> rejected
//	submitted  -> failed
type OperationState string

const (
	OperationStateValidating OperationState = "validating"
	OperationStateSubmitted  OperationState = "submitted"
	OperationStateConfirmed  OperationState = "confirmed"
	OperationStateRejected   OperationState = "rejected"
	OperationStateFailed     OperationState = "failed"
)

var operationTransitions = map[OperationState][]OperationState{
	OperationStateValidating: {OperationStateSubmitted, OperationStateRejected},
	OperationStateSubmitted:  {OperationStateConfirmed, OperationStateFailed},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s OperationState) CanTransitionTo(next OperationState) bool {
	for _, allowed := range operationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OperationState) IsTerminal() bool {
	return len(operationTransitions[s]) == 0
}

// OperationRecord is the journal entry for one orchestrator call.
type OperationRecord struct {
	ID          string            `json:"id"`
	Type        OperationType     `json:"type"`
	State       OperationState    `json:"state"`
	Params      map[string]string `json:"params,omitempty"`
	TxHash      string            `json:"txHash,omitempty"`
	BlockNumber uint64            `json:"blockNumber,omitempty"`
	ErrorKind   string            `json:"errorKind,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   int64             `json:"createdAt"`
	UpdatedAt   int64             `json:"updatedAt"`
}

// Transition moves the record to next, refusing moves the lifecycle does not allow.
func (o *OperationRecord) Transition(next OperationState, at int64) error {
	if !o.State.CanTransitionTo(next) {
		return fmt.Errorf("operation %s cannot move from %s to %s", o.ID, o.State, next)
	}
	o.State = next
	o.UpdatedAt = at
	return nil
}

// Clone returns a deep copy of the record.
func (o *OperationRecord) Clone() *OperationRecord {
	if o == nil {
		return nil
	}
	c := *o
	if o.Params != nil {
		c.Params = make(map[string]string, len(o.Params))
		for k, v := range o.Params {
			c.Params[k] = v
		}
	}
	return &c
}

// Amount is a decimal token quantity that unmarshals from either a JSON string
// or a JSON number. Numbers keep their literal text so no float rounding occurs.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

func (a Amount) String() string {
	return string(a)
}
