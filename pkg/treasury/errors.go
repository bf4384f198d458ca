package treasury

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the orchestrator reports.
type ErrorKind string

const (
	KindValidation          ErrorKind = "ValidationError"
	KindAuthorization       ErrorKind = "AuthorizationError"
	KindProvisioning        ErrorKind = "ProvisioningError"
	KindInsufficientBalance ErrorKind = "InsufficientBalanceError"
	KindTransaction         ErrorKind = "TransactionError"
	KindConfirmationTimeout ErrorKind = "ConfirmationTimeout"
)

// Error is the only error type returned by Orchestrator methods.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of a treasury error, or the empty kind for anything else.
func KindOf(err error) ErrorKind {
	var treasuryErr *Error
	if errors.As(err, &treasuryErr) {
		return treasuryErr.Kind
	}
	return ""
}
