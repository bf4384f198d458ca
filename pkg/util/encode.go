package util

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

func EncodeString(str string) ([]byte, error) {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		return nil, err
	}
	return abi.Arguments{{Type: stringType}}.Pack(str)
}

// EncodeRevertReason returns the revert payload a contract emits for
// require(..., reason): the Error(string) selector followed by the encoded reason.
func EncodeRevertReason(reason string) ([]byte, error) {
	encoded, err := EncodeString(reason)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, revertSelector...), encoded...), nil
}
