package persistence

import (
	"errors"
	"sort"
	"strings"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("persistence layer is closed")

// WalletKey normalizes an address for use as a storage key.
func WalletKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func SortWallets(wallets []*types.WalletRecord) {
	sort.SliceStable(wallets, func(i, j int) bool {
		if wallets[i].CreatedAt != wallets[j].CreatedAt {
			return wallets[i].CreatedAt < wallets[j].CreatedAt
		}
		return WalletKey(wallets[i].Address) < WalletKey(wallets[j].Address)
	})
}

func SortOperations(ops []*types.OperationRecord) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].CreatedAt != ops[j].CreatedAt {
			return ops[i].CreatedAt < ops[j].CreatedAt
		}
		return ops[i].ID < ops[j].ID
	})
}
