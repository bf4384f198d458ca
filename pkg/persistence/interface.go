package persistence

import "github.com/Layr-Labs/eigenx-treasury-go/pkg/types"

// ITreasuryPersistence stores the wallet registry and the operation journal.
// All implementations must be thread-safe since every request runs on its own goroutine.
//
// Nothing stored here is secret: wallet records never contain key material.
type ITreasuryPersistence interface {
	// Wallet Registry

	// SaveWallet inserts or overwrites the record for wallet.Address.
	SaveWallet(wallet *types.WalletRecord) error

	// LoadWallet retrieves a wallet by address, case-insensitively.
	// Returns nil if the wallet is unknown, error only on storage failure.
	LoadWallet(address string) (*types.WalletRecord, error)

	// ListWallets returns every wallet sorted by CreatedAt (ascending).
	ListWallets() ([]*types.WalletRecord, error)

	// Operation Journal

	// SaveOperation inserts or overwrites the record for op.ID.
	SaveOperation(op *types.OperationRecord) error

	// LoadOperation retrieves an operation by ID.
	// Returns nil if the operation is unknown, error only on storage failure.
	LoadOperation(id string) (*types.OperationRecord, error)

	// ListOperations returns every operation sorted by CreatedAt (ascending).
	ListOperations() ([]*types.OperationRecord, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer. Idempotent.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck returns nil if the persistence layer is operational.
	HealthCheck() error
}
