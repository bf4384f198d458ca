package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"go.uber.org/zap"
)

// MemoryPersistence is an in-memory implementation of ITreasuryPersistence.
//
// All data is lost when the process exits, so a restarted treasury forgets
// which wallets it provisioned. Records are deep copied on the way in and out.
type MemoryPersistence struct {
	mu sync.RWMutex

	// lowercased address -> wallet
	wallets map[string]*types.WalletRecord

	// operation ID -> operation
	operations map[string]*types.OperationRecord

	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer and warns loudly.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	if logger != nil {
		logger.Sugar().Warnw("Using in-memory persistence - ALL WALLET AND OPERATION RECORDS WILL BE LOST ON RESTART",
			"hint", "set TREASURY_PERSISTENCE_TYPE=badger or redis for production",
		)
	}

	return &MemoryPersistence{
		wallets:    make(map[string]*types.WalletRecord),
		operations: make(map[string]*types.OperationRecord),
	}
}

func (m *MemoryPersistence) SaveWallet(wallet *types.WalletRecord) error {
	if wallet == nil {
		return fmt.Errorf("cannot save nil WalletRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	w := *wallet
	m.wallets[persistence.WalletKey(wallet.Address)] = &w
	return nil
}

func (m *MemoryPersistence) LoadWallet(address string) (*types.WalletRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	w, exists := m.wallets[persistence.WalletKey(address)]
	if !exists {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (m *MemoryPersistence) ListWallets() ([]*types.WalletRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	result := make([]*types.WalletRecord, 0, len(m.wallets))
	for _, w := range m.wallets {
		c := *w
		result = append(result, &c)
	}
	persistence.SortWallets(result)
	return result, nil
}

func (m *MemoryPersistence) SaveOperation(op *types.OperationRecord) error {
	if op == nil {
		return fmt.Errorf("cannot save nil OperationRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.operations[op.ID] = op.Clone()
	return nil
}

func (m *MemoryPersistence) LoadOperation(id string) (*types.OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	op, exists := m.operations[id]
	if !exists {
		return nil, nil
	}
	return op.Clone(), nil
}

func (m *MemoryPersistence) ListOperations() ([]*types.OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	result := make([]*types.OperationRecord, 0, len(m.operations))
	for _, op := range m.operations {
		result = append(result, op.Clone())
	}
	persistence.SortOperations(result)
	return result, nil
}

// Close marks the store closed. Idempotent.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
