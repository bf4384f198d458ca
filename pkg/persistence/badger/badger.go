package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixWallet      = "wallet:"
	keyPrefixOperation   = "operation:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a disk-backed persistence implementation using Badger.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens the database at dataPath with SyncWrites enabled
// and starts a background value log GC goroutine.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *BadgerPersistence) put(key string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get returns nil data when the key does not exist
func (b *BadgerPersistence) get(key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	return data, err
}

// scan calls fn with a copy of every value stored under prefix
func (b *BadgerPersistence) scan(prefix string, fn func(key string, data []byte)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}
			fn(string(item.Key()), data)
		}
		return nil
	})
}

func (b *BadgerPersistence) SaveWallet(wallet *types.WalletRecord) error {
	data, err := persistence.MarshalWallet(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal WalletRecord: %w", err)
	}
	return b.put(keyPrefixWallet+persistence.WalletKey(wallet.Address), data)
}

func (b *BadgerPersistence) LoadWallet(address string) (*types.WalletRecord, error) {
	data, err := b.get(keyPrefixWallet + persistence.WalletKey(address))
	if err != nil {
		return nil, fmt.Errorf("failed to load WalletRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalWallet(data)
}

func (b *BadgerPersistence) ListWallets() ([]*types.WalletRecord, error) {
	wallets := []*types.WalletRecord{}
	err := b.scan(keyPrefixWallet, func(key string, data []byte) {
		w, err := persistence.UnmarshalWallet(data)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal WalletRecord, skipping", "key", key, "error", err)
			return
		}
		wallets = append(wallets, w)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list WalletRecords: %w", err)
	}

	persistence.SortWallets(wallets)
	return wallets, nil
}

func (b *BadgerPersistence) SaveOperation(op *types.OperationRecord) error {
	data, err := persistence.MarshalOperation(op)
	if err != nil {
		return fmt.Errorf("failed to marshal OperationRecord: %w", err)
	}
	return b.put(keyPrefixOperation+op.ID, data)
}

func (b *BadgerPersistence) LoadOperation(id string) (*types.OperationRecord, error) {
	data, err := b.get(keyPrefixOperation + id)
	if err != nil {
		return nil, fmt.Errorf("failed to load OperationRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalOperation(data)
}

func (b *BadgerPersistence) ListOperations() ([]*types.OperationRecord, error) {
	ops := []*types.OperationRecord{}
	err := b.scan(keyPrefixOperation, func(key string, data []byte) {
		op, err := persistence.UnmarshalOperation(data)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal OperationRecord, skipping", "key", key, "error", err)
			return
		}
		ops = append(ops, op)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list OperationRecords: %w", err)
	}

	persistence.SortOperations(ops)
	return ops, nil
}

// Close stops GC and closes the database. Idempotent.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
