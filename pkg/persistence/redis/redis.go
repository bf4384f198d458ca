package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixWallet      = "treasury:wallet:"
	keyPrefixOperation   = "treasury:operation:"
	keySchemaVersion     = "treasury:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, so listable records are indexed in sets
	keySetWallets    = "treasury:wallets:index"
	keySetOperations = "treasury:operations:index"

	requestTimeout = 5 * time.Second
)

// RedisPersistence stores records in Redis, for deployments running several
// treasury replicas against shared state.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key for multi-tenant setups, e.g. "staging:".
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "keyPrefix", cfg.KeyPrefix)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// save writes data under prefix+id and records id in the index set atomically
func (r *RedisPersistence) save(prefix, indexSet, id string, data []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(prefix+id), data, 0)
	pipe.SAdd(ctx, r.prefixKey(indexSet), id)
	_, err := pipe.Exec(ctx)
	return err
}

// load returns nil data when the key does not exist
func (r *RedisPersistence) load(prefix, id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefixKey(prefix+id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// loadAll fetches every record named in indexSet with a single MGET
func (r *RedisPersistence) loadAll(prefix, indexSet string) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	indexKey := r.prefixKey(indexSet)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", indexSet, err)
	}
	result := make(map[string][]byte, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(prefix + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// indexed but missing, clean up the index
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}
		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type in Redis, skipping", "key", keys[i])
			continue
		}
		result[keys[i]] = []byte(data)
	}
	return result, nil
}

func (r *RedisPersistence) SaveWallet(wallet *types.WalletRecord) error {
	data, err := persistence.MarshalWallet(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal WalletRecord: %w", err)
	}
	if err := r.save(keyPrefixWallet, keySetWallets, persistence.WalletKey(wallet.Address), data); err != nil {
		return fmt.Errorf("failed to save WalletRecord: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadWallet(address string) (*types.WalletRecord, error) {
	data, err := r.load(keyPrefixWallet, persistence.WalletKey(address))
	if err != nil {
		return nil, fmt.Errorf("failed to load WalletRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalWallet(data)
}

func (r *RedisPersistence) ListWallets() ([]*types.WalletRecord, error) {
	raw, err := r.loadAll(keyPrefixWallet, keySetWallets)
	if err != nil {
		return nil, fmt.Errorf("failed to list WalletRecords: %w", err)
	}

	wallets := make([]*types.WalletRecord, 0, len(raw))
	for key, data := range raw {
		w, err := persistence.UnmarshalWallet(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal WalletRecord, skipping", "key", key, "error", err)
			continue
		}
		wallets = append(wallets, w)
	}
	persistence.SortWallets(wallets)
	return wallets, nil
}

func (r *RedisPersistence) SaveOperation(op *types.OperationRecord) error {
	data, err := persistence.MarshalOperation(op)
	if err != nil {
		return fmt.Errorf("failed to marshal OperationRecord: %w", err)
	}
	if err := r.save(keyPrefixOperation, keySetOperations, op.ID, data); err != nil {
		return fmt.Errorf("failed to save OperationRecord: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadOperation(id string) (*types.OperationRecord, error) {
	data, err := r.load(keyPrefixOperation, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load OperationRecord: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalOperation(data)
}

func (r *RedisPersistence) ListOperations() ([]*types.OperationRecord, error) {
	raw, err := r.loadAll(keyPrefixOperation, keySetOperations)
	if err != nil {
		return nil, fmt.Errorf("failed to list OperationRecords: %w", err)
	}

	ops := make([]*types.OperationRecord, 0, len(raw))
	for key, data := range raw {
		op, err := persistence.UnmarshalOperation(data)
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal OperationRecord, skipping", "key", key, "error", err)
			continue
		}
		ops = append(ops, op)
	}
	persistence.SortOperations(ops)
	return ops, nil
}

// Close shuts down the client. Idempotent.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
