package localKeyGenerator

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type keyEntry struct {
	privateKey *ecdsa.PrivateKey
	keyName    string
	aliasName  string
	address    common.Address
}

// LocalKeyGenerator keeps keys in process memory. Destroyed keys are zeroed
// before being dropped from the store.
type LocalKeyGenerator struct {
	logger   *zap.Logger
	keyStore map[string]*keyEntry // keyId -> keyEntry
	mu       sync.RWMutex
}

var _ keyGenerator.IKeyGenerator = (*LocalKeyGenerator)(nil)

func NewLocalKeyGenerator(logger *zap.Logger) *LocalKeyGenerator {
	return &LocalKeyGenerator{
		logger:   logger,
		keyStore: make(map[string]*keyEntry),
	}
}

func (l *LocalKeyGenerator) GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*keyGenerator.GeneratedECDSAKey, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	keyId := fmt.Sprintf("local-key-%s", uuid.New().String())
	if err := l.LoadPrivateKey(keyId, privateKey, keyName, aliasName); err != nil {
		return nil, err
	}

	return &keyGenerator.GeneratedECDSAKey{
		PublicKey: &privateKey.PublicKey,
		Address:   crypto.PubkeyToAddress(privateKey.PublicKey),
		KeyId:     keyId,
	}, nil
}

func (l *LocalKeyGenerator) GetECDSAKeyById(ctx context.Context, keyId string) (*keyGenerator.GeneratedECDSAKey, error) {
	l.mu.RLock()
	entry, exists := l.keyStore[keyId]
	l.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}

	return &keyGenerator.GeneratedECDSAKey{
		PublicKey: &entry.privateKey.PublicKey,
		Address:   entry.address,
		KeyId:     keyId,
	}, nil
}

func (l *LocalKeyGenerator) SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, exists := l.keyStore[keyId]
	if !exists {
		return nil, fmt.Errorf("key with ID %s not found", keyId)
	}

	sig, err := crypto.Sign(digest, entry.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with key %s: %w", keyId, err)
	}
	sig[64] += 27

	l.logger.Debug("Signed digest with local key",
		zap.String("keyId", keyId),
		zap.String("address", entry.address.String()),
	)
	return sig, nil
}

func (l *LocalKeyGenerator) DestroyKey(ctx context.Context, keyId string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.keyStore[keyId]
	if !exists {
		return fmt.Errorf("key with ID %s not found", keyId)
	}
	entry.privateKey.D.SetInt64(0)
	entry.privateKey = nil
	delete(l.keyStore, keyId)

	l.logger.Debug("Destroyed local key",
		zap.String("keyId", keyId),
		zap.String("address", entry.address.String()),
	)
	return nil
}

// LoadPrivateKey loads a pre-existing private key into the key store.
func (l *LocalKeyGenerator) LoadPrivateKey(keyId string, privateKey *ecdsa.PrivateKey, keyName string, aliasName string) error {
	if privateKey == nil {
		return fmt.Errorf("private key cannot be nil")
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.keyStore[keyId]; exists {
		return fmt.Errorf("key with ID %s already exists", keyId)
	}

	l.keyStore[keyId] = &keyEntry{
		privateKey: privateKey,
		keyName:    keyName,
		aliasName:  aliasName,
		address:    address,
	}

	l.logger.Info("Loaded local ECDSA key",
		zap.String("keyId", keyId),
		zap.String("keyName", keyName),
		zap.String("aliasName", aliasName),
		zap.String("address", address.String()),
	)
	return nil
}

// LoadPrivateKeyFromHex loads a private key from a hex string, with or without 0x.
func (l *LocalKeyGenerator) LoadPrivateKeyFromHex(keyId string, privateKeyHex string, keyName string, aliasName string) error {
	privateKey, err := crypto.HexToECDSA(trim0x(privateKeyHex))
	if err != nil {
		return fmt.Errorf("failed to parse private key from hex: %w", err)
	}
	return l.LoadPrivateKey(keyId, privateKey, keyName, aliasName)
}

// GetKeyCount returns the number of live keys in the store.
func (l *LocalKeyGenerator) GetKeyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keyStore)
}

func (l *LocalKeyGenerator) KeyExists(keyId string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.keyStore[keyId]
	return exists
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
