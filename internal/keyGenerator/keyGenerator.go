package keyGenerator

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type GeneratedECDSAKey struct {
	PublicKey *ecdsa.PublicKey
	Address   common.Address
	KeyId     string
}

func (gek *GeneratedECDSAKey) GetPublicKeyBytes() ([]byte, error) {
	if gek.PublicKey == nil {
		return nil, fmt.Errorf("public key is nil")
	}
	return crypto.FromECDSAPub(gek.PublicKey), nil
}

func (gek *GeneratedECDSAKey) GetPublicKeyHex() (string, error) {
	pubKeyBytes, err := gek.GetPublicKeyBytes()
	if err != nil {
		return "", fmt.Errorf("failed to get public key bytes: %w", err)
	}
	return hexutil.Encode(pubKeyBytes), nil
}

// IKeyGenerator creates and holds secp256k1 keys whose secret never leaves the
// generator. SignDigest returns a 65 byte R||S||V signature with V in {27, 28}.
type IKeyGenerator interface {
	GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*GeneratedECDSAKey, error)
	GetECDSAKeyById(ctx context.Context, keyId string) (*GeneratedECDSAKey, error)
	SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error)
	DestroyKey(ctx context.Context, keyId string) error
}

// OwnerKey is a single generated key bound to the generator holding its secret.
// Once discarded it can no longer sign.
type OwnerKey struct {
	generator IKeyGenerator
	key       *GeneratedECDSAKey

	mu        sync.Mutex
	discarded bool
}

func NewOwnerKey(generator IKeyGenerator, key *GeneratedECDSAKey) *OwnerKey {
	return &OwnerKey{generator: generator, key: key}
}

func (o *OwnerKey) Address() common.Address {
	return o.key.Address
}

func (o *OwnerKey) KeyId() string {
	return o.key.KeyId
}

func (o *OwnerKey) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.discarded {
		return nil, fmt.Errorf("owner key %s has been discarded", o.key.KeyId)
	}
	return o.generator.SignDigest(ctx, o.key.KeyId, digest)
}

// Discard destroys the key in its generator. Calling it more than once is a no-op.
func (o *OwnerKey) Discard(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.discarded {
		return nil
	}
	o.discarded = true
	return o.generator.DestroyKey(ctx, o.key.KeyId)
}

func (o *OwnerKey) IsDiscarded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.discarded
}
