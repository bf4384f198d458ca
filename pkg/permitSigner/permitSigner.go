// Package permitSigner produces and checks EIP-2612 permit signatures.
package permitSigner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const SignatureLength = 65

var (
	ErrOwnerMismatch     = errors.New("signing key does not match permit owner")
	ErrInvalidSignature  = errors.New("invalid permit signature")
	ErrSignatureMismatch = errors.New("permit signature was not produced by the owner")
)

// IDigestSigner is a key that signs 32 byte digests, returning R||S||V with V in {27, 28}.
type IDigestSigner interface {
	Address() common.Address
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// Signature is a 65 byte R||S||V permit signature.
type Signature [SignatureLength]byte

func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != SignatureLength {
		return sig, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(b))
	}
	copy(sig[:], b)
	if sig[64] < 27 {
		sig[64] += 27
	}
	if sig[64] != 27 && sig[64] != 28 {
		return sig, fmt.Errorf("%w: v must be 27 or 28, got %d", ErrInvalidSignature, sig[64])
	}
	return sig, nil
}

func (s Signature) V() uint8 {
	return s[64]
}

func (s Signature) R() [32]byte {
	var r [32]byte
	copy(r[:], s[0:32])
	return r
}

func (s Signature) S() [32]byte {
	var v [32]byte
	copy(v[:], s[32:64])
	return v
}

func (s Signature) Bytes() []byte {
	return append([]byte{}, s[:]...)
}

func (s Signature) Hex() string {
	return hexutil.Encode(s[:])
}

// PermitSigner signs permits for a single token domain.
type PermitSigner struct {
	builder *typedData.TypedDataBuilder
	logger  *zap.Logger
	now     func() time.Time
}

func NewPermitSigner(builder *typedData.TypedDataBuilder, logger *zap.Logger) *PermitSigner {
	return &PermitSigner{
		builder: builder,
		logger:  logger,
		now:     time.Now,
	}
}

// Sign produces the owner's signature over payload. The owner must be the
// payload's Owner and the deadline must be in the future. The signature is
// recovered before being returned.
func (ps *PermitSigner) Sign(ctx context.Context, owner IDigestSigner, payload *typedData.PermitPayload) (Signature, error) {
	if owner == nil {
		return Signature{}, fmt.Errorf("owner key is required")
	}
	if err := payload.Validate(ps.now()); err != nil {
		return Signature{}, err
	}
	if owner.Address() != payload.Owner {
		return Signature{}, fmt.Errorf("%w: key %s, payload owner %s", ErrOwnerMismatch, owner.Address(), payload.Owner)
	}

	digest, err := ps.builder.PermitDigest(payload)
	if err != nil {
		return Signature{}, err
	}

	raw, err := owner.SignDigest(ctx, digest.Bytes())
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign permit digest: %w", err)
	}
	sig, err := SignatureFromBytes(raw)
	if err != nil {
		return Signature{}, err
	}
	// a remote signer answering with the wrong key must not reach the chain
	if err := ps.Verify(payload, sig); err != nil {
		return Signature{}, err
	}

	ps.logger.Sugar().Debugw("Signed permit",
		"owner", payload.Owner.String(),
		"spender", payload.Spender.String(),
		"nonce", payload.Nonce.String(),
		"deadline", payload.Deadline.String(),
	)
	return sig, nil
}

// Recover returns the address that produced sig over payload.
func (ps *PermitSigner) Recover(payload *typedData.PermitPayload, sig Signature) (common.Address, error) {
	digest, err := ps.builder.PermitDigest(payload)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverDigest(digest, sig)
}

// Verify checks that sig over payload recovers to payload.Owner.
func (ps *PermitSigner) Verify(payload *typedData.PermitPayload, sig Signature) error {
	signer, err := ps.Recover(payload, sig)
	if err != nil {
		return err
	}
	if signer != payload.Owner {
		return fmt.Errorf("%w: recovered %s, owner %s", ErrSignatureMismatch, signer, payload.Owner)
	}
	return nil
}

// RecoverDigest recovers the signer of a 32 byte digest, rejecting high-S signatures.
func RecoverDigest(digest common.Hash, sig Signature) (common.Address, error) {
	v := sig.V()
	if v != 27 && v != 28 {
		return common.Address{}, fmt.Errorf("%w: v must be 27 or 28, got %d", ErrInvalidSignature, v)
	}
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v-27, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: signature values out of range", ErrInvalidSignature)
	}

	rsv := sig.Bytes()
	rsv[64] = v - 27
	pub, err := crypto.SigToPub(digest.Bytes(), rsv)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
