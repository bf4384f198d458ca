// Package typedData builds the EIP-712 structures and digests for EIP-2612
// permit authorizations against a fixed token domain.
package typedData

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/amount"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainTypeName = "EIP712Domain"
	PermitTypeName = "Permit"
)

var (
	ErrInvalidDomain  = errors.New("invalid typed data domain")
	ErrInvalidPayload = errors.New("invalid permit payload")
)

// Domain identifies the token contract a permit is valid for.
type Domain struct {
	Name              string
	Version           string
	ChainId           *big.Int
	VerifyingContract common.Address
}

func (d Domain) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDomain)
	}
	if d.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidDomain)
	}
	if d.ChainId == nil || d.ChainId.Sign() <= 0 {
		return fmt.Errorf("%w: chainId must be positive", ErrInvalidDomain)
	}
	if d.VerifyingContract == (common.Address{}) {
		return fmt.Errorf("%w: verifyingContract is required", ErrInvalidDomain)
	}
	return nil
}

// PermitPayload is the message an owner signs to grant Spender an allowance of Value.
type PermitPayload struct {
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

// Validate checks the payload is encodable and that Deadline lies strictly after now.
func (p *PermitPayload) Validate(now time.Time) error {
	if p == nil {
		return fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}
	if p.Owner == (common.Address{}) {
		return fmt.Errorf("%w: owner is required", ErrInvalidPayload)
	}
	if p.Spender == (common.Address{}) {
		return fmt.Errorf("%w: spender is required", ErrInvalidPayload)
	}
	for name, v := range map[string]*big.Int{"value": p.Value, "nonce": p.Nonce, "deadline": p.Deadline} {
		if !amount.FitsUint256(v) {
			return fmt.Errorf("%w: %s must be a uint256", ErrInvalidPayload, name)
		}
	}
	if p.Deadline.Cmp(big.NewInt(now.Unix())) <= 0 {
		return fmt.Errorf("%w: deadline %s is not in the future", ErrInvalidPayload, p.Deadline.String())
	}
	return nil
}

// TypedDataBuilder produces permit typed data for a single domain. The domain
// is fixed at construction and there are no setters.
type TypedDataBuilder struct {
	domain Domain
}

func NewTypedDataBuilder(domain Domain) (*TypedDataBuilder, error) {
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	return &TypedDataBuilder{
		domain: Domain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           new(big.Int).Set(domain.ChainId),
			VerifyingContract: domain.VerifyingContract,
		},
	}, nil
}

// Domain returns a copy of the builder's domain.
func (b *TypedDataBuilder) Domain() Domain {
	d := b.domain
	d.ChainId = new(big.Int).Set(b.domain.ChainId)
	return d
}

// Schema returns the type definitions for the domain and the Permit struct.
func (b *TypedDataBuilder) Schema() apitypes.Types {
	return apitypes.Types{
		DomainTypeName: {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		PermitTypeName: {
			{Name: "owner", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		},
	}
}

// PermitTypedData assembles the full typed data document for p. It only checks
// encodability; deadline freshness is the signer's concern.
func (b *TypedDataBuilder) PermitTypedData(p *PermitPayload) (apitypes.TypedData, error) {
	if p == nil {
		return apitypes.TypedData{}, fmt.Errorf("%w: payload is nil", ErrInvalidPayload)
	}
	for name, v := range map[string]*big.Int{"value": p.Value, "nonce": p.Nonce, "deadline": p.Deadline} {
		if !amount.FitsUint256(v) {
			return apitypes.TypedData{}, fmt.Errorf("%w: %s must be a uint256", ErrInvalidPayload, name)
		}
	}

	return apitypes.TypedData{
		Types:       b.Schema(),
		PrimaryType: PermitTypeName,
		Domain: apitypes.TypedDataDomain{
			Name:              b.domain.Name,
			Version:           b.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(b.domain.ChainId)),
			VerifyingContract: b.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"owner":    p.Owner.Hex(),
			"spender":  p.Spender.Hex(),
			"value":    new(big.Int).Set(p.Value),
			"nonce":    new(big.Int).Set(p.Nonce),
			"deadline": new(big.Int).Set(p.Deadline),
		},
	}, nil
}

// DomainSeparator returns hashStruct(EIP712Domain) for the builder's domain.
func (b *TypedDataBuilder) DomainSeparator() (common.Hash, error) {
	td := apitypes.TypedData{
		Types: b.Schema(),
		Domain: apitypes.TypedDataDomain{
			Name:              b.domain.Name,
			Version:           b.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(b.domain.ChainId)),
			VerifyingContract: b.domain.VerifyingContract.Hex(),
		},
	}
	sep, err := td.HashStruct(DomainTypeName, td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}
	return common.BytesToHash(sep), nil
}

// PermitDigest returns keccak256(0x1901 || domainSeparator || hashStruct(Permit)),
// the 32 bytes an owner signs.
func (b *TypedDataBuilder) PermitDigest(p *PermitPayload) (common.Hash, error) {
	td, err := b.PermitTypedData(p)
	if err != nil {
		return common.Hash{}, err
	}

	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash permit: %w", err)
	}
	domainSeparator, err := td.HashStruct(DomainTypeName, td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256Hash(raw), nil
}
