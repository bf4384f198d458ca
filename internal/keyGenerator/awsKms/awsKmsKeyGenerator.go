package awsKms

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DeletionWindowDays is the shortest pending window KMS allows before a
// scheduled key is actually deleted.
const DeletionWindowDays int32 = 7

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// kmsAPI is the subset of the KMS client the generator uses.
type kmsAPI interface {
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	ScheduleKeyDeletion(ctx context.Context, params *kms.ScheduleKeyDeletionInput, optFns ...func(*kms.Options)) (*kms.ScheduleKeyDeletionOutput, error)
}

type AWSKMSKeyGenerator struct {
	logger      *zap.Logger
	kmsClient   kmsAPI
	awsRegion   string
	environment string
}

var _ keyGenerator.IKeyGenerator = (*AWSKMSKeyGenerator)(nil)

// NewAWSKMSKeyGenerator creates a generator backed by KMS. environment is recorded
// as a tag on every key, typically the chain name.
func NewAWSKMSKeyGenerator(awsCfg aws.Config, awsRegion string, environment string, logger *zap.Logger) *AWSKMSKeyGenerator {
	return newAWSKMSKeyGenerator(kms.NewFromConfig(awsCfg), awsRegion, environment, logger)
}

func newAWSKMSKeyGenerator(client kmsAPI, awsRegion string, environment string, logger *zap.Logger) *AWSKMSKeyGenerator {
	return &AWSKMSKeyGenerator{
		logger:      logger,
		kmsClient:   client,
		awsRegion:   awsRegion,
		environment: environment,
	}
}

func (a *AWSKMSKeyGenerator) SignDigest(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	return a.getSignatureFromKms(ctx, keyId, digest)
}

func (a *AWSKMSKeyGenerator) GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*keyGenerator.GeneratedECDSAKey, error) {
	keyRes, err := a.createEthereumSigningKey(ctx, keyName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ECDSA key %s in region %s", keyName, a.awsRegion)
	}
	keyId := aws.ToString(keyRes.KeyMetadata.KeyId)

	if aliasName != "" {
		if err := a.createKeyAlias(ctx, keyId, aliasName); err != nil {
			return nil, errors.Wrapf(err, "failed to create alias %s for key %s in region %s", aliasName, keyId, a.awsRegion)
		}
	}

	return a.GetECDSAKeyById(ctx, keyId)
}

func (a *AWSKMSKeyGenerator) GetECDSAKeyById(ctx context.Context, keyId string) (*keyGenerator.GeneratedECDSAKey, error) {
	pub, err := a.getPublicKey(ctx, keyId)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", keyId, a.awsRegion)
	}

	return &keyGenerator.GeneratedECDSAKey{
		PublicKey: pub,
		Address:   crypto.PubkeyToAddress(*pub),
		KeyId:     keyId,
	}, nil
}

// DestroyKey schedules the key for deletion. KMS disables it immediately, so it
// can no longer sign once this returns.
func (a *AWSKMSKeyGenerator) DestroyKey(ctx context.Context, keyId string) error {
	_, err := a.kmsClient.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
		KeyId:               aws.String(keyId),
		PendingWindowInDays: aws.Int32(DeletionWindowDays),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to schedule deletion of key %s in region %s", keyId, a.awsRegion)
	}
	a.logger.Sugar().Infow("Scheduled KMS key deletion",
		"keyId", keyId,
		"pendingWindowDays", DeletionWindowDays,
	)
	return nil
}

// createEthereumSigningKey creates a secp256k1 signing key
func (a *AWSKMSKeyGenerator) createEthereumSigningKey(ctx context.Context, keyName string) (*kms.CreateKeyOutput, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     types.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("Permit owner key for treasury wallet - %s", keyName)),
		Tags: []types.Tag{
			{TagKey: aws.String("Name"), TagValue: aws.String(keyName)},
			{TagKey: aws.String("Environment"), TagValue: aws.String(a.environment)},
			{TagKey: aws.String("Purpose"), TagValue: aws.String("permit-owner")},
			{TagKey: aws.String("Curve"), TagValue: aws.String("secp256k1")},
			{TagKey: aws.String("EigenTreasury"), TagValue: aws.String("true")},
		},
	}

	result, err := a.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return nil, fmt.Errorf("KMS returned no key metadata")
	}
	return result, nil
}

func (a *AWSKMSKeyGenerator) createKeyAlias(ctx context.Context, keyId, aliasName string) error {
	_, err := a.kmsClient.CreateAlias(ctx, &kms.CreateAliasInput{
		AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
		TargetKeyId: aws.String(keyId),
	})
	if err != nil {
		return fmt.Errorf("failed to create key alias: %w", err)
	}

	a.logger.Sugar().Debugw("Created KMS key alias", "alias", aliasName, "keyId", keyId)
	return nil
}

func (a *AWSKMSKeyGenerator) getPublicKey(ctx context.Context, keyId string) (*cryptoEcdsa.PublicKey, error) {
	result, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyId),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	return parseECDSAPublicKey(result.PublicKey)
}

// parseECDSAPublicKey parses the DER-encoded SubjectPublicKeyInfo returned by KMS
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// getSignatureFromKms signs digest in KMS and converts the DER signature into
// a low-S 65 byte Ethereum signature with V in {27, 28}.
func (a *AWSKMSKeyGenerator) getSignatureFromKms(ctx context.Context, keyId string, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}

	expectedPubKey, err := a.getPublicKey(ctx, keyId)
	if err != nil {
		return nil, err
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyId),
		Message:          digest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with key %s", keyId)
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	s := new(big.Int).SetBytes(sigAsn1.S.Bytes)
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	signature := make([]byte, 65)
	r.FillBytes(signature[0:32])
	s.FillBytes(signature[32:64])

	// KMS does not return a recovery id, so find the one that yields our key
	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		signature[64] = recoveryId
		recovered, err := crypto.SigToPub(digest, signature)
		if err != nil {
			a.logger.Debug("Public key recovery failed", zap.Uint8("recoveryId", recoveryId), zap.Error(err))
			continue
		}
		if recovered.X.Cmp(expectedPubKey.X) == 0 && recovered.Y.Cmp(expectedPubKey.Y) == 0 {
			signature[64] = 27 + recoveryId
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID for key %s", keyId)
}
