package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/aws"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator/awsKms"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/logger"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Generates a throwaway owner key in KMS, signs a digest with it, checks the
// recovered address and schedules the key for deletion.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	ctx := context.Background()

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := aws.LoadAWSConfig(ctx, region)
	if err != nil {
		l.Sugar().Fatalw("failed to load AWS config", "error", err)
	}
	identity, err := aws.ResolveIdentity(ctx, awsCfg)
	if err != nil {
		l.Sugar().Fatalw("failed to resolve identity", "error", err)
	}
	l.Sugar().Infow("Using AWS identity", "account", identity.Account, "arn", identity.Arn)

	keyGen := awsKms.NewAWSKMSKeyGenerator(awsCfg, region, "hack", l)
	name := fmt.Sprintf("treasury-hack-%s", uuid.New().String())
	generated, err := keyGen.GenerateECDSAKey(ctx, name, name)
	if err != nil {
		l.Sugar().Fatalw("failed to generate key", "error", err)
	}
	owner := keyGenerator.NewOwnerKey(keyGen, generated)
	defer func() {
		if err := owner.Discard(ctx); err != nil {
			l.Sugar().Errorw("failed to discard key", "keyId", owner.KeyId(), "error", err)
		}
	}()

	digest := crypto.Keccak256([]byte("treasury kms check"))
	sig, err := owner.SignDigest(ctx, digest)
	if err != nil {
		l.Sugar().Fatalw("failed to sign digest", "error", err)
	}
	sig[64] -= 27
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		l.Sugar().Fatalw("failed to recover signer", "error", err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	fmt.Printf("key id:    %s\n", owner.KeyId())
	fmt.Printf("address:   %s\n", owner.Address().Hex())
	fmt.Printf("recovered: %s\n", recovered.Hex())
	if recovered != owner.Address() {
		l.Sugar().Fatalw("recovered address does not match key address")
	}
}
