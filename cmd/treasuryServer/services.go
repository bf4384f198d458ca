package main

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/aws"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator/awsKms"
	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/config"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence/redis"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func buildTransactionSigner(cfg *config.TreasuryServerConfig, ethClient transactionSigner.ChainIDReader, l *zap.Logger) (transactionSigner.ITransactionSigner, error) {
	if cfg.RemoteSigner != nil {
		client, err := web3signer.NewWeb3SignerClientFromRemoteSignerConfig(cfg.RemoteSigner, l)
		if err != nil {
			return nil, fmt.Errorf("failed to create web3signer client: %w", err)
		}
		signer, err := transactionSigner.NewWeb3TransactionSigner(client, common.HexToAddress(cfg.RemoteSigner.FromAddress), ethClient, l)
		if err != nil {
			return nil, fmt.Errorf("failed to create web3signer transaction signer: %w", err)
		}
		return signer, nil
	}

	signer, err := transactionSigner.NewTransactionSigner(&transactionSigner.SignerConfig{PrivateKey: cfg.PrivateKey}, ethClient, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction signer: %w", err)
	}
	return signer, nil
}

func buildKeyGenerator(ctx context.Context, cfg *config.TreasuryServerConfig, l *zap.Logger) (keyGenerator.IKeyGenerator, error) {
	switch cfg.OwnerKeyBackend {
	case config.OwnerKeyBackend_AWSKMS:
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		identity, err := aws.ResolveIdentity(ctx, awsCfg)
		if err != nil {
			return nil, err
		}
		l.Sugar().Infow("Generating owner keys in AWS KMS",
			"region", cfg.AWSRegion,
			"account", identity.Account,
			"arn", identity.Arn,
		)
		return awsKms.NewAWSKMSKeyGenerator(awsCfg, cfg.AWSRegion, string(cfg.ChainName), l), nil
	default:
		l.Sugar().Warnw("Generating owner keys in process memory")
		return localKeyGenerator.NewLocalKeyGenerator(l), nil
	}
}

func buildPersistence(cfg *config.TreasuryServerConfig, l *zap.Logger) (persistence.ITreasuryPersistence, error) {
	switch cfg.Persistence.Type {
	case config.PersistenceType_Badger:
		store, err := badger.NewBadgerPersistence(cfg.Persistence.DataPath, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger persistence: %w", err)
		}
		return store, nil
	case config.PersistenceType_Redis:
		store, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Persistence.RedisAddress,
			Password:  cfg.Persistence.RedisPassword,
			DB:        cfg.Persistence.RedisDB,
			KeyPrefix: string(cfg.ChainName) + ":",
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis persistence: %w", err)
		}
		return store, nil
	default:
		return memory.NewMemoryPersistence(l), nil
	}
}
