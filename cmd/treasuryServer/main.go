package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/config"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/permitSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/server"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/submissionQueue"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/treasury"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/walletProvisioner"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "treasury-server",
		Usage: "Custodial ERC-20 treasury server",
		Description: `Runs the treasury HTTP API in front of a permit-capable ERC-20 token.

The server:
- Provisions wallets whose owner key signs a single standing permit to the treasury
- Mints to, collects from and burns on behalf of the treasury address
- Journals every operation to the configured persistence backend`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file. Flags and environment override its values",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8000,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvTreasuryPort},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars: []string{config.EnvTreasuryChainID},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL",
				Value:   "http://localhost:8545",
				EnvVars: []string{config.EnvTreasuryRPCURL},
			},
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Treasury private key (hex string). Mutually exclusive with --web3signer-url",
				EnvVars: []string{config.EnvTreasuryPrivateKey},
			},
			&cli.StringFlag{
				Name:    "web3signer-url",
				Usage:   "Web3Signer endpoint holding the treasury key",
				EnvVars: []string{config.EnvTreasuryWeb3SignerURL},
			},
			&cli.StringFlag{
				Name:    "from-address",
				Usage:   "Treasury address held by Web3Signer",
				EnvVars: []string{config.EnvTreasuryFromAddress},
			},
			&cli.StringFlag{
				Name:    "token-address",
				Aliases: []string{"token"},
				Usage:   "Address of the permit-capable token contract",
				EnvVars: []string{config.EnvTreasuryTokenAddress},
			},
			&cli.StringFlag{
				Name:    "token-name",
				Usage:   "EIP-712 domain name of the token",
				Value:   config.DefaultTokenName,
				EnvVars: []string{config.EnvTreasuryTokenName},
			},
			&cli.StringFlag{
				Name:    "token-version",
				Usage:   "EIP-712 domain version of the token",
				Value:   config.DefaultTokenVersion,
				EnvVars: []string{config.EnvTreasuryTokenVersion},
			},
			&cli.UintFlag{
				Name:    "token-decimals",
				Usage:   "Decimals of the token",
				Value:   config.DefaultTokenDecimals,
				EnvVars: []string{config.EnvTreasuryTokenDecimals},
			},
			&cli.DurationFlag{
				Name:    "permit-window",
				Usage:   "How long a provisioned wallet's permit stays valid",
				Value:   config.DefaultPermitWindow,
				EnvVars: []string{config.EnvTreasuryPermitWindow},
			},
			&cli.StringFlag{
				Name:    "owner-key-backend",
				Usage:   "Where wallet owner keys are generated: local or aws-kms",
				Value:   string(config.OwnerKeyBackend_Local),
				EnvVars: []string{config.EnvTreasuryOwnerKeyBackend},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for the aws-kms owner key backend",
				EnvVars: []string{config.EnvTreasuryAWSRegion},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Usage:   "Operation journal backend: memory, badger or redis",
				Value:   string(config.PersistenceType_Memory),
				EnvVars: []string{config.EnvTreasuryPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Data directory for badger persistence",
				EnvVars: []string{config.EnvTreasuryDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for redis persistence",
				EnvVars: []string{config.EnvTreasuryRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvTreasuryRedisPassword},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Also write logs to this rotated file",
				EnvVars: []string{config.EnvTreasuryLogFile},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvTreasuryVerbose},
			},
		},
		Action: runTreasuryServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runTreasuryServer(c *cli.Context) error {
	cfg, err := parseTreasuryConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug:   cfg.Debug,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ethereumClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	ethClient, err := ethereumClient.GetEthereumContractCaller()
	if err != nil {
		return fmt.Errorf("failed to get Ethereum contract caller: %w", err)
	}

	signer, err := buildTransactionSigner(cfg, ethClient, l)
	if err != nil {
		return err
	}

	m := metrics.NewTreasuryMetrics()
	queue := submissionQueue.NewSubmissionQueue(nil, signer, ethClient, l)
	defer queue.Close()
	m.TrackQueueDepth(queue.Depth)

	tokenClient, err := caller.NewContractCaller(ethClient, cfg.Token.GetAddress(), signer, queue, l)
	if err != nil {
		return fmt.Errorf("failed to create contract caller: %w", err)
	}

	builder, err := typedData.NewTypedDataBuilder(typedData.Domain{
		Name:              cfg.Token.Name,
		Version:           cfg.Token.Version,
		ChainId:           signer.ChainID(),
		VerifyingContract: cfg.Token.GetAddress(),
	})
	if err != nil {
		return fmt.Errorf("failed to create permit domain: %w", err)
	}

	keys, err := buildKeyGenerator(ctx, cfg, l)
	if err != nil {
		return err
	}

	store, err := buildPersistence(cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Sugar().Errorw("Failed to close persistence", "error", err)
		}
	}()

	provisioner := walletProvisioner.NewWalletProvisioner(
		&walletProvisioner.Config{PermitWindow: cfg.PermitWindow},
		keys,
		permitSigner.NewPermitSigner(builder, l),
		tokenClient,
		store,
		l,
	)
	orchestrator := treasury.NewOrchestrator(&treasury.Config{Decimals: cfg.Token.Decimals}, tokenClient, provisioner, store, m, l)

	srv := server.NewServer(&server.Config{
		Port:         cfg.Port,
		ChainID:      uint64(cfg.ChainID),
		TokenAddress: cfg.Token.GetAddress(),
		HealthCheck:  store.HealthCheck,
	}, orchestrator, m, l)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Treasury server running",
		zap.String("treasury", signer.GetFromAddress().Hex()),
		zap.String("token", cfg.Token.Address),
		zap.Int("port", cfg.Port),
		zap.String("owner_key_backend", string(cfg.OwnerKeyBackend)),
		zap.String("persistence", string(cfg.Persistence.Type)),
	)
	l.Sugar().Info("Press Ctrl+C to stop")

	<-ctx.Done()
	l.Sugar().Infow("Shutting down treasury server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		l.Sugar().Errorw("Failed to stop HTTP server cleanly", "error", err)
	}
	return nil
}

// parseTreasuryConfig layers defaults, the optional config file, then any flag
// or environment variable that was explicitly set.
func parseTreasuryConfig(c *cli.Context) (*config.TreasuryServerConfig, error) {
	cfg := config.NewDefaultTreasuryServerConfig()
	if path := c.String("config"); path != "" {
		if err := config.LoadConfigFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("chain-id") {
		cfg.ChainID = config.ChainId(c.Uint64("chain-id"))
	}
	if c.IsSet("rpc-url") {
		cfg.RpcUrl = c.String("rpc-url")
	}
	if c.IsSet("private-key") {
		cfg.PrivateKey = c.String("private-key")
	}
	if c.IsSet("web3signer-url") || c.IsSet("from-address") {
		if cfg.RemoteSigner == nil {
			cfg.RemoteSigner = &config.RemoteSignerConfig{}
		}
		if c.IsSet("web3signer-url") {
			cfg.RemoteSigner.Url = c.String("web3signer-url")
		}
		if c.IsSet("from-address") {
			cfg.RemoteSigner.FromAddress = c.String("from-address")
		}
	}
	if c.IsSet("token-address") {
		cfg.Token.Address = c.String("token-address")
	}
	if c.IsSet("token-name") {
		cfg.Token.Name = c.String("token-name")
	}
	if c.IsSet("token-version") {
		cfg.Token.Version = c.String("token-version")
	}
	if c.IsSet("token-decimals") {
		cfg.Token.Decimals = uint8(c.Uint("token-decimals"))
	}
	if c.IsSet("permit-window") {
		cfg.PermitWindow = c.Duration("permit-window")
	}
	if c.IsSet("owner-key-backend") {
		cfg.OwnerKeyBackend = config.OwnerKeyBackend(c.String("owner-key-backend"))
	}
	if c.IsSet("aws-region") {
		cfg.AWSRegion = c.String("aws-region")
	}
	if c.IsSet("persistence-type") {
		cfg.Persistence.Type = config.PersistenceType(c.String("persistence-type"))
	}
	if c.IsSet("data-path") {
		cfg.Persistence.DataPath = c.String("data-path")
	}
	if c.IsSet("redis-address") {
		cfg.Persistence.RedisAddress = c.String("redis-address")
	}
	if c.IsSet("redis-password") {
		cfg.Persistence.RedisPassword = c.String("redis-password")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.IsSet("verbose") {
		cfg.Debug = c.Bool("verbose")
	}
	return cfg, nil
}
