package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/treasury"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

/*
Server exposes the treasury over HTTP.

Transactions (each call blocks until the transaction is mined or fails):
  POST /transactions/create-wallet
    - Provisions a wallet and waits for its permit to the treasury signer
    - Response: { address, operationId }
  POST /transactions/mint         { amount, walletAddress }
  POST /transactions/collect-usdc { from, to }
  POST /transactions/burn-usdc    { amount }
    - Response: { txHash, blockNumber, operationId }
    - amount may be a JSON string or number, at most 6 decimals

Queries:
  GET /wallets/{address}   wallet registry entry
  GET /operations/{id}     operation journal entry
  GET /health
  GET /metrics             prometheus exposition

Failures always use { kind, message }:
  400 ValidationError, InsufficientBalanceError, TransactionError
  502 ProvisioningError, AuthorizationError
  504 ConfirmationTimeout
*/

const DefaultConfirmationTimeout = 5 * time.Minute

// ITreasury is the set of operations the server exposes.
type ITreasury interface {
	CreateWallet(ctx context.Context) (*treasury.WalletResult, error)
	Mint(ctx context.Context, value string, to string) (*treasury.Result, error)
	Collect(ctx context.Context, from string, to string) (*treasury.Result, error)
	Burn(ctx context.Context, value string) (*treasury.Result, error)
	GetOperation(id string) (*types.OperationRecord, error)
	GetWallet(address string) (*types.WalletRecord, error)
	TreasuryAddress() common.Address
}

type Config struct {
	Port         int
	ChainID      uint64
	TokenAddress common.Address

	// ConfirmationTimeout bounds how long a transaction request waits for its receipt.
	ConfirmationTimeout time.Duration

	// HealthCheck reports storage health. Optional.
	HealthCheck func() error
}

// Server handles HTTP requests for the treasury
type Server struct {
	config     *Config
	treasury   ITreasury
	metrics    *metrics.TreasuryMetrics
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *Config, t ITreasury, m *metrics.TreasuryMetrics, logger *zap.Logger) *Server {
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	s := &Server{
		config:   cfg,
		treasury: t,
		metrics:  m,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/transactions", func(tr chi.Router) {
		tr.With(m.Middleware("create-wallet")).Post("/create-wallet", s.handleCreateWallet)
		tr.With(m.Middleware("mint")).Post("/mint", s.handleMint)
		tr.With(m.Middleware("collect")).Post("/collect-usdc", s.handleCollect)
		tr.With(m.Middleware("burn")).Post("/burn-usdc", s.handleBurn)
	})

	r.With(m.Middleware("wallet")).Get("/wallets/{address}", s.handleGetWallet)
	r.With(m.Middleware("operation")).Get("/operations/{id}", s.handleGetOperation)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", m.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server",
			"treasury_address", s.treasury.TreasuryAddress().Hex(),
			"port", s.httpServer.Addr,
		)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server, waiting for in-flight requests until ctx is done
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
