package testTreasury

import (
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator/localKeyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/permitSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/server"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/submissionQueue"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/treasury"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/walletProvisioner"
)

// TestTreasury is a fully wired treasury server backed by a FakeLedger.
type TestTreasury struct {
	Ledger       *testutil.FakeLedger
	Account      testutil.TreasuryAccount
	Orchestrator *treasury.Orchestrator
	Store        *memory.MemoryPersistence
	Keys         *localKeyGenerator.LocalKeyGenerator
	Metrics      *metrics.TreasuryMetrics
	Server       *httptest.Server
	URL          string

	queue  *submissionQueue.SubmissionQueue
	logger *zap.Logger
}

// NewTestTreasury wires every component against an in-memory ledger and
// serves the HTTP API on an httptest server. Resources are released on test cleanup.
func NewTestTreasury(t *testing.T) *TestTreasury {
	t.Helper()
	l := zaptest.NewLogger(t)

	account := testutil.CreateTreasuryAccount(t)
	ledger := testutil.CreateTestLedger(t, account)

	signer, err := transactionSigner.NewPrivateKeySigner(account.PrivateKeyHex, ledger, l)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	m := metrics.NewTreasuryMetrics()
	queue := submissionQueue.NewSubmissionQueue(nil, signer, ledger, l)
	m.TrackQueueDepth(queue.Depth)

	tokenClient, err := caller.NewContractCaller(ledger, testutil.TestTokenAddress, signer, queue, l)
	if err != nil {
		t.Fatalf("Failed to create contract caller: %v", err)
	}

	builder, err := typedData.NewTypedDataBuilder(typedData.Domain{
		Name:              testutil.LedgerTokenName,
		Version:           testutil.LedgerTokenVersion,
		ChainId:           testutil.TestChainID,
		VerifyingContract: testutil.TestTokenAddress,
	})
	if err != nil {
		t.Fatalf("Failed to create typed data builder: %v", err)
	}

	keys := localKeyGenerator.NewLocalKeyGenerator(l)
	store := memory.NewMemoryPersistence(l)
	provisioner := walletProvisioner.NewWalletProvisioner(nil, keys, permitSigner.NewPermitSigner(builder, l), tokenClient, store, l)
	orchestrator := treasury.NewOrchestrator(&treasury.Config{Decimals: testutil.LedgerDecimals}, tokenClient, provisioner, store, m, l)

	srv := server.NewServer(&server.Config{
		ChainID:      testutil.TestChainID.Uint64(),
		TokenAddress: testutil.TestTokenAddress,
		HealthCheck:  store.HealthCheck,
	}, orchestrator, m, l)
	testServer := httptest.NewServer(srv.GetHandler())
	l.Sugar().Debugw("Started test treasury", "url", testServer.URL, "treasury", account.Address.Hex())

	tt := &TestTreasury{
		Ledger:       ledger,
		Account:      account,
		Orchestrator: orchestrator,
		Store:        store,
		Keys:         keys,
		Metrics:      m,
		Server:       testServer,
		URL:          testServer.URL,
		queue:        queue,
		logger:       l,
	}
	t.Cleanup(tt.Close)
	return tt
}

// Close shuts down the server and drains the submission queue
func (tt *TestTreasury) Close() {
	tt.Server.Close()
	tt.queue.Close()
}
