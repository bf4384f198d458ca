// Package treasury runs the user-facing token operations: wallet creation,
// mint, collect and burn. Every call is journaled and every failure is a *Error.
package treasury

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/amount"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/walletProvisioner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	Decimals uint8
}

// Result is a confirmed token transaction.
type Result struct {
	OperationID string
	Hash        common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// WalletResult is a provisioned wallet whose permit is confirmed.
type WalletResult struct {
	OperationID    string
	Address        common.Address
	PermitTxHash   common.Hash
	PermitDeadline int64
}

type Orchestrator struct {
	decimals    uint8
	tokenClient contractCaller.ITokenClient
	provisioner *walletProvisioner.WalletProvisioner
	journal     persistence.ITreasuryPersistence
	metrics     *metrics.TreasuryMetrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewOrchestrator(
	cfg *Config,
	tokenClient contractCaller.ITokenClient,
	provisioner *walletProvisioner.WalletProvisioner,
	journal persistence.ITreasuryPersistence,
	m *metrics.TreasuryMetrics,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		decimals:    cfg.Decimals,
		tokenClient: tokenClient,
		provisioner: provisioner,
		journal:     journal,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// TreasuryAddress is the signer every state-changing call originates from.
func (o *Orchestrator) TreasuryAddress() common.Address {
	return o.tokenClient.SignerAddress()
}

// CreateWallet provisions a wallet and waits for its permit to be confirmed.
// A wallet whose permit fails is recorded as unusable and never retried.
func (o *Orchestrator) CreateWallet(ctx context.Context) (*WalletResult, error) {
	op := o.begin(types.OperationTypeCreateWallet, nil)

	owner, err := o.provisioner.GenerateOwner(ctx)
	if err != nil {
		return nil, o.reject(op, newError(KindProvisioning, err, "failed to generate wallet owner"))
	}
	op.Params["wallet"] = owner.Address().Hex()

	record, outcome, err := o.provisioner.Authorize(ctx, owner)
	if err != nil {
		kind := KindProvisioning
		if errors.Is(err, walletProvisioner.ErrPermitSigning) {
			kind = KindAuthorization
		}
		treasuryErr := newError(kind, err, "wallet authorization failed")

		var authErr *walletProvisioner.AuthorizationError
		if !errors.As(err, &authErr) || !authErr.Submitted() {
			return nil, o.reject(op, treasuryErr)
		}
		op.TxHash = authErr.TxHash.Hex()
		o.transition(op, types.OperationStateSubmitted)
		if outcome != nil {
			op.BlockNumber = outcome.BlockNumber
		}
		return nil, o.fail(op, treasuryErr)
	}

	o.transition(op, types.OperationStateSubmitted)
	o.confirm(op, outcome)
	return &WalletResult{
		OperationID:    op.ID,
		Address:        common.HexToAddress(record.Address),
		PermitTxHash:   outcome.Hash,
		PermitDeadline: record.PermitDeadline,
	}, nil
}

// Mint creates value tokens in the to wallet.
func (o *Orchestrator) Mint(ctx context.Context, value string, to string) (*Result, error) {
	op := o.begin(types.OperationTypeMint, map[string]string{"amount": value, "to": to})

	units, err := o.parseAmount(value)
	if err != nil {
		return nil, o.reject(op, err)
	}
	recipient, err := parseAddress("wallet address", to)
	if err != nil {
		return nil, o.reject(op, err)
	}

	return o.submitAndAwait(ctx, op, contractCaller.NewMintCall(recipient, units))
}

// Collect moves the whole balance of from to to using the standing permit.
// Nothing is signed with the wallet's key.
func (o *Orchestrator) Collect(ctx context.Context, from string, to string) (*Result, error) {
	op := o.begin(types.OperationTypeCollect, map[string]string{"from": from, "to": to})

	source, err := parseAddress("from", from)
	if err != nil {
		return nil, o.reject(op, err)
	}
	destination, err := parseAddress("to", to)
	if err != nil {
		return nil, o.reject(op, err)
	}
	if source == destination {
		return nil, o.reject(op, newError(KindValidation, nil, "from and to must differ"))
	}

	if err := o.checkWallet(source); err != nil {
		return nil, o.reject(op, err)
	}

	balance, readErr := o.tokenClient.ReadBalance(ctx, source)
	if readErr != nil {
		return nil, o.reject(op, newError(KindTransaction, readErr, "failed to read balance of %s", source.Hex()))
	}
	if balance.Sign() == 0 {
		return nil, o.reject(op, newError(KindInsufficientBalance, nil, "wallet %s holds no tokens to collect", source.Hex()))
	}
	op.Params["amount"] = amount.FormatUnits(balance, o.decimals)

	return o.submitAndAwait(ctx, op, contractCaller.NewTransferFromCall(source, destination, balance))
}

// Burn destroys value tokens held by the treasury signer.
func (o *Orchestrator) Burn(ctx context.Context, value string) (*Result, error) {
	op := o.begin(types.OperationTypeBurn, map[string]string{"amount": value})

	units, err := o.parseAmount(value)
	if err != nil {
		return nil, o.reject(op, err)
	}

	treasury := o.tokenClient.SignerAddress()
	balance, readErr := o.tokenClient.ReadBalance(ctx, treasury)
	if readErr != nil {
		return nil, o.reject(op, newError(KindTransaction, readErr, "failed to read treasury balance"))
	}
	if balance.Cmp(units) < 0 {
		return nil, o.reject(op, newError(KindInsufficientBalance, nil,
			"treasury holds %s, cannot burn %s",
			amount.FormatUnits(balance, o.decimals), amount.FormatUnits(units, o.decimals),
		))
	}

	return o.submitAndAwait(ctx, op, contractCaller.NewBurnCall(units))
}

// GetOperation returns a journaled operation, or nil if the id is unknown.
func (o *Orchestrator) GetOperation(id string) (*types.OperationRecord, error) {
	return o.journal.LoadOperation(id)
}

// GetWallet returns a provisioned wallet, or nil if the address was never provisioned here.
func (o *Orchestrator) GetWallet(address string) (*types.WalletRecord, error) {
	addr, parseErr := parseAddress("address", address)
	if parseErr != nil {
		return nil, parseErr
	}
	return o.provisioner.LoadWallet(addr)
}

func (o *Orchestrator) parseAmount(value string) (*big.Int, *Error) {
	units, err := amount.ParseUnits(strings.TrimSpace(value), o.decimals)
	if err != nil {
		return nil, newError(KindValidation, err, "invalid amount %q", value)
	}
	return units, nil
}

func parseAddress(field string, value string) (common.Address, *Error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, newError(KindValidation, nil, "%s %q is not a valid address", field, value)
	}
	addr := common.HexToAddress(value)
	if addr == (common.Address{}) {
		return common.Address{}, newError(KindValidation, nil, "%s must not be the zero address", field)
	}
	return addr, nil
}

// checkWallet refuses wallets known to be unusable. Addresses provisioned
// elsewhere are allowed; the contract decides whether the allowance exists.
func (o *Orchestrator) checkWallet(address common.Address) *Error {
	record, err := o.provisioner.LoadWallet(address)
	if err != nil {
		o.logger.Sugar().Warnw("Failed to look up wallet", "address", address.Hex(), "error", err)
		return nil
	}
	if record == nil {
		return nil
	}
	switch record.Status {
	case types.WalletStatusUnusable:
		return newError(KindValidation, nil, "wallet %s is unusable: %s", address.Hex(), record.Error)
	case types.WalletStatusGenerated:
		return newError(KindValidation, nil, "wallet %s has not been authorized", address.Hex())
	}
	if record.PermitExpired(o.now().Unix()) {
		o.logger.Sugar().Warnw("Collecting from a wallet past its permit deadline",
			"address", address.Hex(),
			"permitDeadline", record.PermitDeadline,
		)
	}
	return nil
}

func (o *Orchestrator) submitAndAwait(ctx context.Context, op *types.OperationRecord, call *contractCaller.TokenCall) (*Result, error) {
	tx, err := o.tokenClient.SubmitCall(ctx, call)
	if err != nil {
		return nil, o.reject(op, transactionError(call.Method, err))
	}

	op.TxHash = tx.Hash().Hex()
	o.transition(op, types.OperationStateSubmitted)

	submittedAt := time.Now()
	outcome, err := o.tokenClient.AwaitConfirmation(ctx, tx)
	if outcome != nil {
		o.metrics.ObserveConfirmation(string(op.Type), time.Since(submittedAt))
		op.BlockNumber = outcome.BlockNumber
	}
	if err != nil {
		if errors.Is(err, contractCaller.ErrConfirmationTimeout) {
			return nil, o.fail(op, newError(KindConfirmationTimeout, err, "%s %s was not confirmed in time", call.Method, tx.Hash().Hex()))
		}
		return nil, o.fail(op, transactionError(call.Method, err))
	}

	o.confirm(op, outcome)
	return &Result{
		OperationID: op.ID,
		Hash:        outcome.Hash,
		BlockNumber: outcome.BlockNumber,
		GasUsed:     outcome.GasUsed,
	}, nil
}

func transactionError(method string, err error) *Error {
	var revertErr *contractCaller.RevertError
	if errors.As(err, &revertErr) && revertErr.Reason != "" {
		return newError(KindTransaction, err, "%s reverted: %s", method, revertErr.Reason)
	}
	return newError(KindTransaction, err, "%s failed", method)
}

func (o *Orchestrator) begin(opType types.OperationType, params map[string]string) *types.OperationRecord {
	if params == nil {
		params = make(map[string]string)
	}
	now := o.now().Unix()
	op := &types.OperationRecord{
		ID:        uuid.New().String(),
		Type:      opType,
		State:     types.OperationStateValidating,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.save(op)
	return op
}

func (o *Orchestrator) transition(op *types.OperationRecord, next types.OperationState) {
	if err := op.Transition(next, o.now().Unix()); err != nil {
		// only reachable through a programming error in this package
		o.logger.Sugar().Errorw("Invalid operation transition", "error", err)
		return
	}
	o.save(op)
}

func (o *Orchestrator) reject(op *types.OperationRecord, err *Error) error {
	return o.finish(op, types.OperationStateRejected, err)
}

func (o *Orchestrator) fail(op *types.OperationRecord, err *Error) error {
	return o.finish(op, types.OperationStateFailed, err)
}

func (o *Orchestrator) finish(op *types.OperationRecord, state types.OperationState, err *Error) error {
	op.ErrorKind = string(err.Kind)
	op.Error = err.Error()
	o.transition(op, state)
	o.metrics.RecordOperation(string(op.Type), string(op.State))

	o.logger.Sugar().Warnw("Operation did not complete",
		"operationId", op.ID,
		"type", op.Type,
		"state", op.State,
		"kind", err.Kind,
		"error", err.Error(),
	)
	return err
}

func (o *Orchestrator) confirm(op *types.OperationRecord, outcome *contractCaller.TransactionOutcome) {
	op.TxHash = outcome.Hash.Hex()
	op.BlockNumber = outcome.BlockNumber
	o.transition(op, types.OperationStateConfirmed)
	o.metrics.RecordOperation(string(op.Type), string(op.State))

	o.logger.Sugar().Infow("Operation confirmed",
		"operationId", op.ID,
		"type", op.Type,
		"txHash", op.TxHash,
		"blockNumber", op.BlockNumber,
	)
}

func (o *Orchestrator) save(op *types.OperationRecord) {
	if err := o.journal.SaveOperation(op.Clone()); err != nil {
		o.logger.Sugar().Errorw("Failed to journal operation",
			"operationId", op.ID,
			"state", op.State,
			"error", err,
		)
	}
}
