// Package walletProvisioner creates disposable token wallets. Each wallet's
// owner key signs exactly one permit, granting the treasury signer an unlimited
// allowance, and is destroyed right after.
package walletProvisioner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/internal/keyGenerator"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/amount"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/permitSigner"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/typedData"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultPermitWindow = time.Hour

var ErrOwnerDiscarded = errors.New("owner key has already been discarded")

// ErrPermitSigning marks a failure of the owner key to produce a valid permit
// signature. Nothing reaches the chain in that case.
var ErrPermitSigning = errors.New("owner key failed to sign permit")

// AuthorizationError wraps any failure after the owner key exists. TxHash is set
// once the permit was handed to the network, and Outcome once it was mined.
type AuthorizationError struct {
	Wallet  common.Address
	TxHash  common.Hash
	Outcome *contractCaller.TransactionOutcome
	Err     error
}

func (e *AuthorizationError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("wallet %s: %v", e.Wallet.Hex(), e.Err)
	}
	return fmt.Sprintf("wallet %s (permit %s): %v", e.Wallet.Hex(), e.TxHash.Hex(), e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// Submitted reports whether the permit may have reached the chain.
func (e *AuthorizationError) Submitted() bool {
	return e.TxHash != (common.Hash{})
}

type Config struct {
	PermitWindow time.Duration
}

type WalletProvisioner struct {
	config      *Config
	keys        keyGenerator.IKeyGenerator
	permits     *permitSigner.PermitSigner
	tokenClient contractCaller.ITokenClient
	store       persistence.ITreasuryPersistence
	logger      *zap.Logger
	now         func() time.Time
}

func NewWalletProvisioner(
	cfg *Config,
	keys keyGenerator.IKeyGenerator,
	permits *permitSigner.PermitSigner,
	tokenClient contractCaller.ITokenClient,
	store persistence.ITreasuryPersistence,
	logger *zap.Logger,
) *WalletProvisioner {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.PermitWindow <= 0 {
		cfg.PermitWindow = DefaultPermitWindow
	}
	return &WalletProvisioner{
		config:      cfg,
		keys:        keys,
		permits:     permits,
		tokenClient: tokenClient,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateOwner creates a fresh owner key and registers its address as generated.
func (wp *WalletProvisioner) GenerateOwner(ctx context.Context) (*keyGenerator.OwnerKey, error) {
	name := fmt.Sprintf("treasury-owner-%s", uuid.New().String())
	generated, err := wp.keys.GenerateECDSAKey(ctx, name, "alias/"+name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate owner key: %w", err)
	}
	owner := keyGenerator.NewOwnerKey(wp.keys, generated)

	now := wp.now().Unix()
	record := &types.WalletRecord{
		Address:   owner.Address().Hex(),
		Status:    types.WalletStatusGenerated,
		Spender:   wp.tokenClient.SignerAddress().Hex(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := wp.store.SaveWallet(record); err != nil {
		wp.discard(owner)
		return nil, fmt.Errorf("failed to register wallet %s: %w", record.Address, err)
	}

	wp.logger.Sugar().Infow("Generated wallet owner", "address", record.Address)
	return owner, nil
}

// Authorize signs an unlimited permit from owner to the treasury signer, submits
// it and waits for confirmation. The owner key is discarded whatever the result.
func (wp *WalletProvisioner) Authorize(ctx context.Context, owner *keyGenerator.OwnerKey) (*types.WalletRecord, *contractCaller.TransactionOutcome, error) {
	if owner.IsDiscarded() {
		return nil, nil, ErrOwnerDiscarded
	}
	defer wp.discard(owner)

	record, err := wp.store.LoadWallet(owner.Address().Hex())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load wallet %s: %w", owner.Address().Hex(), err)
	}
	if record == nil {
		now := wp.now().Unix()
		record = &types.WalletRecord{Address: owner.Address().Hex(), CreatedAt: now}
	}

	deadline := wp.now().Add(wp.config.PermitWindow).Unix()
	record.Spender = wp.tokenClient.SignerAddress().Hex()
	record.PermitDeadline = deadline

	payload := &typedData.PermitPayload{
		Owner:   owner.Address(),
		Spender: wp.tokenClient.SignerAddress(),
		Value:   amount.MaxUint256(),
		// a freshly generated address has never used a permit
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(deadline),
	}

	txHash, outcome, err := wp.submitPermit(ctx, owner, payload)
	if txHash != (common.Hash{}) {
		record.PermitTxHash = txHash.Hex()
	}
	if err != nil {
		authErr := &AuthorizationError{Wallet: owner.Address(), TxHash: txHash, Outcome: outcome, Err: err}
		record.Status = types.WalletStatusUnusable
		record.Error = err.Error()
		record.UpdatedAt = wp.now().Unix()
		if saveErr := wp.store.SaveWallet(record); saveErr != nil {
			wp.logger.Sugar().Errorw("Failed to record unusable wallet", "address", record.Address, "error", saveErr)
		}
		wp.logger.Sugar().Warnw("Wallet authorization failed",
			"address", record.Address,
			"error", err,
		)
		return record, outcome, authErr
	}

	record.Status = types.WalletStatusAuthorized
	record.PermitTxHash = outcome.Hash.Hex()
	record.Error = ""
	record.UpdatedAt = wp.now().Unix()
	if err := wp.store.SaveWallet(record); err != nil {
		wp.logger.Sugar().Errorw("Permit confirmed but wallet could not be saved",
			"address", record.Address,
			"txHash", record.PermitTxHash,
			"error", err,
		)
		return record, outcome, &AuthorizationError{
			Wallet:  owner.Address(),
			TxHash:  outcome.Hash,
			Outcome: outcome,
			Err:     fmt.Errorf("permit confirmed but wallet could not be saved: %w", err),
		}
	}

	wp.logger.Sugar().Infow("Wallet authorized",
		"address", record.Address,
		"spender", record.Spender,
		"txHash", record.PermitTxHash,
		"permitDeadline", record.PermitDeadline,
	)
	return record, outcome, nil
}

// CreateWallet generates an owner and authorizes it in one step.
func (wp *WalletProvisioner) CreateWallet(ctx context.Context) (*types.WalletRecord, *contractCaller.TransactionOutcome, error) {
	owner, err := wp.GenerateOwner(ctx)
	if err != nil {
		return nil, nil, err
	}
	return wp.Authorize(ctx, owner)
}

// LoadWallet returns the registry entry for address, or nil if it was never provisioned here.
func (wp *WalletProvisioner) LoadWallet(address common.Address) (*types.WalletRecord, error) {
	return wp.store.LoadWallet(address.Hex())
}

// submitPermit returns the permit hash as soon as the transaction is signed, so
// callers keep it even when confirmation never arrives.
func (wp *WalletProvisioner) submitPermit(ctx context.Context, owner *keyGenerator.OwnerKey, payload *typedData.PermitPayload) (common.Hash, *contractCaller.TransactionOutcome, error) {
	sig, err := wp.permits.Sign(ctx, owner, payload)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("%w: %w", ErrPermitSigning, err)
	}

	call, err := contractCaller.NewPermitCall(payload.Owner, payload.Spender, payload.Value, payload.Deadline, sig.Bytes())
	if err != nil {
		return common.Hash{}, nil, err
	}
	tx, err := wp.tokenClient.SubmitCall(ctx, call)
	if err != nil {
		return common.Hash{}, nil, err
	}
	outcome, err := wp.tokenClient.AwaitConfirmation(ctx, tx)
	return tx.Hash(), outcome, err
}

func (wp *WalletProvisioner) discard(owner *keyGenerator.OwnerKey) {
	// the request context may already be done; destroying the key must still happen
	if err := owner.Discard(context.Background()); err != nil {
		wp.logger.Sugar().Errorw("Failed to discard owner key",
			"address", owner.Address().Hex(),
			"keyId", owner.KeyId(),
			"error", err,
		)
	}
}
