package caller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/middleware-bindings/FiatToken"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

func (cc *ContractCaller) buildTransactionOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return cc.signer.GetTransactOpts(ctx)
}

func (cc *ContractCaller) SubmitCall(ctx context.Context, call *contractCaller.TokenCall) (*ethereumTypes.Transaction, error) {
	txOpts, err := cc.buildTransactionOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction options: %w", err)
	}

	// estimation happens here, so a call the contract refuses fails before anything is signed
	raw := &FiatToken.FiatTokenRaw{Contract: cc.token}
	unsigned, err := raw.Transact(txOpts, call.Method, call.Args...)
	if err != nil {
		if revertErr := cc.explainRejection(ctx, call); revertErr != nil {
			return nil, revertErr
		}
		return nil, fmt.Errorf("failed to create %s transaction: %w", call.Method, err)
	}

	cc.logger.Sugar().Infow("Submitting transaction",
		zap.String("method", call.Method),
		zap.String("from", cc.signer.GetFromAddress().Hex()),
		zap.String("to", unsigned.To().Hex()),
	)

	signed, err := cc.queue.Submit(ctx, call.Method, unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s transaction: %w", call.Method, err)
	}
	return signed, nil
}

func (cc *ContractCaller) AwaitConfirmation(ctx context.Context, tx *ethereumTypes.Transaction) (*contractCaller.TransactionOutcome, error) {
	start := time.Now()
	receipt, err := bind.WaitMined(ctx, cc.ethclient, tx)
	if err != nil {
		if ctx.Err() != nil {
			cc.logger.Sugar().Warnw("Gave up waiting for transaction",
				zap.String("txHash", tx.Hash().Hex()),
				zap.Duration("waited", time.Since(start)),
			)
			return nil, fmt.Errorf("%w: %s", contractCaller.ErrConfirmationTimeout, tx.Hash().Hex())
		}
		return nil, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}

	outcome := &contractCaller.TransactionOutcome{
		Hash:        receipt.TxHash,
		Confirmed:   receipt.Status == ethereumTypes.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}

	if !outcome.Confirmed {
		method := cc.methodName(tx.Data())
		reason := cc.replayRevertReason(ctx, tx, receipt.BlockNumber)
		cc.logger.Error("Transaction reverted",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.String("method", method),
			zap.String("reason", reason),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		return outcome, &contractCaller.RevertError{Method: method, TxHash: receipt.TxHash, Reason: reason}
	}

	cc.logger.Info("Transaction confirmed",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Uint64("gasUsed", receipt.GasUsed),
		zap.Uint64("blockNumber", outcome.BlockNumber),
	)
	return outcome, nil
}

// explainRejection dry-runs the call and returns a RevertError when the token refuses it.
func (cc *ContractCaller) explainRejection(ctx context.Context, call *contractCaller.TokenCall) error {
	input, err := cc.tokenABI.Pack(call.Method, call.Args...)
	if err != nil {
		return nil
	}
	to := cc.tokenAddress
	_, err = cc.ethclient.CallContract(ctx, ethereum.CallMsg{
		From: cc.signer.GetFromAddress(),
		To:   &to,
		Data: input,
	}, nil)
	reason, reverted := decodeRevert(err)
	if !reverted {
		return nil
	}
	return &contractCaller.RevertError{Method: call.Method, Reason: reason}
}

// replayRevertReason re-executes a failed transaction at its block to recover the reason string.
func (cc *ContractCaller) replayRevertReason(ctx context.Context, tx *ethereumTypes.Transaction, blockNumber *big.Int) string {
	_, err := cc.ethclient.CallContract(ctx, ethereum.CallMsg{
		From:  cc.signer.GetFromAddress(),
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}, blockNumber)
	reason, _ := decodeRevert(err)
	return reason
}

func (cc *ContractCaller) methodName(data []byte) string {
	if len(data) < 4 {
		return "unknown"
	}
	method, err := cc.tokenABI.MethodById(data[:4])
	if err != nil {
		return "unknown"
	}
	return method.Name
}

// decodeRevert extracts the Error(string) reason carried by a JSON-RPC error.
// The bool reports whether err was a revert at all.
func decodeRevert(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}
	encoded, ok := dataErr.ErrorData().(string)
	if !ok {
		return "", true
	}
	data, decodeErr := hexutil.Decode(encoded)
	if decodeErr != nil {
		return "", true
	}
	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return "", true
	}
	return reason, true
}
