package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/clients/web3signer"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Web3TransactionSigner implements ITransactionSigner using a Web3Signer service
type Web3TransactionSigner struct {
	logger           *zap.Logger
	chainID          *big.Int
	web3SignerClient web3signer.IWeb3Signer
	fromAddress      common.Address
}

// NewWeb3TransactionSigner creates a new Web3TransactionSigner
func NewWeb3TransactionSigner(web3SignerClient web3signer.IWeb3Signer, fromAddress common.Address, ethClient ChainIDReader, logger *zap.Logger) (*Web3TransactionSigner, error) {
	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Web3TransactionSigner{
		logger:           logger,
		chainID:          chainID,
		web3SignerClient: web3SignerClient,
		fromAddress:      fromAddress,
	}, nil
}

func (w3s *Web3TransactionSigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	return unsignedTransactOpts(ctx, w3s.fromAddress), nil
}

func (w3s *Web3TransactionSigner) SignTransaction(ctx context.Context, tx *types.Transaction, nonce uint64) (*types.Transaction, error) {
	unsigned, err := withNonce(w3s.chainID, tx, nonce)
	if err != nil {
		return nil, err
	}

	txData := map[string]interface{}{
		"to":                   unsigned.To().Hex(),
		"value":                hexutil.EncodeBig(unsigned.Value()),
		"gas":                  hexutil.EncodeUint64(unsigned.Gas()),
		"maxPriorityFeePerGas": hexutil.EncodeBig(unsigned.GasTipCap()),
		"maxFeePerGas":         hexutil.EncodeBig(unsigned.GasFeeCap()),
		"nonce":                hexutil.EncodeUint64(nonce),
		"data":                 hexutil.Encode(unsigned.Data()),
		"type":                 "0x2",
		"chainId":              hexutil.EncodeBig(w3s.chainID),
	}

	w3s.logger.Info("SignTransaction: requesting signature from web3signer",
		zap.String("to", unsigned.To().Hex()),
		zap.String("maxPriorityFeePerGas", unsigned.GasTipCap().String()),
		zap.String("maxFeePerGas", unsigned.GasFeeCap().String()),
		zap.Uint64("gasLimit", unsigned.Gas()),
		zap.Uint64("nonce", nonce),
	)

	signedTxHex, err := w3s.web3SignerClient.EthSignTransaction(ctx, w3s.fromAddress.Hex(), txData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction with Web3Signer: %w", err)
	}

	signedTxBytes, err := hexutil.Decode(signedTxHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	var signedTx types.Transaction
	if err := signedTx.UnmarshalBinary(signedTxBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signed transaction: %w", err)
	}

	// the remote signer must not alter what we asked it to sign
	sender, err := types.Sender(types.LatestSignerForChainID(w3s.chainID), &signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover signer of web3signer transaction: %w", err)
	}
	if sender != w3s.fromAddress {
		return nil, fmt.Errorf("web3signer signed with %s, expected %s", sender.Hex(), w3s.fromAddress.Hex())
	}
	if signedTx.Nonce() != nonce || signedTx.To() == nil || *signedTx.To() != *unsigned.To() {
		return nil, fmt.Errorf("web3signer returned a transaction that does not match the request")
	}

	return &signedTx, nil
}

func (w3s *Web3TransactionSigner) GetFromAddress() common.Address {
	return w3s.fromAddress
}

func (w3s *Web3TransactionSigner) ChainID() *big.Int {
	return new(big.Int).Set(w3s.chainID)
}
