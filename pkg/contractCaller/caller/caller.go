package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/middleware-bindings/FiatToken"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/submissionQueue"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type ContractCaller struct {
	ethclient contractCaller.IEthClient
	logger    *zap.Logger
	signer    transactionSigner.ITransactionSigner
	queue     *submissionQueue.SubmissionQueue

	tokenAddress common.Address
	token        *FiatToken.FiatToken
	tokenABI     *abi.ABI
}

var _ contractCaller.ITokenClient = (*ContractCaller)(nil)

func NewContractCaller(
	ethclient contractCaller.IEthClient,
	tokenAddress common.Address,
	signer transactionSigner.ITransactionSigner,
	queue *submissionQueue.SubmissionQueue,
	logger *zap.Logger,
) (*ContractCaller, error) {
	chainId, err := ethclient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if chainId.Cmp(signer.ChainID()) != 0 {
		return nil, fmt.Errorf("signer is configured for chain %s but the node reports %s", signer.ChainID(), chainId)
	}

	token, err := FiatToken.NewFiatToken(tokenAddress, ethclient)
	if err != nil {
		return nil, fmt.Errorf("failed to create token contract instance: %w", err)
	}
	tokenABI, err := FiatToken.FiatTokenMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse token abi: %w", err)
	}

	logger.Sugar().Infow("Using token contract",
		zap.String("token", tokenAddress.Hex()),
		zap.String("signer", signer.GetFromAddress().Hex()),
		zap.Uint64("chainId", chainId.Uint64()),
	)

	return &ContractCaller{
		ethclient:    ethclient,
		logger:       logger,
		signer:       signer,
		queue:        queue,
		tokenAddress: tokenAddress,
		token:        token,
		tokenABI:     tokenABI,
	}, nil
}

func (cc *ContractCaller) TokenAddress() common.Address {
	return cc.tokenAddress
}

func (cc *ContractCaller) SignerAddress() common.Address {
	return cc.signer.GetFromAddress()
}

func (cc *ContractCaller) ReadBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := cc.token.BalanceOf(&bind.CallOpts{Context: ctx}, account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

func (cc *ContractCaller) ReadNonce(ctx context.Context, owner common.Address) (*big.Int, error) {
	nonce, err := cc.token.Nonces(&bind.CallOpts{Context: ctx}, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to read permit nonce of %s: %w", owner.Hex(), err)
	}
	return nonce, nil
}
