package main

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/clients/web3signer"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/config"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type anvilChain struct{}

func (anvilChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(int64(config.ChainId_EthereumAnvil)), nil
}

// Asks a local Web3Signer to sign a treasury transaction and checks the sender.
func main() {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	signerCfg := &config.RemoteSignerConfig{
		Url:         "http://localhost:9100",
		FromAddress: os.Getenv(config.EnvTreasuryFromAddress),
	}
	if err := signerCfg.Validate(); err != nil {
		l.Sugar().Fatalw("invalid remote signer config", "error", err)
	}

	client, err := web3signer.NewWeb3SignerClientFromRemoteSignerConfig(signerCfg, l)
	if err != nil {
		l.Sugar().Fatalw("failed to create Web3Signer client", "error", err)
	}
	from := common.HexToAddress(signerCfg.FromAddress)
	signer, err := transactionSigner.NewWeb3TransactionSigner(client, from, anvilChain{}, l)
	if err != nil {
		l.Sugar().Fatalw("failed to create Web3Signer transaction signer", "error", err)
	}

	token := common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	unsigned := types.NewTx(&types.DynamicFeeTx{
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(2_000_000_000),
		Gas:       60_000,
		To:        &token,
	})
	signed, err := signer.SignTransaction(context.Background(), unsigned, 0)
	if err != nil {
		l.Sugar().Fatalw("failed to sign transaction with Web3Signer", "error", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(signer.ChainID()), signed)
	if err != nil {
		l.Sugar().Fatalw("failed to recover sender", "error", err)
	}
	fmt.Printf("tx hash: %s\n", signed.Hash().Hex())
	fmt.Printf("sender:  %s\n", sender.Hex())
	fmt.Printf("match:   %v\n", sender == from)
}
