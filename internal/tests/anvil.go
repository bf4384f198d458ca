package tests

import (
	"context"
	"fmt"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
)

// WaitForChain polls the node until it serves a block or ctx is done.
func WaitForChain(ctx context.Context, ethereumClient ethereum.Client) error {
	for {
		block, err := ethereumClient.GetLatestBlock(ctx)
		if err == nil {
			fmt.Printf("Chain is up, latest block: %v\n", block)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("chain did not become ready: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
}
