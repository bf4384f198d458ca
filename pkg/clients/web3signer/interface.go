package web3signer

import (
	"context"
	"net/http"
)

// IWeb3Signer is the subset of the Web3Signer JSON-RPC API the treasury uses
// to keep its signing key outside the process.
type IWeb3Signer interface {
	// SetHttpClient replaces the HTTP client used for requests.
	SetHttpClient(client *http.Client)

	// EthAccounts returns the addresses the signer holds keys for (eth_accounts).
	EthAccounts(ctx context.Context) ([]string, error)

	// EthSignTransaction signs a transaction and returns the RLP encoded signed
	// transaction as hex (eth_signTransaction).
	EthSignTransaction(ctx context.Context, from string, transaction map[string]interface{}) (string, error)

	// EthSignTypedData signs EIP-712 typed data with the given account (eth_signTypedData).
	EthSignTypedData(ctx context.Context, account string, typedData interface{}) (string, error)
}

var _ IWeb3Signer = (*Client)(nil)
