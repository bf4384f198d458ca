package types

// CreateWalletResponse is returned once a wallet's permit is confirmed.
type CreateWalletResponse struct {
	Address     string `json:"address"`
	OperationID string `json:"operationId,omitempty"`
}

// MintRequest mints Amount to WalletAddress. Amount is a decimal token amount
// with at most as many fractional digits as the token has decimals (6 for USDC).
type MintRequest struct {
	Amount        Amount `json:"amount"`
	WalletAddress string `json:"walletAddress"`
}

// CollectRequest sweeps the full balance of From into To.
type CollectRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BurnRequest burns Amount from the treasury balance. Amount follows the same
// decimal rules as MintRequest.
type BurnRequest struct {
	Amount Amount `json:"amount"`
}

// TransactionResponse carries the hash of a confirmed transaction.
type TransactionResponse struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	OperationID     string `json:"operationId,omitempty"`
}

// ErrorResponse is the uniform failure body. Kind is machine readable.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	TreasuryAddress string `json:"treasuryAddress"`
	ChainID         uint64 `json:"chainId"`
	Token           string `json:"token"`
}
