package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/types"
	"go.uber.org/zap"
)

// DefaultTimeout covers a full confirmation wait on the server side.
const DefaultTimeout = 6 * time.Minute

// APIError is a non-2xx answer from the treasury server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("treasury returned %d %s: %s", e.StatusCode, e.Kind, e.Message)
}

// TreasuryClient calls the treasury HTTP API
type TreasuryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTreasuryClient creates a new treasury client
func NewTreasuryClient(baseURL string, logger *zap.Logger) *TreasuryClient {
	return &TreasuryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
}

func (c *TreasuryClient) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *TreasuryClient) CreateWallet(ctx context.Context) (*types.CreateWalletResponse, error) {
	var resp types.CreateWalletResponse
	if err := c.do(ctx, http.MethodPost, "/transactions/create-wallet", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TreasuryClient) Mint(ctx context.Context, amount string, walletAddress string) (*types.TransactionResponse, error) {
	var resp types.TransactionResponse
	req := types.MintRequest{Amount: types.Amount(amount), WalletAddress: walletAddress}
	if err := c.do(ctx, http.MethodPost, "/transactions/mint", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TreasuryClient) Collect(ctx context.Context, from string, to string) (*types.TransactionResponse, error) {
	var resp types.TransactionResponse
	req := types.CollectRequest{From: from, To: to}
	if err := c.do(ctx, http.MethodPost, "/transactions/collect-usdc", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TreasuryClient) Burn(ctx context.Context, amount string) (*types.TransactionResponse, error) {
	var resp types.TransactionResponse
	req := types.BurnRequest{Amount: types.Amount(amount)}
	if err := c.do(ctx, http.MethodPost, "/transactions/burn-usdc", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TreasuryClient) GetWallet(ctx context.Context, address string) (*types.WalletRecord, error) {
	var resp types.WalletRecord
	if err := c.do(ctx, http.MethodGet, "/wallets/"+url.PathEscape(address), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TreasuryClient) GetOperation(ctx context.Context, id string) (*types.OperationRecord, error) {
	var resp types.OperationRecord
	if err := c.do(ctx, http.MethodGet, "/operations/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TreasuryClient) Health(ctx context.Context) (*types.HealthResponse, error) {
	var resp types.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *TreasuryClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Sugar().Debugw("Calling treasury", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp types.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Kind != "" {
			apiErr.Kind = errResp.Kind
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
