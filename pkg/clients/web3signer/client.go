package web3signer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/config"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

type Config struct {
	BaseUrl string
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BaseUrl: "http://localhost:9000",
		Timeout: 30 * time.Second,
	}
}

// Client talks JSON-RPC to a Web3Signer instance.
type Client struct {
	config *Config
	logger *zap.Logger

	mu  sync.RWMutex
	rpc *rpc.Client
}

func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseUrl == "" {
		return nil, fmt.Errorf("web3signer base url is required")
	}
	c := &Client{config: cfg, logger: logger}
	if err := c.dial(&http.Client{Timeout: cfg.Timeout}); err != nil {
		return nil, err
	}
	return c, nil
}

// NewWeb3SignerClientFromRemoteSignerConfig builds a client from the server's
// remote signer settings. A nil config uses the defaults.
func NewWeb3SignerClientFromRemoteSignerConfig(cfg *config.RemoteSignerConfig, logger *zap.Logger) (*Client, error) {
	clientCfg := DefaultConfig()
	if cfg != nil && cfg.Url != "" {
		clientCfg.BaseUrl = cfg.Url
	}
	return NewClient(clientCfg, logger)
}

func (c *Client) dial(httpClient *http.Client) error {
	// dialing over HTTP does not open a connection, so this never blocks
	client, err := rpc.DialOptions(context.Background(), c.config.BaseUrl, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("failed to create web3signer rpc client for %s: %w", c.config.BaseUrl, err)
	}

	c.mu.Lock()
	old := c.rpc
	c.rpc = client
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (c *Client) SetHttpClient(client *http.Client) {
	if err := c.dial(client); err != nil {
		c.logger.Sugar().Errorw("Failed to replace web3signer http client", "error", err)
	}
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	c.mu.RLock()
	client := c.rpc
	c.mu.RUnlock()

	start := time.Now()
	err := client.CallContext(ctx, result, method, args...)
	c.logger.Sugar().Debugw("web3signer request",
		"method", method,
		"duration", time.Since(start).String(),
		"error", err,
	)
	if err != nil {
		return fmt.Errorf("web3signer %s failed: %w", method, err)
	}
	return nil
}

func (c *Client) EthAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) EthSignTransaction(ctx context.Context, from string, transaction map[string]interface{}) (string, error) {
	tx := make(map[string]interface{}, len(transaction)+1)
	for k, v := range transaction {
		tx[k] = v
	}
	tx["from"] = from

	var signed string
	if err := c.call(ctx, &signed, "eth_signTransaction", tx); err != nil {
		return "", err
	}
	if !strings.HasPrefix(signed, "0x") {
		return "", fmt.Errorf("web3signer returned malformed signed transaction")
	}
	return signed, nil
}

func (c *Client) EthSignTypedData(ctx context.Context, account string, typedData interface{}) (string, error) {
	var signature string
	if err := c.call(ctx, &signature, "eth_signTypedData", account, typedData); err != nil {
		return "", err
	}
	return signature, nil
}
