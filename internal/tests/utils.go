package tests

import (
	"os"
	"testing"
)

// Environment variables that point the integration suite at a live chain.
// The treasury key must be a configured minter of the token.
const (
	EnvIntegrationRPCURL       = "TREASURY_INTEGRATION_RPC_URL"
	EnvIntegrationTokenAddress = "TREASURY_INTEGRATION_TOKEN_ADDRESS"
	EnvIntegrationPrivateKey   = "TREASURY_INTEGRATION_PRIVATE_KEY"
	EnvIntegrationTokenName    = "TREASURY_INTEGRATION_TOKEN_NAME"
	EnvIntegrationTokenVersion = "TREASURY_INTEGRATION_TOKEN_VERSION"
)

type ChainConfig struct {
	RpcUrl             string
	TokenAddress       string
	TokenName          string
	TokenVersion       string
	TreasuryPrivateKey string
}

// ReadChainConfig reads the integration chain from the environment, skipping
// the test when it is not configured.
func ReadChainConfig(t *testing.T) *ChainConfig {
	t.Helper()
	cfg := &ChainConfig{
		RpcUrl:             os.Getenv(EnvIntegrationRPCURL),
		TokenAddress:       os.Getenv(EnvIntegrationTokenAddress),
		TokenName:          envOrDefault(EnvIntegrationTokenName, "USDC"),
		TokenVersion:       envOrDefault(EnvIntegrationTokenVersion, "2"),
		TreasuryPrivateKey: os.Getenv(EnvIntegrationPrivateKey),
	}
	if cfg.RpcUrl == "" || cfg.TokenAddress == "" || cfg.TreasuryPrivateKey == "" {
		t.Skipf("set %s, %s and %s to run against a live chain",
			EnvIntegrationRPCURL, EnvIntegrationTokenAddress, EnvIntegrationPrivateKey)
	}
	return cfg
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
