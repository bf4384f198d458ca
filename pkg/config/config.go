package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for Treasury Server configuration
const (
	EnvTreasuryPort            = "TREASURY_PORT"
	EnvTreasuryChainID         = "TREASURY_CHAIN_ID"
	EnvTreasuryRPCURL          = "TREASURY_RPC_URL"
	EnvTreasuryPrivateKey      = "TREASURY_PRIVATE_KEY"
	EnvTreasuryTokenAddress    = "TREASURY_TOKEN_ADDRESS"
	EnvTreasuryTokenName       = "TREASURY_TOKEN_NAME"
	EnvTreasuryTokenVersion    = "TREASURY_TOKEN_VERSION"
	EnvTreasuryTokenDecimals   = "TREASURY_TOKEN_DECIMALS"
	EnvTreasuryPermitWindow    = "TREASURY_PERMIT_WINDOW"
	EnvTreasuryPersistenceType = "TREASURY_PERSISTENCE_TYPE"
	EnvTreasuryDataPath        = "TREASURY_DATA_PATH"
	EnvTreasuryRedisAddress    = "TREASURY_REDIS_ADDRESS"
	EnvTreasuryRedisPassword   = "TREASURY_REDIS_PASSWORD"
	EnvTreasuryOwnerKeyBackend = "TREASURY_OWNER_KEY_BACKEND"
	EnvTreasuryAWSRegion       = "TREASURY_AWS_REGION"
	EnvTreasuryWeb3SignerURL   = "TREASURY_WEB3SIGNER_URL"
	EnvTreasuryFromAddress     = "TREASURY_FROM_ADDRESS"
	EnvTreasuryLogFile         = "TREASURY_LOG_FILE"
	EnvTreasuryVerbose         = "TREASURY_VERBOSE"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

func IsEthereum(chainId ChainId) bool {
	_, ok := ChainIdToName[chainId]
	return ok
}

// GetSupportedChainIDs returns all supported chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_EthereumAnvil,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// Token defaults match the FiatToken v2 deployment the treasury was built against.
const (
	DefaultTokenName     = "USDC"
	DefaultTokenVersion  = "2"
	DefaultTokenDecimals = 6

	// DefaultPermitWindow is how long a freshly provisioned wallet's permit stays valid
	DefaultPermitWindow = time.Hour
)

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type OwnerKeyBackend string

const (
	OwnerKeyBackend_Local  OwnerKeyBackend = "local"
	OwnerKeyBackend_AWSKMS OwnerKeyBackend = "aws-kms"
)

// TokenConfig describes the permit-capable token the treasury operates on.
// Name and Version must match the token's EIP-712 domain exactly.
type TokenConfig struct {
	Address  string `json:"address" yaml:"address"`
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

func (tc *TokenConfig) GetAddress() common.Address {
	return common.HexToAddress(tc.Address)
}

type PersistenceConfig struct {
	Type          PersistenceType `json:"type" yaml:"type"`
	DataPath      string          `json:"dataPath" yaml:"dataPath"`
	RedisAddress  string          `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword string          `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int             `json:"redisDb" yaml:"redisDb"`
}

type RemoteSignerConfig struct {
	Url         string `json:"url" yaml:"url"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
}

func (rsc *RemoteSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if rsc.Url == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("url"), "url is required"))
	}
	if rsc.FromAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("fromAddress"), "fromAddress is required"))
	} else if !common.IsHexAddress(rsc.FromAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fromAddress"), rsc.FromAddress, "must be a hex address"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// TreasuryServerConfig represents the complete configuration for a treasury server
type TreasuryServerConfig struct {
	Port int `json:"port" yaml:"port"`

	// Chain configuration
	ChainID   ChainId   `json:"chainId" yaml:"chainId"`
	ChainName ChainName `json:"chainName" yaml:"chainName"`
	RpcUrl    string    `json:"rpcUrl" yaml:"rpcUrl"`

	// Treasury signer. Exactly one of PrivateKey or RemoteSigner must be set.
	PrivateKey   string              `json:"privateKey" yaml:"privateKey"`
	RemoteSigner *RemoteSignerConfig `json:"remoteSigner,omitempty" yaml:"remoteSigner,omitempty"`

	Token        TokenConfig   `json:"token" yaml:"token"`
	PermitWindow time.Duration `json:"permitWindow" yaml:"permitWindow"`

	OwnerKeyBackend OwnerKeyBackend `json:"ownerKeyBackend" yaml:"ownerKeyBackend"`
	AWSRegion       string          `json:"awsRegion" yaml:"awsRegion"`

	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`

	// Operational settings
	LogFile string `json:"logFile" yaml:"logFile"`
	Debug   bool   `json:"debug" yaml:"debug"`
}

// NewDefaultTreasuryServerConfig returns a config populated with the token and
// provisioning defaults. Callers overlay file, flag and env values on top.
func NewDefaultTreasuryServerConfig() *TreasuryServerConfig {
	return &TreasuryServerConfig{
		Port:    8000,
		ChainID: ChainId_EthereumSepolia,
		RpcUrl:  "http://localhost:8545",
		Token: TokenConfig{
			Name:     DefaultTokenName,
			Version:  DefaultTokenVersion,
			Decimals: DefaultTokenDecimals,
		},
		PermitWindow:    DefaultPermitWindow,
		OwnerKeyBackend: OwnerKeyBackend_Local,
		Persistence: PersistenceConfig{
			Type: PersistenceType_Memory,
		},
	}
}

// LoadConfigFile overlays the YAML file at path onto cfg.
func LoadConfigFile(path string, cfg *TreasuryServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate validates the treasury server configuration
func (c *TreasuryServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chainId"), c.ChainID, []string{GetSupportedChainIDsString()}))
	} else {
		c.ChainName = chainName
	}

	if c.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required"))
	}

	switch {
	case c.PrivateKey == "" && c.RemoteSigner == nil:
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "either privateKey or remoteSigner is required"))
	case c.PrivateKey != "" && c.RemoteSigner != nil:
		allErrors = append(allErrors, field.Forbidden(field.NewPath("remoteSigner"), "cannot be combined with privateKey"))
	case c.PrivateKey != "":
		pk := strings.TrimPrefix(c.PrivateKey, "0x")
		if len(pk) != 64 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>",
				fmt.Sprintf("must be 32 bytes (64 hex chars), got %d chars", len(pk))))
		}
	case c.RemoteSigner != nil:
		if err := c.RemoteSigner.Validate(); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("remoteSigner"), c.RemoteSigner.Url, err.Error()))
		}
	}

	tokenPath := field.NewPath("token")
	if c.Token.Address == "" {
		allErrors = append(allErrors, field.Required(tokenPath.Child("address"), "token address is required"))
	} else if !common.IsHexAddress(c.Token.Address) {
		allErrors = append(allErrors, field.Invalid(tokenPath.Child("address"), c.Token.Address, "must be a hex address"))
	}
	if c.Token.Name == "" {
		allErrors = append(allErrors, field.Required(tokenPath.Child("name"), "token name is required for the permit domain"))
	}
	if c.Token.Version == "" {
		allErrors = append(allErrors, field.Required(tokenPath.Child("version"), "token version is required for the permit domain"))
	}
	if c.Token.Decimals > 36 {
		allErrors = append(allErrors, field.Invalid(tokenPath.Child("decimals"), c.Token.Decimals, "must be at most 36"))
	}

	if c.PermitWindow <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("permitWindow"), c.PermitWindow.String(), "must be positive"))
	}

	switch c.OwnerKeyBackend {
	case OwnerKeyBackend_Local:
	case OwnerKeyBackend_AWSKMS:
		if c.AWSRegion == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("awsRegion"), "awsRegion is required for the aws-kms owner key backend"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("ownerKeyBackend"), c.OwnerKeyBackend,
			[]string{string(OwnerKeyBackend_Local), string(OwnerKeyBackend_AWSKMS)}))
	}

	persistencePath := field.NewPath("persistence")
	switch c.Persistence.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if c.Persistence.DataPath == "" {
			allErrors = append(allErrors, field.Required(persistencePath.Child("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if c.Persistence.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(persistencePath.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(persistencePath.Child("type"), c.Persistence.Type,
			[]string{string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
