package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every subsystem's configuration.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Circle    CircleConfig
	Ramp      RampConfig
	Paymaster PaymasterConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	paymaster, err := loadPaymasterConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Circle:    loadCircleConfig(),
		Ramp:      loadRampConfig(),
		Paymaster: paymaster,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the chat-model backend used by the intent classifier
// and the general assistant.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Stream      bool
}

// Enabled reports whether the required model credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a chat model instance from this configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("chat model credentials missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}, nil
}

// CircleConfig describes the stablecoin ledger API.
type CircleConfig struct {
	APIKey  string
	BaseURL string
}

// Enabled reports whether ledger calls can be attempted.
func (c CircleConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadCircleConfig() CircleConfig {
	return CircleConfig{
		APIKey:  strings.TrimSpace(os.Getenv("CIRCLE_API_KEY")),
		BaseURL: getEnvOrDefault("CIRCLE_API_BASE_URL", "https://api-sandbox.circle.com"),
	}
}

// RampConfig describes credential issuance and hosted-session URLs for the
// on/off-ramp provider.
type RampConfig struct {
	KeyName            string
	KeySecret          string
	TokenURL           string
	AppID              string
	OnrampRedirectURL  string
	OfframpRedirectURL string
}

// Enabled reports whether secure session tokens can be issued.
func (c RampConfig) Enabled() bool {
	return c.KeyName != "" && c.KeySecret != ""
}

func loadRampConfig() RampConfig {
	appURL := getEnvOrDefault("APP_URL", "http://localhost:3000")

	return RampConfig{
		KeyName:            strings.TrimSpace(os.Getenv("CDP_API_KEY_NAME")),
		KeySecret:          strings.TrimSpace(os.Getenv("CDP_API_KEY_SECRET")),
		TokenURL:           getEnvOrDefault("CDP_TOKEN_URL", "https://api.developer.coinbase.com/onramp/v1/token"),
		AppID:              strings.TrimSpace(os.Getenv("CDP_APP_ID")),
		OnrampRedirectURL:  getEnvOrDefault("ONRAMP_REDIRECT_URL", appURL+"/onramp/success"),
		OfframpRedirectURL: getEnvOrDefault("OFFRAMP_REDIRECT_URL", appURL+"/offramp/success"),
	}
}

// PaymasterConfig describes the sponsorship-decision RPC endpoint.
type PaymasterConfig struct {
	RPCURL       string
	ChainID      int64
	USDCContract string
}

// Enabled reports whether sponsorship checks can be performed.
func (c PaymasterConfig) Enabled() bool {
	return c.RPCURL != ""
}

func loadPaymasterConfig() (PaymasterConfig, error) {
	chainID := int64(84532) // Base Sepolia
	raw, err := parseOptionalIntEnv("PAYMASTER_CHAIN_ID")
	if err != nil {
		return PaymasterConfig{}, err
	}
	if raw != nil {
		chainID = int64(*raw)
	}

	return PaymasterConfig{
		RPCURL:       strings.TrimSpace(os.Getenv("PAYMASTER_RPC_URL")),
		ChainID:      chainID,
		USDCContract: getEnvOrDefault("USDC_CONTRACT_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
