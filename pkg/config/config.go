// Package config loads the router configuration from environment
// variables. Every value has a production default so the binary starts
// with nothing but an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

const (
	// DefaultChainID is the chain assumed when user text names none
	DefaultChainID = 1

	// DefaultConfidenceThreshold is the minimum classifier confidence
	DefaultConfidenceThreshold = 0.5

	// DefaultMetricsPort defines the default port for the health and metrics server
	DefaultMetricsPort = "8080"

	// DefaultAPIPort defines the default port for the command API
	DefaultAPIPort = "8090"

	// DefaultStoreDriver selects the record store implementation
	DefaultStoreDriver = "memory"

	// DefaultQuoteCacheTTL defines how long identical quotes are reused
	DefaultQuoteCacheTTL = 15 * time.Second

	// DefaultPriceCacheTTL defines how long oracle prices are reused
	DefaultPriceCacheTTL = 30 * time.Second

	// Circuit breaker defaults

	DefaultBreakerThreshold = 5
	DefaultBreakerWindow    = time.Minute
	DefaultBreakerCooldown  = 10 * time.Second
	DefaultBreakerMaxWait   = 2 * time.Minute

	// Rate limiter defaults

	DefaultRateLimit = 5.0
	DefaultRateBurst = 10

	// Venue endpoint defaults

	DefaultOpenOceanEndpoint = "https://open-api.openocean.finance"
	DefaultKyberEndpoint     = "https://aggregator-api.kyberswap.com"
	DefaultMesonEndpoint     = "https://relayer.meson.fi"
	DefaultX402Endpoint      = "https://facilitator.x402.org"
	DefaultPriceEndpoint     = "https://api.coingecko.com"

	// RPC endpoint defaults

	DefaultEthereumRPCURL = "https://eth.llamarpc.com"
	DefaultBSCRPCURL      = "https://bsc-dataseed.bnbchain.org"
	DefaultPolygonRPCURL  = "https://polygon-rpc.com"
	DefaultArbitrumRPCURL = "https://arb1.arbitrum.io/rpc"
	DefaultCronosRPCURL   = "https://evm.cronos.org"
	DefaultBaseRPCURL     = "https://mainnet.base.org"
)

// Config holds everything the composition root needs
type Config struct {
	DefaultChain        int
	ConfidenceThreshold float64

	MetricsPort   string
	MetricsAPIKey string
	APIPort       string

	StoreDriver string
	MySQLDSN    string

	QuoteCacheTTL time.Duration
	PriceCacheTTL time.Duration

	BreakerThreshold int
	BreakerWindow    time.Duration
	BreakerCooldown  time.Duration
	BreakerMaxWait   time.Duration

	RateLimit float64
	RateBurst int

	OpenOceanEndpoint string
	KyberEndpoint     string
	MesonEndpoint     string
	X402Endpoint      string
	PriceEndpoint     string

	RPCEndpoints map[int]string

	Preferences map[models.Operation][]string

	KnowledgePath string

	LogLevel    logger.Level
	LogColoring bool
}

// Load reads the full configuration from the environment. A .env file
// in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	defaultChain, err := GetEnvDefaultChain()
	if err != nil {
		return nil, err
	}
	threshold, err := GetEnvConfidenceThreshold()
	if err != nil {
		return nil, err
	}
	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}
	storeDriver, err := GetEnvStoreDriver()
	if err != nil {
		return nil, err
	}
	breakerThreshold, err := GetEnvBreakerThreshold()
	if err != nil {
		return nil, err
	}

	return &Config{
		DefaultChain:        defaultChain,
		ConfidenceThreshold: threshold,
		MetricsPort:         metricsPort,
		MetricsAPIKey:       os.Getenv("METRICS_API_KEY"),
		APIPort:             getEnvString("API_PORT", DefaultAPIPort),
		StoreDriver:         storeDriver,
		MySQLDSN:            os.Getenv("MYSQL_DSN"),
		QuoteCacheTTL:       getEnvDuration("QUOTE_CACHE_TTL", DefaultQuoteCacheTTL),
		PriceCacheTTL:       getEnvDuration("PRICE_CACHE_TTL", DefaultPriceCacheTTL),
		BreakerThreshold:    breakerThreshold,
		BreakerWindow:       getEnvDuration("CIRCUIT_BREAKER_WINDOW", DefaultBreakerWindow),
		BreakerCooldown:     getEnvDuration("CIRCUIT_BREAKER_COOLDOWN", DefaultBreakerCooldown),
		BreakerMaxWait:      getEnvDuration("CIRCUIT_BREAKER_MAX_WAIT", DefaultBreakerMaxWait),
		RateLimit:           getEnvFloat("RATE_LIMIT_RPS", DefaultRateLimit),
		RateBurst:           getEnvInt("RATE_LIMIT_BURST", DefaultRateBurst),
		OpenOceanEndpoint:   getEnvString("OPENOCEAN_ENDPOINT", DefaultOpenOceanEndpoint),
		KyberEndpoint:       getEnvString("KYBERSWAP_ENDPOINT", DefaultKyberEndpoint),
		MesonEndpoint:       getEnvString("MESON_ENDPOINT", DefaultMesonEndpoint),
		X402Endpoint:        getEnvString("X402_ENDPOINT", DefaultX402Endpoint),
		PriceEndpoint:       getEnvString("PRICE_ENDPOINT", DefaultPriceEndpoint),
		RPCEndpoints: map[int]string{
			1:     getEnvString("ETHEREUM_RPC_URL", DefaultEthereumRPCURL),
			56:    getEnvString("BSC_RPC_URL", DefaultBSCRPCURL),
			137:   getEnvString("POLYGON_RPC_URL", DefaultPolygonRPCURL),
			42161: getEnvString("ARBITRUM_RPC_URL", DefaultArbitrumRPCURL),
			25:    getEnvString("CRONOS_RPC_URL", DefaultCronosRPCURL),
			8453:  getEnvString("BASE_RPC_URL", DefaultBaseRPCURL),
		},
		Preferences:   GetEnvPreferences(),
		KnowledgePath: os.Getenv("KNOWLEDGE_PATH"),
		LogLevel:      GetEnvLogLevel(),
		LogColoring:   getEnvBool("LOG_COLORING", true),
	}, nil
}

// GetEnvDefaultChain returns the default chain ID from environment variables
func GetEnvDefaultChain() (int, error) {
	value := os.Getenv("DEFAULT_CHAIN_ID")
	if value == "" {
		return DefaultChainID, nil
	}

	chainID, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid DEFAULT_CHAIN_ID value: %s, must be an integer", value)
	}
	if chainID <= 0 {
		return 0, fmt.Errorf("DEFAULT_CHAIN_ID must be greater than 0")
	}
	return chainID, nil
}

// GetEnvConfidenceThreshold returns the classifier confidence threshold
func GetEnvConfidenceThreshold() (float64, error) {
	value := os.Getenv("CONFIDENCE_THRESHOLD")
	if value == "" {
		return DefaultConfidenceThreshold, nil
	}

	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid CONFIDENCE_THRESHOLD value: %s, must be a number", value)
	}
	if threshold <= 0 || threshold > 1 {
		return 0, fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1]")
	}
	return threshold, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvStoreDriver returns the record store driver from environment variables
func GetEnvStoreDriver() (string, error) {
	driver := os.Getenv("STORE_DRIVER")
	if driver == "" {
		return DefaultStoreDriver, nil
	}
	if driver != "memory" && driver != "mysql" {
		return "", fmt.Errorf("invalid STORE_DRIVER value: %s, must be 'memory' or 'mysql'", driver)
	}
	return driver, nil
}

// GetEnvBreakerThreshold returns the circuit breaker failure threshold
func GetEnvBreakerThreshold() (int, error) {
	value := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if value == "" {
		return DefaultBreakerThreshold, nil
	}

	threshold, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", value)
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return threshold, nil
}

// GetEnvPreferences parses per-operation venue preferences. Format is
// "swap=kyberswap,openocean;payment=x402", one operation per segment.
func GetEnvPreferences() map[models.Operation][]string {
	preferences := map[models.Operation][]string{
		models.OperationSwap:    {"openocean", "kyberswap"},
		models.OperationPayment: {"x402"},
	}

	raw := os.Getenv("VENUE_PREFERENCES")
	if raw == "" {
		return preferences
	}

	for _, segment := range strings.Split(raw, ";") {
		parts := strings.SplitN(segment, "=", 2)
		if len(parts) != 2 {
			continue
		}
		op := models.Operation(strings.TrimSpace(parts[0]))
		var names []string
		for _, name := range strings.Split(parts[1], ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			preferences[op] = names
		}
	}
	return preferences
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() logger.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return logger.DebugLevel
	case "notice":
		return logger.NoticeLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func getEnvString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true":
		return true
	case "false":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
