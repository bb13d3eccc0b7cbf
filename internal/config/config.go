// Package config provides configuration loading and management for the application.
package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Base URLs for venue adapters and the price/yield oracle
	VenueURLs map[string]string
	OracleURL string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// API keys for venue and oracle services
	APIKeys map[string]string

	// Request timeout for outbound adapter calls
	RequestTimeout time.Duration

	// Rebalance policy
	Cooldown          time.Duration
	DailyCap          *big.Int
	MinRebalance      *big.Int
	MaxRebalance      *big.Int
	MaxSlippageBps    int64
	RebalanceCost     *big.Int
	EvaluationHorizon time.Duration

	// Cross-domain transfer policy
	DefaultFastFeeBps int64
	MaxFastFeeBps     int64
	FastSettleDelay   time.Duration
	AttestationDelay  time.Duration

	// Circuit breaker thresholds
	MaxAPYBps        int64
	MaxTVLChangeBps  int64
	MinVenueCount    int
	CircuitResetDelay time.Duration

	// Oracle staleness window
	MaxOracleAge time.Duration

	// Event publishing
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Trigger rate limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:              GetEnvOrDefault("PORT", "8080"),
		VenueURLs:         parseKeyValues(GetEnvOrDefault("VENUE_URLS", "")),
		OracleURL:         GetEnvOrDefault("ORACLE_URL", ""),
		OtelEndpoint:      GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		APIKeys:           parseKeyValues(GetEnvOrDefault("API_KEYS", "")),
		RequestTimeout:    GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		Cooldown:          GetEnvAsDuration("REBALANCE_COOLDOWN", time.Hour),
		DailyCap:          GetEnvAsBig("DAILY_CAP", big.NewInt(10_000_000_000_000)),
		MinRebalance:      GetEnvAsBig("MIN_REBALANCE", big.NewInt(1_000_000)),
		MaxRebalance:      GetEnvAsBig("MAX_REBALANCE", big.NewInt(1_000_000_000_000)),
		MaxSlippageBps:    GetEnvAsInt64("MAX_SLIPPAGE_BPS", 100),
		RebalanceCost:     GetEnvAsBig("REBALANCE_COST", big.NewInt(1_000)),
		EvaluationHorizon: GetEnvAsDuration("EVALUATION_HORIZON", 30*24*time.Hour),
		DefaultFastFeeBps: GetEnvAsInt64("DEFAULT_FAST_FEE_BPS", 50),
		MaxFastFeeBps:     GetEnvAsInt64("MAX_FAST_FEE_BPS", 100),
		FastSettleDelay:   GetEnvAsDuration("FAST_SETTLE_DELAY", 20*time.Second),
		AttestationDelay:  GetEnvAsDuration("ATTESTATION_DELAY", 2*time.Second),
		MaxAPYBps:         GetEnvAsInt64("MAX_APY_BPS", 10000),
		MaxTVLChangeBps:   GetEnvAsInt64("MAX_TVL_CHANGE_BPS", 5000),
		MinVenueCount:     GetEnvAsInt("MIN_VENUE_COUNT", 1),
		CircuitResetDelay: GetEnvAsDuration("CIRCUIT_RESET_DELAY", 5*time.Minute),
		MaxOracleAge:      GetEnvAsDuration("MAX_ORACLE_AGE", 15*time.Minute),
		KafkaEnabled:      GetEnvAsBool("KAFKA_ENABLED", false),
		KafkaBrokers:      splitList(GetEnvOrDefault("KAFKA_BROKERS", "")),
		KafkaTopic:        GetEnvOrDefault("KAFKA_TOPIC", "rebalance-events"),
		RateLimitRPS:      GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst:    GetEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsInt64 retrieves an environment variable as an int64 with a default value
func GetEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsBig retrieves an environment variable as a big integer with a default value
func GetEnvAsBig(key string, defaultValue *big.Int) *big.Int {
	if value, exists := GetEnv(key); exists {
		if v, ok := new(big.Int).SetString(value, 10); ok {
			return v
		}
	}
	return defaultValue
}

// parseKeyValues parses a "name=value,name=value" list into a map.
func parseKeyValues(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range splitList(raw) {
		if name, value, ok := strings.Cut(part, "="); ok && name != "" {
			out[name] = value
		}
	}
	return out
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
