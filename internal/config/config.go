package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Batch execution modes.
const (
	BatchModeMulticall = "multicall"
	BatchModeRPC       = "rpc-batch"
)

// Quote sources.
const (
	QuoteCoinGecko = "coingecko"
	QuoteStatic    = "static"
)

// ChainConfig selects the RPC endpoint, the batch executor and contract overrides.
type ChainConfig struct {
	RPCURL           string
	BatchMode        string
	MaxCallsPerBatch int
	MulticallAddress string
	Pools            []string
	WrappedNative    string
	Factory          string
}

// QuoteConfig selects where the base-currency fiat price comes from.
type QuoteConfig struct {
	Source       string
	CoinGeckoURL string
	CoinID       string
	StaticPrice  float64
	Timeout      time.Duration
}

// FeedConfig configures the feed API client.
type FeedConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RateLimit    float64
	Burst        int
	MaxRetries   int
	RetryBackoff time.Duration
}

// PricesConfig holds configuration for the prices and supplies commands.
type PricesConfig struct {
	Chain      ChainConfig
	Tokens     []string
	TokensFile string
	WithSupply bool
	Out        string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into PricesConfig.
func Load(cfgFile string, flags *pflag.FlagSet) (PricesConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("with-supply", false)
	})
	if err != nil {
		return PricesConfig{}, err
	}

	cfg := PricesConfig{
		Chain:      chainConfig(v),
		Tokens:     getStringSlice(v, "tokens"),
		TokensFile: v.GetString("tokens-file"),
		WithSupply: v.GetBool("with-supply"),
		Out:        v.GetString("out"),
		LogLevel:   v.GetString("log-level"),
	}
	if err := cfg.Chain.Validate(); err != nil {
		return PricesConfig{}, err
	}
	return cfg, nil
}

// Validate checks the fields a resolver needs.
func (c ChainConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	switch c.BatchMode {
	case BatchModeMulticall, BatchModeRPC:
	default:
		return fmt.Errorf("unknown batch-mode %q (want %s or %s)", c.BatchMode, BatchModeMulticall, BatchModeRPC)
	}
	if c.MaxCallsPerBatch <= 0 {
		return fmt.Errorf("max-calls-per-batch must be positive")
	}
	return nil
}

// Validate checks the quote source settings.
func (c QuoteConfig) Validate() error {
	switch c.Source {
	case QuoteCoinGecko:
	case QuoteStatic:
		if c.StaticPrice <= 0 {
			return fmt.Errorf("base-price must be positive for the static quote source")
		}
	default:
		return fmt.Errorf("unknown quote-source %q", c.Source)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(v *viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("TAGSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-mode", BatchModeMulticall)
	v.SetDefault("max-calls-per-batch", 500)
	v.SetDefault("log-level", "info")
	v.SetDefault("quote-source", QuoteCoinGecko)
	v.SetDefault("coin-id", "binancecoin")
	v.SetDefault("quote-timeout", 10*time.Second)
	v.SetDefault("api-timeout", 15*time.Second)
	v.SetDefault("api-rate", 5.0)
	v.SetDefault("api-burst", 5)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func chainConfig(v *viper.Viper) ChainConfig {
	return ChainConfig{
		RPCURL:           v.GetString("rpc"),
		BatchMode:        strings.ToLower(v.GetString("batch-mode")),
		MaxCallsPerBatch: v.GetInt("max-calls-per-batch"),
		MulticallAddress: v.GetString("multicall"),
		Pools:            getPositional(v, "pools"),
		WrappedNative:    v.GetString("wrapped-native"),
		Factory:          v.GetString("factory"),
	}
}

func quoteConfig(v *viper.Viper) QuoteConfig {
	return QuoteConfig{
		Source:       strings.ToLower(v.GetString("quote-source")),
		CoinGeckoURL: v.GetString("coingecko-url"),
		CoinID:       v.GetString("coin-id"),
		StaticPrice:  v.GetFloat64("base-price"),
		Timeout:      v.GetDuration("quote-timeout"),
	}
}

func feedConfig(v *viper.Viper) FeedConfig {
	return FeedConfig{
		BaseURL:      v.GetString("api-url"),
		Timeout:      v.GetDuration("api-timeout"),
		RateLimit:    v.GetFloat64("api-rate"),
		Burst:        v.GetInt("api-burst"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// getPositional reads a comma-separated list keeping empty slots, so
// "pools=,0xabc" overrides only the version-2 pool.
func getPositional(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}
	var items []string
	switch typed := v.Get(key).(type) {
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil
		}
		items = strings.Split(typed, ",")
	case []string:
		items = typed
	case []interface{}:
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
	default:
		return nil
	}
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}
