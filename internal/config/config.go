package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"balance-sentinel/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	State     StateConfig     `mapstructure:"state"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Chains    []ChainConfig   `mapstructure:"chains"`
	Solana    SolanaConfig    `mapstructure:"solana"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StateConfig selects and parameterises durable state storage.
type StateConfig struct {
	Backend  string         `mapstructure:"backend"`
	Dir      string         `mapstructure:"dir"`
	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the postgres backend.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs check cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// MonitorConfig holds the threshold, cooldown, and watched addresses.
type MonitorConfig struct {
	ThresholdUSD  float64       `mapstructure:"threshold_usd"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	EVMAddress    string        `mapstructure:"evm_address"`
	SolanaAddress string        `mapstructure:"solana_address"`
	RPCTimeout    time.Duration `mapstructure:"rpc_timeout"`
}

// ChainConfig describes one EVM network to check.
type ChainConfig struct {
	Key     string `mapstructure:"key"`
	Name    string `mapstructure:"name"`
	Symbol  string `mapstructure:"symbol"`
	PriceID string `mapstructure:"price_id"`
	RPCURL  string `mapstructure:"rpc_url"`
}

// SolanaConfig describes the Solana endpoint. The alert key is fixed to "solana".
type SolanaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	Symbol  string `mapstructure:"symbol"`
	PriceID string `mapstructure:"price_id"`
	RPCURL  string `mapstructure:"rpc_url"`
}

// PricingConfig captures price oracle connectivity.
type PricingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig configures the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BALANCEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "balancewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("state.backend", "file")
	v.SetDefault("state.dir", "state")
	v.SetDefault("state.database.max_open_conns", 4)
	v.SetDefault("state.database.max_idle_conns", 2)
	v.SetDefault("state.database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("monitor.threshold_usd", 50.0)
	v.SetDefault("monitor.cooldown", "6h")
	v.SetDefault("monitor.rpc_timeout", "10s")

	v.SetDefault("solana.enabled", true)
	v.SetDefault("solana.name", "Solana")
	v.SetDefault("solana.symbol", "SOL")
	v.SetDefault("solana.price_id", "solana")
	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")

	v.SetDefault("pricing.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("pricing.request_timeout", "10s")
	v.SetDefault("pricing.user_agent", "balancewatcher/1.0")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.ThresholdUSD <= 0 {
		return fmt.Errorf("monitor.threshold_usd must be greater than zero")
	}
	if c.Monitor.Cooldown <= 0 {
		return fmt.Errorf("monitor.cooldown must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}

	switch c.State.Backend {
	case "file":
		if c.State.Dir == "" {
			return fmt.Errorf("state.dir is required for the file backend")
		}
	case "postgres":
		if c.State.Database.DSN == "" {
			return fmt.Errorf("state.database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("state.backend must be file or postgres, got %q", c.State.Backend)
	}

	if len(c.Chains) > 0 && c.Monitor.EVMAddress == "" {
		return fmt.Errorf("monitor.evm_address is required when chains are configured")
	}
	if c.Solana.Enabled && c.Monitor.SolanaAddress == "" {
		return fmt.Errorf("monitor.solana_address is required when solana is enabled")
	}
	if len(c.Chains) == 0 && !c.Solana.Enabled {
		return fmt.Errorf("no chains configured")
	}

	seen := make(map[string]struct{}, len(c.Chains))
	for i, chain := range c.Chains {
		if chain.Key == "" {
			return fmt.Errorf("chains[%d].key is required", i)
		}
		if chain.Key == "solana" {
			return fmt.Errorf("chains[%d].key %q is reserved", i, chain.Key)
		}
		if _, dup := seen[chain.Key]; dup {
			return fmt.Errorf("duplicate chain key %q", chain.Key)
		}
		seen[chain.Key] = struct{}{}
		if chain.RPCURL == "" {
			return fmt.Errorf("chains[%d].rpc_url is required", i)
		}
		if chain.PriceID == "" {
			return fmt.Errorf("chains[%d].price_id is required", i)
		}
	}

	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}
