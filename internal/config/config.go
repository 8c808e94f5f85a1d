package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Server struct {
	Port string `mapstructure:"port"`
	// RequestTimeoutSec bounds the handling of one inbound request,
	// upstream calls included. 0 disables it.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec"`
}

type CoinMarketCap struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Symbol  string `mapstructure:"symbol"`
	Convert string `mapstructure:"convert"`

	// TimeoutSec is the outbound client timeout. When 0 the CLI uses a
	// client without a timeout and the server falls back to 10s.
	TimeoutSec            int `mapstructure:"timeout_sec"`
	MaxRequestsPerMinute  int `mapstructure:"max_requests_per_minute"`
	MinRequestIntervalSec int `mapstructure:"min_request_interval_sec"`
	Burst                 int `mapstructure:"burst"`
	CacheTTLSeconds       int `mapstructure:"cache_ttl_sec"`
	CacheMaxItems         int `mapstructure:"cache_max_items"`
}

type Redis struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_sec"`
	Channel    string `mapstructure:"channel"`
}

type Postgres struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server        Server        `mapstructure:"server"`
	CoinMarketCap CoinMarketCap `mapstructure:"coinmarketcap"`
	Redis         Redis         `mapstructure:"redis"`
	Postgres      Postgres      `mapstructure:"postgres"`
	Log           Log           `mapstructure:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15},
		CoinMarketCap: CoinMarketCap{
			APIKey:               "YOUR_CMC_API_KEY",
			BaseURL:              "https://pro-api.coinmarketcap.com",
			Symbol:               "CHONK9K",
			Convert:              "USD",
			MaxRequestsPerMinute: 30,
			Burst:                5,
			CacheTTLSeconds:      60,
			CacheMaxItems:        5000,
		},
		Redis: Redis{
			Enabled:    false,
			Addr:       "localhost:6379",
			TTLSeconds: 60,
			Channel:    "prices",
		},
		Postgres: Postgres{Enabled: false},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads config from path. If path is empty, config.{json,yaml,yml} in the
// working directory is used when present; otherwise defaults apply.
// Environment variables override any field: nested keys join with '_'
// (COINMARKETCAP_API_KEY, SERVER_PORT, REDIS_ADDR). CMC_API_KEY and PORT
// are accepted as short forms.
func Load(path string) (Config, error) {
	cfg := Default()
	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("coinmarketcap.api_key", "COINMARKETCAP_API_KEY", "CMC_API_KEY")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case path != "" && errors.Is(err, os.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it on Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.request_timeout_sec", cfg.Server.RequestTimeoutSec)

	v.SetDefault("coinmarketcap.api_key", cfg.CoinMarketCap.APIKey)
	v.SetDefault("coinmarketcap.base_url", cfg.CoinMarketCap.BaseURL)
	v.SetDefault("coinmarketcap.symbol", cfg.CoinMarketCap.Symbol)
	v.SetDefault("coinmarketcap.convert", cfg.CoinMarketCap.Convert)
	v.SetDefault("coinmarketcap.timeout_sec", cfg.CoinMarketCap.TimeoutSec)
	v.SetDefault("coinmarketcap.max_requests_per_minute", cfg.CoinMarketCap.MaxRequestsPerMinute)
	v.SetDefault("coinmarketcap.min_request_interval_sec", cfg.CoinMarketCap.MinRequestIntervalSec)
	v.SetDefault("coinmarketcap.burst", cfg.CoinMarketCap.Burst)
	v.SetDefault("coinmarketcap.cache_ttl_sec", cfg.CoinMarketCap.CacheTTLSeconds)
	v.SetDefault("coinmarketcap.cache_max_items", cfg.CoinMarketCap.CacheMaxItems)

	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.ttl_sec", cfg.Redis.TTLSeconds)
	v.SetDefault("redis.channel", cfg.Redis.Channel)

	v.SetDefault("postgres.enabled", cfg.Postgres.Enabled)
	v.SetDefault("postgres.dsn", cfg.Postgres.DSN)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
