package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"trade_sim/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFeedURL is the L2 order book stream for OKX BTC-USDT-SWAP.
	DefaultFeedURL = "wss://ws.gomarket-cpp.goquant.io/ws/l2-orderbook/okx/BTC-USDT-SWAP"

	// DefaultConfigPath is where serve looks for the YAML file.
	DefaultConfigPath = "configs/config.yaml"

	envPrefix = "TRADESIM_"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Engine struct {
		Exchange  string `yaml:"exchange"`
		Symbol    string `yaml:"symbol"`
		InboxSize int    `yaml:"inbox_size"`
	} `yaml:"engine"`

	Feed struct {
		URL               string `yaml:"url"`
		ReconnectDelaySec int    `yaml:"reconnect_delay_sec"`
		ReadTimeoutSec    int    `yaml:"read_timeout_sec"`
		Breaker           struct {
			Failures       uint32 `yaml:"failures"`
			OpenTimeoutSec int    `yaml:"open_timeout_sec"`
		} `yaml:"breaker"`
		Mock struct {
			Enabled    bool    `yaml:"enabled"`
			IntervalMS int     `yaml:"interval_ms"`
			BasePrice  float64 `yaml:"base_price"`
		} `yaml:"mock"`
	} `yaml:"feed"`

	Models struct {
		Gamma       float64             `yaml:"gamma"`
		Eta         float64             `yaml:"eta"`
		Epsilon     float64             `yaml:"epsilon"`
		HorizonMin  float64             `yaml:"horizon_min"`
		DefaultTier string              `yaml:"default_tier"`
		FeeTiers    domain.FeeTierTable `yaml:"fee_tiers"`
	} `yaml:"models"`

	Performance struct {
		WindowSize int `yaml:"window_size"`
	} `yaml:"performance"`

	Server struct {
		Addr           string  `yaml:"addr"`
		AllowedOrigin  string  `yaml:"allowed_origin"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		Prefix    string `yaml:"prefix"`
		TimeoutMS int    `yaml:"timeout_ms"` // 요청당 타임아웃 (밀리초)
	} `yaml:"redis"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration that runs without a YAML file.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "trade_sim"
	cfg.App.Version = "0.1.0"

	cfg.Engine.Exchange = "OKX"
	cfg.Engine.Symbol = "BTC-USDT-SWAP"
	cfg.Engine.InboxSize = 1024

	cfg.Feed.URL = DefaultFeedURL
	cfg.Feed.ReconnectDelaySec = 5
	cfg.Feed.ReadTimeoutSec = 30
	cfg.Feed.Breaker.Failures = 3
	cfg.Feed.Breaker.OpenTimeoutSec = 60
	cfg.Feed.Mock.Enabled = true
	cfg.Feed.Mock.IntervalMS = 1000
	cfg.Feed.Mock.BasePrice = 95000

	cfg.Models.Gamma = 0.1
	cfg.Models.Eta = 0.01
	cfg.Models.Epsilon = 0.005
	cfg.Models.HorizonMin = 1.0
	cfg.Models.DefaultTier = domain.DefaultFeeTier
	cfg.Models.FeeTiers = domain.DefaultFeeTiers()

	cfg.Performance.WindowSize = 100

	cfg.Server.Addr = "127.0.0.1:8000"
	cfg.Server.AllowedOrigin = "*"
	cfg.Server.RateLimitRPS = 20
	cfg.Server.RateLimitBurst = 40

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.Prefix = "tradesim"
	cfg.Redis.TimeoutMS = 500

	cfg.Storage.Enabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// Keys absent from the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.ConfigError{Field: path, Err: domain.ErrConfigNotFound}
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadConfigOrDefault는 파일이 없으면 기본값에 환경 변수를 적용해 사용합니다.
// found reports whether path existed.
func LoadConfigOrDefault(path string) (cfg *Config, found bool, err error) {
	cfg, err = LoadConfig(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, domain.ErrConfigNotFound) {
		return nil, false, err
	}

	cfg = DefaultConfig()
	overrideWithEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, false, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Engine.Symbol == "" {
		return &domain.ConfigError{Field: "engine.symbol", Err: errors.New("required")}
	}
	if c.Engine.InboxSize <= 0 {
		return &domain.ConfigError{Field: "engine.inbox_size", Err: errors.New("must be positive")}
	}

	if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return &domain.ConfigError{Field: "feed.url", Err: fmt.Errorf("invalid websocket URL %q", c.Feed.URL)}
	}
	if c.Feed.ReconnectDelaySec <= 0 {
		return &domain.ConfigError{Field: "feed.reconnect_delay_sec", Err: errors.New("must be positive")}
	}
	if c.Feed.Breaker.Failures == 0 {
		return &domain.ConfigError{Field: "feed.breaker.failures", Err: errors.New("must be positive")}
	}
	if c.Feed.Mock.Enabled && c.Feed.Mock.IntervalMS <= 0 {
		return &domain.ConfigError{Field: "feed.mock.interval_ms", Err: errors.New("must be positive")}
	}

	if c.Models.Gamma < 0 || c.Models.Eta < 0 || c.Models.Epsilon < 0 {
		return &domain.ConfigError{Field: "models", Err: errors.New("gamma, eta and epsilon must not be negative")}
	}
	if c.Models.HorizonMin <= 0 {
		return &domain.ConfigError{Field: "models.horizon_min", Err: errors.New("must be positive")}
	}
	if _, ok := c.Models.FeeTiers[c.Models.DefaultTier]; !ok {
		return &domain.ConfigError{Field: "models.default_tier", Err: fmt.Errorf("tier %q not in fee_tiers", c.Models.DefaultTier)}
	}

	if c.Performance.WindowSize <= 0 {
		return &domain.ConfigError{Field: "performance.window_size", Err: errors.New("must be positive")}
	}

	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return &domain.ConfigError{Field: "server.rate_limit", Err: errors.New("rps and burst must be positive")}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return &domain.ConfigError{Field: "redis.addr", Err: errors.New("required when redis is enabled")}
	}

	return nil
}

// ReconnectDelay is the fixed wait between live feed connection attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Feed.ReconnectDelaySec) * time.Second
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv(envPrefix + "SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(envPrefix + "REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv(envPrefix + "REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv(envPrefix + "DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "MOCK_FEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Feed.Mock.Enabled = b
		}
	}
}
