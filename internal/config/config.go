package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General  GeneralConfig  `toml:"general"`
	Schedule ScheduleConfig `toml:"schedule"`
	API      APIConfig      `toml:"api"`
	Telegram TelegramConfig `toml:"telegram"`
}

type GeneralConfig struct {
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`
}

type ScheduleConfig struct {
	// ScanInterval is how often the loop command walks the tracked markets.
	ScanInterval Duration `toml:"scan_interval"`
	// DefaultCheckRate applies to markets added without an explicit rate.
	DefaultCheckRate Duration `toml:"default_check_rate"`
}

type APIConfig struct {
	// Workers bounds how many rules evaluate concurrently per market.
	Workers int `toml:"workers"`
	// CacheTTL is how long fetched reference markets stay fresh.
	CacheTTL Duration `toml:"cache_ttl"`
	// RequestsPerSecond throttles all Manifold API traffic.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	// ConfirmTimeout bounds how long a resolution waits for the operator.
	ConfirmTimeout Duration `toml:"confirm_timeout"`
}

type TelegramConfig struct {
	// Token and ChatID are read from the environment when empty, so the
	// config file never has to hold credentials.
	Token  string `toml:"token"`
	ChatID string `toml:"chat_id"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DBPath:   "./data/marketkeeper.db",
			LogLevel: "info",
		},
		Schedule: ScheduleConfig{
			ScanInterval:     Duration{1 * time.Hour},
			DefaultCheckRate: Duration{1 * time.Hour},
		},
		API: APIConfig{
			Workers:           8,
			CacheTTL:          Duration{5 * time.Minute},
			RequestsPerSecond: 5,
			ConfirmTimeout:    Duration{15 * time.Minute},
		},
	}
}

// FromEnv fills the Telegram credentials from the environment when the
// config file leaves them empty.
func (c *Config) FromEnv() {
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("TELEGRAM_API_KEY")
	}
	if c.Telegram.ChatID == "" {
		c.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
}
