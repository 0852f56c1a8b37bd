package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Chat    ChatConfig    `json:"chat"`
	Gateway GatewayConfig `json:"gateway"`
	Store   StoreConfig   `json:"store"`
	Catalog CatalogConfig `json:"catalog"`
	Scrape  ScrapeConfig  `json:"scrape"`
	Webhook WebhookConfig `json:"webhook"`
	Remind  RemindConfig  `json:"remind"`
	Logging LoggingConfig `json:"logging"`
}

type ChatConfig struct {
	AccessToken    string `json:"access_token" env:"DAIGO_CHAT_ACCESS_TOKEN"`
	ChannelSecret  string `json:"channel_secret" env:"DAIGO_CHAT_CHANNEL_SECRET"`
	OperatorUserID string `json:"operator_user_id" env:"DAIGO_CHAT_OPERATOR_USER_ID"`
	APIBase        string `json:"api_base" env:"DAIGO_CHAT_API_BASE"`
	TimeoutSec     int    `json:"timeout_sec" env:"DAIGO_CHAT_TIMEOUT_SEC"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"DAIGO_GATEWAY_HOST"`
	Port int    `json:"port" env:"DAIGO_GATEWAY_PORT"`
}

type StoreConfig struct {
	Path string `json:"path" env:"DAIGO_STORE_PATH"`
}

type CatalogConfig struct {
	BaseURL          string  `json:"base_url" env:"DAIGO_CATALOG_BASE_URL"`
	TimeoutSec       int     `json:"timeout_sec" env:"DAIGO_CATALOG_TIMEOUT_SEC"`
	ProbeConcurrency int     `json:"probe_concurrency" env:"DAIGO_CATALOG_PROBE_CONCURRENCY"`
	ProbeRatePerSec  float64 `json:"probe_rate_per_sec" env:"DAIGO_CATALOG_PROBE_RATE_PER_SEC"`
	UserAgent        string  `json:"user_agent" env:"DAIGO_CATALOG_USER_AGENT"`
	Referer          string  `json:"referer" env:"DAIGO_CATALOG_REFERER"`
}

type ScrapeConfig struct {
	TimeoutSec int    `json:"timeout_sec" env:"DAIGO_SCRAPE_TIMEOUT_SEC"`
	UserAgent  string `json:"user_agent" env:"DAIGO_SCRAPE_USER_AGENT"`
}

type WebhookConfig struct {
	MaxEventWorkers int `json:"max_event_workers" env:"DAIGO_WEBHOOK_MAX_EVENT_WORKERS"`
}

type RemindConfig struct {
	Enabled bool   `json:"enabled" env:"DAIGO_REMIND_ENABLED"`
	// Cron spec for the operator digest, default 21:30 local time,
	// ahead of the nightly purchasing run.
	Spec string `json:"spec" env:"DAIGO_REMIND_SPEC"`
}

type LoggingConfig struct {
	Enabled   bool   `json:"enabled" env:"DAIGO_LOGGING_ENABLED"`
	Dir       string `json:"dir" env:"DAIGO_LOGGING_DIR"`
	Filename  string `json:"filename" env:"DAIGO_LOGGING_FILENAME"`
	MaxSizeMB int    `json:"max_size_mb" env:"DAIGO_LOGGING_MAX_SIZE_MB"`
}

func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			APIBase:    "https://api.line.me",
			TimeoutSec: 15,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18690,
		},
		Store: StoreConfig{
			Path: "daigo.db",
		},
		Catalog: CatalogConfig{
			BaseURL:          "https://www.uniqlo.com/jp/api/commerce/v5/ja",
			TimeoutSec:       10,
			ProbeConcurrency: 8,
			ProbeRatePerSec:  20,
			UserAgent:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Referer:          "https://www.uniqlo.com/",
		},
		Scrape: ScrapeConfig{
			TimeoutSec: 20,
			UserAgent:  "Mozilla/5.0",
		},
		Webhook: WebhookConfig{
			MaxEventWorkers: 16,
		},
		Remind: RemindConfig{
			Enabled: true,
			Spec:    "30 21 * * *",
		},
		Logging: LoggingConfig{
			Enabled:   true,
			Dir:       "logs",
			Filename:  "daigo.log",
			MaxSizeMB: 20,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := unmarshalConfigStrict(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) LogFilePath() string {
	filename := c.Logging.Filename
	if filename == "" {
		filename = "daigo.log"
	}
	return filepath.Join(c.Logging.Dir, filename)
}
