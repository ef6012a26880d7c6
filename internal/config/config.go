// Package config loads the sentinel configuration: a YAML file for settings
// and the environment (optionally seeded from a .env file) for secrets.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rxtech-lab/kline-sentinel/internal/history"
	"github.com/rxtech-lab/kline-sentinel/internal/ingest"
	"github.com/rxtech-lab/kline-sentinel/internal/logger"
	"github.com/rxtech-lab/kline-sentinel/internal/notify"
	"github.com/rxtech-lab/kline-sentinel/internal/stream"
	"github.com/rxtech-lab/kline-sentinel/internal/transport"
	"github.com/rxtech-lab/kline-sentinel/internal/version"
	"github.com/rxtech-lab/kline-sentinel/internal/worker"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

// EnvPrefix prefixes every secret environment variable.
const EnvPrefix = "SENTINEL"

// Config is the complete sentinel configuration.
type Config struct {
	// Version is the binary version the file was written for
	Version string `yaml:"version" json:"version" jsonschema:"title=Version,description=Config format version" validate:"required"`
	Log     logger.Config `yaml:"log" json:"log" jsonschema:"title=Log"`
	// Symbols are subscribed at startup
	Symbols   []string        `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols" validate:"dive,required,alphanum"`
	Stream    StreamConfig    `yaml:"stream" json:"stream" jsonschema:"title=Stream"`
	Ingest    ingest.Config   `yaml:"ingest" json:"ingest" jsonschema:"title=Ingest"`
	RulePool  worker.Config   `yaml:"rule_pool" json:"rule_pool" jsonschema:"title=Rule Pool"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify" jsonschema:"title=Notify"`
	History   history.Config  `yaml:"history" json:"history" jsonschema:"title=History"`
	API       APIConfig       `yaml:"api" json:"api" jsonschema:"title=API"`
	Reconnect ReconnectConfig `yaml:"reconnect" json:"reconnect" jsonschema:"title=Reconnect"`
	Secrets   Secrets         `yaml:"-" json:"-"`
}

// StreamConfig groups the connection and the protocol limits.
type StreamConfig struct {
	Websocket transport.WebsocketConfig `yaml:"websocket" json:"websocket" jsonschema:"title=Websocket"`
	Manager   stream.Config             `yaml:"manager" json:"manager" jsonschema:"title=Manager"`
}

type NotifyConfig struct {
	notify.Config `yaml:",inline" json:",inline"`
	Telegram      notify.TelegramConfig `yaml:"telegram" json:"telegram" jsonschema:"title=Telegram"`
}

type APIConfig struct {
	// Listen is the control API address, empty disables the API
	Listen string `yaml:"listen" json:"listen" jsonschema:"title=Listen,default=:8080"`
}

// ReconnectConfig is the exponential backoff between stream sessions.
type ReconnectConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval" json:"initial_interval" jsonschema:"title=Initial Interval" validate:"gt=0"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval" jsonschema:"title=Max Interval" validate:"gtefield=InitialInterval"`
	// MaxElapsedTime gives up reconnecting after this long, 0 retries forever
	MaxElapsedTime time.Duration `yaml:"max_elapsed_time" json:"max_elapsed_time" jsonschema:"title=Max Elapsed Time" validate:"gte=0"`
}

// Secrets are read from SENTINEL_* environment variables.
type Secrets struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	BinanceAPIKey    string `envconfig:"BINANCE_API_KEY"`
	BinanceSecretKey string `envconfig:"BINANCE_SECRET_KEY"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
}

// Default returns a configuration that runs against Binance spot.
func Default() Config {
	return Config{
		Version: version.GetVersion(),
		Log:     logger.Config{Level: "info", Development: false},
		Symbols: nil,
		Stream: StreamConfig{
			Websocket: transport.DefaultWebsocketConfig(),
			Manager:   stream.DefaultConfig(),
		},
		Ingest:   ingest.DefaultConfig(),
		RulePool: worker.DefaultConfig(),
		Notify: NotifyConfig{
			Config:   notify.DefaultConfig(),
			Telegram: notify.TelegramConfig{BaseURL: notify.DefaultTelegramURL, Timeout: 10 * time.Second, Token: "", ChatID: ""},
		},
		History: history.Config{BaseURL: "", APIKey: "", SecretKey: ""},
		API:     APIConfig{Listen: ":8080"},
		Reconnect: ReconnectConfig{
			InitialInterval: time.Second,
			MaxInterval:     time.Minute,
			MaxElapsedTime:  0,
		},
		Secrets: Secrets{},
	}
}

// Load reads the YAML file at path over the defaults, applies secrets from
// the environment and validates the result. An empty path uses the defaults.
// envFile names a .env file to load first; when empty, ./.env is loaded if present.
func Load(path string, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeConfigLoad, err, "failed to read config %s", path)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeConfigLoad, err, "failed to parse config %s", path)
		}
	}

	secrets, err := LoadSecrets(envFile)
	if err != nil {
		return Config{}, err
	}

	cfg.ApplySecrets(secrets)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadSecrets loads the .env file into the process environment, without
// overriding variables that are already set, and reads the SENTINEL_* secrets.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Secrets{}, errors.Wrapf(errors.ErrCodeConfigLoad, err, "failed to load env file %s", envFile)
		}
	} else {
		_ = godotenv.Load()
	}

	var secrets Secrets
	if err := envconfig.Process(EnvPrefix, &secrets); err != nil {
		return Secrets{}, errors.Wrap(errors.ErrCodeConfigLoad, "failed to read environment", err)
	}

	return secrets, nil
}

// ApplySecrets copies the secrets into the components that need them.
func (c *Config) ApplySecrets(secrets Secrets) {
	c.Secrets = secrets
	c.Notify.Telegram.Token = secrets.TelegramBotToken
	c.Notify.Telegram.ChatID = secrets.TelegramChatID
	c.History.APIKey = secrets.BinanceAPIKey
	c.History.SecretKey = secrets.BinanceSecretKey

	if secrets.LogLevel != "" {
		c.Log.Level = secrets.LogLevel
	}
}

// TelegramEnabled reports whether both Telegram secrets are present.
func (c Config) TelegramEnabled() bool {
	return c.Notify.Telegram.Token != "" && c.Notify.Telegram.ChatID != ""
}

// Validate checks every section and the config version.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if err := c.Stream.Manager.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid stream config", err)
	}

	if err := c.Ingest.Validate(); err != nil {
		return err
	}

	return version.CheckConfigCompatibility(version.GetVersion(), c.Version)
}
