package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/kline-sentinel/internal/types"
	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()

	for _, key := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "BINANCE_API_KEY", "BINANCE_SECRET_KEY", "LOG_LEVEL"} {
		suite.T().Setenv(EnvPrefix+"_"+key, "")
		suite.T().Setenv(key, "")
	}
}

func (suite *ConfigTestSuite) write(name, content string) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (suite *ConfigTestSuite) TestDefaultsAreValid() {
	cfg := Default()
	suite.NoError(cfg.Validate())
	suite.Equal(5, cfg.Stream.Manager.BatchSize)
	suite.Equal(1024, cfg.Stream.Manager.MaxStreams)
	suite.Equal(5, cfg.Stream.Manager.MaxMessagesPerSecond)
	suite.Equal([]int{10, 20, 100}, cfg.Ingest.Processor.Windows)
	suite.False(cfg.TelegramEnabled())
}

func (suite *ConfigTestSuite) TestLoadYAML() {
	path := suite.write("sentinel.yaml", `
version: v1.0.0
log:
  level: debug
symbols: [BTCUSDT, ETHUSDT]
stream:
  websocket:
    url: ws://localhost:9000/ws
  manager:
    batch_size: 3
    request_timeout: 2s
ingest:
  intervals: [1m, 5m]
  rules: [HIGH_VOLUME_RISE, PRICE_CHANGE]
  processor:
    windows: [5, 50]
    check_every: 2
    check_type: BOTH
    only_closed: true
    volume_rise_factor: 3
    price_change_percent: 1.5
notify:
  concurrency: 2
  timeout: 3s
api:
  listen: 127.0.0.1:9100
reconnect:
  initial_interval: 500ms
  max_interval: 30s
`)

	cfg, err := Load(path, "")
	suite.Require().NoError(err)

	suite.Equal("debug", cfg.Log.Level)
	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	suite.Equal("ws://localhost:9000/ws", cfg.Stream.Websocket.URL)
	suite.Equal(3, cfg.Stream.Manager.BatchSize)
	suite.Equal(2*time.Second, cfg.Stream.Manager.RequestTimeout)
	suite.Equal(1024, cfg.Stream.Manager.MaxStreams)
	suite.Equal([]types.Interval{types.Interval1m, types.Interval5m}, cfg.Ingest.Intervals)
	suite.Equal([]int{5, 50}, cfg.Ingest.Processor.Windows)
	suite.Equal(types.CheckTypeBoth, cfg.Ingest.Processor.CheckType)
	suite.True(cfg.Ingest.Processor.OnlyClosed)
	suite.Equal(int64(2), cfg.Notify.Concurrency)
	suite.Equal(3*time.Second, cfg.Notify.Timeout)
	suite.Equal("127.0.0.1:9100", cfg.API.Listen)
	suite.Equal(500*time.Millisecond, cfg.Reconnect.InitialInterval)
}

func (suite *ConfigTestSuite) TestExampleConfigLoads() {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"), "")
	suite.Require().NoError(err)
	suite.Equal([]string{"btcusdt", "ethusdt"}, cfg.Symbols)
	suite.Equal([]types.Interval{types.Interval1m, types.Interval5m}, cfg.Ingest.Intervals)
	suite.Equal(Default().Stream, cfg.Stream)
	suite.Equal(Default().Reconnect, cfg.Reconnect)
}

func (suite *ConfigTestSuite) TestSecretsFromEnvFile() {
	envFile := suite.write(".env", "SENTINEL_TELEGRAM_BOT_TOKEN=123:abc\nSENTINEL_TELEGRAM_CHAT_ID=42\nSENTINEL_BINANCE_API_KEY=key\n")
	suite.T().Setenv("SENTINEL_LOG_LEVEL", "warn")

	// godotenv does not override variables that are already set, so clear ours first
	suite.Require().NoError(os.Unsetenv("SENTINEL_TELEGRAM_BOT_TOKEN"))
	suite.Require().NoError(os.Unsetenv("SENTINEL_TELEGRAM_CHAT_ID"))
	suite.Require().NoError(os.Unsetenv("SENTINEL_BINANCE_API_KEY"))

	cfg, err := Load("", envFile)
	suite.Require().NoError(err)

	suite.True(cfg.TelegramEnabled())
	suite.Equal("123:abc", cfg.Notify.Telegram.Token)
	suite.Equal("42", cfg.Notify.Telegram.ChatID)
	suite.Equal("key", cfg.History.APIKey)
	suite.Equal("warn", cfg.Log.Level)
}

func (suite *ConfigTestSuite) TestLoadErrors() {
	_, err := Load(filepath.Join(suite.dir, "missing.yaml"), "")
	suite.True(errors.HasCode(err, errors.ErrCodeConfigLoad))

	_, err = Load(suite.write("broken.yaml", "symbols: [unclosed"), "")
	suite.True(errors.HasCode(err, errors.ErrCodeConfigLoad))

	_, err = Load("", filepath.Join(suite.dir, "missing.env"))
	suite.True(errors.HasCode(err, errors.ErrCodeConfigLoad))
}

func (suite *ConfigTestSuite) TestValidation() {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		code   errors.ErrorCode
	}{
		{
			name:   "bad symbol",
			mutate: func(cfg *Config) { cfg.Symbols = []string{"BTC-USD"} },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "zero batch size",
			mutate: func(cfg *Config) { cfg.Stream.Manager.BatchSize = 0 },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "unknown interval",
			mutate: func(cfg *Config) { cfg.Ingest.Intervals = []types.Interval{"2m"} },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "max interval below initial",
			mutate: func(cfg *Config) { cfg.Reconnect.MaxInterval = time.Millisecond },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "missing version",
			mutate: func(cfg *Config) { cfg.Version = "" },
			code:   errors.ErrCodeInvalidConfiguration,
		},
		{
			name:   "newer major version",
			mutate: func(cfg *Config) { cfg.Version = "v9.0.0" },
			code:   errors.ErrCodeVersionMismatch,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			cfg := Default()
			tt.mutate(&cfg)
			suite.True(errors.HasCode(cfg.Validate(), tt.code))
		})
	}
}
