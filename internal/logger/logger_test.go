package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
	suite.True(logger.Core().Enabled(zapcore.InfoLevel))
	suite.False(logger.Core().Enabled(zapcore.DebugLevel))
}

func (suite *LoggerTestSuite) TestNewLoggerWithConfig() {
	tests := []struct {
		name    string
		cfg     Config
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "debug", cfg: Config{Level: "debug"}, enabled: zapcore.DebugLevel},
		{name: "warn", cfg: Config{Level: "warn"}, enabled: zapcore.WarnLevel},
		{name: "empty defaults to info", cfg: Config{}, enabled: zapcore.InfoLevel},
		{name: "development", cfg: Config{Level: "error", Development: true}, enabled: zapcore.ErrorLevel},
		{name: "unknown level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			logger, err := NewLoggerWithConfig(tc.cfg)
			if tc.wantErr {
				suite.Error(err)
				suite.Nil(logger)

				return
			}

			suite.NoError(err)
			suite.True(logger.Core().Enabled(tc.enabled))
			if tc.enabled > zapcore.DebugLevel {
				suite.False(logger.Core().Enabled(tc.enabled - 1))
			}
		})
	}
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestNop() {
	logger := NewNop()
	suite.NotNil(logger.Logger)

	// should not panic
	logger.Info("discarded")
	suite.NoError(logger.Sync())
}

func (suite *LoggerTestSuite) TestNamedAndWithFields() {
	logger := NewNop()

	named := logger.Named("stream")
	suite.NotNil(named)
	suite.NotSame(logger, named)

	child := named.WithFields(zap.String("symbol", "BTCUSDT"))
	suite.NotNil(child)
	child.Info("test message with fields")
}
