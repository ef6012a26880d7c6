package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/kline-sentinel/pkg/errors"
)

func TestCheckConfigCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		binary        string
		config        string
		expectCode    errors.ErrorCode
		errorContains string
	}{
		{name: "exact match", binary: "1.2.0", config: "1.2.0"},
		{name: "patch differs", binary: "1.2.0", config: "1.2.7"},
		{name: "older config minor", binary: "1.4.0", config: "1.1.3"},
		{name: "v prefix", binary: "v1.2.0", config: "1.2.0"},
		{name: "prerelease binary", binary: "1.2.0-rc.1", config: "1.2.0"},
		{name: "binary is main", binary: "main", config: "9.9.9"},
		{name: "config is main", binary: "1.0.0", config: "main"},
		{
			name:          "newer config minor",
			binary:        "1.2.0",
			config:        "1.3.0",
			expectCode:    errors.ErrCodeVersionMismatch,
			errorContains: "needs a newer binary",
		},
		{
			name:          "major differs",
			binary:        "2.0.0",
			config:        "1.2.0",
			expectCode:    errors.ErrCodeVersionMismatch,
			errorContains: "major version mismatch",
		},
		{
			name:          "invalid binary",
			binary:        "not-a-version",
			config:        "1.0.0",
			expectCode:    errors.ErrCodeInvalidVersion,
			errorContains: "invalid binary version",
		},
		{
			name:          "empty config",
			binary:        "1.0.0",
			config:        "",
			expectCode:    errors.ErrCodeInvalidVersion,
			errorContains: "invalid config version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfigCompatibility(tt.binary, tt.config)

			if tt.expectCode == 0 {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.expectCode))
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
