// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		level     string
		enabled   zapcore.Level
		disabled  zapcore.Level
		wantError bool
	}{
		{name: "production default", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{name: "production warn", level: "warn", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{name: "debug mode", debug: true, enabled: zapcore.DebugLevel, disabled: zapcore.InvalidLevel},
		{name: "debug mode with level", debug: true, level: "error", enabled: zapcore.ErrorLevel, disabled: zapcore.WarnLevel},
		{name: "bad level", level: "loud", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.debug, tt.level, "research-assistant")
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer logger.Sync() //nolint:errcheck

			assert.True(t, logger.Core().Enabled(tt.enabled))
			if tt.disabled != zapcore.InvalidLevel {
				assert.False(t, logger.Core().Enabled(tt.disabled))
			}
		})
	}
}
