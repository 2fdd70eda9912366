package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"mods@example.com", false},
		{"first.last+tag@sub.example.org", false},
		{"no-at-sign.example.com", true},
		{"trailing@dot.", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "line one\nline\ttwo", SanitizeString("line\x00 one\nline\ttwo\x7f"))

	assert.Nil(t, SanitizePtr(nil))
	blank := " \x01 "
	assert.Nil(t, SanitizePtr(&blank))
	padded := "  spam\x1b "
	assert.Equal(t, "spam", *SanitizePtr(&padded))
}

func TestStripControlPtr(t *testing.T) {
	assert.Nil(t, StripControlPtr(nil))

	empty := "\x07"
	assert.Nil(t, StripControlPtr(&empty))

	padded := " spam\x1b\t"
	assert.Equal(t, " spam\t", *StripControlPtr(&padded))
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "approvals.log")

	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json"})
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
	assert.True(t, logger.Core().Enabled(0))
}

func TestNewCLILogger(t *testing.T) {
	quiet, err := NewCLILogger(false)
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(0))

	verbose, err := NewCLILogger(true)
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(-1))
}
