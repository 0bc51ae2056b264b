package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ApplyDefaults())

	assert.Equal(t, DefaultConfigServerHost, cfg.Server.Host)
	assert.EqualValues(t, DefaultConfigServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultConfigShutdownTimeout, cfg.Shutdown.Timeout)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
}

func TestValidate_RequiresUpstreamBaseURL(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ApplyDefaults())

	err := cfg.Validate()
	assert.Error(t, err, "upstream.base_url is required and should fail validation when empty")
}

func TestValidate_AcceptsConfiguredUpstream(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ApplyDefaults())
	cfg.Upstream.BaseURL = "https://api.openai.com/v1"

	assert.NoError(t, cfg.Validate())
}
