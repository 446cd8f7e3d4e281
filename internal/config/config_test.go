package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "sitejudge", cfg.Logger.ServiceName)
	assert.Equal(t, 90*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 15*time.Second, cfg.Browser.ScreenshotTimeout)
	assert.Equal(t, ProviderBedrock, cfg.LLM.Provider)
	assert.Equal(t, 0.1, cfg.LLM.Temperature)
	assert.Equal(t, 2, cfg.Evaluation.Parallelism)
	assert.Equal(t, time.Hour, cfg.Evaluation.SessionTimeout)
	assert.False(t, cfg.Recording.Enabled)

	// Humanoid defaults flow through from the simulation package.
	assert.Equal(t, 100.0, cfg.Browser.Humanoid.FittsAMean)
	assert.Equal(t, 50, cfg.Browser.Humanoid.ClickHoldMinMs)

	// Absent websites fall back to the built-in set.
	require.NotEmpty(t, cfg.Evaluation.Websites)
	assert.Equal(t, "booking", cfg.Evaluation.Websites[0].Key)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "default config should be valid")

		cfgInvalidParallelism := *cfg
		cfgInvalidParallelism.Evaluation.Parallelism = 0
		err := cfgInvalidParallelism.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "evaluation.parallelism must be a positive integer")

		cfgInvalidSteps := *cfg
		cfgInvalidSteps.Evaluation.MaxSteps = -1
		err = cfgInvalidSteps.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "evaluation.max_steps must be a positive integer")
	})

	t.Run("Website Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Evaluation.Websites = []WebsiteConfig{
			{Key: "booking", URL: "https://www.booking.com"},
			{Key: "booking", URL: "https://www.booking.co.uk"},
		}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate website key "booking"`)

		cfg.Evaluation.Websites = []WebsiteConfig{{Key: "agoda"}}
		err = cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "needs a key and a url")
	})

	t.Run("Provider Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.LLM.Provider = "openai"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported llm.provider "openai"`)

		cfg.LLM.Provider = ProviderGemini
		cfg.LLM.APIKey = ""
		err = cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "llm.api_key is required for the gemini provider")

		cfg.LLM.APIKey = "test-key"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Recording Validation", func(t *testing.T) {
		disabled := RecordingConfig{Enabled: false}
		assert.NoError(t, disabled.Validate(), "disabled recording config should always be valid")

		valid := RecordingConfig{
			Enabled:       true,
			Bucket:        "session-replays",
			PresignExpiry: 24 * time.Hour,
		}
		assert.NoError(t, valid.Validate())

		missingBucket := valid
		missingBucket.Bucket = ""
		err := missingBucket.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")

		badExpiry := valid
		badExpiry.PresignExpiry = 0
		err = badExpiry.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "presign_expiry must be a positive duration")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  cdp_endpoint: "ws://10.0.0.5:9222/devtools/browser/abc"
  navigation_timeout: 45s
evaluation:
  parallelism: 4
  destination: "Lisbon"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "ws://10.0.0.5:9222/devtools/browser/abc", cfg.Browser.CDPEndpoint)
		assert.Equal(t, 45*time.Second, cfg.Browser.NavigationTimeout)
		assert.Equal(t, 4, cfg.Evaluation.Parallelism)
		assert.Equal(t, "Lisbon", cfg.Evaluation.Destination)
		// Defaults still apply where the YAML is silent.
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("evaluation.parallelism", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("llm.provider", "gemini")

		t.Setenv("SITEJUDGE_LLM_API_KEY", "env-api-key")
		t.Setenv("SITEJUDGE_CDP_ENDPOINT", "ws://env-host:9222/devtools/browser/xyz")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "env-api-key", cfg.LLM.APIKey)
		assert.Equal(t, "ws://env-host:9222/devtools/browser/xyz", cfg.Browser.CDPEndpoint)
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/sitejudge.log
browser:
  humanoid:
    click_hold_min_ms: 40
    click_hold_max_ms: 95
evaluation:
  websites:
    - key: booking
      url: https://www.booking.com
      instructions: "Dismiss the sign-in popup before searching."
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/var/log/sitejudge.log", cfg.Logger.LogFile)
	assert.Equal(t, 40, cfg.Browser.Humanoid.ClickHoldMinMs)
	assert.Equal(t, 95, cfg.Browser.Humanoid.ClickHoldMaxMs)
	require.Len(t, cfg.Evaluation.Websites, 1)
	assert.Equal(t, "booking", cfg.Evaluation.Websites[0].Key)
	assert.Contains(t, cfg.Evaluation.Websites[0].Instructions, "sign-in popup")
}
