package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, cfg.Provider)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 3, cfg.MaxPlanIterations)
	assert.Empty(t, cfg.PostgresDSN)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shopquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"provider: openai\nmodel_name: gpt-4o-mini\naddr: \":9090\"\nmax_plan_iterations: 2\n",
	), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.ModelName)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 2, cfg.MaxPlanIterations)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SHOPQUERY_ADDR", ":7070")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Provider: ProviderNone, Addr: ":8080", MaxPlanIterations: 3}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.Provider = "cohere"
	assert.ErrorIs(t, c.Validate(), ErrInvalidProvider)

	c = base()
	c.Temperature = 3
	assert.ErrorIs(t, c.Validate(), ErrInvalidTemperature)

	c = base()
	c.Addr = "8080"
	assert.ErrorIs(t, c.Validate(), ErrInvalidAddr)

	c = base()
	c.MaxPlanIterations = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidPlanBound)

	c = base()
	c.PostgresDSN = "mysql://nope"
	assert.ErrorIs(t, c.Validate(), ErrInvalidPostgresDSN)
}
