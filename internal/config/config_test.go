package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/abacus/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), s)
	assert.Equal(t, "./abacus.db", s.DBPath)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "console", s.LogFormat)
	assert.Empty(t, s.APIToken)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ABACUS_DB_PATH", "/tmp/scenarios.db")
	t.Setenv("ABACUS_PORT", "9090")
	t.Setenv("ABACUS_WORKERS", "3")
	t.Setenv("ABACUS_LOG_FORMAT", "json")
	t.Setenv("ABACUS_API_TOKEN", "secret")

	s, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/scenarios.db", s.DBPath)
	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, "json", s.LogFormat)
	assert.Equal(t, "secret", s.APIToken)
}

func TestLoad_InvalidNumber(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ABACUS_PORT", "eighty")

	_, err := config.Load()
	assert.Error(t, err)
}
