package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahealth/notify/pkg/config"
)

type serverConfig struct {
	Addr        string        `env:"TEST_HTTP_ADDR" envDefault:":8080"`
	Secret      string        `env:"TEST_JWT_SECRET"`
	IdleTimeout time.Duration `env:"TEST_IDLE_TIMEOUT" envDefault:"120s"`
	Required    string        `env:"TEST_REQUIRED_VALUE,required" envDefault:"set"`
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_HTTP_ADDR", ":9090")
	t.Setenv("TEST_JWT_SECRET", "hunter2")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "hunter2", cfg.Secret)
	assert.Equal(t, 120*time.Second, cfg.IdleTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.Secret)
}

func TestLoad_NilPointer(t *testing.T) {
	t.Parallel()

	err := config.Load[serverConfig](nil)
	require.ErrorIs(t, err, config.ErrNilPointer)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("TEST_IDLE_TIMEOUT", "not-a-duration")

	var cfg serverConfig
	err := config.Load(&cfg)
	require.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	t.Setenv("TEST_IDLE_TIMEOUT", "still-not-a-duration")

	assert.Panics(t, func() {
		var cfg serverConfig
		config.MustLoad(&cfg)
	})
}
