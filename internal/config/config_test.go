package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0600))
	return p
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.False(t, cfg.HasCapitalCom())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Second, cfg.MinDelay)
	assert.Equal(t, 3*time.Second, cfg.MaxDelay)
}

func TestLoad_ReadsKnownAndExtraKeys(t *testing.T) {
	p := writeFile(t, `{"capital_com_api_key":" abc ","capital_com_api_secret":"s","future_broker_token":"x"}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.CapitalComAPIKey)
	assert.Equal(t, "s", cfg.CapitalComAPISecret)
	assert.True(t, cfg.HasCapitalCom())
	assert.Equal(t, "x", cfg.Extra["future_broker_token"])
}

func TestLoad_Malformed(t *testing.T) {
	cfg, err := Load(writeFile(t, `[1,2`))
	assert.ErrorIs(t, err, ErrMalformed)
	require.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CAPITAL_COM_API_KEY", "from-env")
	t.Setenv("FINSCAN_DELAY_MIN", "5s")
	t.Setenv("FINSCAN_DELAY_MAX", "2s")
	t.Setenv("FINSCAN_HTTP_TIMEOUT", "bogus")
	t.Setenv("FINSCAN_TRACE", "yes")

	cfg, err := Load(writeFile(t, `{"capital_com_api_key":"from-file"}`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.CapitalComAPIKey)
	assert.Equal(t, 5*time.Second, cfg.MinDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay, "max is raised to min")
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Trace)
}

func TestLoad_ZeroTimeoutKeepsDefault(t *testing.T) {
	t.Setenv("FINSCAN_HTTP_TIMEOUT", "0s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)

	t.Setenv("FINSCAN_HTTP_TIMEOUT", "4s")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, cfg.RequestTimeout)
}

func TestHasAlpaca_NeedsBothHalves(t *testing.T) {
	cfg := Default()
	cfg.AlpacaAPIKey = "k"
	assert.False(t, cfg.HasAlpaca())
	cfg.AlpacaAPISecret = "s"
	assert.True(t, cfg.HasAlpaca())
}
