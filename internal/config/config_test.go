package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "point.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefault(t *testing.T) {
	nexstar := Default(ProtocolNexStar)
	assert.Equal(t, TransportSerial, nexstar.Transport)
	assert.Equal(t, 9600, nexstar.Baud)
	assert.Equal(t, time.Second, nexstar.Timeout)
	assert.NoError(t, nexstar.Validate())

	gemini := Default(ProtocolGemini)
	assert.Equal(t, TransportUDP, gemini.Transport)
	assert.Equal(t, "192.168.0.111:11110", gemini.Remote)
	assert.Equal(t, 250*time.Millisecond, gemini.Timeout)
	assert.Equal(t, 3, gemini.Retries)
	assert.NoError(t, gemini.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
protocol = "gemini"
remote = "10.0.0.5:11110"
local = "0.0.0.0:11110"
timeout = "500ms"
log_level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProtocolGemini, cfg.Protocol)
	assert.Equal(t, TransportUDP, cfg.Transport)
	assert.Equal(t, "10.0.0.5:11110", cfg.Remote)
	assert.Equal(t, "0.0.0.0:11110", cfg.Local)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaultsToNexStar(t *testing.T) {
	cfg, err := Load(writeConfig(t, `device = "/dev/ttyUSB1"`))
	require.NoError(t, err)

	assert.Equal(t, ProtocolNexStar, cfg.Protocol)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Device)
	assert.Equal(t, 9600, cfg.Baud)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `timeout = "soon"`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `speed = 9600`))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	var tests = []func(c *Config){
		func(c *Config) { c.Protocol = "lx200" },
		func(c *Config) { c.Transport = "carrier pigeon" },
		func(c *Config) { c.Transport = TransportUDP; c.Remote = "127.0.0.1:11110" },
		func(c *Config) { c.Device = "" },
		func(c *Config) { c.Baud = 0 },
		func(c *Config) { c.Transport = TransportTCP },
		func(c *Config) { c.Timeout = 0 },
		func(c *Config) { c.Retries = -1 },
	}

	for i, mutate := range tests {
		c := Default(ProtocolNexStar)
		mutate(&c)

		assert.ErrorIs(t, c.Validate(), ErrInvalid, "case %d", i)
	}

	c := Default(ProtocolGemini)
	c.Remote = ""
	assert.ErrorIs(t, c.Validate(), ErrInvalid)

	c = Default(ProtocolNexStar)
	c.Transport = TransportTCP
	c.Remote = "localhost:2000"
	assert.NoError(t, c.Validate())
}
