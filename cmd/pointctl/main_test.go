package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeing-things/point/internal/config"
)

func TestMeanStddev(t *testing.T) {
	mean, stddev := meanStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, mean, 1e-9)
	assert.InDelta(t, 2, stddev, 1e-9)

	mean, stddev = meanStddev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := loadConfig(options{protocol: "Gemini", remote: "10.0.0.2:11110"})
	require.NoError(t, err)
	assert.Equal(t, config.ProtocolGemini, cfg.Protocol)
	assert.Equal(t, config.TransportUDP, cfg.Transport)
	assert.Equal(t, "10.0.0.2:11110", cfg.Remote)

	_, err = loadConfig(options{protocol: "nexstar", transport: "udp", remote: "10.0.0.2:11110"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSimulatedMounts(t *testing.T) {
	for _, cfg := range []config.Config{
		config.Default(config.ProtocolNexStar),
		config.Default(config.ProtocolGemini),
		func() config.Config {
			c := config.Default(config.ProtocolGemini)
			c.Transport = config.TransportSerial
			return c
		}(),
	} {
		err := withMount(cfg, true, func(m *mount) error {
			err := status(m)

			if err != nil {
				return err
			}

			for _, p := range probes(m) {
				_, err := measure(p, 3)

				if err != nil {
					return err
				}
			}

			return halt(m)
		})

		assert.NoError(t, err, "%s over %s", cfg.Protocol, cfg.Transport)
	}
}
