package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/gemini"
	"github.com/seeing-things/point/internal/config"
	"github.com/seeing-things/point/internal/simulator"
	"github.com/seeing-things/point/nexstar"
	"github.com/seeing-things/point/transport"
)

// mount holds the session and the protocol specific API of one mount. Only
// one of nexstar and gemini is set.
type mount struct {
	protocol string
	session  *point.Session

	nexstar *nexstar.Mount
	gemini  *gemini.Mount

	server *simulator.Server
}

func (m *mount) Close() error {
	err := m.session.Close()

	if m.server != nil {
		m.server.Close()
	}

	return err
}

func withMount(cfg config.Config, simulate bool, fn func(m *mount) error) error {
	m, err := openMount(cfg, simulate)

	if err != nil {
		return err
	}

	defer m.Close()

	return fn(m)
}

func openMount(cfg config.Config, simulate bool) (*mount, error) {
	m := &mount{protocol: cfg.Protocol}

	var t point.Transport

	if simulate {
		m.server = simulator.NewServer()

		var err error

		t, err = openSimulated(m.server, cfg)

		if err != nil {
			m.server.Close()
			return nil, err
		}
	} else {
		var err error

		t, err = openTransport(cfg)

		if err != nil {
			return nil, err
		}
	}

	options := []point.Option{
		point.WithTimeout(cfg.Timeout),
		point.WithRetries(cfg.Retries),
	}

	if cfg.Transport == config.TransportUDP {
		options = append(options, point.WithEnvelope(gemini.UDPEnvelope{}))
	}

	if cfg.Protocol == config.ProtocolGemini {
		m.session = point.NewSession(t, gemini.Codec{}, options...)
		m.gemini = gemini.NewMount(m.session)
	} else {
		m.session = point.NewSession(t, nexstar.Codec{}, options...)
		m.nexstar = nexstar.NewMount(m.session)
	}

	log.Debugf("Session %s opened over %s.", m.session.ID(), cfg.Transport)

	return m, nil
}

func openTransport(cfg config.Config) (point.Transport, error) {
	switch cfg.Transport {
	case config.TransportSerial:
		s, err := transport.OpenSerial(transport.SerialConfig{
			Device: cfg.Device,
			Baud:   cfg.Baud,
		})

		if err != nil {
			return nil, err
		}

		return s, nil
	case config.TransportUDP:
		u, err := transport.DialUDP(transport.UDPConfig{
			Remote: cfg.Remote,
			Local:  cfg.Local,
		})

		if err != nil {
			return nil, err
		}

		return u, nil
	case config.TransportTCP:
		s, err := transport.DialTCP(cfg.Remote, cfg.Timeout)

		if err != nil {
			return nil, err
		}

		return s, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// openSimulated serves an emulated mount and connects to it. Gemini over UDP
// gets a real socket on the loopback interface, everything else an in-memory
// stream.
func openSimulated(server *simulator.Server, cfg config.Config) (point.Transport, error) {
	if cfg.Protocol == config.ProtocolGemini && cfg.Transport == config.TransportUDP {
		addr, err := server.UDP(simulator.NewGemini(), "127.0.0.1:0")

		if err != nil {
			return nil, err
		}

		log.Infof("Simulated Gemini listening on %s.", addr)

		u, err := transport.DialUDP(transport.UDPConfig{Remote: addr.String()})

		if err != nil {
			return nil, err
		}

		return u, nil
	}

	var handler simulator.StreamHandler = simulator.NewNexStar()

	if cfg.Protocol == config.ProtocolGemini {
		handler = simulator.NewGemini()
	}

	return transport.NewStream(server.Stream(handler)), nil
}
