// Package config loads the mount connection settings of pointctl.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Protocols.
const (
	ProtocolNexStar = "nexstar"
	ProtocolGemini  = "gemini"
)

// Transports.
const (
	TransportSerial = "serial"
	TransportUDP    = "udp"
	TransportTCP    = "tcp"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config describes how to reach a mount.
type Config struct {
	Protocol  string
	Transport string

	// Device and Baud are used by the serial transport.
	Device string
	Baud   int

	// Remote is the address of the mount for the UDP and TCP transports.
	// Local optionally binds the UDP socket.
	Remote string
	Local  string

	Timeout time.Duration
	Retries int

	LogLevel string
}

type fileConfig struct {
	Protocol  string `toml:"protocol"`
	Transport string `toml:"transport"`
	Device    string `toml:"device"`
	Baud      int    `toml:"baud"`
	Remote    string `toml:"remote"`
	Local     string `toml:"local"`
	Timeout   string `toml:"timeout"`
	Retries   int    `toml:"retries"`
	LogLevel  string `toml:"log_level"`
}

// Default returns the settings of a mount speaking protocol. Gemini
// controllers default to their UDP port, NexStar hand controllers to a
// serial port.
func Default(protocol string) Config {
	if protocol == ProtocolGemini {
		return Config{
			Protocol:  ProtocolGemini,
			Transport: TransportUDP,
			Device:    "/dev/ttyACM0",
			Baud:      9600,
			Remote:    "192.168.0.111:11110",
			Timeout:   250 * time.Millisecond,
			Retries:   3,
			LogLevel:  "info",
		}
	}

	return Config{
		Protocol:  ProtocolNexStar,
		Transport: TransportSerial,
		Device:    "/dev/ttyUSB0",
		Baud:      9600,
		Timeout:   time.Second,
		LogLevel:  "info",
	}
}

// Load reads a TOML file. Keys missing from the file keep the defaults of
// the protocol it names.
func Load(path string) (Config, error) {
	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)

	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	protocol := ProtocolNexStar

	if meta.IsDefined("protocol") {
		protocol = strings.ToLower(strings.TrimSpace(raw.Protocol))
	}

	cfg := Default(protocol)
	cfg.Protocol = protocol

	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}

	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}

	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}

	if meta.IsDefined("remote") {
		cfg.Remote = strings.TrimSpace(raw.Remote)
	}

	if meta.IsDefined("local") {
		cfg.Local = strings.TrimSpace(raw.Local)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))

		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}

		cfg.Timeout = d
	}

	if meta.IsDefined("retries") {
		cfg.Retries = raw.Retries
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}

// Validate checks that the settings describe a usable connection.
func (c Config) Validate() error {
	switch c.Protocol {
	case ProtocolNexStar, ProtocolGemini:
	default:
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalid, c.Protocol)
	}

	switch c.Transport {
	case TransportSerial:
		if c.Device == "" {
			return fmt.Errorf("%w: serial transport needs a device", ErrInvalid)
		}

		if c.Baud <= 0 {
			return fmt.Errorf("%w: baud rate %d", ErrInvalid, c.Baud)
		}
	case TransportUDP:
		if c.Protocol == ProtocolNexStar {
			return fmt.Errorf("%w: %s does not run over UDP", ErrInvalid, c.Protocol)
		}

		fallthrough
	case TransportTCP:
		if c.Remote == "" {
			return fmt.Errorf("%w: %s transport needs a remote address", ErrInvalid, c.Transport)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout %v", ErrInvalid, c.Timeout)
	}

	if c.Retries < 0 {
		return fmt.Errorf("%w: retries %d", ErrInvalid, c.Retries)
	}

	return nil
}
