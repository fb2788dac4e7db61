package transport

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// SerialConfig selects a serial port.
type SerialConfig struct {
	Device string
	Baud   int
}

// Serial is a transport over a serial port, 8 data bits, no parity, one stop
// bit.
type Serial struct {
	port   serial.Port
	device string
}

// OpenSerial opens the port described by config.
func OpenSerial(config SerialConfig) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: config.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(config.Device, mode)

	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Device, err)
	}

	log.Infof("Opened serial port %s at %d baud.", config.Device, config.Baud)

	return &Serial{
		port:   port,
		device: config.Device,
	}, nil
}

// Ports lists the serial ports present on this system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Write all bytes of p to the port.
func (s *Serial) Write(p []byte) error {
	for len(p) > 0 {
		n, err := s.port.Write(p)

		if err != nil {
			return err
		}

		p = p[n:]
	}

	return nil
}

// Read returns up to limit bytes, waiting at most timeout for the first one.
func (s *Serial) Read(limit int, timeout time.Duration) ([]byte, error) {
	err := s.port.SetReadTimeout(timeout)

	if err != nil {
		return nil, err
	}

	buf := make([]byte, limit)
	n, err := s.port.Read(buf)

	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// Discard drops unread input.
func (s *Serial) Discard() error {
	return s.port.ResetInputBuffer()
}

// Close the port.
func (s *Serial) Close() error {
	log.Debugf("Closing serial port %s.", s.device)

	return s.port.Close()
}
