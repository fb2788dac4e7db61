package transport

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// DialTCP connects to a serial port server (ser2net and the like) and returns
// it as a stream transport.
func DialTCP(address string, timeout time.Duration) (*Stream, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)

	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	log.Infof("Connected to serial server %s.", address)

	return NewStream(conn), nil
}
