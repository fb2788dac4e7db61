package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// UDPConfig selects the remote mount and the local address replies are sent
// to. An empty Local picks any free port.
type UDPConfig struct {
	Remote string
	Local  string
}

// UDP is a datagram transport. Datagrams from hosts other than the remote
// are ignored.
type UDP struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
}

// DialUDP opens a socket for talking to config.Remote.
func DialUDP(config UDPConfig) (*UDP, error) {
	remote, err := net.ResolveUDPAddr("udp", config.Remote)

	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", config.Remote, err)
	}

	var local *net.UDPAddr

	if config.Local != "" {
		local, err = net.ResolveUDPAddr("udp", config.Local)

		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", config.Local, err)
		}
	}

	conn, err := net.ListenUDP("udp", local)

	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	log.Infof("Opened UDP socket %s for %s.", conn.LocalAddr(), remote)

	return &UDP{
		conn:   conn,
		remote: remote,
	}, nil
}

// LocalAddr returns the address of the socket.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Write sends p as one datagram.
func (u *UDP) Write(p []byte) error {
	_, err := u.conn.WriteToUDP(p, u.remote)

	return err
}

// Read returns one datagram of at most limit bytes, or nothing after timeout.
func (u *UDP) Read(limit int, timeout time.Duration) ([]byte, error) {
	err := u.conn.SetReadDeadline(time.Now().Add(timeout))

	if err != nil {
		return nil, err
	}

	buf := make([]byte, limit)

	for {
		n, from, err := u.conn.ReadFromUDP(buf)

		if err != nil {
			var netErr net.Error

			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, nil
			}

			return nil, err
		}

		if !from.IP.Equal(u.remote.IP) || from.Port != u.remote.Port {
			log.Debugf("Ignoring datagram from %s.", from)
			continue
		}

		return buf[:n], nil
	}
}

// Close the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
