// Package simulator emulates mounts on in-memory streams and UDP sockets.
package simulator

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/basilfx/go-utilities/taskrunner"
	log "github.com/sirupsen/logrus"
	"github.com/twinj/uuid"

	"github.com/seeing-things/point/gemini"
	"github.com/seeing-things/point/transport"
)

// StreamHandler reads one command from r and returns the bytes to send back.
type StreamHandler interface {
	HandleStream(r *bufio.Reader) ([]byte, error)
}

// Faults makes the UDP server misbehave for a number of requests.
type Faults struct {
	// Drop ignores this many requests.
	Drop int

	// CorruptChecksum flips a checksum bit in this many replies.
	CorruptChecksum int

	// WrongSequence answers this many requests with the next sequence number.
	WrongSequence int
}

// Server runs emulated mounts until it is closed.
type Server struct {
	id string

	taskRunner *taskrunner.TaskRunner

	lock    sync.Mutex
	closers []io.Closer
	faults  Faults

	log *log.Entry
}

// NewServer returns a server without mounts.
func NewServer() *Server {
	id := uuid.NewV4().String()

	return &Server{
		id:         id,
		taskRunner: taskrunner.New(),
		log:        log.WithField("simulator", id),
	}
}

// Stream serves handler on one end of an in-memory pipe and returns the
// other end.
func (s *Server) Stream(handler StreamHandler) io.ReadWriteCloser {
	client, device := transport.Pipe()

	s.track(device)

	s.taskRunner.RunWithCancel("Simulator.Stream", func(ctx context.Context) {
		s.streamTask(ctx, handler, device)
	})

	return client
}

func (s *Server) streamTask(ctx context.Context, handler StreamHandler, device io.ReadWriter) {
	r := bufio.NewReader(device)

	for {
		reply, err := handler.HandleStream(r)

		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Errorf("Error while reading: %v", err)
			}

			return
		}

		select {
		case <-ctx.Done():
			s.log.Debugf("Stream task stopped.")
			return
		default:
			// Pass on.
		}

		if len(reply) == 0 {
			continue
		}

		s.log.Debugf("Simulator outgoing: % X", reply)

		_, err = device.Write(reply)

		if err != nil {
			s.log.Errorf("Error while writing: %v", err)
			return
		}
	}
}

// UDP serves mount on a UDP socket bound to address and returns the bound
// address.
func (s *Server) UDP(mount *Gemini, address string) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", address)

	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", addr)

	if err != nil {
		return nil, err
	}

	s.track(conn)

	s.taskRunner.RunWithCancel("Simulator.UDP", func(ctx context.Context) {
		s.udpTask(ctx, mount, conn)
	})

	return conn.LocalAddr().(*net.UDPAddr), nil
}

// SetFaults replaces the pending faults of the UDP servers.
func (s *Server) SetFaults(faults Faults) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.faults = faults
}

// nextFault consumes one request worth of faults.
func (s *Server) nextFault() (drop, corrupt, wrongSeq bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.faults.Drop > 0 {
		s.faults.Drop--
		return true, false, false
	}

	if s.faults.WrongSequence > 0 {
		s.faults.WrongSequence--
		wrongSeq = true
	}

	if s.faults.CorruptChecksum > 0 {
		s.faults.CorruptChecksum--
		corrupt = true
	}

	return false, corrupt, wrongSeq
}

func (s *Server) udpTask(ctx context.Context, mount *Gemini, conn *net.UDPConn) {
	envelope := gemini.UDPEnvelope{}
	buf := make([]byte, 4096)

	for {
		n, from, err := conn.ReadFromUDP(buf)

		if err != nil {
			select {
			case <-ctx.Done():
				s.log.Debugf("UDP task stopped.")
			default:
				s.log.Errorf("Error while reading: %v", err)
			}

			return
		}

		seq, payload, err := envelope.Unwrap(buf[:n])

		if err != nil {
			s.log.Warnf("Ignoring datagram from %s: %v", from, err)
			continue
		}

		drop, corrupt, wrongSeq := s.nextFault()

		if drop {
			s.log.Debugf("Dropping request %d.", seq)
			continue
		}

		reply := mount.HandleCommand(payload)

		if reply == nil {
			reply = []byte{gemini.ACK}
		}

		if wrongSeq {
			seq++
		}

		out, err := envelope.Wrap(seq, reply)

		if err != nil {
			s.log.Errorf("Cannot wrap reply: %v", err)
			continue
		}

		if corrupt {
			out[len(out)-1] ^= 0x80
		}

		_, err = conn.WriteToUDP(out, from)

		if err != nil {
			s.log.Errorf("Error while writing: %v", err)
			return
		}
	}
}

func (s *Server) track(c io.Closer) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closers = append(s.closers, c)
}

// Close stops all mounts.
func (s *Server) Close() error {
	s.taskRunner.Cancel()

	s.lock.Lock()

	for _, c := range s.closers {
		c.Close()
	}

	s.closers = nil
	s.lock.Unlock()

	s.taskRunner.Wait()

	return nil
}
