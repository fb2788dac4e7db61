package point

import (
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/twinj/uuid"
)

// DefaultTimeout is the time Send waits for a reply.
const DefaultTimeout = 1 * time.Second

// DefaultRetries is the number of times an unanswered datagram is resent.
const DefaultRetries = 3

// readChunkSize is the number of bytes requested per stream read.
const readChunkSize = 64

// maxDatagramSize is the largest datagram accepted from a mount.
const maxDatagramSize = 4096

// Session sends commands to a single mount and waits for their replies. At
// most one command is outstanding at any time.
type Session struct {
	id string

	transport Transport
	codec     Codec
	envelope  Envelope

	timeout time.Duration
	retries int

	seq      uint32
	inFlight int32
	closed   int32

	log *log.Entry
}

// Option configures a session.
type Option func(*Session)

// WithTimeout sets the default time to wait for a reply. For datagram
// sessions this is the time per attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.timeout = timeout
	}
}

// WithRetries sets how often an unanswered datagram is resent.
func WithRetries(retries int) Option {
	return func(s *Session) {
		s.retries = retries
	}
}

// WithEnvelope switches the session to datagram mode. Every command is
// wrapped in the envelope with a per-session sequence number.
func WithEnvelope(envelope Envelope) Option {
	return func(s *Session) {
		s.envelope = envelope
	}
}

// WithSequence sets the sequence number of the first datagram.
func WithSequence(seq uint16) Option {
	return func(s *Session) {
		s.seq = uint32(seq)
	}
}

// NewSession returns a session that speaks codec over transport. The session
// takes ownership of the transport.
func NewSession(transport Transport, codec Codec, options ...Option) *Session {
	s := &Session{
		id:        uuid.NewV4().String(),
		transport: transport,
		codec:     codec,
		timeout:   DefaultTimeout,
		retries:   DefaultRetries,
	}

	for _, option := range options {
		option(s)
	}

	mode := "stream"

	if s.envelope != nil {
		mode = "datagram"
	}

	s.log = log.WithFields(log.Fields{
		"session": s.id,
		"codec":   codec.Name(),
		"mode":    mode,
	})

	return s
}

// ID returns the identifier used in log messages of this session.
func (s *Session) ID() string {
	return s.id
}

// Sequence returns the sequence number of the next datagram.
func (s *Session) Sequence() uint16 {
	return uint16(atomic.LoadUint32(&s.seq))
}

// Send a command and wait for its reply using the default timeout.
func (s *Session) Send(cmd Command) (Response, error) {
	return s.SendTimeout(cmd, s.timeout)
}

// SendTimeout sends a command and waits at most timeout for its reply. For
// datagram sessions the timeout applies to every attempt.
func (s *Session) SendTimeout(cmd Command, timeout time.Duration) (Response, error) {
	if atomic.LoadInt32(&s.closed) != 0 {
		return Response{}, ErrClosed
	}

	if !atomic.CompareAndSwapInt32(&s.inFlight, 0, 1) {
		return Response{}, fmt.Errorf("%w: cannot send %s", ErrBusy, cmd)
	}

	defer atomic.StoreInt32(&s.inFlight, 0)

	wire, err := s.codec.Encode(cmd)

	if err != nil {
		return Response{}, err
	}

	if s.envelope != nil {
		return s.exchangeDatagram(cmd, wire, timeout)
	}

	return s.exchangeStream(cmd, wire, timeout)
}

// Close the session and its transport.
func (s *Session) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.log.Debugf("Closing session.")

	err := s.transport.Close()

	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return nil
}
