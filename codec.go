package point

import "time"

// Transport is a byte-oriented link to a mount.
type Transport interface {
	// Write sends all bytes of p.
	Write(p []byte) error

	// Read returns at most limit bytes. It blocks for at most timeout and
	// returns an empty slice when nothing arrived in time. Datagram
	// transports return a single datagram per call.
	Read(limit int, timeout time.Duration) ([]byte, error)

	// Close releases the link.
	Close() error
}

// Discarder is implemented by stream transports that can drop input that
// arrived before a command was written.
type Discarder interface {
	Discard() error
}

// Codec translates commands to bytes and replies back, for one protocol.
type Codec interface {
	// Name returns the protocol name.
	Name() string

	// Encode returns the wire form of a command.
	Encode(cmd Command) ([]byte, error)

	// Frame returns the length of the reply to cmd at the start of buf, or
	// zero when more bytes are needed. It returns an error wrapping
	// ErrFraming when buf can no longer become a valid reply.
	Frame(buf []byte, cmd Command) (int, error)

	// Decode validates a complete reply frame.
	Decode(frame []byte, cmd Command) (Response, error)
}

// Envelope wraps encoded commands in datagrams carrying a sequence number.
type Envelope interface {
	// Wrap returns a datagram carrying payload.
	Wrap(seq uint16, payload []byte) ([]byte, error)

	// Unwrap validates a datagram and returns its sequence number and
	// payload.
	Unwrap(datagram []byte) (uint16, []byte, error)
}
