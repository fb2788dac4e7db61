package point

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by this module matches exactly one of
// these through errors.Is.
var (
	// ErrTransport is an underlying I/O failure.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout means no valid reply arrived within the deadline.
	ErrTimeout = errors.New("timed out waiting for reply")

	// ErrFraming is a reply whose terminator is missing or misplaced, an
	// envelope whose length field is inconsistent, or a payload that cannot
	// be parsed.
	ErrFraming = errors.New("framing error")

	// ErrChecksum is a checksum mismatch.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrSequenceMismatch is a datagram reply that does not echo the sequence
	// number of the outstanding command.
	ErrSequenceMismatch = errors.New("sequence mismatch")

	// ErrProtocol is an error token reported by the mount.
	ErrProtocol = errors.New("mount reported an error")

	// ErrEncoding is a value or command that cannot be represented on the
	// wire.
	ErrEncoding = errors.New("cannot encode")

	// ErrBusy is returned when a command is sent while another one on the same
	// session is still waiting for its reply.
	ErrBusy = errors.New("command already in flight")

	// ErrClosed is returned after a session has been closed.
	ErrClosed = errors.New("session closed")
)

// ChecksumError carries both checksums of a rejected reply.
type ChecksumError struct {
	Want uint16
	Got  uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%v: computed 0x%02x, received 0x%02x", ErrChecksum, e.Want, e.Got)
}

// Is reports whether target is ErrChecksum.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// SequenceMismatchError carries the sequence number that was sent and the one
// that came back.
type SequenceMismatchError struct {
	Sent uint16
	Got  uint16
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf("%v: sent %d, received %d", ErrSequenceMismatch, e.Sent, e.Got)
}

// Is reports whether target is ErrSequenceMismatch.
func (e *SequenceMismatchError) Is(target error) bool {
	return target == ErrSequenceMismatch
}

// ProtocolError is an error token returned by the mount in reply to a command.
type ProtocolError struct {
	Command string
	Token   string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s returned %q (%s)", ErrProtocol, e.Command, e.Token, e.Message)
	}

	return fmt.Sprintf("%v: %s returned %q", ErrProtocol, e.Command, e.Token)
}

// Is reports whether target is ErrProtocol.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
