package point

import (
	"fmt"
	"sync/atomic"
	"time"
)

func (s *Session) exchangeStream(cmd Command, wire []byte, timeout time.Duration) (Response, error) {
	// Anything still buffered belongs to an earlier, abandoned command.
	if d, ok := s.transport.(Discarder); ok {
		err := d.Discard()

		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	s.log.Debugf("Outgoing %s: % X", cmd, wire)

	err := s.transport.Write(wire)

	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if cmd.Reply.Kind == ReplyNone {
		return Response{NoData: true}, nil
	}

	deadline := time.Now().Add(timeout)

	var buf []byte

	for {
		remaining := time.Until(deadline)

		if remaining <= 0 {
			if len(buf) > 0 {
				s.log.Debugf("Dropping partial reply to %s: % X", cmd, buf)
			}

			return Response{}, fmt.Errorf("%w: no reply to %s within %v", ErrTimeout, cmd, timeout)
		}

		chunk, err := s.transport.Read(readChunkSize, remaining)

		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		if len(chunk) == 0 {
			continue
		}

		buf = append(buf, chunk...)

		n, err := s.codec.Frame(buf, cmd)

		if err != nil {
			s.log.Debugf("Rejected reply to %s: % X", cmd, buf)
			return Response{}, err
		}

		if n == 0 {
			continue
		}

		if n < len(buf) {
			s.log.Warnf("Ignoring %d bytes after reply to %s.", len(buf)-n, cmd)
		}

		s.log.Debugf("Incoming %s: % X", cmd, buf[:n])

		return s.codec.Decode(buf[:n], cmd)
	}
}

func (s *Session) exchangeDatagram(cmd Command, wire []byte, timeout time.Duration) (Response, error) {
	// The sequence advances once per command, whatever the outcome.
	seq := s.nextSequence()

	datagram, err := s.envelope.Wrap(seq, wire)

	if err != nil {
		return Response{}, err
	}

	var lastErr error

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.log.Warnf("No reply to %s (seq %d), resending (%d of %d).", cmd, seq, attempt, s.retries)
		}

		s.log.Debugf("Outgoing %s (seq %d): % X", cmd, seq, datagram)

		err := s.transport.Write(datagram)

		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		deadline := time.Now().Add(timeout)

		for remaining := timeout; remaining > 0; remaining = time.Until(deadline) {
			in, err := s.transport.Read(maxDatagramSize, remaining)

			if err != nil {
				return Response{}, fmt.Errorf("%w: %w", ErrTransport, err)
			}

			if len(in) == 0 {
				continue
			}

			got, payload, err := s.envelope.Unwrap(in)

			if err != nil {
				s.log.Warnf("Discarding datagram while waiting for %s: %v", cmd, err)
				lastErr = err
				continue
			}

			if got != seq {
				lastErr = &SequenceMismatchError{Sent: seq, Got: got}
				s.log.Warnf("Discarding datagram while waiting for %s: %v", cmd, lastErr)
				continue
			}

			s.log.Debugf("Incoming %s (seq %d): % X", cmd, seq, payload)

			return s.decodeDatagram(cmd, payload)
		}
	}

	if lastErr != nil {
		return Response{}, lastErr
	}

	return Response{}, fmt.Errorf("%w: no reply to %s (seq %d) after %d attempts", ErrTimeout, cmd, seq, s.retries+1)
}

func (s *Session) decodeDatagram(cmd Command, payload []byte) (Response, error) {
	n, err := s.codec.Frame(payload, cmd)

	if err != nil {
		return Response{}, err
	}

	if n == 0 {
		return Response{}, fmt.Errorf("%w: incomplete reply to %s", ErrFraming, cmd)
	}

	if n != len(payload) {
		return Response{}, fmt.Errorf("%w: %d unexpected bytes after reply to %s", ErrFraming, len(payload)-n, cmd)
	}

	return s.codec.Decode(payload, cmd)
}

func (s *Session) nextSequence() uint16 {
	for {
		current := atomic.LoadUint32(&s.seq)

		if atomic.CompareAndSwapUint32(&s.seq, current, uint32(uint16(current+1))) {
			return uint16(current)
		}
	}
}
