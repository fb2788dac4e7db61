// Package transport provides byte links to mounts: serial ports, UDP sockets
// and generic streams.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/basilfx/go-utilities/taskrunner"
	log "github.com/sirupsen/logrus"
)

// ReaderChannelSize is the number of chunks buffered between the reader task
// and Read.
const ReaderChannelSize = 32

// ReadBufferSize is the size of a single read from the underlying stream.
const ReadBufferSize = 256

// Stream adapts any io.ReadWriteCloser (a pipe, a TCP connection to a serial
// server) to a transport with read timeouts. A reader task moves incoming
// bytes onto a channel so that Read can give up after a timeout.
type Stream struct {
	stream io.ReadWriteCloser

	taskRunner *taskrunner.TaskRunner

	incoming chan []byte
	pending  []byte

	lock sync.Mutex
	err  error
}

// NewStream starts reading from stream and returns the transport.
func NewStream(stream io.ReadWriteCloser) *Stream {
	s := &Stream{
		stream:     stream,
		taskRunner: taskrunner.New(),
		incoming:   make(chan []byte, ReaderChannelSize),
	}

	s.taskRunner.RunWithCancel("Stream.Reader", s.readerTask)

	return s
}

func (s *Stream) readerTask(ctx context.Context) {
	defer close(s.incoming)

	for {
		buf := make([]byte, ReadBufferSize)
		n, err := s.stream.Read(buf)

		if n > 0 {
			select {
			case s.incoming <- buf[:n]:
			case <-ctx.Done():
				log.Debugf("Stream reader task stopped.")
				return
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debugf("Stream reader task stopped: %v", err)
			}

			s.lock.Lock()
			s.err = err
			s.lock.Unlock()

			return
		}
	}
}

// Write all bytes of p to the stream.
func (s *Stream) Write(p []byte) error {
	_, err := s.stream.Write(p)

	return err
}

// Read returns up to limit bytes, waiting at most timeout for them to arrive.
func (s *Stream) Read(limit int, timeout time.Duration) ([]byte, error) {
	if len(s.pending) == 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case chunk, ok := <-s.incoming:
			if !ok {
				return nil, s.readErr()
			}

			s.pending = chunk
		case <-timer.C:
			return nil, nil
		}
	}

	n := len(s.pending)

	if n > limit {
		n = limit
	}

	out := s.pending[:n]
	s.pending = s.pending[n:]

	return out, nil
}

// Discard drops everything received so far. A chunk the reader task has
// read but not yet queued is not dropped and reaches the next Read, so
// discarding is best effort and late replies must be rejected by framing.
func (s *Stream) Discard() error {
	s.pending = nil

	for {
		select {
		case _, ok := <-s.incoming:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

// Close the stream and wait for the reader task to stop.
func (s *Stream) Close() error {
	s.taskRunner.Cancel()

	err := s.stream.Close()

	s.taskRunner.Wait()

	return err
}

func (s *Stream) readErr() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.err == nil {
		return io.EOF
	}

	return s.err
}
