package transport

import (
	"io"

	"github.com/acomagu/bufpipe"
)

// pipe holds both directions of an in-memory link.
type pipe struct {
	out1 io.ReadCloser
	in1  io.WriteCloser

	out2 io.ReadCloser
	in2  io.WriteCloser
}

// pipeEnd is one side of a pipe.
type pipeEnd struct {
	p *pipe

	r io.Reader
	w io.Writer
}

// Pipe returns two connected in-memory streams. Bytes written to one end are
// read from the other. Closing either end closes both.
func Pipe() (io.ReadWriteCloser, io.ReadWriteCloser) {
	p := &pipe{}

	p.out1, p.in1 = bufpipe.New(nil)
	p.out2, p.in2 = bufpipe.New(nil)

	return &pipeEnd{p: p, r: p.out1, w: p.in2}, &pipeEnd{p: p, r: p.out2, w: p.in1}
}

// Read implements the read method.
func (e *pipeEnd) Read(b []byte) (int, error) {
	return e.r.Read(b)
}

// Write implements the write method.
func (e *pipeEnd) Write(b []byte) (int, error) {
	return e.w.Write(b)
}

// Close will close both directions.
func (e *pipeEnd) Close() error {
	e.p.in1.Close()
	e.p.in2.Close()

	e.p.out1.Close()
	e.p.out2.Close()

	return nil
}
