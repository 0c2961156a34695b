// Package serialport reads telemetry lines from the sensor rig's serial
// link.
package serialport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/vignelab/vignelab/pkg/parser"
)

// Defaults matching the rig firmware.
const (
	DefaultBaud        = 115200
	DefaultReadTimeout = time.Second
)

// maxPending caps a partial line; longer garbage is discarded.
const maxPending = 1024 * 1024

// Config selects and configures a port.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// TransportError reports a failure of the serial link itself.
type TransportError struct {
	Port string
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serial %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// openPort is replaced in tests.
var openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// Open opens the configured port with a bounded read timeout.
func Open(cfg Config) (*Source, error) {
	if cfg.Port == "" {
		return nil, &TransportError{Op: "open", Err: errors.New("no port configured")}
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	port, err := openPort(cfg.Port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, &TransportError{Port: cfg.Port, Op: "open", Err: err}
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, &TransportError{Port: cfg.Port, Op: "configure", Err: err}
	}
	return New(cfg.Port, port), nil
}

// List returns the names of the serial ports present on the host.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, &TransportError{Op: "list", Err: err}
	}
	return ports, nil
}

// Source is a parser.LineSource over a byte stream. Each call to Next
// performs at most one read; bytes after the last newline are kept for
// the next call.
type Source struct {
	name    string
	rc      io.ReadCloser
	buf     []byte
	pending []byte
	queue   []parser.Line
	lineNum int
	eof     bool
	closed  bool
}

// New wraps an already opened stream.
func New(name string, rc io.ReadCloser) *Source {
	return &Source{
		name: name,
		rc:   rc,
		buf:  make([]byte, 4096),
	}
}

// Name returns the port name.
func (s *Source) Name() string {
	return s.name
}

// Next returns the next complete non-empty line, parser.ErrNoData when
// the read timed out without completing one, or io.EOF once the stream
// ended and every buffered line was delivered.
func (s *Source) Next(ctx context.Context) (*parser.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if line, ok := s.pop(); ok {
		return line, nil
	}
	if s.closed {
		return nil, io.EOF
	}
	if s.eof {
		return s.flush()
	}

	n, err := s.rc.Read(s.buf)
	if n > 0 {
		s.feed(s.buf[:n])
	}
	switch {
	case errors.Is(err, io.EOF):
		s.eof = true
	case err != nil:
		return nil, &TransportError{Port: s.name, Op: "read", Err: err}
	}

	if line, ok := s.pop(); ok {
		return line, nil
	}
	if s.eof {
		return s.flush()
	}
	return nil, parser.ErrNoData
}

// Close closes the underlying port. It is safe to call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rc.Close()
}

func (s *Source) feed(b []byte) {
	s.pending = append(s.pending, b...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		s.enqueue(s.pending[:i])
		s.pending = s.pending[i+1:]
	}
	if len(s.pending) > maxPending {
		s.pending = nil
	}
	// Compact so the backing array does not grow without bound.
	s.pending = append([]byte(nil), s.pending...)
}

func (s *Source) enqueue(raw []byte) {
	s.lineNum++
	if text := parser.CleanLine(raw); text != "" {
		s.queue = append(s.queue, parser.Line{Text: text, Source: s.name, LineNum: s.lineNum})
	}
}

func (s *Source) pop() (*parser.Line, bool) {
	if len(s.queue) == 0 {
		return nil, false
	}
	line := s.queue[0]
	s.queue = s.queue[1:]
	return &line, true
}

// flush delivers an unterminated final line, then io.EOF.
func (s *Source) flush() (*parser.Line, error) {
	if len(s.pending) > 0 {
		s.enqueue(s.pending)
		s.pending = nil
		if line, ok := s.pop(); ok {
			return line, nil
		}
	}
	return nil, io.EOF
}
