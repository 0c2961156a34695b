package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineSize bounds a single recorded line.
const maxLineSize = 1024 * 1024

// FileSource replays telemetry lines recorded from the serial port.
// Files are read one after another in the order given.
type FileSource struct {
	pending []string
	cur     *logCursor
}

// logCursor is the read position inside one recorded file.
type logCursor struct {
	path string
	file *os.File
	r    *bufio.Reader
	buf  []byte
	line int
}

// NewFileSource creates a LineSource over the given files.
func NewFileSource(files []string) *FileSource {
	return &FileSource{pending: append([]string(nil), files...)}
}

// Next returns the next non-empty line, or io.EOF once every file has
// been read. A line over the size limit yields ErrLineTooLong; the
// following call resumes after it.
func (s *FileSource) Next(ctx context.Context) (*Line, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s.cur == nil {
			if len(s.pending) == 0 {
				return nil, io.EOF
			}
			c, err := openCursor(s.pending[0])
			s.pending = s.pending[1:]
			if err != nil {
				return nil, err
			}
			s.cur = c
		}

		line, err := s.cur.next()
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, ErrLineTooLong):
			return nil, fmt.Errorf("%s:%d: %w", s.cur.path, s.cur.line, err)
		}

		path := s.cur.path
		if cerr := s.Close(); errors.Is(err, io.EOF) {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
}

// Close releases the file being read, if any.
func (s *FileSource) Close() error {
	if s.cur == nil {
		return nil
	}
	err := s.cur.file.Close()
	s.cur = nil
	return err
}

func openCursor(path string) (*logCursor, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening telemetry log %s: %w", path, err)
	}
	return &logCursor{path: path, file: f, r: bufio.NewReaderSize(f, 64*1024)}, nil
}

// next advances to the next non-empty cleaned line. It returns io.EOF at
// the end of the file.
func (c *logCursor) next() (*Line, error) {
	for {
		raw, err := c.readLine()
		if err != nil && !errors.Is(err, ErrLineTooLong) {
			return nil, err
		}
		c.line++
		if err != nil {
			return nil, err
		}
		if text := CleanLine(raw); text != "" {
			return &Line{Text: text, Source: c.path, LineNum: c.line}, nil
		}
	}
}

// readLine returns one raw line without its terminator. The remainder of
// a line over maxLineSize is consumed and ErrLineTooLong returned.
func (c *logCursor) readLine() ([]byte, error) {
	c.buf = c.buf[:0]
	tooLong := false
	for {
		chunk, err := c.r.ReadSlice('\n')
		if !tooLong {
			c.buf = append(c.buf, chunk...)
			if len(bytesTrimEOL(c.buf)) > maxLineSize {
				tooLong = true
				c.buf = c.buf[:0]
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return nil, err
		case tooLong:
			return nil, ErrLineTooLong
		case err != nil && len(c.buf) == 0:
			return nil, io.EOF
		default:
			return bytesTrimEOL(c.buf), nil
		}
	}
}

func bytesTrimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}
