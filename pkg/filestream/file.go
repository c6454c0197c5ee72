// Package filestream implements the "file" transport: reading a local path
// named by a URL as a plain byte stream.
package filestream

import (
	"io"
	"os"

	"github.com/WhileEndless/urlstream/pkg/errors"
	"github.com/WhileEndless/urlstream/pkg/urlx"
)

// Stream reads a local file opened from a "file://" URL.
type Stream struct {
	f *os.File
}

// Open opens u.DecodedPath() for binary reading.
func (s *Stream) Open(u urlx.URL) error {
	f, err := os.Open(u.DecodedPath())
	if err != nil {
		if os.IsNotExist(err) {
			return errors.ErrNoSuchFileOrDirectory
		}
		return errors.NewIOError("opening file", err)
	}
	s.f = f
	return nil
}

// AsyncOpen performs the (inherently synchronous) file open inline and
// invokes handler with its result; there is no real asynchronicity to offer
// for local file access.
func (s *Stream) AsyncOpen(u urlx.URL, handler func(error)) {
	handler(s.Open(u))
}

// IsOpen reports whether a file is currently open.
func (s *Stream) IsOpen() bool { return s.f != nil }

// Close closes the underlying file, if any.
func (s *Stream) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return errors.NewIOError("closing file", err)
	}
	return nil
}

// ReadSome reads up to len(p) bytes into p. Zero bytes with no error and EOF
// on the underlying stream is reported as ErrEOF.
func (s *Stream) ReadSome(p []byte) (int, error) {
	if s.f == nil {
		return 0, errors.ErrEOF
	}
	n, err := s.f.Read(p)
	if err != nil {
		if n == 0 && err == io.EOF {
			return 0, errors.ErrEOF
		}
		if err != io.EOF {
			return n, errors.NewIOError("reading file", err)
		}
	}
	return n, nil
}

// AsyncReadSome performs the blocking read inline and invokes handler with
// its result.
func (s *Stream) AsyncReadSome(p []byte, handler func(int, error)) {
	n, err := s.ReadSome(p)
	handler(n, err)
}
