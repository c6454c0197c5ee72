// Package textreader adapts a dispatcher.Stream into a small buffered
// io.Reader with an 8-byte putback region, matching the array-buffer text
// adapter in original_source/include/urdl/istreambuf.hpp: a fixed-size
// buffer refilled in bulk behind an 8-byte lookback window, rather than the
// general-purpose growth of bufio.Reader.
package textreader

import (
	"context"
	"time"

	"github.com/WhileEndless/urlstream/pkg/errors"
)

const (
	putbackSize = 8
	activeSize  = 512
	bufferSize  = putbackSize + activeSize
)

// DefaultReadTimeout is the deadline applied to each Underflow race absent an
// explicit override.
const DefaultReadTimeout = 300000 * time.Millisecond

// stream is the subset of dispatcher.Stream this package depends on; kept
// narrow so tests can supply a fake without importing the dispatcher.
type stream interface {
	AsyncReadSome(p []byte, handler func(int, error))
	Close() error
}

// Reader is a buffered adapter exposing Read/PutBack over a stream, with a
// read deadline enforced independently of the stream's own timeouts.
type Reader struct {
	s stream

	ReadTimeout time.Duration

	buf   [bufferSize]byte
	start int // first unread byte in buf
	end   int // one past last valid byte in buf
}

// New wraps s with the default read timeout.
func New(s stream) *Reader {
	return &Reader{s: s, ReadTimeout: DefaultReadTimeout, start: putbackSize, end: putbackSize}
}

// Read implements io.Reader, refilling the active region via Underflow when
// exhausted.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if r.start == r.end {
		if err := r.Underflow(context.Background()); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf[r.start:r.end])
	r.start += n
	return n, nil
}

// PutBack pushes bytes back in front of the next Read, most-recent-last. The
// room available is the space in front of the next unread byte: the 8-byte
// putback region plus whatever has already been read from the current fill.
// It returns an error if p is larger than that room.
func (r *Reader) PutBack(p []byte) error {
	if len(p) > r.start {
		return errors.NewValidationError("putback exceeds available lookback space")
	}
	copy(r.buf[r.start-len(p):r.start], p)
	r.start -= len(p)
	return nil
}

// Underflow refills the active region by racing a single AsyncReadSome
// against ReadTimeout: whichever finishes first wins. If the timer fires
// first the stream is closed and ErrTimedOut is returned; if the read
// finishes first the timer is stopped.
func (r *Reader) Underflow(ctx context.Context) error {
	copy(r.buf[:putbackSize], r.buf[bufferSize-putbackSize:])
	r.start = putbackSize

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	r.s.AsyncReadSome(r.buf[putbackSize:], func(n int, err error) {
		done <- result{n, err}
	})

	timeout := r.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		r.end = putbackSize + res.n
		if res.err != nil {
			if res.n == 0 {
				return res.err
			}
			return nil
		}
		return nil
	case <-timer.C:
		r.s.Close()
		r.end = putbackSize
		return errors.ErrTimedOut
	case <-ctx.Done():
		r.s.Close()
		r.end = putbackSize
		return ctx.Err()
	}
}
