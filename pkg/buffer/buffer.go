// Package buffer accumulates request bytes in memory, spilling to a temp
// file once a caller-chosen limit is exceeded, so a client sending an
// unusually large request body never has to hold the whole thing in RAM.
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/WhileEndless/urlstream/pkg/errors"
)

// DefaultMemoryLimit is used by New when limit <= 0.
const DefaultMemoryLimit = 4 * 1024 * 1024

// Buffer holds written bytes in memory up to limit, then moves everything
// written so far (and all bytes after) into a temp file. Safe for
// concurrent use; Close is idempotent.
type Buffer struct {
	mu     sync.Mutex
	mem    bytes.Buffer
	file   *os.File
	path   string
	size   int64
	limit  int64
	closed bool
}

// New returns an empty Buffer that spills to disk once it holds more than
// limit bytes in memory.
func New(limit int64) *Buffer {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Buffer{limit: limit}
}

// Write appends p, spilling the buffer to a temp file the first time the
// write would push it past limit.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewIOError("buffer is closed", nil)
	}

	b.size += int64(len(p))

	if b.file == nil && int64(b.mem.Len()+len(p)) <= b.limit {
		return b.mem.Write(p)
	}

	if b.file == nil {
		tmp, err := os.CreateTemp("", "urlstream-buffer-*.tmp")
		if err != nil {
			return 0, errors.NewIOError("creating temp file", err)
		}
		b.file = tmp
		b.path = tmp.Name()

		if b.mem.Len() > 0 {
			if _, err := tmp.Write(b.mem.Bytes()); err != nil {
				b.Close()
				return 0, errors.NewIOError("writing to temp file", err)
			}
			b.mem.Reset()
		}
	}

	n, err := b.file.Write(p)
	if err != nil {
		return n, errors.NewIOError("writing to temp file", err)
	}
	return n, nil
}

// Bytes returns the in-memory payload, or nil once the buffer has spilled —
// callers that need the data after a spill must use Reader instead.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		return nil
	}
	return b.mem.Bytes()
}

// Path returns the backing temp file path, or "" if the buffer never
// spilled.
func (b *Buffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Size returns the total number of bytes written so far.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// IsSpilled reports whether the buffer has moved to disk.
func (b *Buffer) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Reader returns a fresh reader over everything written so far, regardless
// of whether the data lives in memory or on disk.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewIOError("buffer is closed", nil)
	}

	if b.file != nil {
		if err := b.file.Sync(); err != nil {
			return nil, errors.NewIOError("syncing temp file", err)
		}
		f, err := os.Open(b.path)
		if err != nil {
			return nil, errors.NewIOError("opening temp file for reading", err)
		}
		return f, nil
	}

	return io.NopCloser(bytes.NewReader(b.mem.Bytes())), nil
}

// Close releases the temp file, if any. Idempotent and safe to call more
// than once.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.file != nil {
		err := b.file.Close()
		if removeErr := os.Remove(b.path); removeErr != nil && err == nil {
			err = errors.NewIOError("removing temp file", removeErr)
		}
		b.file = nil
		b.path = ""
		if err != nil {
			return errors.NewIOError("closing temp file", err)
		}
	}
	return nil
}

// Reset closes any spilled file and prepares the buffer for reuse with an
// empty payload.
func (b *Buffer) Reset() error {
	if err := b.Close(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.mem.Reset()
	b.size = 0
	b.closed = false
	return nil
}
