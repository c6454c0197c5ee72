package unit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/urlstream/pkg/errors"
	"github.com/WhileEndless/urlstream/pkg/filestream"
	"github.com/WhileEndless/urlstream/pkg/urlx"
)

func TestFileStreamReadsWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	u, err := urlx.Parse("file://" + path)
	require.NoError(t, err)

	var s filestream.Stream
	require.NoError(t, s.Open(u))
	defer s.Close()

	buf := make([]byte, 64)
	var got []byte
	for {
		n, err := s.ReadSome(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			require.ErrorIs(t, err, errors.ErrEOF)
			break
		}
	}
	require.Equal(t, "hello world", string(got))
}

func TestFileStreamMissingFile(t *testing.T) {
	u, err := urlx.Parse("file:///no/such/file/anywhere")
	require.NoError(t, err)

	var s filestream.Stream
	err = s.Open(u)
	require.ErrorIs(t, err, errors.ErrNoSuchFileOrDirectory)
}

func TestFileStreamAsyncOpenAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "async.txt")
	require.NoError(t, os.WriteFile(path, []byte("async data"), 0o644))

	u, err := urlx.Parse("file://" + path)
	require.NoError(t, err)

	var s filestream.Stream
	openErr := make(chan error, 1)
	s.AsyncOpen(u, func(err error) { openErr <- err })
	require.NoError(t, <-openErr)
	defer s.Close()

	buf := make([]byte, 32)
	readResult := make(chan struct {
		n   int
		err error
	}, 1)
	s.AsyncReadSome(buf, func(n int, err error) {
		readResult <- struct {
			n   int
			err error
		}{n, err}
	})
	res := <-readResult
	require.NoError(t, res.err)
	require.Equal(t, "async data", string(buf[:res.n]))
}

func TestFileStreamIsOpenAndClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	u, err := urlx.Parse("file://" + path)
	require.NoError(t, err)

	var s filestream.Stream
	require.False(t, s.IsOpen())
	require.NoError(t, s.Open(u))
	require.True(t, s.IsOpen())
	require.NoError(t, s.Close())
	require.False(t, s.IsOpen())
	// Closing twice is a no-op.
	require.NoError(t, s.Close())
}
