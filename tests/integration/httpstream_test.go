package integration

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/urlstream/pkg/httpstream"
	"github.com/WhileEndless/urlstream/pkg/timing"
)

// RequestBytes must report the exact bytes the server received: the request
// buffer, not a separately formatted copy, is what gets written to the
// socket.
func TestHTTPStreamRequestBytesMatchWhatServerReceived(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		var raw []byte
		for {
			line, err := reader.ReadString('\n')
			raw = append(raw, []byte(line)...)
			if err != nil || line == "\r\n" {
				break
			}
		}
		received <- string(raw)
		conn.Write([]byte("HTTP/1.0 200 OK\r\nContent-Length: 0\r\n\r\n"))
	}()

	u := urlFor(t, ln, "/probe")
	s := httpstream.New(httpstream.Dialer{}, nil)
	require.NoError(t, s.Open(context.Background(), u, 2*time.Second, 2*time.Second, timing.NewTimer()))
	defer s.Close()

	select {
	case raw := <-received:
		require.Equal(t, raw, string(s.RequestBytes()))
		require.Contains(t, raw, "GET /probe HTTP/1.0\r\n")
		require.Contains(t, raw, "Connection: close\r\n")
	case <-time.After(time.Second):
		t.Fatal("server never observed a request")
	}
}

// A request large enough to spill requestBuf to disk must still be sent
// byte-for-byte, exercising the disk-backed branch of requestBuf.Reader()
// that sendRequest writes from, rather than only the in-memory branch.
func TestHTTPStreamRequestSendsWholeBodyEvenWhenBufferWouldSpill(t *testing.T) {
	ln := listenTCP(t)
	defer ln.Close()

	done := make(chan int, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		n := 0
		for {
			line, err := reader.ReadString('\n')
			n += len(line)
			if err != nil || line == "\r\n" {
				break
			}
		}
		done <- n
		conn.Write([]byte("HTTP/1.0 200 OK\r\nContent-Length: 0\r\n\r\n"))
	}()

	// requestBuf spills past 4096 bytes (see httpstream.Stream.Open); a path
	// this long pushes the whole request over that limit, so sendRequest
	// reads it back from requestBuf's temp file rather than from memory.
	longPath := "/" + longRunOfX(5000)
	u := urlFor(t, ln, longPath)
	s := httpstream.New(httpstream.Dialer{}, nil)
	require.NoError(t, s.Open(context.Background(), u, 2*time.Second, 2*time.Second, timing.NewTimer()))
	defer s.Close()

	select {
	case n := <-done:
		require.Equal(t, n, len(s.RequestBytes()))
	case <-time.After(time.Second):
		t.Fatal("server never observed a request")
	}
}

func longRunOfX(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
