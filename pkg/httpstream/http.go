// Package httpstream implements the HTTP/1.0 read-stream state machine
// shared by plain and TLS-wrapped connections. Because both a plain
// *net.TCPConn and a *tls.Conn satisfy net.Conn, the single implementation
// here already is "generic over its byte stream" in the sense the
// specification asks for — Go expresses that polymorphism with an interface
// rather than a type parameter.
package httpstream

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/WhileEndless/urlstream/pkg/buffer"
	"github.com/WhileEndless/urlstream/pkg/connectutil"
	"github.com/WhileEndless/urlstream/pkg/constants"
	"github.com/WhileEndless/urlstream/pkg/errors"
	"github.com/WhileEndless/urlstream/pkg/httpheaders"
	"github.com/WhileEndless/urlstream/pkg/timing"
	"github.com/WhileEndless/urlstream/pkg/urlx"
)

// Dialer abstracts endpoint resolution and connection for testability; the
// zero value uses connectutil and net.Resolver directly.
type Dialer struct {
	Resolver *net.Resolver
}

// TLSConfigFunc builds the *tls.Config to use for an HTTPS open. It is
// invoked fresh on every Open so that option-bag changes made between opens
// take effect (the specification's "TLS context management").
type TLSConfigFunc func() *tls.Config

// Stream drives the request/response state machine described in the
// specification: connect, [handshake], send, status line (looping past 1xx),
// headers, body.
type Stream struct {
	dialer    Dialer
	tlsConfig TLSConfigFunc // nil for plain HTTP

	conn   net.Conn
	reader *bufio.Reader

	requestBuf *buffer.Buffer

	headers       httpheaders.Headers
	contentType   string
	contentLength int64 // -1 means unknown
	location      string
	statusCode    int

	closing int32 // set by Close to make in-flight suspension points observe abort
}

// UnknownContentLength is the sentinel returned by ContentLength when the
// server did not advertise Content-Length.
const UnknownContentLength int64 = -1

// New returns a Stream. tlsConfig must be non-nil for HTTPS use and nil for
// plain HTTP.
func New(dialer Dialer, tlsConfig TLSConfigFunc) *Stream {
	if dialer.Resolver == nil {
		dialer.Resolver = net.DefaultResolver
	}
	return &Stream{dialer: dialer, tlsConfig: tlsConfig, contentLength: UnknownContentLength}
}

// IsOpen reports whether the underlying socket is open.
func (s *Stream) IsOpen() bool { return s.conn != nil }

// ContentType returns the parsed Content-Type header, or "" if absent or
// unopened.
func (s *Stream) ContentType() string { return s.contentType }

// ContentLength returns the parsed Content-Length, or UnknownContentLength.
func (s *Stream) ContentLength() int64 { return s.contentLength }

// Location returns the parsed Location header, or "" if absent.
func (s *Stream) Location() string { return s.location }

// StatusCode returns the last status code observed (the final, non-1xx one).
func (s *Stream) StatusCode() int { return s.statusCode }

// Headers returns the raw header block bytes captured during Open.
func (s *Stream) Headers() string {
	if s.headers.Raw == nil {
		return ""
	}
	return string(s.headers.Raw)
}

// RequestBytes returns the exact bytes sent for the most recent Open, for
// diagnostics.
func (s *Stream) RequestBytes() []byte {
	if s.requestBuf == nil {
		return nil
	}
	r, err := s.requestBuf.Reader()
	if err != nil {
		return nil
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	return b
}

// Open runs the full state machine: precondition check, connect, [TLS
// handshake], request send, status-line read (looping past 1xx), header
// read. It returns a non-nil error for any HTTP status other than 200,
// wrapping the code as an *errors.Error with ErrorTypeHTTP.
func (s *Stream) Open(ctx context.Context, u urlx.URL, connTimeout, readTimeout time.Duration, timer *timing.Timer) error {
	if s.conn != nil {
		return errors.ErrAlreadyOpen
	}

	atomic.StoreInt32(&s.closing, 0)

	host, err := u.DialHost()
	if err != nil {
		return err
	}

	ips, err := connectutil.Resolve(ctx, s.dialer.Resolver, host, connTimeout, timer)
	if err != nil {
		return err
	}

	conn, err := connectutil.DialFirst(ctx, ips, u.EffectivePort(), connTimeout, s.aborted, timer)
	if err != nil {
		return errors.NewConnectionError(u.Host(), int(u.EffectivePort()), err)
	}

	if s.tlsConfig != nil {
		timer.StartTLS()
		tlsConn := tls.Client(conn, s.tlsConfig())
		hsCtx := ctx
		if connTimeout > 0 {
			var cancel context.CancelFunc
			hsCtx, cancel = context.WithTimeout(ctx, connTimeout)
			defer cancel()
		}
		if err := tlsConn.HandshakeContext(hsCtx); err != nil {
			timer.EndTLS()
			conn.Close()
			return errors.NewTLSError(u.Host(), int(u.EffectivePort()), err)
		}
		timer.EndTLS()
		conn = tlsConn
	}

	if s.aborted() {
		conn.Close()
		return errors.ErrOperationAborted
	}

	s.conn = conn
	s.reader = bufio.NewReader(conn)
	s.requestBuf = buffer.New(4096)

	if err := s.sendRequest(u, readTimeout); err != nil {
		s.forceClose()
		return err
	}

	timer.StartTTFB()
	if err := s.readStatusLoop(); err != nil {
		timer.EndTTFB()
		s.forceClose()
		return err
	}
	timer.EndTTFB()

	if err := s.readHeaderBlock(); err != nil {
		s.forceClose()
		return err
	}

	if s.statusCode != 200 {
		return errors.NewHTTPError(s.statusCode, httpReason(s.statusCode))
	}

	return nil
}

func (s *Stream) aborted() bool {
	return atomic.LoadInt32(&s.closing) != 0
}

func (s *Stream) sendRequest(u urlx.URL, writeTimeout time.Duration) error {
	hostHeader := u.Host()
	if u.IPv6Host() {
		hostHeader = "[" + hostHeader + "]"
	}
	req := fmt.Sprintf(
		"GET %s HTTP/1.0\r\nHost: %s:%d\r\nAccept: */*\r\nConnection: close\r\n\r\n",
		u.FileOrPath(), hostHeader, u.EffectivePort(),
	)
	if _, err := s.requestBuf.Write([]byte(req)); err != nil {
		return err
	}

	// requestBuf is the single owner of the bytes actually put on the wire:
	// reading them back out here (rather than reusing the []byte(req) above)
	// means RequestBytes reports exactly what was sent, including for a
	// request large enough to have spilled to disk.
	reqReader, err := s.requestBuf.Reader()
	if err != nil {
		return err
	}
	defer reqReader.Close()

	if writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return errors.NewIOError("setting write deadline", err)
		}
		defer s.conn.SetWriteDeadline(time.Time{})
	}

	if s.aborted() {
		return errors.ErrOperationAborted
	}
	if _, err := io.Copy(s.conn, reqReader); err != nil {
		if s.aborted() {
			return errors.ErrOperationAborted
		}
		return errors.NewIOError("writing request", err)
	}

	return nil
}

// readStatusLoop reads the status line, discarding and re-reading while the
// server keeps sending 100 Continue responses. For each 100 response the
// status line and every following line up to and including the blank line
// that ends it are consumed.
func (s *Stream) readStatusLoop() error {
	for {
		if s.aborted() {
			return errors.ErrOperationAborted
		}

		line, err := httpheaders.ReadLine(s.reader)
		if err != nil {
			return remapEOF(err)
		}

		sl, err := httpheaders.ParseStatusLine(line)
		if err != nil {
			return err
		}

		s.statusCode = sl.Code
		if sl.Code != 100 {
			return nil
		}

		for {
			l, err := httpheaders.ReadLine(s.reader)
			if err != nil {
				return remapEOF(err)
			}
			if l == "" {
				break
			}
		}
	}
}

func (s *Stream) readHeaderBlock() error {
	h, err := httpheaders.ReadHeaderBlock(s.reader, constants.MaxHeaderBlockSize)
	if err != nil {
		return err
	}

	s.headers = h
	s.contentType = h.ContentType
	s.location = h.Location
	if h.HasContentLength {
		s.contentLength = h.ContentLength
	} else {
		s.contentLength = UnknownContentLength
	}

	return nil
}

// ReadSome drains any bytes buffered by bufio.Reader while searching for the
// header terminator before issuing a fresh socket read — the residual-buffer
// drain the specification requires falls out of bufio.Reader's own
// buffering, so there is exactly one owned buffer shared by the header-read
// and body-read phases.
func (s *Stream) ReadSome(p []byte) (int, error) {
	if s.conn == nil {
		return 0, errors.ErrOperationNotSupported
	}
	if s.aborted() {
		return 0, errors.ErrOperationAborted
	}

	n, err := s.reader.Read(p)
	if err != nil {
		if s.aborted() {
			return n, errors.ErrOperationAborted
		}
		if err == io.EOF {
			return n, errors.ErrEOF
		}
		return n, remapEOF(err)
	}
	return n, nil
}

// AsyncReadSome runs ReadSome on its own goroutine and invokes handler with
// the result; Close causes any such pending read to observe
// ErrOperationAborted.
func (s *Stream) AsyncReadSome(p []byte, handler func(int, error)) {
	go func() {
		n, err := s.ReadSome(p)
		handler(n, err)
	}()
}

// Close cancels any in-flight I/O by closing the socket and resets the
// Stream to the unopened state.
func (s *Stream) Close() error {
	atomic.StoreInt32(&s.closing, 1)
	return s.forceClose()
}

func (s *Stream) forceClose() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	s.requestBuf = nil
	s.headers = httpheaders.Headers{}
	s.contentType = ""
	s.contentLength = UnknownContentLength
	s.location = ""
	s.statusCode = 0
	if err != nil {
		return errors.NewIOError("closing socket", err)
	}
	return nil
}

func remapEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.ErrEOF
	}
	var netErr net.Error
	if ok := asNetError(err, &netErr); ok && netErr.Timeout() {
		return errors.ErrTimedOut
	}
	return errors.NewIOError("reading", err)
}

func asNetError(err error, target *net.Error) bool {
	if ne, ok := err.(net.Error); ok {
		*target = ne
		return true
	}
	return false
}

func httpReason(code int) string {
	if r, ok := statusReasons[code]; ok {
		return r
	}
	return "status " + strconv.Itoa(code)
}
