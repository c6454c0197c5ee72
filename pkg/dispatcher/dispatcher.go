// Package dispatcher implements the polymorphic read stream: given a URL it
// picks the file or HTTP(S) transport, follows redirects up to a fixed cap,
// and exposes a single uniform Open/ReadSome/Close surface regardless of
// which transport ended up serving the bytes.
package dispatcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/WhileEndless/urlstream/pkg/constants"
	"github.com/WhileEndless/urlstream/pkg/errors"
	"github.com/WhileEndless/urlstream/pkg/filestream"
	"github.com/WhileEndless/urlstream/pkg/httpstream"
	"github.com/WhileEndless/urlstream/pkg/options"
	"github.com/WhileEndless/urlstream/pkg/timing"
	"github.com/WhileEndless/urlstream/pkg/tlsconfig"
	"github.com/WhileEndless/urlstream/pkg/urlx"
)

// Kind discriminates which transport a Stream currently holds open.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindHTTP
	KindHTTPS
)

// MaxRedirects caps the number of hops a single Open will follow before
// surfacing the last response's status as an error. The reference
// implementation this module is adapted from has no such cap, which the
// specification calls out as a defect this module does not repeat.
const MaxRedirects = 8

// Timeouts bundles the duration knobs handed to the transports. Connect
// bounds DNS resolution, each TCP dial, and the TLS handshake. Read is passed
// to httpstream.Stream.Open, which applies it as the deadline for writing the
// request; no read deadline is set on the socket. Write is not applied by any
// transport.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// DefaultTimeouts returns sane defaults: 10s connect, 30s read, 10s write.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect: constants.DefaultConnTimeout,
		Read:    constants.DefaultReadTimeout,
		Write:   constants.DefaultWriteTimeout,
	}
}

// Stream is a read stream dispatched over exactly one of the file, HTTP, or
// HTTPS transports at a time.
type Stream struct {
	opts     options.Bag
	timeouts Timeouts

	kind Kind
	file *filestream.Stream
	http *httpstream.Stream

	finalURL urlx.URL
	timer    *timing.Timer

	closing int32
}

// New returns an unopened Stream configured with opts and default timeouts.
func New(opts options.Bag) *Stream {
	return &Stream{opts: opts, timeouts: DefaultTimeouts()}
}

// SetTimeouts overrides the connect/read/write timeouts used by future Opens.
func (s *Stream) SetTimeouts(t Timeouts) { s.timeouts = t }

// Kind reports which transport, if any, is currently open.
func (s *Stream) Kind() Kind { return s.kind }

// FinalURL returns the URL actually served, after following any redirects.
func (s *Stream) FinalURL() urlx.URL { return s.finalURL }

// Metrics returns timing for the most recent Open. The per-phase durations
// (DNS, TCP, TLS, TTFB) come from the final (post-redirect) hop only;
// TotalTime spans the whole redirect chain.
func (s *Stream) Metrics() timing.Metrics {
	if s.timer == nil {
		return timing.Metrics{}
	}
	return s.timer.GetMetrics()
}

// IsOpen reports whether a transport is currently open.
func (s *Stream) IsOpen() bool {
	switch s.kind {
	case KindFile:
		return s.file != nil && s.file.IsOpen()
	case KindHTTP, KindHTTPS:
		return s.http != nil && s.http.IsOpen()
	default:
		return false
	}
}

// Open resolves u's scheme to a transport, opens it, and follows HTTP
// redirects (301/302/303/307/308 with a Location header) up to MaxRedirects
// hops, all under a single timing.Timer so TotalTime spans the whole chain.
func (s *Stream) Open(ctx context.Context, u urlx.URL) error {
	if s.IsOpen() {
		return errors.ErrAlreadyOpen
	}

	atomic.StoreInt32(&s.closing, 0)
	s.timer = timing.NewTimer()

	current := u
	var lastRedirect error
	for hop := 0; ; hop++ {
		if hop > MaxRedirects {
			return lastRedirect
		}
		if s.aborted() {
			return errors.ErrOperationAborted
		}

		kind, err := kindFor(current.Protocol())
		if err != nil {
			return err
		}

		if hop > 0 {
			s.timer.Reset()
		}

		switch kind {
		case KindFile:
			fs := &filestream.Stream{}
			if err := fs.Open(current); err != nil {
				return err
			}
			s.kind, s.file, s.http, s.finalURL = KindFile, fs, nil, current
			return nil

		case KindHTTP, KindHTTPS:
			hs := s.newHTTPStream(kind)
			err := hs.Open(ctx, current, s.timeouts.Connect, s.timeouts.Read, s.timer)
			if isRedirect(err, hs) {
				lastRedirect = err
				loc := hs.Location()
				hs.Close()
				next, perr := resolveRedirect(current, loc)
				if perr != nil {
					return perr
				}
				current = next
				continue
			}
			if err != nil {
				return err
			}
			s.kind, s.file, s.http, s.finalURL = kind, nil, hs, current
			return nil

		default:
			return errors.NewSchemeError(current.Protocol())
		}
	}
}

// AsyncOpen runs Open on its own goroutine, always invoking handler exactly
// once — including for a synchronous rejection such as an unsupported
// scheme, which Open itself would otherwise return before any suspension
// point.
func (s *Stream) AsyncOpen(ctx context.Context, u urlx.URL, handler func(error)) {
	go func() {
		handler(s.Open(ctx, u))
	}()
}

func (s *Stream) aborted() bool { return atomic.LoadInt32(&s.closing) != 0 }

func isRedirect(err error, hs *httpstream.Stream) bool {
	if err == nil {
		return false
	}
	var herr *errors.Error
	if !stderrors.As(err, &herr) {
		return false
	}
	if herr.Type != errors.ErrorTypeHTTP {
		return false
	}
	switch herr.Code {
	case 301, 302, 303, 307, 308:
		return hs.Location() != ""
	default:
		return false
	}
}

func resolveRedirect(base urlx.URL, location string) (urlx.URL, error) {
	if next, err := urlx.Parse(location); err == nil {
		return next, nil
	}
	return urlx.ResolveReference(base, location)
}

func kindFor(protocol string) (Kind, error) {
	switch protocol {
	case "file":
		return KindFile, nil
	case "http":
		return KindHTTP, nil
	case "https":
		return KindHTTPS, nil
	default:
		return KindUnknown, errors.NewSchemeError(protocol)
	}
}

func (s *Stream) newHTTPStream(kind Kind) *httpstream.Stream {
	if kind != KindHTTPS {
		return httpstream.New(httpstream.Dialer{}, nil)
	}
	return httpstream.New(httpstream.Dialer{}, s.buildTLSConfig)
}

// buildTLSConfig constructs a fresh *tls.Config from the current option bag
// on every HTTPS open, so changes made to the bag between opens take effect
// immediately (the specification's TLS context management rule).
func (s *Stream) buildTLSConfig() *tls.Config {
	cfg := &tls.Config{}
	tlsconfig.ApplyVersionProfile(cfg, tlsconfig.ProfileSecure)
	tlsconfig.ApplyCipherSuites(cfg, tlsconfig.VersionTLS12)

	cfg.InsecureSkipVerify = !s.opts.VerifyPeer()

	if ca := s.opts.CACert(); ca != "" {
		if pem, err := os.ReadFile(ca); err == nil {
			pool := x509.NewCertPool()
			if pool.AppendCertsFromPEM(pem) {
				cfg.RootCAs = pool
			}
		}
	}

	if paths := s.opts.ClientCert(); paths.CertPath != "" && paths.KeyPath != "" {
		if cert, err := tls.LoadX509KeyPair(paths.CertPath, paths.KeyPath); err == nil {
			cfg.Certificates = []tls.Certificate{cert}
		}
	}

	return cfg
}

// ContentType delegates to the live transport, or "" if unopened or filestream.
func (s *Stream) ContentType() string {
	if s.kind == KindHTTP || s.kind == KindHTTPS {
		if s.http != nil {
			return s.http.ContentType()
		}
	}
	return ""
}

// ContentLength delegates to the live transport. File transports report the
// size unknown (-1); the caller can stat the path itself if needed.
func (s *Stream) ContentLength() int64 {
	if (s.kind == KindHTTP || s.kind == KindHTTPS) && s.http != nil {
		return s.http.ContentLength()
	}
	return httpstream.UnknownContentLength
}

// Headers returns the raw HTTP header block, or "" for a file stream.
func (s *Stream) Headers() string {
	if (s.kind == KindHTTP || s.kind == KindHTTPS) && s.http != nil {
		return s.http.Headers()
	}
	return ""
}

// ReadSome reads into p from whichever transport is open.
func (s *Stream) ReadSome(p []byte) (int, error) {
	switch s.kind {
	case KindFile:
		if s.file == nil {
			return 0, errors.ErrOperationNotSupported
		}
		return s.file.ReadSome(p)
	case KindHTTP, KindHTTPS:
		if s.http == nil {
			return 0, errors.ErrOperationNotSupported
		}
		return s.http.ReadSome(p)
	default:
		return 0, errors.ErrOperationNotSupported
	}
}

// AsyncReadSome delegates to the live transport's asynchronous read.
func (s *Stream) AsyncReadSome(p []byte, handler func(int, error)) {
	switch s.kind {
	case KindFile:
		if s.file == nil {
			handler(0, errors.ErrOperationNotSupported)
			return
		}
		s.file.AsyncReadSome(p, handler)
	case KindHTTP, KindHTTPS:
		if s.http == nil {
			handler(0, errors.ErrOperationNotSupported)
			return
		}
		s.http.AsyncReadSome(p, handler)
	default:
		handler(0, errors.ErrOperationNotSupported)
	}
}

// Close shuts down whichever transport is open and resets the Stream to the
// unopened state; any goroutine blocked in ReadSome observes
// ErrOperationAborted on its next suspension point.
func (s *Stream) Close() error {
	atomic.StoreInt32(&s.closing, 1)

	var err error
	switch s.kind {
	case KindFile:
		if s.file != nil {
			err = s.file.Close()
		}
	case KindHTTP, KindHTTPS:
		if s.http != nil {
			err = s.http.Close()
		}
	}

	s.kind = KindUnknown
	s.file = nil
	s.http = nil
	return err
}
