// Package urlstream provides a uniform byte-stream reader over file, http,
// and https URLs: parse a URL, open it, and read the bytes it names without
// caring which transport actually served them.
package urlstream

import (
	"context"
	"io"
	"time"

	"github.com/WhileEndless/urlstream/pkg/dispatcher"
	"github.com/WhileEndless/urlstream/pkg/errors"
	"github.com/WhileEndless/urlstream/pkg/options"
	"github.com/WhileEndless/urlstream/pkg/timing"
	"github.com/WhileEndless/urlstream/pkg/urlx"
)

// Version is the current version of the urlstream library.
const Version = "1.0.0"

// Re-export key types for easier usage.
type (
	// URL is a parsed, immutable urlstream URL.
	URL = urlx.URL

	// OptionBag holds the TLS-related options a Stream opens with.
	OptionBag = options.Bag

	// OptionKind identifies a recognized option in an OptionBag.
	OptionKind = options.Kind

	// ClientCertPaths names a certificate/key file pair for mutual TLS.
	ClientCertPaths = options.ClientCertPaths

	// Metrics captures per-phase timing for the most recent open.
	Metrics = timing.Metrics

	// Error represents a structured urlstream error.
	Error = errors.Error

	// Timeouts bundles the connect/read/write durations a Stream honors.
	Timeouts = dispatcher.Timeouts
)

// Re-export error types and option kinds for convenience.
const (
	ErrorTypeDNS        = errors.ErrorTypeDNS
	ErrorTypeConnection = errors.ErrorTypeConnection
	ErrorTypeTLS        = errors.ErrorTypeTLS
	ErrorTypeTimeout    = errors.ErrorTypeTimeout
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
	ErrorTypeIO         = errors.ErrorTypeIO
	ErrorTypeValidation = errors.ErrorTypeValidation
	ErrorTypeHTTP       = errors.ErrorTypeHTTP
	ErrorTypeScheme     = errors.ErrorTypeScheme

	OptionVerifyPeer = options.VerifyPeer
	OptionCACert     = options.CACert
	OptionClientCert = options.ClientCert
)

// Re-export sentinel errors.
var (
	ErrAlreadyOpen           = errors.ErrAlreadyOpen
	ErrOperationAborted      = errors.ErrOperationAborted
	ErrEOF                   = errors.ErrEOF
	ErrTimedOut              = errors.ErrTimedOut
	ErrNoSuchFileOrDirectory = errors.ErrNoSuchFileOrDirectory
	ErrOperationNotSupported = errors.ErrOperationNotSupported
)

// ParseURL parses s into a URL, the entry point for every Open call.
func ParseURL(s string) (URL, error) {
	return urlx.Parse(s)
}

// NewOptionBag returns an OptionBag with VerifyPeer defaulted to true.
func NewOptionBag() OptionBag {
	return options.NewBag()
}

// DefaultTimeouts returns the library's default connect/read/write timeouts.
func DefaultTimeouts() Timeouts {
	return dispatcher.DefaultTimeouts()
}

// Stream is a read stream dispatched over file, http, or https, following
// redirects transparently. The zero value is not usable; construct one with
// Open or New.
type Stream struct {
	d *dispatcher.Stream
}

// New returns an unopened Stream configured with opts.
func New(opts OptionBag) *Stream {
	return &Stream{d: dispatcher.New(opts)}
}

// SetTimeouts overrides the connect/read/write timeouts used by future Opens.
func (s *Stream) SetTimeouts(t Timeouts) { s.d.SetTimeouts(t) }

// Open parses and opens urlString against the given URL, following
// redirects up to dispatcher.MaxRedirects hops.
func Open(ctx context.Context, urlString string, opts OptionBag) (*Stream, error) {
	u, err := urlx.Parse(urlString)
	if err != nil {
		return nil, err
	}
	s := New(opts)
	if err := s.d.Open(ctx, u); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenURL opens an already-parsed URL.
func OpenURL(ctx context.Context, u URL, opts OptionBag) (*Stream, error) {
	s := New(opts)
	if err := s.d.Open(ctx, u); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens u on an existing Stream, returning ErrAlreadyOpen if one
// transport is already live.
func (s *Stream) Open(ctx context.Context, u URL) error {
	return s.d.Open(ctx, u)
}

// AsyncOpen runs Open on its own goroutine, always invoking handler exactly
// once, including for synchronous rejections such as an unsupported scheme.
func (s *Stream) AsyncOpen(ctx context.Context, u URL, handler func(error)) {
	s.d.AsyncOpen(ctx, u, handler)
}

// IsOpen reports whether a transport is currently open.
func (s *Stream) IsOpen() bool { return s.d.IsOpen() }

// FinalURL returns the URL actually served, after following any redirects.
func (s *Stream) FinalURL() URL { return s.d.FinalURL() }

// Metrics returns timing for the most recent Open: per-phase durations from
// the final (post-redirect) hop, TotalTime across the whole chain.
func (s *Stream) Metrics() Metrics { return s.d.Metrics() }

// ContentType returns the response's Content-Type, or "" if unavailable.
func (s *Stream) ContentType() string { return s.d.ContentType() }

// ContentLength returns the response's Content-Length, or -1 if unknown.
func (s *Stream) ContentLength() int64 { return s.d.ContentLength() }

// Headers returns the raw HTTP header block, or "" for a file stream.
func (s *Stream) Headers() string { return s.d.Headers() }

// ReadSome reads into p from whichever transport is open, blocking until at
// least one byte is available or an error (including ErrEOF) occurs.
func (s *Stream) ReadSome(p []byte) (int, error) { return s.d.ReadSome(p) }

// AsyncReadSome performs ReadSome on its own goroutine and invokes handler
// with the result.
func (s *Stream) AsyncReadSome(p []byte, handler func(int, error)) {
	s.d.AsyncReadSome(p, handler)
}

// Read implements io.Reader by delegating to ReadSome and mapping ErrEOF to
// io.EOF, letting a Stream be used anywhere an io.Reader is expected (e.g.
// io.Copy, bufio.NewReader).
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.d.ReadSome(p)
	if errors.IsEOF(err) {
		return n, io.EOF
	}
	return n, err
}

// Close shuts down whichever transport is open.
func (s *Stream) Close() error { return s.d.Close() }

// withTimeout is a small helper kept for callers that want a one-shot open
// bounded by an overall deadline rather than per-phase timeouts.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
