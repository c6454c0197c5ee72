// Package urlx parses and normalizes the URLs understood by the dispatcher:
// file, http, and https. It is a total, panic-free parser that produces an
// immutable, comparable value and can round-trip back to canonical text.
package urlx

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/idna"

	"github.com/WhileEndless/urlstream/pkg/errors"
)

// Mask selects which components String renders, mirroring the bitmask the
// library's reference implementation exposes for partial rendering.
type Mask int

const (
	ProtocolPart Mask = 1 << iota
	UserInfoPart
	HostPart
	PortPart
	PathPart
	QueryPart
	FragmentPart

	AllParts = ProtocolPart | UserInfoPart | HostPart | PortPart | PathPart | QueryPart | FragmentPart
)

// URL is an immutable, field-comparable URL value.
type URL struct {
	protocol   string
	userInfo   string
	host       string
	ipv6Host   bool
	port       string
	path       string // still percent-encoded
	query      string
	fragment   string
	decodedPath string
}

// Protocol returns the lowercased scheme.
func (u URL) Protocol() string { return u.protocol }

// UserInfo returns the user-info component, if any.
func (u URL) UserInfo() string { return u.userInfo }

// Host returns the host component. For bracketed IPv6 literals the brackets
// are stripped; IPv6Host reports whether that happened.
func (u URL) Host() string { return u.host }

// IPv6Host reports whether Host is a bracketed IPv6 literal.
func (u URL) IPv6Host() bool { return u.ipv6Host }

// Port returns the textual port, or "" if the URL did not specify one.
func (u URL) Port() string { return u.port }

// Path returns the still percent-encoded path (always starts with "/").
func (u URL) Path() string { return u.path }

// Query returns the raw query string (without the leading '?').
func (u URL) Query() string { return u.query }

// Fragment returns the raw fragment (without the leading '#').
func (u URL) Fragment() string { return u.fragment }

// DecodedPath returns the percent-decoded path, computed once at parse time.
func (u URL) DecodedPath() string { return u.decodedPath }

// defaultPort returns the scheme's default effective port.
func defaultPort(protocol string) uint16 {
	switch protocol {
	case "http":
		return 80
	case "https":
		return 443
	case "ftp":
		return 21
	default:
		return 0
	}
}

// EffectivePort returns the parsed port if present and numeric, otherwise the
// scheme's default port.
func (u URL) EffectivePort() uint16 {
	if u.port != "" {
		if n, err := strconv.ParseUint(u.port, 10, 16); err == nil {
			return uint16(n)
		}
	}
	return defaultPort(u.protocol)
}

// DialHost returns the host as it should be handed to a resolver: IPv6
// brackets stripped, internationalized hostnames converted to their ASCII
// (punycode) form. Plain IP literals and already-ASCII hosts pass through
// unchanged.
func (u URL) DialHost() (string, error) {
	if u.ipv6Host || u.host == "" {
		return u.host, nil
	}
	ascii, err := idna.Lookup.ToASCII(u.host)
	if err != nil {
		// Not every valid dial target (e.g. a bare IPv4 literal) is a valid
		// IDNA label; fall back to the original host rather than failing.
		return u.host, nil //nolint:nilerr
	}
	return ascii, nil
}

// FileOrPath returns the path+query portion used in the HTTP request line,
// or "/" if both are empty.
func (u URL) FileOrPath() string {
	if u.path == "" && u.query == "" {
		return "/"
	}
	s := u.path
	if s == "" {
		s = "/"
	}
	if u.query != "" {
		s += "?" + u.query
	}
	return s
}

// Equal reports whether two URLs are identical field-wise.
func (u URL) Equal(o URL) bool {
	return u.protocol == o.protocol &&
		u.userInfo == o.userInfo &&
		u.host == o.host &&
		u.ipv6Host == o.ipv6Host &&
		u.port == o.port &&
		u.path == o.path &&
		u.query == o.query &&
		u.fragment == o.fragment
}

// Compare returns -1, 0, or 1 comparing u and o lexicographically over
// protocol, user-info, host, ipv6 flag, port, path, query, fragment in that
// order.
func (u URL) Compare(o URL) int {
	if c := strings.Compare(u.protocol, o.protocol); c != 0 {
		return c
	}
	if c := strings.Compare(u.userInfo, o.userInfo); c != 0 {
		return c
	}
	if c := strings.Compare(u.host, o.host); c != 0 {
		return c
	}
	if u.ipv6Host != o.ipv6Host {
		if u.ipv6Host {
			return 1
		}
		return -1
	}
	if c := strings.Compare(u.port, o.port); c != 0 {
		return c
	}
	if c := strings.Compare(u.path, o.path); c != 0 {
		return c
	}
	if c := strings.Compare(u.query, o.query); c != 0 {
		return c
	}
	return strings.Compare(u.fragment, o.fragment)
}

// String renders all components. Re-parsing String() yields a URL equal to
// the original under Equal.
func (u URL) String() string { return u.render(AllParts) }

// StringMasked renders only the components selected by mask, mirroring the
// original library's partial to_string(parts) rendering.
func (u URL) StringMasked(mask Mask) string { return u.render(mask) }

func (u URL) render(mask Mask) string {
	var b strings.Builder

	if mask&ProtocolPart != 0 && u.protocol != "" {
		b.WriteString(u.protocol)
		b.WriteString("://")
	}
	if mask&UserInfoPart != 0 && u.userInfo != "" {
		b.WriteString(u.userInfo)
		b.WriteByte('@')
	}
	if mask&HostPart != 0 {
		if u.ipv6Host {
			b.WriteByte('[')
			b.WriteString(u.host)
			b.WriteByte(']')
		} else {
			b.WriteString(u.host)
		}
	}
	if mask&PortPart != 0 && u.port != "" {
		b.WriteByte(':')
		b.WriteString(u.port)
	}
	if mask&PathPart != 0 && u.path != "" {
		b.WriteString(u.path)
	}
	if mask&QueryPart != 0 && u.query != "" {
		b.WriteByte('?')
		b.WriteString(u.query)
	}
	if mask&FragmentPart != 0 && u.fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.fragment)
	}

	return b.String()
}

// ParseError is returned by Parse for any malformed input.
type ParseError struct {
	Input string
	Err   *errors.Error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse url %q: %v", e.Input, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

func invalid(input, msg string) error {
	return &ParseError{Input: input, Err: errors.NewValidationError(msg)}
}

// Parse is a total function: it never panics, returning a *ParseError on any
// violation of the grammar below.
//
// protocol "://" [user_info "@"] host [":" port] [path] ["?" query] ["#" fragment]
func Parse(s string) (URL, error) {
	var u URL

	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return URL{}, invalid(s, "missing scheme delimiter")
	}
	u.protocol = strings.ToLower(s[:colon])
	if u.protocol == "" {
		return URL{}, invalid(s, "empty scheme")
	}
	rest := s[colon+1:]
	if !strings.HasPrefix(rest, "://") {
		return URL{}, invalid(s, `expected "://" after scheme`)
	}
	rest = rest[3:]

	// user_info
	idx := strings.IndexAny(rest, "@:[/?#")
	if idx < 0 {
		idx = len(rest)
	}
	switch {
	case idx < len(rest) && rest[idx] == '@':
		u.userInfo = rest[:idx]
		rest = rest[idx+1:]
	case idx < len(rest) && rest[idx] == ':':
		idx2 := strings.IndexAny(rest[idx:], "@/?#")
		if idx2 >= 0 && rest[idx:][idx2] == '@' {
			u.userInfo = rest[:idx+idx2]
			rest = rest[idx+idx2+1:]
		}
	}

	// host
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return URL{}, invalid(s, "unterminated IPv6 literal")
		}
		u.host = rest[1:end]
		u.ipv6Host = true
		rest = rest[end+1:]
		if rest != "" && !strings.ContainsRune(":/?#", rune(rest[0])) {
			return URL{}, invalid(s, "invalid character after IPv6 literal")
		}
	} else {
		end := strings.IndexAny(rest, ":/?#")
		if end < 0 {
			end = len(rest)
		}
		u.host = rest[:end]
		rest = rest[end:]
	}

	// port
	if strings.HasPrefix(rest, ":") {
		rest = rest[1:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		portStr := rest[:end]
		if portStr == "" {
			return URL{}, invalid(s, "empty port")
		}
		for _, c := range portStr {
			if c < '0' || c > '9' {
				return URL{}, invalid(s, "port must be all digits")
			}
		}
		u.port = portStr
		rest = rest[end:]
	}

	// path
	if strings.HasPrefix(rest, "/") {
		end := strings.IndexAny(rest, "?#")
		if end < 0 {
			end = len(rest)
		}
		u.path = rest[:end]
		decoded, err := decodePercent(u.path)
		if err != nil {
			return URL{}, invalid(s, "malformed percent-encoding in path: "+err.Error())
		}
		u.decodedPath = decoded
		rest = rest[end:]
	} else {
		u.path = "/"
		u.decodedPath = "/"
	}

	// query
	if strings.HasPrefix(rest, "?") {
		rest = rest[1:]
		end := strings.IndexByte(rest, '#')
		if end < 0 {
			end = len(rest)
		}
		u.query = rest[:end]
		rest = rest[end:]
	}

	// fragment
	if strings.HasPrefix(rest, "#") {
		u.fragment = rest[1:]
	}

	return u, nil
}

// ResolveReference resolves a possibly-relative redirect target ref against
// base, the way a Location header that omits scheme/host is meant to be
// interpreted. An absolute ref (one Parse accepts on its own) should be
// passed to Parse directly; this is for the remaining case: a root-relative
// path (starting with '/'), optionally with query/fragment, inheriting base's
// protocol/host/port/userinfo. A path-relative ref is rejected.
func ResolveReference(base URL, ref string) (URL, error) {
	if ref == "" {
		return URL{}, invalid(ref, "empty redirect target")
	}

	next := base
	next.path = ""
	next.decodedPath = ""
	next.query = ""
	next.fragment = ""

	rest := ref
	if strings.HasPrefix(rest, "/") {
		end := strings.IndexAny(rest, "?#")
		if end < 0 {
			end = len(rest)
		}
		next.path = rest[:end]
		rest = rest[end:]
	} else {
		return URL{}, invalid(ref, "redirect target must be absolute or root-relative")
	}

	decoded, err := decodePercent(next.path)
	if err != nil {
		return URL{}, invalid(ref, "malformed percent-encoding in redirect path: "+err.Error())
	}
	next.decodedPath = decoded

	if strings.HasPrefix(rest, "?") {
		rest = rest[1:]
		end := strings.IndexByte(rest, '#')
		if end < 0 {
			end = len(rest)
		}
		next.query = rest[:end]
		rest = rest[end:]
	}

	if strings.HasPrefix(rest, "#") {
		next.fragment = rest[1:]
	}

	return next, nil
}

// isUnreservedOrAllowed reports whether b may appear unescaped in a path per
// the specification's percent-decoding allow-set: unreserved characters,
// sub-delims, '/', ':', '@', ';'.
func isUnreservedOrAllowed(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '.', '_', '~', // unreserved
		'!', '$', '&', '\'', '(', ')', '*', '+', ',', '=', // sub-delims
		'/', ':', '@', ';':
		return true
	}
	return false
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// decodePercent replaces %HH escapes with the byte of that value. Bytes
// outside the allow-set that appear unescaped are rejected.
func decodePercent(in string) (string, error) {
	var b strings.Builder
	b.Grow(len(in))

	for i := 0; i < len(in); i++ {
		c := in[i]
		if c == '%' {
			if i+2 >= len(in) {
				return "", fmt.Errorf("truncated percent-escape at offset %d", i)
			}
			hi, ok1 := hexVal(in[i+1])
			lo, ok2 := hexVal(in[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("invalid hex digits at offset %d", i)
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
			continue
		}
		if !isUnreservedOrAllowed(c) {
			return "", fmt.Errorf("disallowed character %q at offset %d", c, i)
		}
		b.WriteByte(c)
	}

	return b.String(), nil
}
