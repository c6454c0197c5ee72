package unit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WhileEndless/urlstream/pkg/urlx"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"http://example.com/path?q=1#frag",
		"https://user@example.com:8443/a/b",
		"file:///etc/hosts",
		"http://[::1]:8080/",
	}

	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			u, err := urlx.Parse(s)
			require.NoError(t, err)

			reparsed, err := urlx.Parse(u.String())
			require.NoError(t, err)
			require.True(t, u.Equal(reparsed), "round trip mismatch: %q -> %q", s, u.String())
		})
	}
}

func TestParseDefaultPort(t *testing.T) {
	u, err := urlx.Parse("http://example.com/")
	require.NoError(t, err)
	require.EqualValues(t, 80, u.EffectivePort())

	u, err = urlx.Parse("https://example.com/")
	require.NoError(t, err)
	require.EqualValues(t, 443, u.EffectivePort())

	u, err = urlx.Parse("http://example.com:9090/")
	require.NoError(t, err)
	require.EqualValues(t, 9090, u.EffectivePort())
}

func TestParsePortMustBeDigits(t *testing.T) {
	_, err := urlx.Parse("http://example.com:abc/")
	require.Error(t, err)
}

func TestParseDefaultsToRootPath(t *testing.T) {
	u, err := urlx.Parse("http://example.com")
	require.NoError(t, err)
	require.Equal(t, "/", u.Path())
	require.Equal(t, "/", u.FileOrPath())
}

func TestParsePercentDecode(t *testing.T) {
	u, err := urlx.Parse("http://example.com/a%20b/c%2Fd")
	require.NoError(t, err)
	require.Equal(t, "/a b/c/d", u.DecodedPath())
}

func TestParseRejectsMalformedPercentEscape(t *testing.T) {
	_, err := urlx.Parse("http://example.com/bad%")
	require.Error(t, err)

	_, err = urlx.Parse("http://example.com/bad%zz")
	require.Error(t, err)
}

func TestParseIPv6Host(t *testing.T) {
	u, err := urlx.Parse("http://[2001:db8::1]:8080/p")
	require.NoError(t, err)
	require.True(t, u.IPv6Host())
	require.Equal(t, "2001:db8::1", u.Host())
	require.Contains(t, u.String(), "[2001:db8::1]")
}

func TestParseMissingSchemeDelimiter(t *testing.T) {
	_, err := urlx.Parse("example.com/path")
	require.Error(t, err)
}

func TestMaskRendering(t *testing.T) {
	u, err := urlx.Parse("https://user@example.com:8443/a?q=1#f")
	require.NoError(t, err)

	require.Equal(t, "example.com", u.StringMasked(urlx.HostPart))
	require.Equal(t, "https://example.com", u.StringMasked(urlx.ProtocolPart|urlx.HostPart))
}

func TestCompareIsConsistentWithEqual(t *testing.T) {
	a, err := urlx.Parse("http://example.com/a")
	require.NoError(t, err)
	b, err := urlx.Parse("http://example.com/a")
	require.NoError(t, err)
	c, err := urlx.Parse("http://example.com/b")
	require.NoError(t, err)

	require.Equal(t, 0, a.Compare(b))
	require.True(t, a.Equal(b))
	require.NotEqual(t, 0, a.Compare(c))
	require.False(t, a.Equal(c))
}

func TestResolveReferenceRootRelative(t *testing.T) {
	base, err := urlx.Parse("https://example.com/old/path?x=1")
	require.NoError(t, err)

	next, err := urlx.ResolveReference(base, "/new/path?y=2")
	require.NoError(t, err)
	require.Equal(t, "example.com", next.Host())
	require.Equal(t, "https", next.Protocol())
	require.Equal(t, "/new/path", next.Path())
	require.Equal(t, "y=2", next.Query())
}

func TestResolveReferenceRejectsRelativePath(t *testing.T) {
	base, err := urlx.Parse("https://example.com/old/path")
	require.NoError(t, err)

	_, err = urlx.ResolveReference(base, "relative/path")
	require.Error(t, err)
}
