// Package httpheaders tokenizes an HTTP/1.x status line and header block,
// extracting exactly the fields the dispatcher needs: Content-Type,
// Content-Length, and Location. Matching is case-insensitive and the last
// occurrence of a repeated header wins, mirroring a linear scan that
// overwrites as it goes.
package httpheaders

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/WhileEndless/urlstream/pkg/errors"
)

// StatusLine is the parsed form of "HTTP/<major>.<minor> <code> <reason>".
type StatusLine struct {
	Major  int
	Minor  int
	Code   int
	Reason string
}

// ParseStatusLine parses a single status line (without the trailing CRLF).
func ParseStatusLine(line string) (StatusLine, error) {
	var sl StatusLine

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return sl, errors.NewProtocolError(1, "malformed status line: "+line, nil)
	}

	if !strings.HasPrefix(parts[0], "HTTP/") {
		return sl, errors.NewProtocolError(1, "malformed status line version: "+parts[0], nil)
	}
	ver := strings.TrimPrefix(parts[0], "HTTP/")
	dot := strings.IndexByte(ver, '.')
	if dot < 0 {
		return sl, errors.NewProtocolError(1, "malformed status line version: "+parts[0], nil)
	}
	major, err := strconv.Atoi(ver[:dot])
	if err != nil {
		return sl, errors.NewProtocolError(1, "malformed status line version: "+parts[0], nil)
	}
	minor, err := strconv.Atoi(ver[dot+1:])
	if err != nil {
		return sl, errors.NewProtocolError(1, "malformed status line version: "+parts[0], nil)
	}

	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return sl, errors.NewProtocolError(1, "malformed status code: "+parts[1], nil)
	}

	sl.Major, sl.Minor, sl.Code = major, minor, code
	if len(parts) == 3 {
		sl.Reason = parts[2]
	}

	return sl, nil
}

// Headers is the result of parsing a header block.
type Headers struct {
	Raw              []byte // exact bytes from after the status line's CRLF through the blank line, inclusive
	ContentType      string
	ContentLength    int64
	HasContentLength bool
	Location         string
}

// ReadHeaderBlock reads from r until the blank-line terminator and extracts
// Content-Type, Content-Length, and Location. Header names are matched
// case-insensitively; a repeated header's last occurrence wins.
func ReadHeaderBlock(r *bufio.Reader, maxBytes int) (Headers, error) {
	var h Headers
	var raw strings.Builder
	total := 0

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return Headers{}, errors.NewIOError("reading headers", err)
		}

		total += len(line)
		if maxBytes > 0 && total > maxBytes {
			return Headers{}, errors.NewProtocolError(2, "headers exceed maximum size", nil)
		}
		raw.WriteString(line)

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}

		name, value, ok := splitHeaderLine(trimmed)
		if !ok {
			return Headers{}, errors.NewProtocolError(2, "malformed header line: "+trimmed, nil)
		}

		switch strings.ToLower(name) {
		case "content-type":
			h.ContentType = value
		case "content-length":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return Headers{}, errors.NewProtocolError(2, "malformed content-length: "+value, nil)
			}
			h.ContentLength = n
			h.HasContentLength = true
		case "location":
			h.Location = value
		}
	}

	h.Raw = []byte(raw.String())
	return h, nil
}

func splitHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// ReadLine reads a single CRLF-or-LF-terminated line, trimming the
// terminator.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], nil
	}
	return strings.TrimSuffix(line, "\n"), nil
}
