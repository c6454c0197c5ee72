// Package connectutil resolves a host to candidate endpoints and dials the
// first one that accepts a TCP connection, disabling Nagle's algorithm on
// success. It is the shared connect step behind both the blocking and the
// asynchronous HTTP transport paths.
package connectutil

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/WhileEndless/urlstream/pkg/errors"
	"github.com/WhileEndless/urlstream/pkg/timing"
)

// Resolve returns the candidate IP addresses for host. A bracketed IPv6
// literal or a bare IP address resolves to itself without touching the
// resolver. timer, if non-nil, is marked for the DNSLookup phase even when
// resolution is skipped (an IP literal reports a zero-length phase).
func Resolve(ctx context.Context, resolver *net.Resolver, host string, timeout time.Duration, timer *timing.Timer) ([]net.IP, error) {
	if timer != nil {
		timer.StartDNS()
		defer timer.EndDNS()
	}

	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := resolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return nil, errors.NewDNSError(host, err)
	}
	if len(addrs) == 0 {
		return nil, errors.NewDNSError(host, errors.NewValidationError("no IP addresses found"))
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

// DialFirst iterates ips in order, attempting a TCP connect to each at port,
// returning the first successful connection with TCP_NODELAY set. aborted is
// polled between attempts so a concurrent Close can cut the loop short with
// ErrOperationAborted.
func DialFirst(ctx context.Context, ips []net.IP, port uint16, timeout time.Duration, aborted func() bool, timer *timing.Timer) (net.Conn, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	timer.StartTCP()
	defer timer.EndTCP()

	dialer := &net.Dialer{Timeout: timeout}
	var lastErr error

	for _, ip := range ips {
		if aborted != nil && aborted() {
			return nil, errors.ErrOperationAborted
		}

		addr := net.JoinHostPort(ip.String(), strconv.Itoa(int(port)))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		return conn, nil
	}

	if lastErr == nil {
		lastErr = errors.NewValidationError("no endpoints to connect to")
	}
	return nil, lastErr
}
