// Package constants collects the default tunables shared across the
// transport packages, so a single place governs timeouts and buffer sizing
// defaults.
package constants

import "time"

// Connection timeouts, mirrored by dispatcher.DefaultTimeouts.
const (
	DefaultConnTimeout  = 10 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// HTTP limits.
const (
	// MaxHeaderBlockSize caps how many bytes httpheaders.ReadHeaderBlock will
	// consume before declaring the response malformed.
	MaxHeaderBlockSize = 64 * 1024
	// MaxContentLength is an upper bound for a trusted Content-Length.
	// httpheaders.ReadHeaderBlock does not check it.
	MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
)

// Buffer limits. No package reads these: pkg/buffer has its own
// DefaultMemoryLimit, and httpstream sizes its request buffer itself.
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024   // 4MB
	MaxRawBufferSize    = 100 * 1024 * 1024 // 100MB cap for request/reply buffers
)
