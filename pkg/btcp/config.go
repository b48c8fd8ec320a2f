package btcp

import (
	"time"

	"github.com/btcpnet/btcp/pkg/segment"
)

// Wire-format constants, re-exported from segment for callers that only
// import btcp.
const (
	PayloadSize = segment.PayloadSize
	HeaderSize  = segment.HeaderSize
	SegmentSize = segment.Size
)

// Defaults applied by Config.normalize when a field is left at its zero
// value.
const (
	// DefaultWindow is the number of outstanding segments negotiated at
	// handshake time when the caller does not request a specific window.
	// The window is frozen for the life of the connection: it is never
	// renegotiated after the handshake.
	DefaultWindow uint8 = 100

	// DefaultTimeout is the fixed retransmission timeout used when the
	// caller does not request a specific value. There is no adaptive
	// RTO estimation or backoff.
	DefaultTimeout = 100 * time.Millisecond

	// TimerTickMs is the default periodic tick interval, in milliseconds,
	// that drives the engine's idle timeout scans. It is independent of
	// Timeout: the tick just sets how often the engine polls for expired
	// retransmissions, not how long a segment waits before it is
	// considered expired.
	TimerTickMs = 100

	// DefaultTickInterval is TimerTickMs as a time.Duration.
	DefaultTickInterval = TimerTickMs * time.Millisecond

	// DefaultMaxRetries bounds the handshake and termination retry loops,
	// so a permanently unreachable peer eventually surfaces an error
	// instead of hanging the caller forever.
	DefaultMaxRetries = 16

	// DupAckThreshold is the number of duplicate ACKs that trigger a
	// fast retransmit. Classic TCP uses 3; bTCP fires after a single
	// duplicate ACK, an intentional, tunable deviation.
	DupAckThreshold = 1
)

// Config holds the parameters negotiated or assumed for one connection.
// It is a plain struct filled in by the caller, not a builder.
// NewConnector and NewAccepter replace zero-valued fields with defaults;
// no other validation is done.
type Config struct {
	// Window is the number of segments the sender may have outstanding
	// at once. Negotiated at handshake time and frozen thereafter.
	Window uint8

	// Timeout is the fixed retransmission timeout.
	Timeout time.Duration

	// TickInterval is how often the engine polls for expired
	// retransmissions. Ticks keep firing while data is flowing, and ACK
	// processing does not run the expiry scan itself, so this interval
	// bounds how late an expired segment is resent. Defaults to
	// DefaultTickInterval, or to Timeout if that is shorter.
	TickInterval time.Duration

	// MaxRetries bounds the handshake and termination retry loops.
	MaxRetries int

	// DupAckThreshold is the number of duplicate ACKs needed to trigger
	// a fast retransmit.
	DupAckThreshold int

	// Clock is the time source; defaults to SystemClock.
	Clock Clock
}

// normalize fills zero-valued fields with their defaults and returns the
// resulting Config. The receiver is not mutated.
func (c Config) normalize() Config {
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TickInterval == 0 {
		// The tick must be at least as fine as the retransmission timeout
		// itself, or a short-Timeout caller (spec's "timeout = 1ms stress"
		// boundary case) would sit on expired segments for up to
		// DefaultTickInterval before the engine notices.
		c.TickInterval = DefaultTickInterval
		if c.Timeout < c.TickInterval {
			c.TickInterval = c.Timeout
		}
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DupAckThreshold == 0 {
		c.DupAckThreshold = DupAckThreshold
	}
	if c.Clock == nil {
		c.Clock = SystemClock
	}
	return c
}
