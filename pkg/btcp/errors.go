package btcp

import "errors"

// Sentinel errors surfaced to application code. Frame-invalid,
// unexpected-flag, and queue-overflow conditions are never surfaced this
// way — those are silently dropped. Receive-buffer overflow is counted in
// RecvStats.DroppedFull and transport queue overflow in transport.Stats;
// invalid frames and unexpected flags are not counted.
var (
	// ErrHandshakeFailed is returned by Connect/Accept when the retry
	// budget is exhausted before the handshake completes.
	ErrHandshakeFailed = errors.New("btcp: handshake failed")

	// ErrTerminationTimedOut is returned by Shutdown when the retry
	// budget is exhausted before the peer acknowledges termination.
	ErrTerminationTimedOut = errors.New("btcp: termination timed out")

	// ErrAlreadyConnected is returned by Connect on a Connector that has
	// already established a connection.
	ErrAlreadyConnected = errors.New("btcp: already connected")

	// ErrNotConnected is returned by Send/Recv before a connection has
	// been established.
	ErrNotConnected = errors.New("btcp: not connected")

	// ErrConnectionClosed is returned by Send/Recv/Shutdown after the
	// connection has torn down.
	ErrConnectionClosed = errors.New("btcp: connection closed")

	// ErrSendBufferClosed is declared for callers, but no function in this
	// package returns it: Send reports a torn-down connection as
	// ErrConnectionClosed, and a transport that drops outbound segments is
	// not reported to Send at all.
	ErrSendBufferClosed = errors.New("btcp: send buffer closed")
)
