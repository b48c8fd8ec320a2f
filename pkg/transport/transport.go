// Package transport runs the two datagram I/O workers that move bTCP
// segments between a real net.PacketConn and the connection engine in
// pkg/btcp, which never touches a socket directly.
package transport

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/btcpnet/btcp/pkg/segment"
)

// queueSize bounds each direction's channel: a full queue means the peer
// on that side isn't keeping up, so new datagrams are silently dropped
// rather than blocking the I/O goroutine.
const queueSize = 1000

// readDeadline bounds each blocking read so the read-loop goroutine can
// still observe conn closure promptly instead of blocking forever.
const readDeadline = time.Second

// Transport owns a bound net.PacketConn to a single remote peer and runs
// the read/write goroutines ferrying wire frames between it and two
// bounded channels. One Transport serves exactly one peer pair.
type Transport struct {
	conn     net.PacketConn
	remoteMu sync.RWMutex
	remote   net.Addr // nil until known, for an accepter listening before any peer has appeared
	logger   *zap.SugaredLogger

	inbound  chan []byte
	outbound chan []byte

	stopRead  chan struct{}
	stopWrite chan struct{}
	done      chan struct{}

	droppedInbound  atomic.Int64
	droppedOutbound atomic.Int64
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithLogger attaches a logger; a nil logger (the default) disables
// logging entirely rather than panicking.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithTOS sets the IPv4 type-of-service byte on outgoing datagrams, used
// by the btcp-send front end to mark bTCP traffic for low-latency handling.
// This is the one place golang.org/x/net/ipv4 is exercised: bTCP otherwise
// only ever sees the net.PacketConn abstraction.
func WithTOS(tos int) Option {
	return func(t *Transport) {
		if udpConn, ok := t.conn.(*net.UDPConn); ok {
			_ = ipv4.NewConn(udpConn).SetTOS(tos)
		}
	}
}

// New wraps conn, an already-bound socket, for communication with a single
// remote peer, and starts its read/write goroutines. remote may be nil
// for an accepter that hasn't heard from its peer yet; the first inbound
// datagram's source address is then adopted automatically.
func New(conn net.PacketConn, remote net.Addr, opts ...Option) *Transport {
	t := &Transport{
		conn:     conn,
		remote:   remote,
		inbound:  make(chan []byte, queueSize),
		outbound: make(chan []byte, queueSize),
		stopRead: make(chan struct{}),
		stopWrite: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = zap.NewNop().Sugar()
	}

	go t.readLoop()
	go t.writeLoop()
	return t
}

// Inbound returns the channel of raw, fixed-size wire frames read from the
// socket. The connection engine is responsible for decoding them.
func (t *Transport) Inbound() <-chan []byte {
	return t.inbound
}

// RemoteAddr returns the peer address, which may still be nil if
// constructed without one and no datagram has arrived yet.
func (t *Transport) RemoteAddr() net.Addr {
	t.remoteMu.RLock()
	defer t.remoteMu.RUnlock()
	return t.remote
}

// Send enqueues a pre-encoded wire frame for transmission. It never
// blocks: if the outbound queue is full, the frame is dropped and counted,
// matching the no-congestion-control, no-backpressure contract bTCP's
// retransmission timer already compensates for.
func (t *Transport) Send(frame []byte) {
	select {
	case t.outbound <- frame:
	default:
		t.droppedOutbound.Add(1)
		t.logger.Debugw("outbound queue full, dropping frame", "size", len(frame))
	}
}

// Close stops both goroutines and closes the underlying socket.
func (t *Transport) Close() error {
	close(t.stopRead)
	close(t.stopWrite)
	err := t.conn.Close()
	<-t.done
	return err
}

func (t *Transport) readLoop() {
	buf := make([]byte, segment.Size)
	for {
		select {
		case <-t.stopRead:
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, from, err := t.conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Debugw("read error", "error", err)
			continue
		}
		if n != segment.Size {
			continue
		}

		t.remoteMu.Lock()
		if t.remote == nil {
			t.remote = from
		}
		t.remoteMu.Unlock()

		frame := make([]byte, segment.Size)
		copy(frame, buf[:n])

		select {
		case t.inbound <- frame:
		default:
			t.droppedInbound.Add(1)
			t.logger.Debugw("inbound queue full, dropping frame")
		}
	}
}

func (t *Transport) writeLoop() {
	defer close(t.done)
	for {
		select {
		case <-t.stopWrite:
			return
		case frame := <-t.outbound:
			remote := t.RemoteAddr()
			if remote == nil {
				t.logger.Debugw("no known peer yet, dropping outbound frame")
				continue
			}
			if _, err := t.conn.WriteTo(frame, remote); err != nil {
				t.logger.Debugw("write error", "error", err)
			}
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Stats reports counters useful for diagnostics; never part of the error
// path.
type Stats struct {
	DroppedInbound  int
	DroppedOutbound int
}

// Stats returns a snapshot of the transport's drop counters.
func (t *Transport) Stats() Stats {
	return Stats{
		DroppedInbound:  int(t.droppedInbound.Load()),
		DroppedOutbound: int(t.droppedOutbound.Load()),
	}
}
