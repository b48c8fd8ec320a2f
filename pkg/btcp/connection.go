package btcp

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/btcpnet/btcp/pkg/segment"
)

// frameSender is the narrow interface the engine needs from a transport:
// enqueue an already-encoded wire frame. Satisfied by *transport.Transport.
type frameSender interface {
	Send(frame []byte)
}

// maxReassemblySegments and maxDeliveryBytes bound the receiver's internal
// buffers to a fixed capacity.
const (
	maxReassemblySegments = 256
	maxDeliveryBytes      = 4 << 20
	maxSendBufferBytes    = 4 << 20
)

// engine is the shared connection core driven by both Connector and
// Accepter. It owns the state machine, sender, and receiver, and runs one
// background goroutine dispatching inbound segments and firing the
// retransmission timer. bTCP has no ports — a Transport is already bound
// to exactly one peer — and there is no congestion control.
type engine struct {
	mu   sync.Mutex
	cond *sync.Cond // broadcasts on state changes and new delivered data

	cfg Config
	sm  *StateMachine
	snd *sender
	rcv *receiver

	out frameSender
	in  <-chan []byte

	isn     uint16
	peerISN uint16
	finSeq  uint16 // our own FIN's SEQ, set when we send one

	// negoWindow is the window frozen at handshake time: min(w_local,
	// w_peer) for the accepter (which computes the negotiation), or
	// whatever value the accepter sent for the connector. It starts at
	// cfg.Window so the initial SYN still advertises w_local before any
	// negotiation has happened.
	negoWindow uint8

	closingSince time.Time // set when entering StateClosing, to bound the final-ACK wait

	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool // set once close() has torn the engine down

	synAckSeen   chan struct{}
	synSeen      chan struct{}
	ackSeen      chan struct{}
	finAckSeen   chan struct{}
	finalAckSeen chan struct{}
}

func newEngine(cfg Config, out frameSender, in <-chan []byte) *engine {
	e := &engine{
		cfg:          cfg,
		sm:           NewStateMachine(),
		out:          out,
		in:           in,
		isn:          randomISN(),
		negoWindow:   cfg.Window,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		synAckSeen:   make(chan struct{}, 1),
		synSeen:      make(chan struct{}, 1),
		ackSeen:      make(chan struct{}, 1),
		finAckSeen:   make(chan struct{}, 1),
		finalAckSeen: make(chan struct{}, 1),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

func randomISN() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

func (e *engine) state() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sm.State()
}

func (e *engine) close() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	<-e.doneCh
	e.mu.Lock()
	e.stopped = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// prepareAccepted initializes the accepter-side sender/receiver once a SYN
// has been seen, so handleSegment's StateSynRcvd branch has them ready
// before the handshake's final ACK arrives.
func (e *engine) prepareAccepted() (seq, ack uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snd == nil {
		e.snd = newSender(e.isn+1, e.negoWindow, e.cfg.DupAckThreshold)
		e.rcv = newReceiver(e.peerISN+1, e.negoWindow, maxReassemblySegments, maxDeliveryBytes)
	}
	return e.isn, e.peerISN + 1
}

// sendSegment encodes and hands a segment to the transport. Encode errors
// here indicate a programmer bug (oversized payload or reserved flags) and
// are not recoverable at runtime, so they are dropped silently the same
// way a corrupt inbound frame is — this never happens for segments the
// engine itself constructs.
func (e *engine) sendSegment(seg *segment.Segment) {
	wire, err := seg.Encode()
	if err != nil {
		return
	}
	e.out.Send(wire)
}

// sendSyn sends the initial SYN segment (connector side), advertising the
// locally configured window — negotiation hasn't happened yet.
func (e *engine) sendSyn() {
	e.sendSegment(segment.New(e.isn, 0, segment.FlagSYN, e.cfg.Window, nil))
}

// sendSynAck sends a SYN+ACK segment (accepter side), advertising the
// window already negotiated down to min(w_local, w_peer) by handleSegment.
func (e *engine) sendSynAck(seq, ack uint16) {
	e.sendSegment(segment.New(seq, ack, segment.FlagSYN|segment.FlagACK, e.negoWindow, nil))
}

// sendAck sends a bare ACK segment.
func (e *engine) sendAck(seq, ack uint16) {
	e.sendSegment(segment.New(seq, ack, segment.FlagACK, e.negoWindow, nil))
}

// sendFin sends a FIN+ACK segment.
func (e *engine) sendFin(seq, ack uint16) {
	e.sendSegment(segment.New(seq, ack, segment.FlagFIN|segment.FlagACK, e.negoWindow, nil))
}

// run is the engine's single background goroutine: it dispatches inbound
// frames and, once established, pumps newly written data out and fires
// retransmissions on timeout.
func (e *engine) run() {
	defer close(e.doneCh)

	timer := newRetransmitTimer(e.cfg.Clock, e.cfg.TickInterval)
	tick := timer.tick()

	for {
		select {
		case <-e.stopCh:
			return

		case frame, ok := <-e.in:
			if !ok {
				return
			}
			seg, err := segment.Decode(frame)
			if err != nil {
				continue // corrupt frame: silently dropped, never surfaced
			}
			e.handleSegment(seg)

		case now := <-tick:
			e.onTimerTick(now)
			tick = timer.tick()
		}
	}
}

func (e *engine) handleSegment(seg *segment.Segment) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer e.cond.Broadcast()

	switch e.sm.State() {
	case StateAccepting:
		if seg.HasFlag(segment.FlagSYN) && !seg.HasFlag(segment.FlagACK) && seg.Window >= 1 {
			e.peerISN = seg.Seq
			e.negoWindow = minWindow(e.cfg.Window, seg.Window)
			_ = e.sm.Transition(EventRecvSyn)
			select {
			case e.synSeen <- struct{}{}:
			default:
			}
		}

	case StateSynSent:
		if seg.HasFlag(segment.FlagSYN) && seg.HasFlag(segment.FlagACK) && seg.Ack == e.isn+1 && seg.Window >= 1 {
			e.peerISN = seg.Seq
			e.negoWindow = seg.Window // the accepter already computed min(w_local, w_peer)
			e.snd = newSender(e.isn+1, e.negoWindow, e.cfg.DupAckThreshold)
			e.rcv = newReceiver(e.peerISN+1, e.negoWindow, maxReassemblySegments, maxDeliveryBytes)
			_ = e.sm.Transition(EventRecvSynAck)
			select {
			case e.synAckSeen <- struct{}{}:
			default:
			}
		}

	case StateSynRcvd:
		if seg.HasFlag(segment.FlagACK) && !seg.HasFlag(segment.FlagSYN) && seg.Ack == e.isn+1 {
			_ = e.sm.Transition(EventRecvAck)
			select {
			case e.ackSeen <- struct{}{}:
			default:
			}
		}

	case StateEstablished:
		e.handleEstablished(seg)

	case StateFinSent:
		if seg.HasFlag(segment.FlagFIN) && seg.HasFlag(segment.FlagACK) {
			ack, _ := e.rcv.accept(seg.Seq, nil) // no payload on a FIN-only segment
			e.sendAck(e.snd.nextSeq, ack)
			_ = e.sm.Transition(EventRecvFin)
			select {
			case e.finAckSeen <- struct{}{}:
			default:
			}
		}

	case StateClosing:
		switch {
		case seg.HasFlag(segment.FlagACK) && !seg.HasFlag(segment.FlagFIN) && seg.Ack == e.finSeq+1:
			_ = e.sm.Transition(EventRecvAck)
			select {
			case e.finalAckSeen <- struct{}{}:
			default:
			}
		case seg.HasFlag(segment.FlagFIN):
			// Our own FIN+ACK reply was dropped and the peer retransmitted
			// its FIN; re-ack without re-transitioning.
			ack, _ := e.rcv.accept(seg.Seq, nil)
			e.sendFin(e.finSeq, ack)
		}
	}
}

// handleEstablished processes a segment while Established: ACK, data, and
// a peer-initiated FIN can all arrive (on the same segment, for ACK+data).
func (e *engine) handleEstablished(seg *segment.Segment) {
	if seg.HasFlag(segment.FlagSYN) {
		// A SYN+ACK only arrives here if the peer retransmitted the
		// handshake's second leg — our own final ACK must have been lost
		// after we already moved to Established. Re-ACK idempotently using
		// the stored ISNs, per spec.md §4.3, without touching sender/
		// receiver state.
		if seg.HasFlag(segment.FlagACK) && seg.Ack == e.isn+1 {
			e.sendAck(e.isn+1, e.peerISN+1)
		}
		return
	}

	if seg.HasFlag(segment.FlagACK) {
		if retransmit := e.snd.onAck(seg.Ack); retransmit != nil {
			e.sendSegment(retransmit)
		}
		// Freeing window space lets previously buffered pending bytes go
		// out now, rather than waiting for the next application Send call.
		e.fillLocked()
	}

	if len(seg.Payload) > 0 {
		// A full reassembly set or delivery buffer means accept reports
		// false: spec.md §4.5 requires staying silent in that case so the
		// sender's own timeout (not a fast-retransmit-triggering repeat
		// ACK) is what applies backpressure.
		if ack, accepted := e.rcv.accept(seg.Seq, seg.Payload); accepted {
			e.sendAck(e.snd.nextSeq, ack)
		}
	}

	if seg.HasFlag(segment.FlagFIN) {
		ack, _ := e.rcv.accept(seg.Seq, nil)
		e.finSeq = e.snd.nextSeq
		e.snd.nextSeq++
		e.sendFin(e.finSeq, ack)
		_ = e.sm.Transition(EventRecvFin)
		e.closingSince = e.cfg.Clock.Now()
	}
}

func (e *engine) onTimerTick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// The responder does not wait forever for the initiator's final ACK
	// — if it hasn't arrived within 2x the configured timeout, close
	// anyway rather than leaking the connection.
	if e.sm.State() == StateClosing && now.Sub(e.closingSince) >= 2*e.cfg.Timeout {
		e.sm.Set(StateClosed)
		e.cond.Broadcast()
		return
	}

	if e.sm.State() != StateEstablished || e.snd == nil {
		return
	}

	for _, seg := range e.snd.expired(now, e.cfg.Timeout) {
		e.sendSegment(seg)
	}
	e.fillLocked()
	e.cond.Broadcast()
}

// send accepts up to len(data) bytes into the send buffer, blocking only
// while that buffer is completely full (spec's "send blocks only on
// send-buffer space"), and returns the number of bytes actually accepted —
// which may be less than len(data) if only part of it fit.
func (e *engine) send(data []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.stopped {
			return 0, ErrConnectionClosed
		}
		if e.sm.State() != StateEstablished {
			return 0, ErrConnectionClosed
		}
		if e.snd.pendingLen() < maxSendBufferBytes {
			break
		}
		e.cond.Wait()
	}

	room := maxSendBufferBytes - e.snd.pendingLen()
	n := len(data)
	if n > room {
		n = room
	}
	e.snd.write(data[:n])
	e.fillLocked()
	return n, nil
}

// fillLocked forms and sends as many new data segments as the frozen
// window currently allows. Callers must already hold e.mu. It is called
// both right after application writes (send) and whenever window space
// frees up (an ACK advancing send_base, or a timer tick), so pending bytes
// from a single large Send never sit stuck behind a full window.
func (e *engine) fillLocked() {
	if e.sm.State() != StateEstablished || e.snd == nil || e.rcv == nil {
		return
	}

	var out []*segment.Segment
	e.snd.fill(e.rcv.rcvNext, e.negoWindow, e.cfg.Clock.Now(), &out)
	for _, seg := range out {
		e.sendSegment(seg)
	}
}
