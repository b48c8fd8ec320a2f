package btcp

import "sync"

// Connector is the active-open half of a bTCP connection: it drives the
// handshake's SYN, sends application data, and initiates termination,
// retrying both the handshake and teardown over a bounded loop of
// cfg.Timeout spaced attempts, up to cfg.MaxRetries.
type Connector struct {
	mu        sync.Mutex
	e         *engine
	connected bool
	closed    bool
}

// NewConnector builds a Connector over an already-bound transport. out is
// where encoded segments are sent; in delivers raw inbound frames from the
// peer.
func NewConnector(cfg Config, out frameSender, in <-chan []byte) *Connector {
	return &Connector{e: newEngine(cfg.normalize(), out, in)}
}

// Connect performs the three-way handshake: send SYN, wait for SYN+ACK,
// send the final ACK. It retries up to cfg.MaxRetries times, spaced
// cfg.Timeout apart, before giving up.
func (c *Connector) Connect() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	e := c.e
	e.mu.Lock()
	_ = e.sm.Transition(EventConnect)
	e.mu.Unlock()

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		e.sendSyn()
		select {
		case <-e.synAckSeen:
			// Third leg of the handshake: SND.NXT already sits at isn+1
			// (set when handleSegment created the sender), so the final
			// ACK carries the same SEQ the first data segment will.
			e.mu.Lock()
			ack := e.rcv.rcvNext
			seq := e.snd.nextSeq
			e.mu.Unlock()
			e.sendAck(seq, ack)

			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			return nil

		case <-e.cfg.Clock.After(e.cfg.Timeout):
			continue

		case <-e.stopCh:
			return ErrConnectionClosed
		}
	}
	return ErrHandshakeFailed
}

// Send hands data to the connection's send buffer, chunking and
// transmitting as much as the frozen window currently allows. It blocks
// only while the send buffer is completely full, and returns the number of
// bytes actually accepted, which may be less than len(data).
func (c *Connector) Send(data []byte) (int, error) {
	c.mu.Lock()
	connected, closed := c.connected, c.closed
	c.mu.Unlock()

	if closed {
		return 0, ErrConnectionClosed
	}
	if !connected {
		return 0, ErrNotConnected
	}

	return c.e.send(data)
}

// Shutdown blocks until every previously sent byte has been cumulatively
// ACKed, then initiates termination: send FIN+ACK, wait for the peer's
// FIN+ACK. The peer's own reply is ACKed by the engine's background
// goroutine, so Shutdown returns once that exchange completes.
func (c *Connector) Shutdown() error {
	c.mu.Lock()
	connected, closed := c.connected, c.closed
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	if closed {
		return ErrConnectionClosed
	}

	e := c.e

	// Drain the retransmission queue before starting the three-way
	// termination. The engine's own timer-driven retransmission keeps
	// running while still Established.
	for {
		e.mu.Lock()
		idle := e.snd.idle()
		established := e.sm.State() == StateEstablished
		e.mu.Unlock()
		if idle || !established {
			break
		}
		select {
		case <-e.cfg.Clock.After(e.cfg.Timeout):
		case <-e.stopCh:
			return ErrConnectionClosed
		}
	}

	e.mu.Lock()
	if err := e.sm.Transition(EventShutdown); err != nil {
		e.mu.Unlock()
		return ErrConnectionClosed
	}
	seq := e.snd.nextSeq
	ack := e.rcv.rcvNext
	e.mu.Unlock()

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		e.sendFin(seq, ack)
		select {
		case <-e.finAckSeen:
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return nil
		case <-e.cfg.Clock.After(e.cfg.Timeout):
			continue

		case <-e.stopCh:
			return ErrConnectionClosed
		}
	}
	return ErrTerminationTimedOut
}

// Stats reports the sender's diagnostic counters: segments sent, timeout
// and fast retransmissions, and duplicate ACKs seen. Frame-invalid and
// queue-overflow conditions never surface as errors and are not counted
// here either; receive-buffer overflow shows up in RecvStats.DroppedFull
// and transport queue overflow in transport.Stats.
type Stats struct {
	SegmentsSent        int
	Retransmissions     int
	FastRetransmissions int
	DuplicateAcksSeen   int
}

// Stats returns a snapshot of the sender's internal counters.
func (c *Connector) Stats() Stats {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snd == nil {
		return Stats{}
	}
	return Stats{
		SegmentsSent:        e.snd.stats.segmentsSent,
		Retransmissions:     e.snd.stats.retransmissions,
		FastRetransmissions: e.snd.stats.fastRetransmissions,
		DuplicateAcksSeen:   e.snd.stats.duplicateAcksSeen,
	}
}

// Close releases the connector's background goroutine and any resources
// it holds. It does not perform a graceful shutdown; call Shutdown first
// for that.
func (c *Connector) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.e.close()
	return nil
}
