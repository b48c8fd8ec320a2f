package btcp

import "sync"

// Accepter is the passive-open half of a bTCP connection: it waits for a
// SYN, replies with SYN+ACK, and delivers in-order bytes to the
// application. bTCP has no listen backlog — one Accepter serves exactly
// one peer, retrying the handshake reply on a bounded timer.
type Accepter struct {
	mu       sync.Mutex
	e        *engine
	accepted bool
}

// NewAccepter builds an Accepter over an already-bound transport.
func NewAccepter(cfg Config, out frameSender, in <-chan []byte) *Accepter {
	return &Accepter{e: newEngine(cfg.normalize(), out, in)}
}

// Accept blocks until a SYN arrives, then drives the rest of the
// handshake: reply with SYN+ACK, retrying up to cfg.MaxRetries times
// until the connector's final ACK arrives.
func (a *Accepter) Accept() error {
	e := a.e

	e.mu.Lock()
	_ = e.sm.Transition(EventListen)
	e.mu.Unlock()

	select {
	case <-e.synSeen:
	case <-e.stopCh:
		return ErrConnectionClosed
	}

	seq, ack := e.prepareAccepted()

	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		e.sendSynAck(seq, ack)
		select {
		case <-e.ackSeen:
			a.mu.Lock()
			a.accepted = true
			a.mu.Unlock()
			return nil
		case <-e.cfg.Clock.After(e.cfg.Timeout):
			continue

		case <-e.stopCh:
			return ErrConnectionClosed
		}
	}
	return ErrHandshakeFailed
}

// Recv blocks until at least one byte of in-order data has been
// delivered, returning the number of bytes copied into buf. It returns
// ErrConnectionClosed once the peer has closed its side and no more data
// remains.
func (a *Accepter) Recv(buf []byte) (int, error) {
	a.mu.Lock()
	accepted := a.accepted
	a.mu.Unlock()
	if !accepted {
		return 0, ErrNotConnected
	}

	e := a.e
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.rcv != nil {
			if n := e.rcv.read(buf); n > 0 {
				return n, nil
			}
		}

		state := e.sm.State()
		if e.stopped || (state != StateEstablished && state != StateClosing) {
			return 0, ErrConnectionClosed
		}
		e.cond.Wait()
	}
}

// RecvStats reports counters useful for diagnostics: segments accepted,
// duplicates, out-of-order arrivals, and drops due to a full buffer.
type RecvStats struct {
	SegmentsAccepted int
	DuplicatesSeen   int
	OutOfOrderSeen   int
	DroppedFull      int
}

// Stats returns a snapshot of the receiver's internal counters.
func (a *Accepter) Stats() RecvStats {
	e := a.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rcv == nil {
		return RecvStats{}
	}
	return RecvStats{
		SegmentsAccepted: e.rcv.stats.segmentsAccepted,
		DuplicatesSeen:   e.rcv.stats.duplicatesSeen,
		OutOfOrderSeen:   e.rcv.stats.outOfOrderSeen,
		DroppedFull:      e.rcv.stats.droppedFull,
	}
}

// Close releases the accepter's background goroutine and any resources
// it holds.
func (a *Accepter) Close() error {
	a.e.close()
	return nil
}
