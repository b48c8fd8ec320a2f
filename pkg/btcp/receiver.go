package btcp

import "sync"

// recvStats counts internal events that are never surfaced as errors.
type recvStats struct {
	segmentsAccepted int
	duplicatesSeen   int
	outOfOrderSeen   int
	droppedFull      int
}

// receiver implements the reassembly half of the connection: it tracks
// rcvNext, buffers out-of-order segments in a reassembly set, and exposes
// delivered, in-order bytes through a bounded delivery buffer that
// Accepter.Recv reads from.
type receiver struct {
	mu sync.Mutex

	rcvNext uint16
	window  uint8 // informational to peers; never renegotiated

	reasm   *reassembly
	delivery []byte
	maxDelivery int

	stats recvStats
}

func newReceiver(rcvNext uint16, window uint8, maxReassembly, maxDelivery int) *receiver {
	return &receiver{
		rcvNext:     rcvNext,
		window:      window,
		reasm:       newReassembly(maxReassembly),
		maxDelivery: maxDelivery,
	}
}

// accept processes one inbound data segment, returning the ACK number
// that would be sent in reply and whether the segment was actually
// accepted. A segment dropped for a full delivery buffer or full
// reassembly set is not accepted: the caller must stay silent rather
// than ACK, so the sender's own retransmission timeout — not a
// fast-retransmit-triggering repeat ACK — is what applies backpressure.
func (r *receiver) accept(seq uint16, payload []byte) (ackToSend uint16, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case seq == r.rcvNext:
		if len(r.delivery)+len(payload) > r.maxDelivery {
			r.stats.droppedFull++
			return r.rcvNext, false
		}
		r.delivery = append(r.delivery, payload...)
		r.rcvNext++
		r.stats.segmentsAccepted++

		drained, _ := r.reasm.drain(r.rcvNext)
		for i, p := range drained {
			if len(r.delivery)+len(p) > r.maxDelivery {
				// Put back what doesn't fit: it stays buffered and rcvNext
				// (hence the ACK) does not move past it.
				for j, rest := range drained[i:] {
					r.reasm.insert(r.rcvNext+uint16(j), rest)
				}
				break
			}
			r.delivery = append(r.delivery, p...)
			r.rcvNext++
		}

		return r.rcvNext, true

	case seqBefore(seq, r.rcvNext):
		r.stats.duplicatesSeen++
		return r.rcvNext, true

	default:
		r.stats.outOfOrderSeen++
		if !r.reasm.insert(seq, payload) {
			r.stats.droppedFull++
			return r.rcvNext, false
		}
		return r.rcvNext, true
	}
}

// read drains up to len(buf) delivered bytes into buf, returning the
// number of bytes copied.
func (r *receiver) read(buf []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := copy(buf, r.delivery)
	r.delivery = r.delivery[n:]
	return n
}

// available reports how many delivered bytes are waiting to be read.
func (r *receiver) available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delivery)
}
