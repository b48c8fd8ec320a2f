package btcp

import (
	"sync"
	"time"

	"github.com/btcpnet/btcp/pkg/segment"
)

// sendStats counts internal events that are never surfaced as errors, only
// exposed for diagnostics.
type sendStats struct {
	segmentsSent        int
	retransmissions     int
	fastRetransmissions int
	duplicateAcksSeen   int
}

// sender implements the sliding-window ARQ half of the connection: it
// slices application data into payload-sized chunks, assigns each a SEQ,
// keeps outstanding segments in a retransmit queue, and reacts to
// cumulative ACKs, duplicate ACKs, and timer expiry.
//
// There is no congestion control — only the fixed, negotiated window — and
// the duplicate-ACK fast-retransmit threshold is tunable via
// DupAckThreshold rather than hardcoded.
type sender struct {
	mu sync.Mutex

	sendBase uint16 // oldest unacknowledged SEQ
	nextSeq  uint16 // SEQ to assign to the next new segment
	window   uint8  // frozen at handshake time

	pending []byte // application bytes not yet chunked into a segment

	queue           *retransmitQueue
	dupAckCount     int
	dupAckThreshold int
	lastAckSeen     uint16
	haveLastAck     bool

	stats sendStats
}

func newSender(isn uint16, window uint8, dupAckThreshold int) *sender {
	return &sender{
		sendBase:        isn,
		nextSeq:         isn,
		window:          window,
		queue:           newRetransmitQueue(),
		dupAckThreshold: dupAckThreshold,
	}
}

// outstanding reports how many segments are sent but not yet ACKed.
func (s *sender) outstanding() int {
	return int(s.nextSeq - s.sendBase)
}

// write appends application bytes to the pending buffer; the caller then
// calls fill to turn as much of it as the window allows into segments.
func (s *sender) write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, data...)
}

// pendingLen reports how many application bytes are waiting to be chunked
// into segments. Used by the engine to block Send once the send buffer is
// full rather than growing it without bound.
func (s *sender) pendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fill emits newly built data segments (ACK piggybacked with rcvNext and
// rcvWindow) while the window and pending buffer both allow it, appending
// them to out and recording each in the retransmit queue at now.
func (s *sender) fill(rcvNext uint16, rcvWindow uint8, now time.Time, out *[]*segment.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) > 0 && s.outstanding() < int(s.window) {
		n := len(s.pending)
		if n > PayloadSize {
			n = PayloadSize
		}
		chunk := s.pending[:n]
		s.pending = s.pending[n:]

		seg := segment.New(s.nextSeq, rcvNext, segment.FlagACK, rcvWindow, chunk)
		s.queue.add(s.nextSeq, seg, now)
		*out = append(*out, seg)
		s.stats.segmentsSent++

		s.nextSeq++
	}
}

// onAck processes an incoming ACK number, returning a segment to fast
// retransmit immediately (or nil). ack is cumulative: every SEQ strictly
// before it is considered delivered.
func (s *sender) onAck(ack uint16) *segment.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveLastAck && ack == s.lastAckSeen && ack == s.sendBase {
		s.dupAckCount++
		s.stats.duplicateAcksSeen++
		if s.dupAckCount == s.dupAckThreshold {
			s.dupAckCount = 0
			s.stats.fastRetransmissions++
			return s.queue.oldest()
		}
		return nil
	}

	if seqAfter(ack, s.sendBase) || ack == s.sendBase {
		if ack != s.sendBase {
			s.queue.removeThrough(ack)
			s.sendBase = ack
		}
		s.dupAckCount = 0
	}

	s.lastAckSeen = ack
	s.haveLastAck = true
	return nil
}

// expired returns segments whose retransmit timer has fired, and marks
// them resent at now.
func (s *sender) expired(now time.Time, timeout time.Duration) []*segment.Segment {
	entries := s.queue.expired(now, timeout)
	segs := make([]*segment.Segment, 0, len(entries))
	for _, e := range entries {
		s.queue.markResent(e.seq, now)
		s.stats.retransmissions++
		segs = append(segs, e.seg)
	}
	return segs
}

// idle reports whether every byte written has been both sent and ACKed.
func (s *sender) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0 && s.queue.len() == 0
}
