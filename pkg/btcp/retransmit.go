package btcp

import (
	"sync"
	"time"

	"github.com/btcpnet/btcp/pkg/segment"
)

// retransmitEntry is one outstanding, unacknowledged data segment.
type retransmitEntry struct {
	seq        uint16
	seg        *segment.Segment
	sentAt     time.Time
	retryCount int
}

// retransmitQueue holds segments sent but not yet cumulatively ACKed,
// keyed by their starting SEQ, in send order.
type retransmitQueue struct {
	mu      sync.Mutex
	entries []*retransmitEntry
}

func newRetransmitQueue() *retransmitQueue {
	return &retransmitQueue{}
}

// add records a freshly sent segment.
func (q *retransmitQueue) add(seq uint16, seg *segment.Segment, sentAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, &retransmitEntry{seq: seq, seg: seg, sentAt: sentAt})
}

// removeThrough drops every entry whose SEQ is covered by a cumulative ACK
// of ackSeq (i.e. seq < ackSeq in modular space).
func (q *retransmitQueue) removeThrough(ackSeq uint16) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0:0]
	for _, e := range q.entries {
		if !seqBefore(e.seq, ackSeq) {
			kept = append(kept, e)
		}
	}
	q.entries = kept
}

// expired returns entries whose last send is at least timeout before now,
// oldest first.
func (q *retransmitQueue) expired(now time.Time, timeout time.Duration) []*retransmitEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*retransmitEntry
	for _, e := range q.entries {
		if now.Sub(e.sentAt) >= timeout {
			out = append(out, e)
		}
	}
	return out
}

// markResent bumps an entry's sentAt and retry counter after a retransmit.
func (q *retransmitQueue) markResent(seq uint16, sentAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.seq == seq {
			e.sentAt = sentAt
			e.retryCount++
			return
		}
	}
}

// oldest returns the segment with the lowest outstanding SEQ, or nil if the
// queue is empty. This is the segment fast retransmit resends.
func (q *retransmitQueue) oldest() *segment.Segment {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0].seg
}

// len reports how many segments are outstanding.
func (q *retransmitQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
