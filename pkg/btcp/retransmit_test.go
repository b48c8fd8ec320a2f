package btcp

import (
	"testing"
	"time"

	"github.com/btcpnet/btcp/pkg/segment"
)

func seg(seq uint16) *segment.Segment {
	return segment.New(seq, 0, segment.FlagACK, 100, []byte("x"))
}

func TestRetransmitQueueRemoveThrough(t *testing.T) {
	q := newRetransmitQueue()
	now := time.Unix(0, 0)
	q.add(10, seg(10), now)
	q.add(11, seg(11), now)
	q.add(12, seg(12), now)

	q.removeThrough(12)

	if q.len() != 1 {
		t.Fatalf("len() = %d, want 1", q.len())
	}
	if got := q.oldest(); got == nil || got.Seq != 12 {
		t.Fatalf("oldest() = %v, want seq 12", got)
	}
}

func TestRetransmitQueueRemoveThroughWraparound(t *testing.T) {
	q := newRetransmitQueue()
	now := time.Unix(0, 0)
	q.add(65534, seg(65534), now)
	q.add(65535, seg(65535), now)
	q.add(0, seg(0), now)
	q.add(1, seg(1), now)

	q.removeThrough(0)

	// seqBefore(seq, 0) only holds for 65534 and 65535; SEQ 0 and SEQ 1 are
	// not before 0 and remain outstanding.
	if q.len() != 2 {
		t.Fatalf("len() = %d, want 2", q.len())
	}
	if got := q.oldest(); got == nil || got.Seq != 0 {
		t.Fatalf("oldest() = %v, want seq 0", got)
	}
	still := q.expired(now, 0)
	found := false
	for _, e := range still {
		if e.seq == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected seq 1 to still be queued, got %v", still)
	}
}

func TestRetransmitQueueExpired(t *testing.T) {
	q := newRetransmitQueue()
	base := time.Unix(0, 0)
	q.add(1, seg(1), base)
	q.add(2, seg(2), base.Add(50*time.Millisecond))

	expired := q.expired(base.Add(100*time.Millisecond), 60*time.Millisecond)
	if len(expired) != 1 || expired[0].seq != 1 {
		t.Fatalf("expired = %+v, want only seq 1", expired)
	}
}

func TestRetransmitQueueMarkResentBumpsRetryCount(t *testing.T) {
	q := newRetransmitQueue()
	base := time.Unix(0, 0)
	q.add(1, seg(1), base)

	q.markResent(1, base.Add(100*time.Millisecond))

	expired := q.expired(base.Add(150*time.Millisecond), 10*time.Millisecond)
	if len(expired) != 1 || expired[0].retryCount != 1 {
		t.Fatalf("expired = %+v, want retryCount 1", expired)
	}
}

func TestRetransmitQueueOldestEmpty(t *testing.T) {
	q := newRetransmitQueue()
	if got := q.oldest(); got != nil {
		t.Fatalf("oldest() on empty queue = %v, want nil", got)
	}
}
