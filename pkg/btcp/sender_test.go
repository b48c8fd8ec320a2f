package btcp

import (
	"testing"
	"time"

	"github.com/btcpnet/btcp/pkg/segment"
)

func TestSenderFillRespectsWindow(t *testing.T) {
	s := newSender(0, 2, 1)
	s.write(make([]byte, 3*PayloadSize)) // enough pending data for 3 full segments

	var out []*segment.Segment
	s.fill(0, 100, time.Unix(0, 0), &out)

	// Window is 2: only 2 segments go out even though a third segment's
	// worth of data is still pending.
	if len(out) != 2 {
		t.Fatalf("fill() with window 2 emitted %d segments, want 2", len(out))
	}
	if s.pendingLen() != PayloadSize {
		t.Fatalf("pendingLen() = %d, want %d", s.pendingLen(), PayloadSize)
	}
}

func TestSenderFillOneByteAtATimeStopsAtWindow(t *testing.T) {
	s := newSender(0, 3, 1)

	// fill takes up to PayloadSize bytes per segment, so writing and filling
	// one byte at a time yields one single-byte segment per call until the
	// window of 3 is full. No ACK arrives in between, so the last two bytes
	// stay pending.
	var out []*segment.Segment
	for i := 0; i < 5; i++ {
		s.write([]byte{byte(i)})
		s.fill(0, 100, time.Unix(0, 0), &out)
	}
	if len(out) != 3 {
		t.Fatalf("fill() with window 3 after 5 single-byte writes produced %d segments, want 3", len(out))
	}
	if s.outstanding() != 3 {
		t.Fatalf("outstanding() = %d, want 3", s.outstanding())
	}
	if s.pendingLen() != 2 {
		t.Fatalf("pendingLen() = %d, want 2", s.pendingLen())
	}
}

func TestSenderOnAckAdvancesSendBase(t *testing.T) {
	s := newSender(0, 10, 1)
	s.write([]byte("hello"))
	var out []*segment.Segment
	s.fill(0, 100, time.Unix(0, 0), &out)

	if got := s.onAck(1); got != nil {
		t.Fatalf("onAck(1) = %v, want nil (no fast retransmit on a fresh cumulative ack)", got)
	}
	if s.sendBase != 1 {
		t.Fatalf("sendBase = %d, want 1", s.sendBase)
	}
	if s.queue.len() != 0 {
		t.Fatalf("queue.len() = %d, want 0 after full ack", s.queue.len())
	}
}

func TestSenderOnAckFastRetransmitAfterDupThreshold(t *testing.T) {
	s := newSender(0, 10, 1)
	s.write([]byte("ab"))
	var out []*segment.Segment
	s.fill(0, 100, time.Unix(0, 0), &out)
	s.write([]byte("cd"))
	s.fill(0, 100, time.Unix(0, 0), &out)

	if len(out) != 2 {
		t.Fatalf("expected 2 segments queued, got %d", len(out))
	}

	// First ack for seq 0 establishes the baseline.
	if retransmit := s.onAck(0); retransmit != nil {
		t.Fatalf("first ack(0) triggered a retransmit unexpectedly")
	}
	// A duplicate ack for seq 0 (threshold 1) should trigger fast retransmit
	// of the oldest outstanding segment.
	retransmit := s.onAck(0)
	if retransmit == nil {
		t.Fatalf("duplicate ack(0) did not trigger fast retransmit")
	}
	if retransmit.Seq != 0 {
		t.Fatalf("fast retransmit segment Seq = %d, want 0", retransmit.Seq)
	}
	if s.stats.fastRetransmissions != 1 {
		t.Fatalf("fastRetransmissions = %d, want 1", s.stats.fastRetransmissions)
	}
}

func TestSenderExpiredReturnsTimedOutSegments(t *testing.T) {
	s := newSender(0, 10, 1)
	s.write([]byte("ab"))
	base := time.Unix(0, 0)
	var out []*segment.Segment
	s.fill(0, 100, base, &out)

	expired := s.expired(base.Add(200*time.Millisecond), 100*time.Millisecond)
	if len(expired) != 1 {
		t.Fatalf("expired() = %d segments, want 1", len(expired))
	}
	if s.stats.retransmissions != 1 {
		t.Fatalf("retransmissions = %d, want 1", s.stats.retransmissions)
	}
}

func TestSenderIdle(t *testing.T) {
	s := newSender(0, 10, 1)
	if !s.idle() {
		t.Fatalf("new sender is not idle")
	}
	s.write([]byte("x"))
	if s.idle() {
		t.Fatalf("sender with pending data reports idle")
	}
}
