package btcp

// reassembly holds out-of-order data segments, keyed by SEQ, until rcvNext
// catches up to them: a bounded set rather than a dropped segment.
type reassembly struct {
	bySeq   map[uint16][]byte
	maxSize int
}

func newReassembly(maxSize int) *reassembly {
	return &reassembly{bySeq: make(map[uint16][]byte), maxSize: maxSize}
}

// insert stores payload at seq if there is room and it isn't already
// present. Returns false if the set is full and the segment was dropped.
func (r *reassembly) insert(seq uint16, payload []byte) bool {
	if _, ok := r.bySeq[seq]; ok {
		return true
	}
	if len(r.bySeq) >= r.maxSize {
		return false
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	r.bySeq[seq] = stored
	return true
}

// drain removes and returns the contiguous run of segments starting at
// rcvNext, in order, advancing rcvNext past each one it consumes.
func (r *reassembly) drain(rcvNext uint16) (delivered [][]byte, newRcvNext uint16) {
	newRcvNext = rcvNext
	for {
		payload, ok := r.bySeq[newRcvNext]
		if !ok {
			break
		}
		delivered = append(delivered, payload)
		delete(r.bySeq, newRcvNext)
		newRcvNext++
	}
	return delivered, newRcvNext
}

// len reports how many out-of-order segments are currently buffered.
func (r *reassembly) len() int {
	return len(r.bySeq)
}
