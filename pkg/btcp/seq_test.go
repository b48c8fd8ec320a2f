package btcp

import "testing"

func TestSeqBefore(t *testing.T) {
	tests := []struct {
		a, b uint16
		want bool
	}{
		{0, 1, true},
		{1, 0, false},
		{0, 0, false},
		{65535, 0, true},  // wraparound: 65535 is "before" 0
		{0, 65535, false},
		{100, 200, true},
		{200, 100, false},
	}
	for _, tt := range tests {
		if got := seqBefore(tt.a, tt.b); got != tt.want {
			t.Errorf("seqBefore(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSeqAfter(t *testing.T) {
	tests := []struct {
		a, b uint16
		want bool
	}{
		{1, 0, true},
		{0, 1, false},
		{0, 65535, true}, // wraparound: 0 is "after" 65535
		{65535, 0, false},
	}
	for _, tt := range tests {
		if got := seqAfter(tt.a, tt.b); got != tt.want {
			t.Errorf("seqAfter(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSeqBetween(t *testing.T) {
	tests := []struct {
		seq, low, high uint16
		want           bool
	}{
		{5, 0, 10, true},
		{0, 0, 10, false},  // exclusive of low
		{10, 0, 10, false}, // exclusive of high
		{65535, 65530, 5, true},
	}
	for _, tt := range tests {
		if got := seqBetween(tt.seq, tt.low, tt.high); got != tt.want {
			t.Errorf("seqBetween(%d, %d, %d) = %v, want %v", tt.seq, tt.low, tt.high, got, tt.want)
		}
	}
}

func TestMinWindow(t *testing.T) {
	tests := []struct{ a, b, want uint8 }{
		{100, 50, 50},
		{50, 100, 50},
		{1, 1, 1},
		{255, 1, 1},
	}
	for _, tt := range tests {
		if got := minWindow(tt.a, tt.b); got != tt.want {
			t.Errorf("minWindow(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
