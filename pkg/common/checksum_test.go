package common

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0xFFFF,
		},
		{
			name:     "single byte",
			data:     []byte{0x12},
			expected: 0xEDFF, // ~0x1200
		},
		{
			name:     "two bytes",
			data:     []byte{0x12, 0x34},
			expected: 0xEDCB, // ~0x1234
		},
		{
			name: "RFC 1071 example",
			// 0x0001 + 0xf203 + 0xf4f5 + 0xf6f7 = 0x2ddf0
			// fold: 0xddf0 + 0x0002 = 0xddf2, ~0xddf2 = 0x220d
			data:     []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7},
			expected: 0x220d,
		},
		{
			name:     "all zeros never transmits as 0x0000",
			data:     []byte{0x00, 0x00, 0x00, 0x00},
			expected: 0xFFFF,
		},
		{
			name:     "words summing to 0xFFFF fold to the never-zero case",
			data:     []byte{0xFF, 0xFF, 0xFF, 0xFF},
			expected: 0xFFFF,
		},
		{
			name: "odd length",
			data: []byte{0x12, 0x34, 0x56},
			// 0x1234 + 0x5600 = 0x6834, ~0x6834 = 0x97CB
			expected: 0x97CB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Checksum(tt.data)
			if result != tt.expected {
				t.Errorf("Checksum() = 0x%04X, want 0x%04X", result, tt.expected)
			}
			if result == 0x0000 {
				t.Errorf("Checksum() must never return 0x0000")
			}
		})
	}
}

func TestChecksumDetectsBitFlip(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x54, 0x00, 0x00, 0x40, 0x00, 0x40, 0x01}
	original := Checksum(data)

	flipped := append([]byte(nil), data...)
	flipped[3] ^= 0x01
	if Checksum(flipped) == original {
		t.Error("Checksum() did not change after a single bit flip")
	}
}

func TestChecksumConsistent(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x3C, 0x1C, 0x46, 0x40, 0x00, 0x40, 0x06}
	if Checksum(data) != Checksum(data) {
		t.Error("Checksum() is not deterministic for identical input")
	}
}

func BenchmarkChecksum(b *testing.B) {
	data := make([]byte, 1010) // one bTCP segment
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Checksum(data)
	}
}
