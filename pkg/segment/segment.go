// Package segment implements the bTCP wire format: a fixed-size 1010-octet
// frame made of a 10-octet header and a 1000-octet zero-padded payload.
package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/btcpnet/btcp/pkg/common"
)

const (
	// PayloadSize is the fixed payload region of every segment, in octets.
	PayloadSize = 1000

	// HeaderSize is the fixed header region of every segment, in octets.
	HeaderSize = 10

	// Size is the total on-the-wire size of a segment, in octets.
	Size = HeaderSize + PayloadSize
)

// Flag bits, packed into the header's single FLAGS octet.
const (
	FlagFIN uint8 = 1 << 0
	FlagACK uint8 = 1 << 1
	FlagSYN uint8 = 1 << 2

	flagsMask = FlagFIN | FlagACK | FlagSYN
)

// Header holds the fixed fields of a bTCP segment. Window is informational
// outside the handshake: the effective window is frozen at connection setup
// and never renegotiated.
type Header struct {
	Seq      uint16
	Ack      uint16
	Flags    uint8
	Window   uint8
	Length   uint16
	Checksum uint16
}

// HasFlag reports whether flag is set in the header's FLAGS octet.
func (h Header) HasFlag(flag uint8) bool {
	return h.Flags&flag != 0
}

// String returns a short human-readable summary, useful in log lines.
func (h Header) String() string {
	flags := ""
	if h.HasFlag(FlagSYN) {
		flags += "S"
	}
	if h.HasFlag(FlagACK) {
		flags += "A"
	}
	if h.HasFlag(FlagFIN) {
		flags += "F"
	}
	if flags == "" {
		flags = "."
	}
	return fmt.Sprintf("seg{seq=%d ack=%d flags=%s win=%d len=%d}", h.Seq, h.Ack, flags, h.Window, h.Length)
}

// Segment is a decoded bTCP frame: header plus however much of the payload
// LENGTH declares as meaningful. Payload is always len(Payload) == Length;
// the wire's trailing zero padding is stripped on Decode and re-added on
// Encode.
type Segment struct {
	Header
	Payload []byte
}

// New builds a segment with Length set from len(payload) and Checksum left
// at zero; call Encode to produce the wire bytes (which also computes and
// fills the checksum).
func New(seq, ack uint16, flags uint8, window uint8, payload []byte) *Segment {
	return &Segment{
		Header: Header{
			Seq:    seq,
			Ack:    ack,
			Flags:  flags,
			Window: window,
			Length: uint16(len(payload)),
		},
		Payload: payload,
	}
}

// Encode serializes s into a fixed Size-byte wire frame, computing and
// filling the checksum over the header (with the checksum field zeroed)
// and the zero-padded payload region.
func (s *Segment) Encode() ([]byte, error) {
	if len(s.Payload) > PayloadSize {
		return nil, fmt.Errorf("segment: payload length %d exceeds max %d", len(s.Payload), PayloadSize)
	}
	if s.Flags&^flagsMask != 0 {
		return nil, fmt.Errorf("segment: reserved flag bits set: 0x%02x", s.Flags)
	}

	buf := make([]byte, Size)
	binary.BigEndian.PutUint16(buf[0:2], s.Seq)
	binary.BigEndian.PutUint16(buf[2:4], s.Ack)
	buf[4] = s.Flags
	buf[5] = s.Window
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(s.Payload)))
	// buf[8:10] (checksum) left zero for the computation below.
	copy(buf[HeaderSize:], s.Payload)

	checksum := common.Checksum(buf)
	binary.BigEndian.PutUint16(buf[8:10], checksum)

	return buf, nil
}

// Decode parses a fixed Size-byte wire frame into a Segment, verifying the
// checksum. Verification recomputes the checksum over the frame with the
// checksum field zeroed and compares it to the stored value; a zero stored
// checksum (meaning "not yet computed") never verifies.
func Decode(data []byte) (*Segment, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("segment: frame is %d bytes, want %d", len(data), Size)
	}

	stored := binary.BigEndian.Uint16(data[8:10])
	if stored == 0 {
		return nil, fmt.Errorf("segment: checksum field is zero (not computed)")
	}

	verify := make([]byte, Size)
	copy(verify, data)
	binary.BigEndian.PutUint16(verify[8:10], 0)
	if recomputed := common.Checksum(verify); recomputed != stored {
		return nil, fmt.Errorf("segment: checksum mismatch: got 0x%04x, want 0x%04x", stored, recomputed)
	}

	length := binary.BigEndian.Uint16(data[6:8])
	if int(length) > PayloadSize {
		return nil, fmt.Errorf("segment: declared length %d exceeds max %d", length, PayloadSize)
	}

	flags := data[4]
	if flags&^flagsMask != 0 {
		return nil, fmt.Errorf("segment: reserved flag bits set: 0x%02x", flags)
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:HeaderSize+int(length)])

	return &Segment{
		Header: Header{
			Seq:      binary.BigEndian.Uint16(data[0:2]),
			Ack:      binary.BigEndian.Uint16(data[2:4]),
			Flags:    flags,
			Window:   data[5],
			Length:   length,
			Checksum: stored,
		},
		Payload: payload,
	}, nil
}
