package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed length, in bytes, of the length header that
// precedes every message body (spec.md §6).
const HeaderSize = 8

// MaxBodySize bounds a single message body to guard against a
// malicious or corrupt length header causing an unbounded allocation.
const MaxBodySize = 256 << 20 // 256 MiB

// EncodeHeader returns the 8-byte big-endian length header for a body
// of bodyLen bytes.
func EncodeHeader(bodyLen int) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(bodyLen))
	return hdr
}

// DecodeHeader parses an 8-byte length header into the expected body
// length, per spec.md §4.1's decode_header.
func DecodeHeader(hdr []byte) (int, error) {
	if len(hdr) != HeaderSize {
		return 0, fmt.Errorf("wire: header must be %d bytes, got %d", HeaderSize, len(hdr))
	}
	n := binary.BigEndian.Uint64(hdr)
	if n > MaxBodySize {
		return 0, fmt.Errorf("wire: body length %d exceeds maximum %d", n, MaxBodySize)
	}
	return int(n), nil
}
