// Package wire provides byte-order primitives for reading and writing BGP
// and MRT wire fields over unaligned byte slices.
package wire

import "encoding/binary"

// BE16 reads a big-endian uint16 from the start of b. b must be at least
// 2 bytes long; callers are expected to have range-checked b already.
func BE16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

// BE32 reads a big-endian uint32 from the start of b.
func BE32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// BE64 reads a big-endian uint64 from the start of b.
func BE64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// PutBE16 writes v to the start of b in big-endian order.
func PutBE16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

// PutBE32 writes v to the start of b in big-endian order.
func PutBE32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// PutBE64 writes v to the start of b in big-endian order.
func PutBE64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

// AppendBE16 appends v to b in big-endian order, growing b as needed.
func AppendBE16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

// AppendBE32 appends v to b in big-endian order, growing b as needed.
func AppendBE32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
