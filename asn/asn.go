// Package asn implements the fat ASN value: a single word that carries
// either a 16-bit or a 32-bit autonomous system number along with a width
// tag, so callers can compare and extract ASNs uniformly regardless of
// which width the originating message used.
package asn

// AsTrans is the reserved "AS_TRANS" placeholder ASN (RFC 6793), used in
// the plain AS_PATH attribute by speakers that carry the real 4-octet ASN
// in AS4_PATH/AS4_AGGREGATOR instead.
const AsTrans uint32 = 23456

// bit62 tags the value as holding a 32-bit ASN. Asn is otherwise just the
// ASN value itself, zero-extended into the low 32 bits.
const bit62 = int64(1) << 62

// Asn is a tagged ASN value wide enough to hold either a 16-bit or a
// 32-bit autonomous system number plus a width flag, so that a single
// comparable value type can represent ASNs read from messages of either
// era without the caller tracking width out of band.
type Asn int64

// From16 builds an Asn from a 16-bit ASN.
func From16(v uint16) Asn { return Asn(int64(v)) }

// From32 builds an Asn from a 32-bit ASN.
func From32(v uint32) Asn { return Asn(int64(v) | bit62) }

// Is32Bit reports whether a was constructed from a 32-bit ASN.
func (a Asn) Is32Bit() bool { return int64(a)&bit62 != 0 }

// Uint32 returns the numeric ASN value regardless of original width.
func (a Asn) Uint32() uint32 { return uint32(int64(a) &^ bit62) }

// IsTrans reports whether a is the AS_TRANS placeholder value.
func (a Asn) IsTrans() bool { return a.Uint32() == AsTrans }
