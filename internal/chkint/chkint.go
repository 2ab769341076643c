// Package chkint provides overflow-checked integer arithmetic for length
// and offset bookkeeping over untrusted wire input. It mirrors the
// contract of a checked-arithmetic helper (add/sub/mul report overflow
// instead of wrapping) without porting the full generality of a
// multi-width checked-arithmetic library: BGP and MRT framing only ever
// needs checked operations on plain ints derived from 16/32-bit wire
// fields, so that is the entire surface here.
package chkint

import "math"

// AddInt returns a+b and true, or 0 and false if the addition overflows
// the platform int range.
func AddInt(a, b int) (int, bool) {
	if b > 0 && a > math.MaxInt-b {
		return 0, false
	}
	if b < 0 && a < math.MinInt-b {
		return 0, false
	}
	return a + b, true
}

// MulInt returns a*b and true, or 0 and false if the multiplication
// overflows the platform int range.
func MulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	p := a * b
	if p/b != a {
		return 0, false
	}
	return p, true
}
