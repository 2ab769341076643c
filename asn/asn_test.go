package asn

import "testing"

func TestFrom16(t *testing.T) {
	a := From16(65001)
	if a.Is32Bit() {
		t.Fatal("From16 should not set the 32-bit flag")
	}
	if got := a.Uint32(); got != 65001 {
		t.Fatalf("Uint32() = %d, want 65001", got)
	}
}

func TestFrom32(t *testing.T) {
	a := From32(4200000000)
	if !a.Is32Bit() {
		t.Fatal("From32 should set the 32-bit flag")
	}
	if got := a.Uint32(); got != 4200000000 {
		t.Fatalf("Uint32() = %d, want 4200000000", got)
	}
}

func TestIsTrans(t *testing.T) {
	if !From16(uint16(AsTrans)).IsTrans() {
		t.Fatal("From16(AS_TRANS) should report IsTrans")
	}
	if From32(AsTrans).IsTrans() == false {
		t.Fatal("From32(AS_TRANS) should also report IsTrans regardless of width")
	}
	if From32(65001).IsTrans() {
		t.Fatal("ordinary ASN should not report IsTrans")
	}
}
