package kernel

import "testing"

func TestUserMemoryBounds(t *testing.T) {
	m := newUserMemory(0x2000_0000, 64)
	a, res := m.Alloc(3)
	if res != Success || a != 0x2000_0000 {
		t.Fatalf("Alloc(3) = %#x, %v", a, res)
	}
	b, _ := m.Alloc(8)
	if b != 0x2000_0004 {
		t.Fatalf("second Alloc() = %#x, want 4-byte aligned 0x20000004", b)
	}
	if _, res := m.Alloc(64); res != ErrFault {
		t.Fatalf("Alloc() past the end = %v, want %v", res, ErrFault)
	}
	if _, res := m.Alloc(0); res != ErrInvalidArg {
		t.Fatalf("Alloc(0) = %v, want %v", res, ErrInvalidArg)
	}

	if res := m.WriteU32(b, 0xdeadbeef); res != Success {
		t.Fatalf("WriteU32() = %v", res)
	}
	var raw [4]byte
	m.CopyIn(b, raw[:])
	if raw != [4]byte{0xef, 0xbe, 0xad, 0xde} {
		t.Fatalf("bytes = % x, want little endian", raw)
	}
	if v, _ := m.ReadU32(b); v != 0xdeadbeef {
		t.Fatalf("ReadU32() = %#x", v)
	}

	end := m.Base() + UserAddr(m.Size())
	cases := []UserAddr{m.Base() - 1, end, end - 3, 0}
	for _, addr := range cases {
		if _, res := m.ReadU32(addr); res != ErrFault {
			t.Fatalf("ReadU32(%#x) = %v, want %v", addr, res, ErrFault)
		}
	}
	if res := m.WriteU32(end-4, 1); res != Success {
		t.Fatalf("WriteU32(last word) = %v", res)
	}
}
