package checksum

import "testing"

func TestMMHEmptyInputIsZero(t *testing.T) {
	if got := MMH(MMH32, nil); got == nil || (got[0]|got[1]|got[2]|got[3]) != 0 {
		t.Fatalf("MMH32(nil) = %x, want all-zero", got)
	}
	if got := MMH(MMH64, nil); got == nil {
		t.Fatalf("MMH64(nil) returned nil")
	} else {
		for _, b := range got {
			if b != 0 {
				t.Fatalf("MMH64(nil) = %x, want all-zero", got)
			}
		}
	}
	if got := MMH(MMH128, nil); got == nil {
		t.Fatalf("MMH128(nil) returned nil")
	} else {
		for _, b := range got {
			if b != 0 {
				t.Fatalf("MMH128(nil) = %x, want all-zero", got)
			}
		}
	}
}

func TestMMHSizes(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	cases := []struct {
		kind MMHKind
		size int
	}{
		{MMHNone, 0},
		{MMH32, 4},
		{MMH64, 8},
		{MMH128, 16},
	}
	for _, c := range cases {
		got := MMH(c.kind, data)
		if len(got) != c.size {
			t.Fatalf("MMH(kind=%d) len = %d, want %d", c.kind, len(got), c.size)
		}
		if got := c.kind.Size(); got != c.size {
			t.Fatalf("Kind.Size() = %d, want %d", got, c.size)
		}
	}
}

func TestMMHDeterministicAndSensitiveToBitFlip(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a}
	a := MMH(MMH128, data)
	b := MMH(MMH128, append([]byte(nil), data...))
	if string(a) != string(b) {
		t.Fatalf("MMH128 not deterministic")
	}

	flipped := append([]byte(nil), data...)
	flipped[3] ^= 0x01
	c := MMH(MMH128, flipped)
	if string(a) == string(c) {
		t.Fatalf("MMH128 did not change on single bit flip")
	}
}

func TestMMH64IsLowHalfOfMMH128(t *testing.T) {
	data := []byte("galera write-set")
	h128 := MMH(MMH128, data)
	h64 := MMH(MMH64, data)
	for i := range h64 {
		if h64[i] != h128[i] {
			t.Fatalf("MMH64 byte %d = %x, want %x (low half of MMH128)", i, h64[i], h128[i])
		}
	}
}
