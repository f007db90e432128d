package gcomm

import (
	"bytes"
	"testing"

	"github.com/codership/galera-sub007/checksum"
)

// TestLengthBoundary mirrors spec.md §8: 0xFFFFFF is accepted, 0x1000000
// must be rejected by the builder.
func TestLengthBoundary(t *testing.T) {
	h := NetHeader{Length: 0xFFFFFF}
	if _, err := h.Encode(); err != nil {
		t.Fatalf("Encode(0xFFFFFF): %v", err)
	}
	over := NetHeader{Length: 0x1000000}
	if _, err := over.Encode(); err == nil {
		t.Fatalf("expected Encode(0x1000000) to fail")
	}
}

func TestRejectsBothChecksumFlags(t *testing.T) {
	h := NetHeader{CRC32: true, CRC32C: true}
	if _, err := h.Encode(); err == nil {
		t.Fatalf("expected rejection of both checksum flags set")
	}
}

func TestDecodeRejectsNonZeroVersion(t *testing.T) {
	h := NetHeader{Version: 1}
	buf, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(buf[:]); err == nil {
		t.Fatalf("expected rejection of version != 0")
	}
}

func TestEncodeDecodeDatagramRoundTrip(t *testing.T) {
	payload := []byte("galera transport payload")
	for _, kind := range []checksum.Kind{checksum.KindNone, checksum.KindCRC32, checksum.KindCRC32C} {
		datagram, err := EncodeDatagram(payload, kind, 0)
		if err != nil {
			t.Fatalf("kind=%v: EncodeDatagram: %v", kind, err)
		}
		h, err := Decode(datagram[:HeaderSize])
		if err != nil {
			t.Fatalf("kind=%v: Decode: %v", kind, err)
		}
		if int(h.Length) != len(payload) {
			t.Fatalf("kind=%v: Length = %d, want %d", kind, h.Length, len(payload))
		}
		got := datagram[HeaderSize:]
		if !bytes.Equal(got, payload) {
			t.Fatalf("kind=%v: payload = %q, want %q", kind, got, payload)
		}
		if err := VerifyDatagram(h, got); err != nil {
			t.Fatalf("kind=%v: VerifyDatagram: %v", kind, err)
		}
	}
}

func TestVerifyDatagramDetectsCorruption(t *testing.T) {
	payload := []byte("galera transport payload")
	datagram, err := EncodeDatagram(payload, checksum.KindCRC32C, 0)
	if err != nil {
		t.Fatalf("EncodeDatagram: %v", err)
	}
	datagram[len(datagram)-1] ^= 0xFF
	h, err := Decode(datagram[:HeaderSize])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := VerifyDatagram(h, datagram[HeaderSize:]); err == nil {
		t.Fatalf("expected checksum mismatch after corruption")
	}
}
