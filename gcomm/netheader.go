// Package gcomm implements the asynchronous transport layer: NetHeader
// datagram framing, a fair per-segment send queue, a socket state
// machine with deferred close, and a protostack dispatcher (spec.md
// §3/§4.8-§4.11).
//
// Grounded throughout on node/p2p/envelope.go's WriteMessage/ReadMessage
// (io.ReadFull partial-read handling, a length-then-body read shape) and
// node/p2p_runtime.go's PeerSession/PeerManager (mutex-guarded
// connection state, context-cancellation unblocking a blocking read).
package gcomm

import (
	"encoding/binary"
	"fmt"

	"github.com/codership/galera-sub007/checksum"
)

const (
	// HeaderSize is the fixed NetHeader length in bytes (spec.md §3).
	HeaderSize = 8

	maxPayloadLength = 0xFFFFFF // 24 bits

	// FlagCRC32 and FlagCRC32C select the checksum algorithm over the
	// datagram; at most one may be set.
	FlagCRC32  = 1 << 24
	FlagCRC32C = 1 << 25

	versionShift = 28
	versionMask  = 0xF
)

// NetHeader is the 8-byte transport datagram header (spec.md §3/§4.8):
// bits 0-23 are the payload length, bit 24 is F_CRC32, bit 25 is
// F_CRC32C, bits 28-31 are the protocol version; bytes 4-7 carry the
// 32-bit checksum value.
type NetHeader struct {
	Length  uint32 // payload length, bytes after the header
	CRC32   bool
	CRC32C  bool
	Version uint8
	Cksum   uint32
}

// Encode renders h into an 8-byte buffer. It returns an error if both
// checksum flags are set, if Length exceeds the 24-bit field, or if
// Version doesn't fit in 4 bits.
func (h NetHeader) Encode() ([HeaderSize]byte, error) {
	var buf [HeaderSize]byte
	if h.CRC32 && h.CRC32C {
		return buf, newErr(ErrBothChecksumFlags, "NetHeader: both F_CRC32 and F_CRC32C set")
	}
	if h.Length > maxPayloadLength {
		return buf, newErr(ErrPayloadTooLarge, fmt.Sprintf("NetHeader: length %d exceeds 24-bit field", h.Length))
	}
	if h.Version > versionMask {
		return buf, newErr(ErrVersionNotSupported, "NetHeader: version does not fit in 4 bits")
	}

	word := h.Length & maxPayloadLength
	if h.CRC32 {
		word |= FlagCRC32
	}
	if h.CRC32C {
		word |= FlagCRC32C
	}
	word |= uint32(h.Version) << versionShift

	binary.LittleEndian.PutUint32(buf[0:4], word)
	binary.LittleEndian.PutUint32(buf[4:8], h.Cksum)
	return buf, nil
}

// Decode parses an 8-byte NetHeader. A receiver must reject any frame
// whose version is not 0 or whose flag bits fall outside
// {F_CRC32, F_CRC32C} (spec.md §6/§4.8).
func Decode(buf []byte) (NetHeader, error) {
	if len(buf) < HeaderSize {
		return NetHeader{}, newErr(ErrTruncated, "NetHeader: buffer shorter than 8 bytes")
	}
	word := binary.LittleEndian.Uint32(buf[0:4])
	var h NetHeader
	h.Length = word & maxPayloadLength
	h.CRC32 = word&FlagCRC32 != 0
	h.CRC32C = word&FlagCRC32C != 0
	h.Version = uint8((word >> versionShift) & versionMask)
	h.Cksum = binary.LittleEndian.Uint32(buf[4:8])

	if h.Version != 0 {
		return NetHeader{}, newErr(ErrVersionNotSupported, fmt.Sprintf("NetHeader: version %d not supported", h.Version))
	}
	knownFlags := uint32(FlagCRC32 | FlagCRC32C)
	if word&^(maxPayloadLength|knownFlags|(versionMask<<versionShift)) != 0 {
		return NetHeader{}, newErr(ErrVersionNotSupported, "NetHeader: reserved flag bits set")
	}
	if h.CRC32 && h.CRC32C {
		return NetHeader{}, newErr(ErrBothChecksumFlags, "NetHeader: both F_CRC32 and F_CRC32C set")
	}
	return h, nil
}

// checksumKind maps the header's flags to a checksum.Kind.
func (h NetHeader) checksumKind() checksum.Kind {
	switch {
	case h.CRC32:
		return checksum.KindCRC32
	case h.CRC32C:
		return checksum.KindCRC32C
	default:
		return checksum.KindNone
	}
}

// EncodeDatagram prepends a NetHeader to payload, computing the selected
// checksum over [length-bytes | header-region | payload] per spec.md
// §4.8 if kind != KindNone ("header-region" here is the header with its
// checksum field still zero, matching the wire geometry the field
// ultimately overwrites).
func EncodeDatagram(payload []byte, kind checksum.Kind, version uint8) ([]byte, error) {
	h := NetHeader{
		Length:  uint32(len(payload)),
		CRC32:   kind == checksum.KindCRC32,
		CRC32C:  kind == checksum.KindCRC32C,
		Version: version,
	}
	hdr, err := h.Encode()
	if err != nil {
		return nil, err
	}
	if kind != checksum.KindNone {
		combined := make([]byte, 0, 4+HeaderSize+len(payload))
		combined = append(combined, hdr[0:4]...) // length-bytes
		combined = append(combined, hdr[:]...)   // header-region
		combined = append(combined, payload...)
		h.Cksum = checksum.Compute(kind, combined)
		hdr, err = h.Encode()
		if err != nil {
			return nil, err
		}
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, hdr[:]...)
	out = append(out, payload...)
	return out, nil
}

// VerifyDatagram checks a decoded header's checksum against payload,
// recomputing it the same way EncodeDatagram did.
func VerifyDatagram(h NetHeader, payload []byte) error {
	kind := h.checksumKind()
	if kind == checksum.KindNone {
		return nil
	}
	hdrNoCksum := h
	hdrNoCksum.Cksum = 0
	hdr, err := hdrNoCksum.Encode()
	if err != nil {
		return err
	}
	combined := make([]byte, 0, 4+HeaderSize+len(payload))
	combined = append(combined, hdr[0:4]...)
	combined = append(combined, hdr[:]...)
	combined = append(combined, payload...)
	got := checksum.Compute(kind, combined)
	if got != h.Cksum {
		return newErr(ErrChecksumMismatch, "NetHeader: datagram checksum mismatch")
	}
	return nil
}
