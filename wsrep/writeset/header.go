// Package writeset implements the WriteSet header, builder, and reader:
// the fixed-layout header plus keyset/dataset/unordered-set/annotation
// sub-containers that together form the atomic replication unit
// (spec.md §3/§4.5/§4.6).
package writeset

import (
	"encoding/binary"

	"github.com/codership/galera-sub007/checksum"
)

const (
	// HeaderSize is the fixed VER3 header layout size in bytes (spec.md §3).
	HeaderSize = 64
	// Magic is the fixed first header byte.
	Magic = 'G'
	// MaxVersion is the newest write-set version this module understands.
	MaxVersion uint8 = 5
	// MinVersion is the oldest write-set version this module understands
	// (spec.md Non-goals: "no write-set versions below VER3").
	MinVersion uint8 = 3
)

// Flag bit positions within the 16-bit flags field (spec.md §3 "Flags").
const (
	FlagCommit     uint16 = 1 << 0
	FlagRollback   uint16 = 1 << 1
	FlagTOI        uint16 = 1 << 2
	FlagPAUnsafe   uint16 = 1 << 3
	FlagCommutative uint16 = 1 << 4
	FlagNative     uint16 = 1 << 5
	FlagBegin      uint16 = 1 << 6
	FlagPrepare    uint16 = 1 << 7
	FlagCertified  uint16 = 1 << 14
	FlagPreordered uint16 = 1 << 15
)

// Header is the fixed 64-byte WriteSet header (spec.md §3).
type Header struct {
	MaxVersion     uint8
	MinVersion     uint8
	HeaderSize     uint8
	KeySetVersion  uint8 // packed into byte 3, bits 4-7
	DataSetVersion uint8 // packed into byte 3, bits 2-3
	HasUnordered   bool  // byte 3, bit 1
	HasAnnotation  bool  // byte 3, bit 0
	Flags          uint16
	PARange        uint16
	LastSeen       int64 // aliases the post-certification global seqno once FlagCertified is set
	Timestamp      int64 // monotonic nanoseconds
	Source         [16]byte
	ConnID         uint64
	TrxID          uint64
	HeaderCRC      uint64 // 8-byte slot; algorithm is FastHash64 over bytes 0..55
}

// Encode renders h into a freshly allocated 64-byte array, computing the
// header CRC over bytes 0..55 via checksum.FastHash64. h.HeaderCRC is
// ignored.
func Encode(h *Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = Magic
	buf[1] = (h.MaxVersion << 4) | (h.MinVersion & 0xF)
	buf[2] = h.HeaderSize
	buf[3] = (h.KeySetVersion << 4) | (h.DataSetVersion << 2) | boolBit(h.HasUnordered, 1) | boolBit(h.HasAnnotation, 0)
	binary.LittleEndian.PutUint16(buf[4:6], h.Flags)
	binary.LittleEndian.PutUint16(buf[6:8], h.PARange)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.LastSeen))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.Timestamp))
	copy(buf[24:40], h.Source[:])
	binary.LittleEndian.PutUint64(buf[40:48], h.ConnID)
	binary.LittleEndian.PutUint64(buf[48:56], h.TrxID)
	crc := checksum.FastHash64(buf[0:56])
	binary.LittleEndian.PutUint64(buf[56:64], crc)
	return buf
}

func boolBit(b bool, pos uint8) uint8 {
	if b {
		return 1 << pos
	}
	return 0
}

// Decode parses a 64-byte header and verifies its CRC, magic byte, and
// version bounds.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, newErr(ErrHeaderSize, "writeset header shorter than 64 bytes")
	}
	if buf[0] != Magic {
		return Header{}, newErr(ErrBadMagic, "writeset magic byte mismatch")
	}
	var h Header
	h.MaxVersion = buf[1] >> 4
	h.MinVersion = buf[1] & 0xF
	h.HeaderSize = buf[2]
	h.KeySetVersion = buf[3] >> 4
	h.DataSetVersion = (buf[3] >> 2) & 0x3
	h.HasUnordered = buf[3]&0x2 != 0
	h.HasAnnotation = buf[3]&0x1 != 0
	h.Flags = binary.LittleEndian.Uint16(buf[4:6])
	h.PARange = binary.LittleEndian.Uint16(buf[6:8])
	h.LastSeen = int64(binary.LittleEndian.Uint64(buf[8:16]))
	h.Timestamp = int64(binary.LittleEndian.Uint64(buf[16:24]))
	copy(h.Source[:], buf[24:40])
	h.ConnID = binary.LittleEndian.Uint64(buf[40:48])
	h.TrxID = binary.LittleEndian.Uint64(buf[48:56])
	h.HeaderCRC = binary.LittleEndian.Uint64(buf[56:64])

	if h.MinVersion > MaxVersion || h.MaxVersion < h.MinVersion {
		return Header{}, newErr(ErrVersionUnsupported, "min supported version exceeds MAX_VERSION")
	}
	want := checksum.FastHash64(buf[0:56])
	if want != h.HeaderCRC {
		return Header{}, newErr(ErrHeaderCRC, "writeset header CRC mismatch")
	}
	return h, nil
}

// Certified reports whether the certified flag bit is set, per spec.md
// §3: only then does LastSeen alias the post-certification global seqno.
func (h Header) Certified() bool { return h.Flags&FlagCertified != 0 }
