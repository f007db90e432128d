package recordset

import (
	"encoding/binary"

	"github.com/codership/galera-sub007/checksum"
)

// Version is the RecordSet wire version (spec.md §3: VER1 or VER2; VER2 is
// 8-byte aligned and supports the short-form header).
type Version uint8

const (
	VER1 Version = 1
	VER2 Version = 2
)

// Alignment returns the payload alignment for v: 1 byte for VER1, 8 bytes
// for VER2.
func (v Version) Alignment() int {
	if v == VER2 {
		return 8
	}
	return 1
}

const (
	shortFormMaxCount = 1024
	shortFormMaxSize  = 16384

	shortFormHeaderSize = 1 + 4 + 4 // version byte + packed word + header CRC
)

// versionByte packs version, checksum kind, and the short-form flag into
// the single leading header byte (spec.md §3's "dedicated bit").
//
// layout: bit7 = short-form flag, bits4-6 = checksum kind, bits0-3 = version.
func versionByte(v Version, kind checksum.MMHKind, shortForm bool) byte {
	b := byte(v) & 0x0f
	b |= byte(kind&0x7) << 4
	if shortForm {
		b |= 0x80
	}
	return b
}

func parseVersionByte(b byte) (v Version, kind checksum.MMHKind, shortForm bool) {
	v = Version(b & 0x0f)
	kind = checksum.MMHKind((b >> 4) & 0x7)
	shortForm = b&0x80 != 0
	return
}

// packShortWord packs count (11 bits) and size (15 bits) into the VER2
// short-form 32-bit word; bits 26-31 are reserved and always zero.
func packShortWord(count, size int) uint32 {
	return uint32(count&0x7ff) | (uint32(size&0x7fff) << 11)
}

func unpackShortWord(w uint32) (count, size int) {
	count = int(w & 0x7ff)
	size = int((w >> 11) & 0x7fff)
	return
}

// layout describes the header geometry chosen for a given (version, count,
// paddedSize) triple. computeLayout is a small fixed-point iteration: the
// VLQ byte-length of the long-form size field can, in rare cases, change
// once alignment padding is folded in, which can in turn change the header
// size and therefore the required padding. The loop converges in at most a
// couple of iterations since padding is bounded by the alignment (≤7 bytes
// for VER2) while VLQ length only grows at 128-byte-aligned thresholds.
type layout struct {
	headerSize int
	paddedSize int
	shortForm  bool
}

func computeLayout(v Version, count int, rawSize int, allowShortForm bool) layout {
	alignment := v.Alignment()
	paddedSize := rawSize
	shortForm := v == VER2 && allowShortForm && count <= shortFormMaxCount && rawSize <= shortFormMaxSize
	for i := 0; i < 8; i++ {
		var headerSize int
		if shortForm {
			headerSize = shortFormHeaderSize
		} else {
			headerSize = 1 + vlqLen(uint64(paddedSize)) + vlqLen(uint64(count)) + 4
		}
		total := headerSize + rawSize
		pad := (alignment - total%alignment) % alignment
		next := rawSize + pad
		if next == paddedSize {
			return layout{headerSize: headerSize, paddedSize: paddedSize, shortForm: shortForm}
		}
		paddedSize = next
	}
	// Unreachable in practice; fall back to the last computed layout.
	headerSize := 1 + vlqLen(uint64(paddedSize)) + vlqLen(uint64(count)) + 4
	if shortForm {
		headerSize = shortFormHeaderSize
	}
	return layout{headerSize: headerSize, paddedSize: paddedSize, shortForm: shortForm}
}

// writeHeader renders the header (version byte through header CRC,
// inclusive) into dst, which must be exactly l.headerSize bytes.
func writeHeader(dst []byte, v Version, kind checksum.MMHKind, count int, l layout) {
	dst[0] = versionByte(v, kind, l.shortForm)
	if l.shortForm {
		binary.LittleEndian.PutUint32(dst[1:5], packShortWord(count, l.paddedSize))
	} else {
		off := 1
		off += copy(dst[off:], appendVLQShim(uint64(l.paddedSize)))
		off += copy(dst[off:], appendVLQShim(uint64(count)))
	}
	crc := checksum.CRC32(dst[:l.headerSize-4])
	binary.LittleEndian.PutUint32(dst[l.headerSize-4:l.headerSize], crc)
}

// appendVLQShim VLQ-encodes v into a fresh slice; writeHeader needs a plain
// byte view rather than an append-target.
func appendVLQShim(v uint64) []byte {
	return appendVLQ(nil, v)
}

// parsedHeader is the result of parsing a RecordSet header from the front
// of a byte slice.
type parsedHeader struct {
	version    Version
	kind       checksum.MMHKind
	shortForm  bool
	count      int
	size       int // padded payload size, in bytes
	headerSize int
}

func parseHeader(b []byte) (parsedHeader, error) {
	if len(b) < 1 {
		return parsedHeader{}, newErr(ErrCorrupt, "empty header")
	}
	version, kind, shortForm := parseVersionByte(b[0])
	if version != VER1 && version != VER2 {
		return parsedHeader{}, newErr(ErrCorrupt, "unsupported record set version")
	}
	if shortForm && version != VER2 {
		return parsedHeader{}, newErr(ErrCorrupt, "short-form flag set on non-VER2 header")
	}

	var h parsedHeader
	h.version = version
	h.kind = kind
	h.shortForm = shortForm

	if shortForm {
		if len(b) < shortFormHeaderSize {
			return parsedHeader{}, newErr(ErrCorrupt, "truncated short-form header")
		}
		word := binary.LittleEndian.Uint32(b[1:5])
		count, size := unpackShortWord(word)
		h.count = count
		h.size = size
		h.headerSize = shortFormHeaderSize
	} else {
		size, usedSize, err := readVLQ(b[1:])
		if err != nil {
			return parsedHeader{}, newErr(ErrCorrupt, "bad payload size vlq")
		}
		off := 1 + usedSize
		count, usedCount, err := readVLQ(b[off:])
		if err != nil {
			return parsedHeader{}, newErr(ErrCorrupt, "bad record count vlq")
		}
		off += usedCount
		h.count = int(count)
		h.size = int(size)
		h.headerSize = off + 4
	}

	if len(b) < h.headerSize {
		return parsedHeader{}, newErr(ErrCorrupt, "truncated header")
	}
	wantCRC := binary.LittleEndian.Uint32(b[h.headerSize-4 : h.headerSize])
	gotCRC := checksum.CRC32(b[:h.headerSize-4])
	if wantCRC != gotCRC {
		return parsedHeader{}, newErr(ErrCorrupt, "header CRC mismatch")
	}
	return h, nil
}
