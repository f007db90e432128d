package recordset

// Unsigned LEB128 variable-length quantity: 7 payload bits per byte, the
// high bit set on every byte but the last. Used for the RecordSet long-form
// payload-size/record-count header fields and for every per-record length
// prefix (spec.md §3/§4.1).
//
// Grounded on consensus/compactsize.go's byte-at-a-time tag/value reading
// style, adapted to LEB128 rather than CompactSize's fixed-width tags.

func vlqLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func appendVLQ(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func readVLQ(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, newErr(ErrCorrupt, "vlq: overflow")
		}
	}
	return 0, 0, newErr(ErrCorrupt, "vlq: truncated")
}
