package recordset

import "github.com/codership/galera-sub007/checksum"

// headerSizeMax bounds the reserved header prefix an Output keeps in front
// of its payload: 1 version byte + up to 5 VLQ bytes for size + up to 5 VLQ
// bytes for count + 4 header-CRC bytes. That comfortably covers payloads up
// to 2^35 bytes long-form, and the short-form header (9 bytes) always fits
// inside it with room to spare.
const headerSizeMax = 1 + 5 + 5 + 4

// Output builds a RecordSet incrementally (spec.md §4.1): append() copies
// record bytes into a growable buffer and gather() finalizes the set,
// writing the header into the reserved prefix rather than copying the
// payload forward.
//
// Grounded on consensus/wire_write.go's append-to-slice idiom for the
// payload, generalized with the header-reservation trick spec.md §4.1
// calls out explicitly.
type Output struct {
	version  Version
	kind     checksum.MMHKind
	buf      []byte // [0:headerSizeMax) reserved, then payload bytes appended
	count    int
	rawSize  int // payload bytes appended so far, before alignment padding
	left     int // remaining budget before message-size-exceeded
	gathered bool
}

// NewOutput creates an Output targeting version/kind, capping total
// payload bytes (pre-padding, pre-header) at maxPayloadSize.
func NewOutput(version Version, kind checksum.MMHKind, maxPayloadSize int) *Output {
	return &Output{
		version: version,
		kind:    kind,
		buf:     make([]byte, headerSizeMax),
		left:    maxPayloadSize,
	}
}

// Append copies record into the set, VLQ-length-prefixed, and returns an
// offset (relative to the start of the payload region) and length
// identifying the stored region. Returns ErrMessageSizeExceeded once the
// configured maximum is crossed.
func (o *Output) Append(record []byte) (offset int, size int, err error) {
	if o.gathered {
		return 0, 0, newErr(ErrCorrupt, "append after gather")
	}
	prefixLen := vlqLen(uint64(len(record)))
	need := prefixLen + len(record)
	if need > o.left {
		return 0, 0, newErr(ErrMessageSizeExceeded, "record set payload budget exceeded")
	}
	offset = len(o.buf) - headerSizeMax
	o.buf = appendVLQ(o.buf, uint64(len(record)))
	o.buf = append(o.buf, record...)
	o.rawSize += need
	o.count++
	o.left -= need
	return offset, len(record), nil
}

// Count returns the number of records appended so far.
func (o *Output) Count() int { return o.count }

// Gather finalizes the RecordSet: pads the payload to alignment, writes the
// header into the reserved prefix (dropping the unused gap by slicing it
// away, not copying), appends the trailing checksum, and appends the result
// to out. It returns the total serialized length. Gather may be called only
// once; the Output must not be reused afterward.
func (o *Output) Gather(out *[][]byte) (int, error) {
	if o.gathered {
		return 0, newErr(ErrCorrupt, "gather called twice")
	}
	o.gathered = true

	if o.count == 0 {
		return 0, nil
	}

	l := computeLayout(o.version, o.count, o.rawSize, true)
	if pad := l.paddedSize - o.rawSize; pad > 0 {
		o.buf = append(o.buf, make([]byte, pad)...)
	}

	hdrStart := headerSizeMax - l.headerSize
	writeHeader(o.buf[hdrStart:headerSizeMax], o.version, o.kind, o.count, l)

	payload := o.buf[headerSizeMax : headerSizeMax+l.paddedSize]
	header := o.buf[hdrStart:headerSizeMax]

	if o.kind != checksum.MMHNone {
		combined := make([]byte, 0, len(payload)+len(header))
		combined = append(combined, payload...)
		combined = append(combined, header...)
		o.buf = append(o.buf, checksum.MMH(o.kind, combined)...)
	}

	final := o.buf[hdrStart:]
	*out = append(*out, final)
	return len(final), nil
}
