package recordset

import "github.com/codership/galera-sub007/checksum"

// Input parses a RecordSet from a single contiguous, read-only buffer and
// exposes a forward-only cursor over its records (spec.md §4.2).
//
// Grounded on consensus/wire.go's cursor type, generalized from raw
// fixed-width fields to a record-at-a-time view.
type Input struct {
	buf        []byte
	header     parsedHeader
	payloadEnd int // headerSize + padded payload size; excludes the trailing checksum
	pos        int
	emitted    int
}

// NewInput parses b's header (validating magic-free RecordSet framing,
// header CRC, and bounds) and, if verifyChecksum is true, the trailing
// payload checksum. b is retained, not copied: records returned by Next
// borrow directly from it.
func NewInput(b []byte, verifyChecksum bool) (*Input, error) {
	h, err := parseHeader(b)
	if err != nil {
		return nil, err
	}
	total := h.headerSize + h.size + h.kind.Size()
	if len(b) < total {
		return nil, newErr(ErrCorrupt, "truncated payload")
	}
	if verifyChecksum && h.kind != checksum.MMHNone {
		payload := b[h.headerSize : h.headerSize+h.size]
		header := b[:h.headerSize]
		combined := make([]byte, 0, len(payload)+len(header))
		combined = append(combined, payload...)
		combined = append(combined, header...)
		want := b[h.headerSize+h.size : total]
		got := checksum.MMH(h.kind, combined)
		if string(want) != string(got) {
			return nil, newErr(ErrCorrupt, "payload checksum mismatch")
		}
	}
	return &Input{
		buf:        b,
		header:     h,
		payloadEnd: h.headerSize + h.size,
		pos:        h.headerSize,
	}, nil
}

// Version returns the parsed RecordSet version.
func (in *Input) Version() Version { return in.header.version }

// ChecksumKind returns the parsed payload checksum algorithm.
func (in *Input) ChecksumKind() checksum.MMHKind { return in.header.kind }

// Count returns the number of records the header declares.
func (in *Input) Count() int { return in.header.count }

// HeaderSize returns the size, in bytes, of the parsed header.
func (in *Input) HeaderSize() int { return in.header.headerSize }

// TotalSize returns the full serialized size (header + padded payload +
// trailing checksum).
func (in *Input) TotalSize() int {
	return in.payloadEnd + in.header.kind.Size()
}

// Next returns the next record's borrowed bytes and advances the cursor.
// It returns ErrNoMoreRecords once every declared record has been emitted.
func (in *Input) Next() ([]byte, error) {
	if in.emitted >= in.header.count {
		return nil, newErr(ErrNoMoreRecords, "")
	}
	length, used, err := readVLQ(in.buf[in.pos:in.payloadEnd])
	if err != nil {
		return nil, newErr(ErrCorrupt, "bad record length vlq")
	}
	start := in.pos + used
	end := start + int(length)
	if end > in.payloadEnd || length > (1<<32) {
		return nil, newErr(ErrCorrupt, "record length out of bounds")
	}
	rec := in.buf[start:end]
	in.pos = end
	in.emitted++
	return rec, nil
}
