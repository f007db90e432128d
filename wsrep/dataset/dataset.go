// Package dataset implements DataSet: an ordered sequence of opaque byte
// records carried over a RecordSet, with no deduplication (spec.md §3:
// "DataSet is a RecordSet specialization that stores ordered, opaque byte
// payloads — unlike KeySet it performs no duplicate suppression; callers
// get back exactly what they put in, in append order").
package dataset

import (
	"github.com/codership/galera-sub007/checksum"
	"github.com/codership/galera-sub007/wsrep/recordset"
)

// Builder appends opaque records to an underlying RecordSet in order.
type Builder struct {
	out *recordset.Output
}

// NewBuilder creates a Builder over RecordSet version v, checksum kind
// kind, capped at maxPayloadSize bytes.
func NewBuilder(v recordset.Version, kind checksum.MMHKind, maxPayloadSize int) *Builder {
	return &Builder{out: recordset.NewOutput(v, kind, maxPayloadSize)}
}

// Append adds record in order, returning its offset within the set.
func (b *Builder) Append(record []byte) (offset int, err error) {
	offset, _, err = b.out.Append(record)
	return offset, err
}

// Count returns the number of records appended so far.
func (b *Builder) Count() int { return b.out.Count() }

// Gather finalizes the underlying RecordSet, appending its wire segments
// to out.
func (b *Builder) Gather(out *[][]byte) (int, error) {
	return b.out.Gather(out)
}

// Reader iterates a serialized DataSet in append order.
type Reader struct {
	in *recordset.Input
}

// NewReader parses a serialized DataSet, optionally verifying its
// checksum. An empty b is what Gather emits for a set with no records,
// and reads back as an empty set.
func NewReader(b []byte, verifyChecksum bool) (*Reader, error) {
	if len(b) == 0 {
		return NewEmptyReader(), nil
	}
	in, err := recordset.NewInput(b, verifyChecksum)
	if err != nil {
		return nil, err
	}
	return &Reader{in: in}, nil
}

// NewEmptyReader returns a Reader over a DataSet that was never emitted on
// the wire (the EMPTY sentinel, spec.md §3): it reports zero records.
func NewEmptyReader() *Reader { return &Reader{} }

// Count returns the number of records in the set.
func (r *Reader) Count() int {
	if r.in == nil {
		return 0
	}
	return r.in.Count()
}

// Next returns the next record in append order, or an error once
// exhausted (recordset.ErrNoMoreRecords).
func (r *Reader) Next() ([]byte, error) {
	if r.in == nil {
		return nil, &recordset.Error{Code: recordset.ErrNoMoreRecords}
	}
	return r.in.Next()
}
