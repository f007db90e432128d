package writeset

import (
	"github.com/codership/galera-sub007/checksum"
	"github.com/codership/galera-sub007/wsrep/dataset"
	"github.com/codership/galera-sub007/wsrep/keyset"
	"github.com/codership/galera-sub007/wsrep/recordset"
)

// Config configures a Builder's sub-container versions and size cap
// (spec.md §4.5: "storage directory, transaction id, key-set version,
// initial reserved buffer, flags" — the storage directory/initial-buffer
// allocator concerns belong to the external gcache collaborator per
// spec.md §1, so Config carries only the wire-relevant knobs).
type Config struct {
	KeySetRSVersion  recordset.Version
	DataSetRSVersion recordset.Version
	KeySetWSVersion  keyset.WSVersion
	KeyFormat        keyset.Format
	ChecksumKind     checksum.MMHKind
	MaxPayloadSize   int
	ConnID           uint64
	TrxID            uint64
	Source           [16]byte
}

// Builder assembles a WriteSet for transmission (spec.md §4.5).
type Builder struct {
	cfg        Config
	flags      uint16
	keys       *keyset.Builder
	data       *dataset.Builder
	unordered  *dataset.Builder
	annotation *dataset.Builder

	headerBuf [HeaderSize]byte
	gathered  bool
}

// NewBuilder creates a Builder from cfg with no keys, no data, flags=0.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg:  cfg,
		keys: keyset.NewBuilder(cfg.KeySetRSVersion, cfg.KeySetWSVersion, cfg.KeyFormat, cfg.ChecksumKind, cfg.MaxPayloadSize),
		data: dataset.NewBuilder(cfg.DataSetRSVersion, cfg.ChecksumKind, cfg.MaxPayloadSize),
	}
}

// SetFlags ORs bits into the header flags field.
func (b *Builder) SetFlags(flags uint16) { b.flags |= flags }

// AppendKey appends a multi-part key of the given certification type
// (spec.md §4.3 via wsrep/keyset).
func (b *Builder) AppendKey(parts [][]byte, t keyset.KeyType) (keyset.Outcome, error) {
	return b.keys.Append(parts, t, true)
}

// AppendData appends an ordered opaque data record.
func (b *Builder) AppendData(record []byte) (int, error) {
	return b.data.Append(record)
}

// AppendUnordered appends a record to the lazily created unordered set
// (spec.md §4.5: "tracked separately in the header flag").
func (b *Builder) AppendUnordered(record []byte) (int, error) {
	if b.unordered == nil {
		b.unordered = dataset.NewBuilder(b.cfg.DataSetRSVersion, b.cfg.ChecksumKind, b.cfg.MaxPayloadSize)
	}
	return b.unordered.Append(record)
}

// AppendAnnotation appends a record to the lazily created annotation set.
func (b *Builder) AppendAnnotation(record []byte) (int, error) {
	if b.annotation == nil {
		b.annotation = dataset.NewBuilder(b.cfg.DataSetRSVersion, b.cfg.ChecksumKind, b.cfg.MaxPayloadSize)
	}
	return b.annotation.Append(record)
}

// Gather writes the header, carrying the given last-seen, timestamp and
// PA range and a valid header CRC, followed by the key/data/unordered/
// annotation sets into out, returning the total byte length (spec.md
// §4.5). Finalize or SetSeqno may be called afterward to rewrite those
// fields in place; both recompute the CRC.
func (b *Builder) Gather(lastSeen int64, timestamp int64, paRange uint16, out *[][]byte) (int, error) {
	// An empty sub-set emits zero bytes (recordset.Output.Gather), so its
	// header version nibble carries the sentinel 0 ("EMPTY") rather than
	// the RecordSet version that would otherwise be on the wire — a real
	// empty WriteSet (no keys, no data) is exactly HeaderSize bytes.
	keySetVersion := uint8(0)
	if b.keys.Count() > 0 {
		keySetVersion = uint8(b.cfg.KeySetRSVersion)
	}
	dataSetVersion := uint8(0)
	if b.data.Count() > 0 {
		dataSetVersion = uint8(b.cfg.DataSetRSVersion)
	}
	h := Header{
		MaxVersion:     MaxVersion,
		MinVersion:     MinVersion,
		HeaderSize:     HeaderSize,
		KeySetVersion:  keySetVersion,
		DataSetVersion: dataSetVersion,
		HasUnordered:   b.unordered != nil,
		HasAnnotation:  b.annotation != nil,
		Flags:          b.flags,
		PARange:        paRange,
		LastSeen:       lastSeen,
		Timestamp:      timestamp,
		Source:         b.cfg.Source,
		ConnID:         b.cfg.ConnID,
		TrxID:          b.cfg.TrxID,
	}
	b.headerBuf = Encode(&h)

	total := HeaderSize
	*out = append(*out, b.headerBuf[:])

	if n, err := b.keys.Gather(out); err != nil {
		return 0, err
	} else {
		total += n
	}
	if n, err := b.data.Gather(out); err != nil {
		return 0, err
	} else {
		total += n
	}
	if b.unordered != nil {
		n, err := b.unordered.Gather(out)
		if err != nil {
			return 0, err
		}
		total += n
	}
	if b.annotation != nil {
		n, err := b.annotation.Gather(out)
		if err != nil {
			return 0, err
		}
		total += n
	}
	b.gathered = true
	return total, nil
}

// Finalize overwrites the last-seen, timestamp, and header CRC fields of
// the already-gathered header in place (spec.md §4.5). It must be called
// after Gather.
func (b *Builder) Finalize(lastSeen int64, timestamp int64, paRange uint16) error {
	if !b.gathered {
		return newErr(ErrNotCertified, "finalize called before gather")
	}
	h, err := Decode(b.headerBuf[:])
	if err != nil {
		return err
	}
	h.LastSeen = lastSeen
	h.Timestamp = timestamp
	h.PARange = paRange
	rewritten := Encode(&h)
	copy(b.headerBuf[:], rewritten[:])
	return nil
}

// HeaderBytes returns the builder's header buffer, for callers that hold
// onto the gathered scatter list and later mutate it via SetSeqno at the
// receiver (spec.md §4.5: "set_seqno ... on the receiver").
func (b *Builder) HeaderBytes() []byte { return b.headerBuf[:] }

// SetSeqno marks a gathered write-set certified, writing the global
// sequence number into the last-seen slot, updating the PA range, and
// recomputing the header CRC (spec.md §4.5).
func SetSeqno(headerBuf []byte, seqno int64, paRange uint16) error {
	h, err := Decode(headerBuf)
	if err != nil {
		return err
	}
	h.Flags |= FlagCertified
	h.LastSeen = seqno
	h.PARange = paRange
	rewritten := Encode(&h)
	copy(headerBuf[:HeaderSize], rewritten[:])
	return nil
}
