package keyset

import (
	"encoding/binary"

	"github.com/codership/galera-sub007/checksum"
	"github.com/codership/galera-sub007/wsrep/recordset"
)

// Format selects the key-part hash width and whether original key bytes
// are retained alongside the hash (spec.md §6's repl.key_format).
type Format uint8

const (
	FLAT8 Format = iota
	FLAT8A
	FLAT16
	FLAT16A
)

// HashSize returns the stored hash width for f: 8 bytes for the FLAT8
// variants, 16 for FLAT16.
func (f Format) HashSize() int {
	if f == FLAT16 || f == FLAT16A {
		return 16
	}
	return 8
}

// Annotated reports whether f retains original key bytes alongside the hash.
func (f Format) Annotated() bool {
	return f == FLAT8A || f == FLAT16A
}

// Outcome reports what Builder.Append did with a key, replacing the
// source's exception-based DUPLICATE signal with an explicit enum result
// (spec.md §9).
type Outcome int

const (
	Inserted Outcome = iota
	Duplicate
	Replaced
)

// Builder appends keys into an underlying RecordSet, performing the
// duplicate-suppression and prefix-upgrade algorithm of spec.md §4.3.
//
// This implementation resolves the ancestor-walk optimization via direct
// hybrid-set lookups at every path depth rather than a cached
// previous-key-only lockstep comparison (see DESIGN.md): it reproduces
// every invariant and end-to-end scenario in spec.md §8 — duplicate
// suppression, strongest-wins, two-entries-on-upgrade — while
// deduplicating against *every* previously appended key, not only the
// immediately preceding one.
type Builder struct {
	version WSVersion
	format  Format
	out     *recordset.Output
	hybrid  *hybridSet
}

// NewBuilder creates a Builder targeting RecordSet version rsVersion
// (VER1 or VER2), write-set version wsVersion (gates the leaf-prefix
// table), key format, and checksum kind, capped at maxPayloadSize bytes.
func NewBuilder(rsVersion recordset.Version, wsVersion WSVersion, format Format, checksumKind checksum.MMHKind, maxPayloadSize int) *Builder {
	return &Builder{
		version: wsVersion,
		format:  format,
		out:     recordset.NewOutput(rsVersion, checksumKind, maxPayloadSize),
		hybrid:  newHybridSet(),
	}
}

// Append adds a multi-part key (spec.md §4.3). copy documents whether the
// caller guarantees parts' backing arrays outlive Gather; this
// implementation always copies into the RecordSet regardless (RecordSet's
// own Append copies), so copy affects nothing observable here — it exists
// to keep the call signature faithful to the source algorithm's intent.
func (b *Builder) Append(parts [][]byte, t KeyType, copy bool) (Outcome, error) {
	if len(parts) == 0 {
		return Duplicate, newErr(ErrEmptyKey, "append: empty key")
	}
	leaf := LeafPrefix(t, b.version)

	var cum []byte
	for i, part := range parts {
		cum = appendLengthPrefixed(cum, part)
		hash := checksum.MMH(checksum.MMH128, cum)
		var h16 [16]byte
		copyBytes(h16[:], hash)

		isLeaf := i == len(parts)-1
		wantPrefix := PrefixShared
		if isLeaf {
			wantPrefix = leaf
		}

		existing := b.hybrid.find(h16)
		if existing == nil {
			ptr, _, err := b.out.Append(encodePart(h16, wantPrefix, b.version, b.format, part))
			if err != nil {
				return Duplicate, newErr(ErrMessageTooLarge, err.Error())
			}
			b.hybrid.insert(h16, wantPrefix, ptr)
			if isLeaf {
				return Inserted, nil
			}
			continue
		}

		if !isLeaf {
			// Branch node already recorded (as Shared, the only prefix a
			// branch ever carries); nothing to re-transmit.
			continue
		}

		if existing.prefix.StrongerOrEqual(wantPrefix) {
			// Existing leaf already at least as strong: silently absorbed.
			return Duplicate, nil
		}

		// Stronger duplicate: the original record is already
		// checksummed/emitted, so store a second, stronger record and
		// redirect the set entry (spec.md §4.3).
		ptr, _, err := b.out.Append(encodePart(h16, wantPrefix, b.version, b.format, part))
		if err != nil {
			return Duplicate, newErr(ErrMessageTooLarge, err.Error())
		}
		b.hybrid.update(existing, wantPrefix, ptr)
		return Replaced, nil
	}
	// Unreachable: the loop always returns on the leaf iteration.
	return Inserted, nil
}

// Gather finalizes the underlying RecordSet.
func (b *Builder) Gather(out *[][]byte) (int, error) {
	return b.out.Gather(out)
}

// Count returns the number of records (key parts) appended so far.
func (b *Builder) Count() int { return b.out.Count() }

func appendLengthPrefixed(dst []byte, part []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(part)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, part...)
	return dst
}

func copyBytes(dst []byte, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	copy(dst[:n], src[:n])
}

// encodePart renders one wire key part: a leading byte packing
// prefix(2 bits)/version(3 bits), the stored hash, and — for annotated
// formats — the original part bytes length-prefixed.
func encodePart(hash [16]byte, prefix Prefix, version WSVersion, format Format, original []byte) []byte {
	hashSize := format.HashSize()
	out := make([]byte, 0, 1+hashSize+4+len(original))
	out = append(out, byte(prefix&0x3)|((byte(version)&0x7)<<2))
	out = append(out, hash[:hashSize]...)
	if format.Annotated() {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(original)))
		out = append(out, lenBuf[:]...)
		out = append(out, original...)
	}
	return out
}

// Part is a parsed KeyPart, as produced by DecodePart (spec.md §4.4).
type Part struct {
	Prefix     Prefix
	Version    WSVersion
	Hash       []byte // masked hash field, hashSize bytes
	Annotation []byte // original bytes, if the format retained them
}

// DecodePart parses one wire key part encoded by encodePart.
func DecodePart(b []byte, format Format) (Part, error) {
	if len(b) < 1 {
		return Part{}, newErr(ErrEmptyKey, "decode: empty part")
	}
	prefix := Prefix(b[0] & 0x3)
	version := WSVersion((b[0] >> 2) & 0x7)
	hashSize := format.HashSize()
	if len(b) < 1+hashSize {
		return Part{}, newErr(ErrEmptyKey, "decode: truncated hash")
	}
	hash := append([]byte(nil), b[1:1+hashSize]...)
	off := 1 + hashSize
	var annotation []byte
	if format.Annotated() {
		if len(b) < off+4 {
			return Part{}, newErr(ErrEmptyKey, "decode: truncated annotation length")
		}
		n := int(binary.LittleEndian.Uint32(b[off : off+4]))
		off += 4
		if len(b) < off+n {
			return Part{}, newErr(ErrEmptyKey, "decode: truncated annotation")
		}
		annotation = append([]byte(nil), b[off:off+n]...)
	}
	return Part{Prefix: prefix, Version: version, Hash: hash, Annotation: annotation}, nil
}

// Match implements spec.md §4.4's receiver-side comparison: two parts match
// iff their masked hash fields are byte-identical, independent of wire
// version. Matching an empty key is prohibited.
func Match(a, b Part) (bool, error) {
	if len(a.Hash) == 0 || len(b.Hash) == 0 {
		return false, newErr(ErrEmptyKey, "match: empty key")
	}
	if len(a.Hash) != len(b.Hash) {
		return false, nil
	}
	for i := range a.Hash {
		if a.Hash[i] != b.Hash[i] {
			return false, nil
		}
	}
	return true, nil
}
