package keyset

// Prefix is the two-bit certification-strength tag attached to a key part
// (spec.md §3/§GLOSSARY). Ordering is the strength ordering: Shared is
// weakest, Exclusive strongest.
type Prefix uint8

const (
	PrefixShared    Prefix = 0
	PrefixReference Prefix = 1
	PrefixUpdate    Prefix = 2
	PrefixExclusive Prefix = 3
)

// Stronger reports whether p is a strictly stronger certification
// constraint than other.
func (p Prefix) Stronger(other Prefix) bool { return p > other }

// StrongerOrEqual reports whether p is at least as strong as other.
func (p Prefix) StrongerOrEqual(other Prefix) bool { return p >= other }

// KeyType is the certification-level type requested by the caller of
// Builder.Append — the input to the per-version leaf-prefix mapping
// (spec.md §3).
type KeyType uint8

const (
	TypeShared KeyType = iota
	TypeReference
	TypeUpdate
	TypeExclusive
)

// WSVersion is the write-set version that determines how KeyType maps to a
// wire Prefix (spec.md §3: "mapping from key-type to prefix varies with
// write-set version").
type WSVersion uint8

const (
	WSVer3 WSVersion = 3
	WSVer4 WSVersion = 4
	WSVer5 WSVersion = 5
)

// LeafPrefix computes the wire Prefix for a leaf key part of type t under
// write-set version v.
//
// VER3 collapses Reference/Update/Exclusive into a single non-shared
// (Exclusive) prefix, matching older write-sets that only distinguished
// "shared" from "everything else". VER4 splits Exclusive out from the
// Reference/Update pair. VER5 splits all four apart. This progression is
// this module's concrete resolution of spec.md §3's qualitative
// description ("VER3 collapses... VER4 splits them... VER5 splits
// further"); spec.md does not give an exact bit table, so it is recorded
// here rather than left implicit.
func LeafPrefix(t KeyType, v WSVersion) Prefix {
	switch v {
	case WSVer3:
		if t == TypeShared {
			return PrefixShared
		}
		return PrefixExclusive
	case WSVer4:
		switch t {
		case TypeShared:
			return PrefixShared
		case TypeExclusive:
			return PrefixExclusive
		default: // Reference, Update
			return PrefixUpdate
		}
	default: // WSVer5 and newer
		switch t {
		case TypeShared:
			return PrefixShared
		case TypeReference:
			return PrefixReference
		case TypeUpdate:
			return PrefixUpdate
		default:
			return PrefixExclusive
		}
	}
}
