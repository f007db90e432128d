package keyset

// hybridSet is the duplicate-detection table backing Builder.Append
// (spec.md §3: "a fixed 64-slot open-addressed table with depth 3 falling
// back to a heap table"). Lookups and inserts are O(1) expected.
//
// The fast path indexes by the low byte of the 128-bit part hash modulo the
// table size; a miss probes up to probeDepth consecutive slots before
// spilling the entry into the overflow map. This is a deliberately simple
// index function (documented, not a general-purpose hash-map replacement):
// the table's job is to make the common case (a handful of key parts per
// transaction) allocation-free, not to behave well adversarially.
type hybridEntry struct {
	hash   [16]byte
	prefix Prefix
	ptr    int // offset of the backing RecordSet record, for Replace
}

const (
	inlineTableSize = 64
	probeDepth      = 3
)

type hybridSet struct {
	inline   [inlineTableSize]hybridEntry
	occupied [inlineTableSize]bool
	overflow map[[16]byte]*hybridEntry
}

func newHybridSet() *hybridSet {
	return &hybridSet{}
}

func index(hash [16]byte) int {
	return int(hash[0]) % inlineTableSize
}

// find returns the entry for hash, or nil if absent.
func (s *hybridSet) find(hash [16]byte) *hybridEntry {
	idx := index(hash)
	for d := 0; d < probeDepth; d++ {
		slot := (idx + d) % inlineTableSize
		if s.occupied[slot] && s.inline[slot].hash == hash {
			return &s.inline[slot]
		}
	}
	if s.overflow != nil {
		if e, ok := s.overflow[hash]; ok {
			return e
		}
	}
	return nil
}

// insert adds a new entry for hash. Caller must have already confirmed
// hash is absent via find.
func (s *hybridSet) insert(hash [16]byte, prefix Prefix, ptr int) {
	idx := index(hash)
	for d := 0; d < probeDepth; d++ {
		slot := (idx + d) % inlineTableSize
		if !s.occupied[slot] {
			s.occupied[slot] = true
			s.inline[slot] = hybridEntry{hash: hash, prefix: prefix, ptr: ptr}
			return
		}
	}
	if s.overflow == nil {
		s.overflow = make(map[[16]byte]*hybridEntry)
	}
	e := hybridEntry{hash: hash, prefix: prefix, ptr: ptr}
	s.overflow[hash] = &e
}

// update rewrites an existing entry's prefix/ptr in place (spec.md §4.3's
// "redirect the set entry's pointer" on a stronger-duplicate replace).
func (s *hybridSet) update(e *hybridEntry, prefix Prefix, ptr int) {
	e.prefix = prefix
	e.ptr = ptr
}

// inlineCount reports how many entries currently live in the fixed table
// (used by tests to verify the 64-entry boundary in spec.md §8).
func (s *hybridSet) inlineCount() int {
	n := 0
	for _, occ := range s.occupied {
		if occ {
			n++
		}
	}
	return n
}

func (s *hybridSet) overflowCount() int { return len(s.overflow) }
