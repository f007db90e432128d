// Package inputmap implements InputMap: the per-source EVS-ordered
// message buffer that tracks, for each source, the lowest-unseen and
// highest-seen sequence numbers, and exposes the global ARU and safe-seq
// watermarks derived from them (spec.md §3/§4.7).
package inputmap

// Order classifies a stored message: Normal messages are real payloads;
// Drop messages are synthetic fillers inserted to keep a source's range
// contiguous while the real message at that seqno is still missing
// upstream (spec.md §4.7: "Synthetic fillers").
type Order int

const (
	OrderNormal Order = iota
	OrderDrop
)

// Entry is one stored message, keyed by (Src, Seq).
type Entry struct {
	Src     int
	Seq     int64
	Order   Order
	Payload []byte
}

type key struct {
	src int
	seq int64
}

// RecoveryStore is an optional write-through overflow for entries moved
// into the recovery index, so a window larger than memory can still serve
// peer retransmits (spec.md §4.7; implemented by
// inputmap/recoverystore against bbolt).
type RecoveryStore interface {
	Put(src int, seq int64, e *Entry) error
	DeleteUpTo(src int, seq int64) error
}

// Map is the InputMap (spec.md §4.7). All precondition violations panic
// with a *Error carrying ErrInvariantViolated, per the spec's stated
// failure model: "all precondition violations raise invariant-violated
// (programmer error); no recoverable errors originate here."
type Map struct {
	nSources int
	window   int64

	ranges        []Range
	safeSeqPerSrc []int64

	aruSeq  int64
	safeSeq int64

	live     map[key]*Entry
	recovery map[key]*Entry

	store RecoveryStore
}

// NewMap constructs an unconfigured Map; Reset must be called before use.
func NewMap() *Map { return &Map{} }

// SetRecoveryStore installs an optional durable overflow for recovery-index
// entries. Erase write-throughs to it in addition to the in-memory index;
// SetSafeSeq's discard pass tells it to drop entries up to the new
// watermark too.
func (m *Map) SetRecoveryStore(store RecoveryStore) { m.store = store }

// Reset installs an N-source range table, all ranges (0,-1), clearing both
// indices (spec.md §4.7). Precondition: both indices already empty.
func (m *Map) Reset(nSources int, window int64) {
	if len(m.live) > 0 || len(m.recovery) > 0 {
		invariantViolated("reset called with non-empty live/recovery index")
	}
	m.nSources = nSources
	m.window = window
	m.ranges = make([]Range, nSources)
	m.safeSeqPerSrc = make([]int64, nSources)
	for i := range m.ranges {
		m.ranges[i] = NewRange()
		m.safeSeqPerSrc[i] = -1
	}
	m.aruSeq = -1
	m.safeSeq = -1
	m.live = make(map[key]*Entry)
	m.recovery = make(map[key]*Entry)
}

func (m *Map) checkSrc(src int) {
	if src < 0 || src >= m.nSources {
		invariantViolated("source index %d out of range [0,%d)", src, m.nSources)
	}
}

func (m *Map) present(src int, seq int64) bool {
	k := key{src, seq}
	if _, ok := m.live[k]; ok {
		return true
	}
	_, ok := m.recovery[k]
	return ok
}

// Insert stores msg at (src, seq), expanding the source's range and
// advancing its LU past any now-contiguous filled slots, then recomputes
// the global ARU. If seqRange > 0, synthetic Drop fillers are fabricated
// at seq+1..seq+seqRange to keep the range tight (spec.md §4.7).
//
// Precondition: aruSeq < seq, and range[src].LU ≤ seq.
func (m *Map) Insert(src int, seq int64, order Order, payload []byte, seqRange int64) Range {
	m.checkSrc(src)
	if seq <= m.aruSeq {
		invariantViolated("insert src=%d seq=%d: not greater than aru_seq=%d", src, seq, m.aruSeq)
	}
	if seq < m.ranges[src].LU {
		invariantViolated("insert src=%d seq=%d: below range.lu=%d", src, seq, m.ranges[src].LU)
	}

	m.storeIfAbsent(src, seq, order, payload)
	for i := int64(1); i <= seqRange; i++ {
		m.storeIfAbsent(src, seq+i, OrderDrop, nil)
	}

	r := m.ranges[src]
	highest := seq + seqRange
	if highest > r.HS {
		r.HS = highest
	}
	for m.present(src, r.LU) {
		r.LU++
	}
	m.ranges[src] = r

	m.recomputeARU()
	return r
}

func (m *Map) storeIfAbsent(src int, seq int64, order Order, payload []byte) {
	k := key{src, seq}
	if m.present(src, seq) {
		return
	}
	m.live[k] = &Entry{Src: src, Seq: seq, Order: order, Payload: payload}
}

func (m *Map) recomputeARU() {
	var min int64 = -1
	for i, r := range m.ranges {
		v := r.LU - 1
		if i == 0 || v < min {
			min = v
		}
	}
	m.aruSeq = min
}

// Erase moves the message at (src, seq) from the live index to the
// recovery index (spec.md §4.7). Precondition: the message must currently
// be in the live index.
func (m *Map) Erase(src int, seq int64) {
	m.checkSrc(src)
	k := key{src, seq}
	e, ok := m.live[k]
	if !ok {
		invariantViolated("erase src=%d seq=%d: not in live index", src, seq)
	}
	delete(m.live, k)
	m.recovery[k] = e
	if m.store != nil {
		if err := m.store.Put(src, seq, e); err != nil {
			invariantViolated("erase src=%d seq=%d: recovery store put failed: %v", src, seq, err)
		}
	}
}

// SetSafeSeq updates source src's safe_seq, recomputes the global
// safe_seq = min_i safe_seq[i], and discards src's recovery-index entries
// with seqno ≤ the new per-source watermark (spec.md §4.7). Precondition:
// seq ≥ the prior safe_seq[src]; postcondition: global safe_seq ≤ aru_seq.
func (m *Map) SetSafeSeq(src int, seq int64) {
	m.checkSrc(src)
	if seq < m.safeSeqPerSrc[src] {
		invariantViolated("set_safe_seq src=%d seq=%d: below prior safe_seq=%d", src, seq, m.safeSeqPerSrc[src])
	}
	m.safeSeqPerSrc[src] = seq

	var min int64 = seq
	for i, v := range m.safeSeqPerSrc {
		if i == 0 || v < min {
			min = v
		}
	}
	if min > m.aruSeq {
		invariantViolated("set_safe_seq: resulting safe_seq=%d exceeds aru_seq=%d", min, m.aruSeq)
	}
	m.safeSeq = min

	for k := range m.recovery {
		if k.src == src && k.seq <= seq {
			delete(m.recovery, k)
		}
	}
	if m.store != nil {
		if err := m.store.DeleteUpTo(src, seq); err != nil {
			invariantViolated("set_safe_seq src=%d seq=%d: recovery store discard failed: %v", src, seq, err)
		}
	}
}

// Find returns the entry at (src, seq) from either index, or false if
// absent.
func (m *Map) Find(src int, seq int64) (*Entry, bool) {
	m.checkSrc(src)
	k := key{src, seq}
	if e, ok := m.live[k]; ok {
		return e, true
	}
	e, ok := m.recovery[k]
	return e, ok
}

// Recover returns the entry at (src, seq) from the recovery index.
// Precondition: the entry must exist there — per spec.md §4.7's failure
// model ("no recoverable errors originate here"), a miss is an invariant
// violation, not an ordinary not-found (see DESIGN.md for why this
// implementation follows that reading literally rather than treating a
// discarded retransmission range as recoverable).
func (m *Map) Recover(src int, seq int64) *Entry {
	m.checkSrc(src)
	e, ok := m.recovery[key{src, seq}]
	if !ok {
		invariantViolated("recover src=%d seq=%d: not in recovery index", src, seq)
	}
	return e
}

// Range returns source src's current (LU, HS) pair.
func (m *Map) Range(src int) Range {
	m.checkSrc(src)
	return m.ranges[src]
}

// ARUSeq returns the global all-received-up-to watermark.
func (m *Map) ARUSeq() int64 { return m.aruSeq }

// SafeSeq returns the global safe-seq watermark.
func (m *Map) SafeSeq() int64 { return m.safeSeq }
