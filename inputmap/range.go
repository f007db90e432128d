package inputmap

// Range tracks one source's delivery window (spec.md §3/§4.7): LU is the
// lowest unseen sequence number, HS the highest seen. The invariant
// LU ≤ HS+1 holds after every successful Insert.
type Range struct {
	LU int64
	HS int64
}

// NewRange returns the initial range for a source with nothing received:
// LU=0 (nothing seen yet, so seqno 0 is the next expected), HS=-1 (no
// seqno seen).
func NewRange() Range { return Range{LU: 0, HS: -1} }

// contiguous reports whether seq would extend the range's contiguous
// prefix, i.e. seq == LU.
func (r Range) contiguous(seq int64) bool { return seq == r.LU }
