package keyset

import "fmt"

// ErrorCode enumerates KeySet failure kinds (spec.md §4.3/§4.4).
type ErrorCode string

const (
	// ErrDuplicate names the weaker-or-equal-prefix duplicate condition.
	// Builder.Append never returns it: it absorbs duplicates silently
	// (spec.md §7) and reports them only via the Duplicate Outcome.
	ErrDuplicate ErrorCode = "KS_DUPLICATE"
	// ErrEmptyKey is raised by Match when either side is an empty key
	// (spec.md §4.4: "matching empty keys is prohibited").
	ErrEmptyKey ErrorCode = "KS_EMPTY_KEY_MATCH"
	// ErrMessageTooLarge mirrors the WriteSet builder's size cap, surfaced
	// when the underlying RecordSet append fails.
	ErrMessageTooLarge ErrorCode = "KS_MESSAGE_TOO_LARGE"
)

// Error is the typed error KeySet operations return.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}
