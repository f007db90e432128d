package inputmap

import "fmt"

// ErrorCode enumerates InputMap failure kinds. Per spec.md §4.7, every
// precondition violation here is a programmer error ("invariant-violated")
// rather than a recoverable condition; Map methods panic with a *Error
// instead of returning one, so this type exists purely to give the panic
// value a structured, type-assertable shape (mirrored on consensus/errors.go's
// ErrorCode/TxError pairing, generalized from "recoverable" to "fatal").
type ErrorCode string

const (
	ErrInvariantViolated ErrorCode = "IM_INVARIANT_VIOLATED"
)

// Error is the panic value raised for invariant violations.
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

func invariantViolated(format string, args ...any) {
	panic(&Error{Code: ErrInvariantViolated, Msg: fmt.Sprintf(format, args...)})
}
