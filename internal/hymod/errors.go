package hymod

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig indicates a parameter outside its valid range. It is detected before the
	// day loop runs.
	ErrConfig = errors.New("hymod: invalid parameter set")

	// ErrForcing indicates forcing data the model cannot run on: mismatched series,
	// an empty period, or a latitude/date combination with undefined day length.
	ErrForcing = errors.New("hymod: invalid forcing")

	// ErrInputExhausted indicates the parameter source ran out of vectors.
	ErrInputExhausted = errors.New("hymod: parameter input exhausted")
)

// ForcingError wraps a forcing problem with the offending record index, when known.
type ForcingError struct {
	Index   int
	Wrapped error
}

func (e *ForcingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %v", ErrForcing, e.Wrapped)
	}
	return fmt.Sprintf("%v at record %d: %v", ErrForcing, e.Index, e.Wrapped)
}

// Unwrap exposes both ErrForcing and the underlying cause to errors.Is/As.
func (e *ForcingError) Unwrap() []error {
	return []error{ErrForcing, e.Wrapped}
}
