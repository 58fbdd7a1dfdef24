package oracle

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks an oracle reply that decoded but is missing
// required fields or carries values outside the declared schema.
var ErrMalformedResponse = errors.New("malformed oracle response")

// Error is the typed failure of an oracle call. Callers decide retry vs
// skip; the oracle never degrades to a silent default result.
type Error struct {
	Op  string // "classify_merchant" or "classify_pattern"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsOracleError reports whether err originated in the oracle boundary.
func IsOracleError(err error) bool {
	var oe *Error
	return errors.As(err, &oe)
}
