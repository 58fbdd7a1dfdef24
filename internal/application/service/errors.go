package service

import (
	"errors"
	"fmt"
)

// ErrNoGroupsProcessed marks a batch where every merchant group failed;
// partial success never raises it.
var ErrNoGroupsProcessed = errors.New("no merchant groups could be processed")

// ErrMerchantExists rejects a create for an already-taken canonical name.
var ErrMerchantExists = errors.New("merchant already exists")

// ValidationError rejects a single malformed input (unparseable date or
// amount). The affected row is skipped; the batch continues.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// PersistenceError wraps a store write failure. It is fatal for the
// affected merchant group but sibling groups already written stay
// committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
