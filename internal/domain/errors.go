package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyQuery        = errors.New("empty query")
	ErrUnknownKind       = errors.New("unknown kind")
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	ErrEmbeddingMismatch = errors.New("stored vectors come from a different embedding model")
)

// ProviderError reports a failed call to the embedding or generation service.
// Start and End delimit the failed batch as a half-open range of input indexes.
// Retryable marks failures a later attempt may not hit (rate limits, timeouts).
type ProviderError struct {
	Op        string
	Start     int
	End       int
	Retryable bool
	Err       error
}

func NewProviderError(op string, start, end int, err error) *ProviderError {
	return &ProviderError{Op: op, Start: start, End: end, Err: err}
}

func (e *ProviderError) Error() string {
	if e.End > e.Start {
		return fmt.Sprintf("provider %s failed for batch [%d, %d): %v", e.Op, e.Start, e.End, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CorruptRecordError reports a stored vector that violates the shape invariant.
type CorruptRecordError struct {
	Kind     Kind
	EntityID int64
	Length   int
	Expected int
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt %s embedding %d: %d bytes, expected %d", e.Kind, e.EntityID, e.Length, e.Expected)
}

// NotFoundError reports an entity id missing from the catalog.
type NotFoundError struct {
	Kind Kind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CorruptRecords extracts every CorruptRecordError from a (possibly joined) error.
func CorruptRecords(err error) []*CorruptRecordError {
	if err == nil {
		return nil
	}
	var out []*CorruptRecordError
	var walk func(error)
	walk = func(e error) {
		if cre, ok := e.(*CorruptRecordError); ok {
			out = append(out, cre)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}
