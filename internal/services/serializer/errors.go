package serializer

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMismatch matches every SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrFieldAccess matches every FieldAccessError.
	ErrFieldAccess = errors.New("field access error")
)

// SchemaMismatchError reports a record whose descriptor is not registered,
// or one found where the schema expects a different descriptor.
type SchemaMismatchError struct {
	Descriptor string
	Reason     string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: descriptor %q: %s", e.Descriptor, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// FieldAccessError reports a declared field or relationship that the record
// does not provide.
type FieldAccessError struct {
	Descriptor string
	Field      string
	Reason     string
}

func (e *FieldAccessError) Error() string {
	return fmt.Sprintf("field access error: %s.%s: %s", e.Descriptor, e.Field, e.Reason)
}

func (e *FieldAccessError) Is(target error) bool {
	return target == ErrFieldAccess
}
