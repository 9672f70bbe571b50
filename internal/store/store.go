package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/scimbridge/scimbridge/internal/scim"
)

// Where is an equality predicate over document fields, keyed by dotted field
// path. An empty Where matches every document. Equality against a list field
// matches list membership (Mongo semantics, mirrored by the memory store).
type Where map[string]any

// ErrNotFound is returned when a lookup, update or delete matches no record.
var ErrNotFound = errors.New("store: no matching record")

// DuplicateKeyError reports a uniqueness violation, carrying the conflicting
// field set.
type DuplicateKeyError struct {
	Fields map[string]any
}

func (e *DuplicateKeyError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("store: duplicate key on %v", keys)
}

// FieldError reports a write the store rejected for a reason other than a
// uniqueness violation.
type FieldError struct {
	Err error
}

func (e *FieldError) Error() string { return fmt.Sprintf("store: write rejected: %v", e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }

// FaultError reports a transport or driver failure, not classified further.
type FaultError struct {
	Err error
}

func (e *FaultError) Error() string { return fmt.Sprintf("store: fault: %v", e.Err) }
func (e *FaultError) Unwrap() error { return e.Err }

// Store is the document persistence port used by the bridge core. Update's
// set map is keyed by dotted field path (partial field replace).
type Store interface {
	FindMany(ctx context.Context, kind scim.Kind, where Where) ([]map[string]any, error)
	FindFirst(ctx context.Context, kind scim.Kind, where Where) (map[string]any, error)
	Create(ctx context.Context, kind scim.Kind, doc map[string]any) (map[string]any, error)
	Update(ctx context.Context, kind scim.Kind, where Where, set map[string]any) (map[string]any, error)
	Delete(ctx context.Context, kind scim.Kind, where Where) error
}

// uniqueFields lists the attributes carrying a uniqueness constraint per
// kind. Both implementations enforce the same set.
func uniqueFields(kind scim.Kind) []string {
	return []string{"id", kind.PrimaryName()}
}

// conflictFields extracts the unique-attribute values present in doc, used to
// populate DuplicateKeyError.
func conflictFields(kind scim.Kind, doc map[string]any) map[string]any {
	fields := map[string]any{}
	for _, f := range uniqueFields(kind) {
		if v, ok := doc[f]; ok {
			fields[f] = v
		}
	}
	return fields
}
