package store

import (
	"context"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/scimbridge/scimbridge/internal/dotpath"
	"github.com/scimbridge/scimbridge/internal/scim"
)

// MemoryStore is an in-memory Store used in unit tests and for running the
// bridge without a MongoDB backend. It mirrors the Mongo implementation's
// predicate and uniqueness semantics.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[scim.Kind][]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[scim.Kind][]map[string]any)}
}

func (s *MemoryStore) FindMany(ctx context.Context, kind scim.Kind, where Where) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []map[string]any{}
	for _, doc := range s.docs[kind] {
		if matches(doc, where) {
			out = append(out, deepCopy(doc))
		}
	}
	return out, nil
}

func (s *MemoryStore) FindFirst(ctx context.Context, kind scim.Kind, where Where) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs[kind] {
		if matches(doc, where) {
			return deepCopy(doc), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Create(ctx context.Context, kind scim.Kind, doc map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := deepCopy(doc)
	if err := s.checkUnique(kind, stored, -1); err != nil {
		return nil, err
	}
	s.docs[kind] = append(s.docs[kind], stored)
	return deepCopy(stored), nil
}

func (s *MemoryStore) Update(ctx context.Context, kind scim.Kind, where Where, set map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.docs[kind] {
		if !matches(doc, where) {
			continue
		}
		next := deepCopy(doc)
		for path, v := range set {
			dotpath.Set(next, path, deepCopyValue(v))
		}
		if err := s.checkUnique(kind, next, i); err != nil {
			return nil, err
		}
		s.docs[kind][i] = next
		return deepCopy(next), nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, kind scim.Kind, where Where) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.docs[kind] {
		if matches(doc, where) {
			s.docs[kind] = append(s.docs[kind][:i], s.docs[kind][i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// checkUnique rejects a document whose unique-attribute values collide with
// another stored document. skip is the index of the document being replaced.
func (s *MemoryStore) checkUnique(kind scim.Kind, doc map[string]any, skip int) error {
	for _, field := range uniqueFields(kind) {
		v, ok := doc[field]
		if !ok {
			continue
		}
		for i, other := range s.docs[kind] {
			if i == skip {
				continue
			}
			if ov, ok := other[field]; ok && reflect.DeepEqual(ov, v) {
				return &DuplicateKeyError{Fields: conflictFields(kind, doc)}
			}
		}
	}
	return nil
}

// matches applies the equality predicate; equality against a stored list
// means list membership, as in Mongo.
func matches(doc map[string]any, where Where) bool {
	for path, want := range where {
		got, ok := dotpath.Get(doc, path)
		if !ok {
			return false
		}
		if list, ok := asList(got); ok {
			found := false
			for _, item := range list {
				if reflect.DeepEqual(item, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case bson.A:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func deepCopy(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopy(x)
	case bson.M:
		return deepCopy(map[string]any(x))
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out
	default:
		return v
	}
}
