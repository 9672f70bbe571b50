// Package query translates the supported filter predicate shape into a
// store-level where predicate. Only single-attribute equality on an
// identifier-class attribute is implemented; everything else is rejected with
// UnsupportedFilterError before the store is touched.
package query

import (
	"fmt"

	"github.com/scimbridge/scimbridge/internal/dotpath"
	"github.com/scimbridge/scimbridge/internal/mapping"
	"github.com/scimbridge/scimbridge/internal/scim"
	"github.com/scimbridge/scimbridge/internal/store"
)

// Predicate is the parsed form of a list filter. The zero value means "no
// filter" (match all). Raw carries the original expression when the host
// could not parse it into the single supported shape.
type Predicate struct {
	Attribute string
	Operator  string
	Value     string
	Raw       string
}

// IsZero reports whether no filter was supplied.
func (p Predicate) IsZero() bool {
	return p.Attribute == "" && p.Operator == "" && p.Value == "" && p.Raw == ""
}

// String reconstructs the filter expression for error reporting.
func (p Predicate) String() string {
	if p.Raw != "" {
		return p.Raw
	}
	return fmt.Sprintf("%s %s %q", p.Attribute, p.Operator, p.Value)
}

// UnsupportedFilterError reports a filter shape the bridge does not
// implement, carrying the original filter expression.
type UnsupportedFilterError struct {
	Filter string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("query: unsupported filter %q", e.Filter)
}

// Query is a translated predicate. MatchNone marks the recognized but
// unimplemented group membership filter, which yields an empty result set
// without querying the store.
type Query struct {
	Where     store.Where
	MatchNone bool
}

// Translate converts a predicate into a store where predicate for the given
// kind, mapping the filtered attribute through the mapper's outbound path.
func Translate(m *mapping.Mapper, kind scim.Kind, p Predicate) (Query, error) {
	if p.IsZero() {
		return Query{Where: store.Where{}}, nil
	}
	if p.Raw != "" {
		return Query{}, &UnsupportedFilterError{Filter: p.Raw}
	}
	if p.Operator != "eq" {
		return Query{}, &UnsupportedFilterError{Filter: p.String()}
	}
	// "all groups containing member X": recognized, deliberately not
	// implemented as a membership query; the caller gets an empty page.
	if kind == scim.KindGroups && p.Attribute == "members.value" {
		return Query{MatchNone: true}, nil
	}
	switch p.Attribute {
	case "id", "externalId", kind.PrimaryName():
	default:
		return Query{}, &UnsupportedFilterError{Filter: p.String()}
	}
	doc, err := m.ToInternal(kind, map[string]any{p.Attribute: p.Value})
	if err != nil {
		return Query{}, err
	}
	where := store.Where{}
	for path, v := range dotpath.Flatten(doc) {
		where[path] = v
	}
	if len(where) == 0 {
		// identifier attribute absent from the rule table
		return Query{}, &UnsupportedFilterError{Filter: p.String()}
	}
	return Query{Where: where}, nil
}
