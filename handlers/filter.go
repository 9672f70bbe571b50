package handlers

import (
	"regexp"

	"github.com/scimbridge/scimbridge/internal/query"
)

// simpleFilter matches the single supported filter shape:
//
//	attribute op "value"
//
// e.g. `userName eq "alice"`. Anything else is passed through raw so the
// translator can reject it with the original expression intact.
var simpleFilter = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9.]*)\s+([a-zA-Z]{2})\s+"([^"]*)"\s*$`)

func parseFilter(raw string) query.Predicate {
	if raw == "" {
		return query.Predicate{}
	}
	m := simpleFilter.FindStringSubmatch(raw)
	if m == nil {
		return query.Predicate{Raw: raw}
	}
	return query.Predicate{Attribute: m[1], Operator: m[2], Value: m[3]}
}
