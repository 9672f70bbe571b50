package dotpath

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Helpers for reading and writing dotted paths ("name.givenName") inside
// nested map documents. Mongo decodes embedded documents as bson.M, plain
// JSON decodes as map[string]any, so both shapes are accepted when reading.

// Get returns the value at the dotted path, or (nil, false) when any segment
// is missing or a non-map value is hit before the last segment.
func Get(doc map[string]any, path string) (any, bool) {
	segs := strings.Split(path, ".")
	cur := doc
	for i, seg := range segs {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		m, ok := asMap(v)
		if !ok {
			return nil, false
		}
		cur = m
	}
	return nil, false
}

// Set writes the value at the dotted path, creating intermediate maps as
// needed. An existing non-map intermediate value is overwritten with a map.
func Set(doc map[string]any, path string, value any) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		m, ok := asMap(cur[seg])
		if !ok {
			m = map[string]any{}
			cur[seg] = m
		}
		cur = m
	}
	cur[segs[len(segs)-1]] = value
}

// Flatten converts a nested map into a flat map keyed by dotted paths.
// Slices and scalars are treated as leaves.
func Flatten(doc map[string]any) map[string]any {
	out := map[string]any{}
	flattenInto(out, "", doc)
	return out
}

func flattenInto(out map[string]any, prefix string, doc map[string]any) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := asMap(v); ok {
			flattenInto(out, key, m)
			continue
		}
		out[key] = v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case bson.M:
		return m, true
	default:
		return nil, false
	}
}
