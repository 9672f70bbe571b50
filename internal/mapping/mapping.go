package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scimbridge/scimbridge/internal/dotpath"
	"github.com/scimbridge/scimbridge/internal/scim"
)

// Type is the declared attribute type of a mapping rule.
type Type string

const (
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeNumber  Type = "number"
)

// Rule binds one flat external attribute name to a dotted path inside the
// internal document, with the type coercion applied in both directions.
type Rule struct {
	External string `json:"external"`
	Internal string `json:"internal"`
	Type     Type   `json:"type"`
}

// TypeError reports a value that cannot be coerced to the rule's type.
type TypeError struct {
	Attribute string
	Type      Type
	Value     any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("mapping: attribute %q: cannot coerce %T value to %s", e.Attribute, e.Value, e.Type)
}

// Mapper translates between the flat external schema and the nested internal
// document schema. Rule sets are compiled and validated once at construction;
// translation never fails on rule-table shape afterwards, only on value
// coercion.
type Mapper struct {
	rules      map[scim.Kind][]Rule
	byExternal map[scim.Kind]map[string]Rule
}

// New compiles the given rule sets. It rejects duplicate external names,
// duplicate internal paths, empty path segments, unknown types, and internal
// paths that are not leaves (one rule's path being a prefix of another's).
func New(rules map[scim.Kind][]Rule) (*Mapper, error) {
	m := &Mapper{
		rules:      rules,
		byExternal: make(map[scim.Kind]map[string]Rule, len(rules)),
	}
	for kind, set := range rules {
		ext := make(map[string]Rule, len(set))
		internal := make(map[string]bool, len(set))
		for _, r := range set {
			if r.External == "" || r.Internal == "" {
				return nil, fmt.Errorf("mapping: %s: rule with empty name (external=%q internal=%q)", kind, r.External, r.Internal)
			}
			switch r.Type {
			case TypeString, TypeBoolean, TypeNumber:
			default:
				return nil, fmt.Errorf("mapping: %s: rule %q has unknown type %q", kind, r.External, r.Type)
			}
			if _, dup := ext[r.External]; dup {
				return nil, fmt.Errorf("mapping: %s: duplicate external attribute %q", kind, r.External)
			}
			for _, seg := range strings.Split(r.Internal, ".") {
				if seg == "" {
					return nil, fmt.Errorf("mapping: %s: rule %q has malformed internal path %q", kind, r.External, r.Internal)
				}
			}
			if internal[r.Internal] {
				return nil, fmt.Errorf("mapping: %s: duplicate internal path %q", kind, r.Internal)
			}
			internal[r.Internal] = true
			ext[r.External] = r
		}
		// leaf check: no path may be a strict prefix of another
		for a := range internal {
			for b := range internal {
				if a != b && strings.HasPrefix(b, a+".") {
					return nil, fmt.Errorf("mapping: %s: internal path %q is not a leaf (shadowed by %q)", kind, a, b)
				}
			}
		}
		m.byExternal[kind] = ext
	}
	return m, nil
}

// Rules returns the compiled rule set for a kind.
func (m *Mapper) Rules(kind scim.Kind) []Rule { return m.rules[kind] }

// Rule returns the rule for an external attribute name, if present.
func (m *Mapper) Rule(kind scim.Kind, external string) (Rule, bool) {
	r, ok := m.byExternal[kind][external]
	return r, ok
}

// ToInternal translates a flat external partial object into a nested internal
// partial object. External attributes without a rule are dropped silently.
func (m *Mapper) ToInternal(kind scim.Kind, ext map[string]any) (map[string]any, error) {
	doc := map[string]any{}
	for name, value := range ext {
		rule, ok := m.byExternal[kind][name]
		if !ok {
			continue
		}
		coerced, err := coerce(rule, value)
		if err != nil {
			return nil, err
		}
		dotpath.Set(doc, rule.Internal, coerced)
	}
	return doc, nil
}

// ToExternal translates a nested internal object into the flat external
// representation. Internal fields without a rule are dropped silently; a
// missing internal value yields a missing external attribute.
func (m *Mapper) ToExternal(kind scim.Kind, doc map[string]any) (map[string]any, error) {
	ext := map[string]any{}
	for _, rule := range m.rules[kind] {
		v, ok := dotpath.Get(doc, rule.Internal)
		if !ok || v == nil {
			continue
		}
		coerced, err := coerce(rule, v)
		if err != nil {
			return nil, err
		}
		ext[rule.External] = coerced
	}
	return ext, nil
}

// coerce normalizes a value to the rule's declared type. Scalars convert
// where a conversion exists; anything structured fails.
func coerce(rule Rule, v any) (any, error) {
	switch rule.Type {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case bool:
			return strconv.FormatBool(x), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(x), nil
		case int32:
			return strconv.FormatInt(int64(x), 10), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		}
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		}
	case TypeNumber:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f, nil
			}
		}
	}
	return nil, &TypeError{Attribute: rule.External, Type: rule.Type, Value: v}
}
