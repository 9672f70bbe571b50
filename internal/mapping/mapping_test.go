package mapping

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scimbridge/scimbridge/internal/scim"
)

func defaultMapper(t *testing.T) *Mapper {
	t.Helper()
	m, err := New(DefaultRules())
	require.NoError(t, err)
	return m
}

func TestToInternalNesting(t *testing.T) {
	m := defaultMapper(t)

	doc, err := m.ToInternal(scim.KindUsers, map[string]any{
		"userName":          "alice",
		"active":            true,
		"name.givenName":    "Alice",
		"name.familyName":   "Smith",
		"emails.work.value": "alice@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"userName": "alice",
		"active":   true,
		"name": map[string]any{
			"givenName":  "Alice",
			"familyName": "Smith",
		},
		"attributes": map[string]any{
			"email": "alice@example.com",
		},
	}, doc)
}

func TestToInternalDropsUnmappedAttributes(t *testing.T) {
	m := defaultMapper(t)

	doc, err := m.ToInternal(scim.KindUsers, map[string]any{
		"userName":     "alice",
		"nickName":     "al",
		"title":        "engineer",
		"x509.0.value": "cert",
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"userName": "alice"}, doc)
}

func TestRoundTrip(t *testing.T) {
	m := defaultMapper(t)

	ext := map[string]any{
		"id":                "u1",
		"userName":          "alice",
		"active":            true,
		"name.givenName":    "Alice",
		"emails.work.value": "alice@example.com",
	}
	doc, err := m.ToInternal(scim.KindUsers, ext)
	require.NoError(t, err)

	back, err := m.ToExternal(scim.KindUsers, doc)
	require.NoError(t, err)
	require.Equal(t, ext, back)
}

func TestToExternalSkipsMissingFields(t *testing.T) {
	m := defaultMapper(t)

	ext, err := m.ToExternal(scim.KindUsers, map[string]any{
		"id":       "u1",
		"userName": "alice",
		"internal": map[string]any{"unmapped": "x"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": "u1", "userName": "alice"}, ext)
	require.NotContains(t, ext, "active")
}

func TestCoercion(t *testing.T) {
	m, err := New(map[scim.Kind][]Rule{
		scim.KindUsers: {
			{External: "active", Internal: "active", Type: TypeBoolean},
			{External: "quota", Internal: "quota", Type: TypeNumber},
			{External: "label", Internal: "label", Type: TypeString},
		},
	})
	require.NoError(t, err)

	doc, err := m.ToInternal(scim.KindUsers, map[string]any{
		"active": "true", // string to boolean
		"quota":  "42.5", // string to number
		"label":  7,      // number to string
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"active": true,
		"quota":  42.5,
		"label":  "7",
	}, doc)
}

func TestCoercionFailure(t *testing.T) {
	m := defaultMapper(t)

	_, err := m.ToInternal(scim.KindUsers, map[string]any{"active": "maybe"})
	var te *TypeError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "active", te.Attribute)
	require.Equal(t, TypeBoolean, te.Type)
}

func TestCoercionRejectsStructuredValues(t *testing.T) {
	m := defaultMapper(t)

	_, err := m.ToInternal(scim.KindUsers, map[string]any{
		"userName": map[string]any{"oops": true},
	})
	var te *TypeError
	require.True(t, errors.As(err, &te))
}

func TestNewRejectsBadRuleTables(t *testing.T) {
	cases := []struct {
		name  string
		rules []Rule
	}{
		{"duplicate external", []Rule{
			{External: "a", Internal: "x", Type: TypeString},
			{External: "a", Internal: "y", Type: TypeString},
		}},
		{"duplicate internal", []Rule{
			{External: "a", Internal: "x", Type: TypeString},
			{External: "b", Internal: "x", Type: TypeString},
		}},
		{"empty segment", []Rule{
			{External: "a", Internal: "x..y", Type: TypeString},
		}},
		{"unknown type", []Rule{
			{External: "a", Internal: "x", Type: "decimal"},
		}},
		{"non-leaf path", []Rule{
			{External: "a", Internal: "name", Type: TypeString},
			{External: "b", Internal: "name.givenName", Type: TypeString},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(map[scim.Kind][]Rule{scim.KindUsers: tc.rules})
			require.Error(t, err)
		})
	}
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)

	_, ok := m.Rule(scim.KindUsers, "userName")
	require.True(t, ok)
	_, ok = m.Rule(scim.KindGroups, "displayName")
	require.True(t, ok)
}

func TestLoadOverrideFile(t *testing.T) {
	path := t.TempDir() + "/rules.json"
	content := `{"users":[
		{"external":"id","internal":"id","type":"string"},
		{"external":"userName","internal":"login","type":"string"}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := Load(path)
	require.NoError(t, err)

	r, ok := m.Rule(scim.KindUsers, "userName")
	require.True(t, ok)
	require.Equal(t, "login", r.Internal)

	// groups keep the defaults when omitted from the file
	_, ok = m.Rule(scim.KindGroups, "displayName")
	require.True(t, ok)
}
