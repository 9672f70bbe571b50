package dotpath

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestGetNested(t *testing.T) {
	doc := map[string]any{
		"id": "u1",
		"name": map[string]any{
			"givenName": "Alice",
		},
	}

	v, ok := Get(doc, "name.givenName")
	require.True(t, ok)
	require.Equal(t, "Alice", v)

	v, ok = Get(doc, "id")
	require.True(t, ok)
	require.Equal(t, "u1", v)
}

func TestGetBsonM(t *testing.T) {
	// mongo decodes embedded documents as bson.M
	doc := map[string]any{
		"attributes": bson.M{"email": "alice@example.com"},
	}

	v, ok := Get(doc, "attributes.email")
	require.True(t, ok)
	require.Equal(t, "alice@example.com", v)
}

func TestGetMissing(t *testing.T) {
	doc := map[string]any{
		"name": map[string]any{"givenName": "Alice"},
	}

	_, ok := Get(doc, "name.familyName")
	require.False(t, ok)

	_, ok = Get(doc, "missing.entirely")
	require.False(t, ok)

	// scalar hit before the last segment
	_, ok = Get(doc, "name.givenName.more")
	require.False(t, ok)
}

func TestSetCreatesIntermediates(t *testing.T) {
	doc := map[string]any{}
	Set(doc, "attributes.telephoneNumber", "555-0100")
	Set(doc, "attributes.email", "a@b")
	Set(doc, "active", true)

	require.Equal(t, map[string]any{
		"attributes": map[string]any{
			"telephoneNumber": "555-0100",
			"email":           "a@b",
		},
		"active": true,
	}, doc)
}

func TestSetOverwritesScalarIntermediate(t *testing.T) {
	doc := map[string]any{"name": "flat"}
	Set(doc, "name.givenName", "Alice")

	v, ok := Get(doc, "name.givenName")
	require.True(t, ok)
	require.Equal(t, "Alice", v)
}

func TestFlatten(t *testing.T) {
	doc := map[string]any{
		"id": "u1",
		"name": map[string]any{
			"givenName":  "Alice",
			"familyName": "Smith",
		},
		"members": []string{"a", "b"},
	}

	flat := Flatten(doc)
	require.Equal(t, map[string]any{
		"id":              "u1",
		"name.givenName":  "Alice",
		"name.familyName": "Smith",
		"members":         []string{"a", "b"},
	}, flat)
}

func TestFlattenRoundTrip(t *testing.T) {
	doc := map[string]any{}
	Set(doc, "a.b.c", 1)
	Set(doc, "a.b.d", 2)
	Set(doc, "e", 3)

	rebuilt := map[string]any{}
	for path, v := range Flatten(doc) {
		Set(rebuilt, path, v)
	}
	require.Equal(t, doc, rebuilt)
}
