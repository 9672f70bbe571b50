package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scimbridge/scimbridge/internal/mapping"
	"github.com/scimbridge/scimbridge/internal/membership"
	"github.com/scimbridge/scimbridge/internal/query"
	"github.com/scimbridge/scimbridge/internal/scim"
	"github.com/scimbridge/scimbridge/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	m, err := mapping.New(mapping.DefaultRules())
	require.NoError(t, err)
	st := store.NewMemoryStore()
	eng := membership.NewEngine(st, m, nil)
	return NewService(st, m, eng, nil)
}

func createUser(t *testing.T, s *Service, userName string) string {
	t.Helper()
	ext, err := s.CreateUser(context.Background(), map[string]any{"userName": userName})
	require.NoError(t, err)
	id, _ := ext["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func createGroup(t *testing.T, s *Service, displayName string) string {
	t.Helper()
	ext, err := s.CreateGroup(context.Background(), map[string]any{"displayName": displayName})
	require.NoError(t, err)
	id, _ := ext["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func byID(id string) query.Predicate {
	return query.Predicate{Attribute: "id", Operator: "eq", Value: id}
}

func TestCreateUserGeneratesID(t *testing.T) {
	s := testService(t)
	ext, err := s.CreateUser(context.Background(), map[string]any{
		"userName":       "alice",
		"active":         true,
		"name.givenName": "Alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ext["id"])
	require.Equal(t, "alice", ext["userName"])
	require.Equal(t, true, ext["active"])
}

func TestCreateUserKeepsSuppliedID(t *testing.T) {
	s := testService(t)
	ext, err := s.CreateUser(context.Background(), map[string]any{"id": "u1", "userName": "alice"})
	require.NoError(t, err)
	require.Equal(t, "u1", ext["id"])
}

func TestCreateUserDuplicate(t *testing.T) {
	s := testService(t)
	createUser(t, s, "alice")

	_, err := s.CreateUser(context.Background(), map[string]any{"userName": "alice"})
	var dup *store.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	require.Contains(t, err.Error(), "createUser")
}

func TestGetUsersByUserName(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	createUser(t, s, "alice")
	createUser(t, s, "bob")

	page, err := s.GetUsers(ctx, query.Predicate{Attribute: "userName", Operator: "eq", Value: "alice"}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalResults)
	require.Equal(t, "alice", page.Resources[0]["userName"])

	page, err = s.GetUsers(ctx, query.Predicate{}, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalResults)
}

func TestGetUsersUnsupportedFilter(t *testing.T) {
	s := testService(t)
	_, err := s.GetUsers(context.Background(), query.Predicate{Raw: `userName sw "al"`}, 0)
	var ue *query.UnsupportedFilterError
	require.ErrorAs(t, err, &ue)
}

func TestGetUsersCountCapsPageNotTotal(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	createUser(t, s, "alice")
	createUser(t, s, "bob")
	createUser(t, s, "carol")

	page, err := s.GetUsers(ctx, query.Predicate{}, 2)
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalResults)
	require.Len(t, page.Resources, 2)
}

func TestModifyUser(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	id := createUser(t, s, "alice")

	err := s.ModifyUser(ctx, id, map[string]any{
		"id":     "attacker-chosen", // must be ignored
		"active": false,
	})
	require.NoError(t, err)

	page, err := s.GetUsers(ctx, byID(id), 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalResults)
	require.Equal(t, false, page.Resources[0]["active"])
	require.Equal(t, id, page.Resources[0]["id"])
}

func TestModifyUserNotFound(t *testing.T) {
	s := testService(t)
	err := s.ModifyUser(context.Background(), "nope", map[string]any{"active": false})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, scim.KindUsers, nf.Kind)
	require.Contains(t, err.Error(), "modifyUser")
}

func TestGroupMembershipLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	aliceID := createUser(t, s, "alice")
	bobID := createUser(t, s, "bob")
	gid := createGroup(t, s, "engineering")

	// add alice and bob
	require.NoError(t, s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{
		{Value: "alice"},
		{Value: "bob"},
	}))

	page, err := s.GetGroups(ctx, byID(gid), 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalResults)
	members := page.Resources[0]["members"].([]scim.MemberRef)
	require.Equal(t, []scim.MemberRef{
		{Value: aliceID, Display: "alice"},
		{Value: bobID, Display: "bob"},
	}, members)

	// adding alice again changes nothing
	require.NoError(t, s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{{Value: "alice"}}))
	page, err = s.GetGroups(ctx, byID(gid), 0)
	require.NoError(t, err)
	require.Len(t, page.Resources[0]["members"].([]scim.MemberRef), 2)

	// deleting alice leaves only bob
	require.NoError(t, s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{
		{Value: "alice", Operation: "delete"},
	}))
	page, err = s.GetGroups(ctx, byID(gid), 0)
	require.NoError(t, err)
	members = page.Resources[0]["members"].([]scim.MemberRef)
	require.Equal(t, []scim.MemberRef{{Value: bobID, Display: "bob"}}, members)

	// deleting an absent member is a no-op
	require.NoError(t, s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{
		{Value: "alice", Operation: "delete"},
	}))

	// an unknown userName fails the whole modify
	err = s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{{Value: "ghost"}})
	var nf *membership.MemberNotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCreateGroupStartsEmpty(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	ext, err := s.CreateGroup(ctx, map[string]any{"displayName": "ops"})
	require.NoError(t, err)
	require.Equal(t, []scim.MemberRef{}, ext["members"])

	page, err := s.GetGroups(ctx, byID(ext["id"].(string)), 0)
	require.NoError(t, err)
	require.Empty(t, page.Resources[0]["members"].([]scim.MemberRef))
}

func TestGetUsersCarriesDerivedGroups(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	createUser(t, s, "alice")
	gid := createGroup(t, s, "engineering")
	require.NoError(t, s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{{Value: "alice"}}))

	page, err := s.GetUsers(ctx, query.Predicate{Attribute: "userName", Operator: "eq", Value: "alice"}, 0)
	require.NoError(t, err)
	groups := page.Resources[0]["groups"].([]scim.MemberRef)
	require.Equal(t, []scim.MemberRef{{Value: gid, Display: "engineering"}}, groups)

	// a user in no groups has no groups attribute at all
	createUser(t, s, "bob")
	page, err = s.GetUsers(ctx, query.Predicate{Attribute: "userName", Operator: "eq", Value: "bob"}, 0)
	require.NoError(t, err)
	require.NotContains(t, page.Resources[0], "groups")
}

func TestGetGroupsMembershipFilterReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	createUser(t, s, "alice")
	gid := createGroup(t, s, "engineering")
	require.NoError(t, s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{{Value: "alice"}}))

	// recognized but deliberately unanswered: empty page, no error
	page, err := s.GetGroups(ctx, query.Predicate{Attribute: "members.value", Operator: "eq", Value: "alice"}, 0)
	require.NoError(t, err)
	require.Equal(t, 0, page.TotalResults)
	require.Empty(t, page.Resources)
}

func TestDeleteUserPrunesGroups(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	createUser(t, s, "alice")
	bobID := createUser(t, s, "bob")
	eng := createGroup(t, s, "engineering")
	ops := createGroup(t, s, "ops")
	require.NoError(t, s.ModifyGroup(ctx, eng, nil, []scim.MemberEdit{{Value: "alice"}, {Value: "bob"}}))
	require.NoError(t, s.ModifyGroup(ctx, ops, nil, []scim.MemberEdit{{Value: "alice"}}))

	page, err := s.GetUsers(ctx, query.Predicate{Attribute: "userName", Operator: "eq", Value: "alice"}, 0)
	require.NoError(t, err)
	aliceID := page.Resources[0]["id"].(string)
	require.NoError(t, s.DeleteUser(ctx, aliceID))

	// alice is gone from every member list, bob is untouched
	page, err = s.GetGroups(ctx, byID(eng), 0)
	require.NoError(t, err)
	require.Equal(t, []scim.MemberRef{{Value: bobID, Display: "bob"}}, page.Resources[0]["members"].([]scim.MemberRef))

	page, err = s.GetGroups(ctx, byID(ops), 0)
	require.NoError(t, err)
	require.Empty(t, page.Resources[0]["members"].([]scim.MemberRef))

	// and the record itself is gone
	err = s.DeleteUser(ctx, aliceID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestDeleteGroup(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	createUser(t, s, "alice")
	gid := createGroup(t, s, "engineering")
	require.NoError(t, s.ModifyGroup(ctx, gid, nil, []scim.MemberEdit{{Value: "alice"}}))

	require.NoError(t, s.DeleteGroup(ctx, gid))

	page, err := s.GetGroups(ctx, query.Predicate{}, 0)
	require.NoError(t, err)
	require.Equal(t, 0, page.TotalResults)

	// the user survives its group
	page, err = s.GetUsers(ctx, query.Predicate{Attribute: "userName", Operator: "eq", Value: "alice"}, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalResults)

	err = s.DeleteGroup(ctx, gid)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Contains(t, err.Error(), "deleteGroup")
}

func TestModifyGroupAttributesAndMembersTogether(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	createUser(t, s, "alice")
	gid := createGroup(t, s, "engineering")

	require.NoError(t, s.ModifyGroup(ctx, gid, map[string]any{"displayName": "platform"}, []scim.MemberEdit{{Value: "alice"}}))

	page, err := s.GetGroups(ctx, byID(gid), 0)
	require.NoError(t, err)
	require.Equal(t, "platform", page.Resources[0]["displayName"])
	require.Len(t, page.Resources[0]["members"].([]scim.MemberRef), 1)
}

func TestModifyGroupNoChangesIsNoop(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	gid := createGroup(t, s, "engineering")

	require.NoError(t, s.ModifyGroup(ctx, gid, nil, nil))

	page, err := s.GetGroups(ctx, byID(gid), 0)
	require.NoError(t, err)
	require.Equal(t, "engineering", page.Resources[0]["displayName"])
}
