// Package connector is the bridge's operation façade: the eight CRUD entry
// points for users and groups, sequencing the query translator, attribute
// mapper, store and membership engine. Every failure is wrapped with the
// operation name and returned as a single typed error; nothing is retried
// here.
package connector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/scimbridge/scimbridge/internal/dotpath"
	"github.com/scimbridge/scimbridge/internal/idcache"
	"github.com/scimbridge/scimbridge/internal/mapping"
	"github.com/scimbridge/scimbridge/internal/membership"
	"github.com/scimbridge/scimbridge/internal/query"
	"github.com/scimbridge/scimbridge/internal/scim"
	"github.com/scimbridge/scimbridge/internal/store"
)

// NotFoundError reports an identifier that does not resolve to a record.
type NotFoundError struct {
	Kind scim.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Page is the list-operation result shape.
type Page struct {
	Resources    []map[string]any
	TotalResults int
}

// Service wires the bridge core together. Construct once at process start
// and inject wherever operations are served from.
type Service struct {
	store   store.Store
	mapper  *mapping.Mapper
	members *membership.Engine
	cache   idcache.Cache
}

func NewService(st store.Store, m *mapping.Mapper, eng *membership.Engine, c idcache.Cache) *Service {
	if c == nil {
		c = idcache.Noop{}
	}
	return &Service{store: st, mapper: m, members: eng, cache: c}
}

// GetUsers lists users matching the predicate, with each result carrying its
// derived "groups" attribute. count > 0 caps the returned page; totalResults
// still reports the full match count.
func (s *Service) GetUsers(ctx context.Context, pred query.Predicate, count int) (*Page, error) {
	const op = "getUsers"
	q, err := query.Translate(s.mapper, scim.KindUsers, pred)
	if err != nil {
		return nil, opErr(op, err)
	}
	if q.MatchNone {
		return &Page{Resources: []map[string]any{}}, nil
	}
	docs, err := s.store.FindMany(ctx, scim.KindUsers, q.Where)
	if err != nil {
		return nil, opErr(op, err)
	}
	resources := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		ext, err := s.mapper.ToExternal(scim.KindUsers, doc)
		if err != nil {
			return nil, opErr(op, err)
		}
		id, _ := doc["id"].(string)
		groups, err := s.members.ListGroupsFor(ctx, id)
		if err != nil {
			return nil, opErr(op, err)
		}
		if len(groups) > 0 {
			refs := make([]scim.MemberRef, 0, len(groups))
			for _, g := range groups {
				gid, _ := g["id"].(string)
				display, _ := g["displayName"].(string)
				refs = append(refs, scim.MemberRef{Value: gid, Display: display})
			}
			ext["groups"] = refs
		}
		resources = append(resources, ext)
	}
	return page(resources, count), nil
}

// CreateUser maps the full external object inbound and inserts it. A missing
// id gets a generated one; the external representation of the stored record
// is returned.
func (s *Service) CreateUser(ctx context.Context, attrs map[string]any) (map[string]any, error) {
	const op = "createUser"
	doc, err := s.mapper.ToInternal(scim.KindUsers, attrs)
	if err != nil {
		return nil, opErr(op, err)
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = uuid.NewString()
	}
	created, err := s.store.Create(ctx, scim.KindUsers, doc)
	if err != nil {
		return nil, opErr(op, err)
	}
	ext, err := s.mapper.ToExternal(scim.KindUsers, created)
	if err != nil {
		return nil, opErr(op, err)
	}
	return ext, nil
}

// ModifyUser applies a partial attribute replace to the user with the given
// id. The id attribute itself is never rewritten.
func (s *Service) ModifyUser(ctx context.Context, id string, attrs map[string]any) error {
	const op = "modifyUser"
	existing, err := s.lookup(ctx, scim.KindUsers, id)
	if err != nil {
		return opErr(op, err)
	}
	doc, err := s.mapper.ToInternal(scim.KindUsers, attrs)
	if err != nil {
		return opErr(op, err)
	}
	delete(doc, "id")
	set := dotpath.Flatten(doc)
	if len(set) == 0 {
		return nil
	}
	if _, err := s.store.Update(ctx, scim.KindUsers, store.Where{"id": id}, set); err != nil {
		return opErr(op, normalizeNotFound(scim.KindUsers, id, err))
	}
	s.invalidate(ctx, existing)
	if name, ok := set["userName"].(string); ok {
		_ = s.cache.Invalidate(ctx, name)
	}
	return nil
}

// DeleteUser prunes the user from every group's member list, then deletes
// the user record. The prune runs first so no deleted user id lingers in
// membership lists; the two steps are not atomic.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	const op = "deleteUser"
	existing, err := s.lookup(ctx, scim.KindUsers, id)
	if err != nil {
		return opErr(op, err)
	}
	if err := s.members.PruneUser(ctx, id); err != nil {
		return opErr(op, err)
	}
	if err := s.store.Delete(ctx, scim.KindUsers, store.Where{"id": id}); err != nil {
		return opErr(op, normalizeNotFound(scim.KindUsers, id, err))
	}
	s.invalidate(ctx, existing)
	return nil
}

// GetGroups lists groups matching the predicate, with each result carrying
// its resolved "members" attribute ({value: user id, display: userName}).
func (s *Service) GetGroups(ctx context.Context, pred query.Predicate, count int) (*Page, error) {
	const op = "getGroups"
	q, err := query.Translate(s.mapper, scim.KindGroups, pred)
	if err != nil {
		return nil, opErr(op, err)
	}
	if q.MatchNone {
		return &Page{Resources: []map[string]any{}}, nil
	}
	docs, err := s.store.FindMany(ctx, scim.KindGroups, q.Where)
	if err != nil {
		return nil, opErr(op, err)
	}
	resources := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		ext, err := s.mapper.ToExternal(scim.KindGroups, doc)
		if err != nil {
			return nil, opErr(op, err)
		}
		refs, err := s.resolveMembers(ctx, membership.Members(doc))
		if err != nil {
			return nil, opErr(op, err)
		}
		ext["members"] = refs
		resources = append(resources, ext)
	}
	return page(resources, count), nil
}

// CreateGroup inserts a new group. The member list starts empty regardless
// of caller-supplied input; members are only ever edited through
// ModifyGroup.
func (s *Service) CreateGroup(ctx context.Context, attrs map[string]any) (map[string]any, error) {
	const op = "createGroup"
	doc, err := s.mapper.ToInternal(scim.KindGroups, attrs)
	if err != nil {
		return nil, opErr(op, err)
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = uuid.NewString()
	}
	doc["members"] = []string{}
	created, err := s.store.Create(ctx, scim.KindGroups, doc)
	if err != nil {
		return nil, opErr(op, err)
	}
	ext, err := s.mapper.ToExternal(scim.KindGroups, created)
	if err != nil {
		return nil, opErr(op, err)
	}
	ext["members"] = []scim.MemberRef{}
	return ext, nil
}

// ModifyGroup applies a partial attribute replace plus any member edits to
// the group with the given id. Attribute changes and the folded member list
// land in one partial update; a partially applied edit sequence is not
// rolled back.
func (s *Service) ModifyGroup(ctx context.Context, id string, attrs map[string]any, edits []scim.MemberEdit) error {
	const op = "modifyGroup"
	existing, err := s.lookup(ctx, scim.KindGroups, id)
	if err != nil {
		return opErr(op, err)
	}
	doc, err := s.mapper.ToInternal(scim.KindGroups, attrs)
	if err != nil {
		return opErr(op, err)
	}
	delete(doc, "id")
	set := dotpath.Flatten(doc)
	if len(edits) > 0 {
		members, err := s.members.ApplyMembershipEdits(ctx, existing, edits)
		if err != nil {
			return opErr(op, err)
		}
		set["members"] = members
	}
	if len(set) == 0 {
		return nil
	}
	if _, err := s.store.Update(ctx, scim.KindGroups, store.Where{"id": id}, set); err != nil {
		return opErr(op, normalizeNotFound(scim.KindGroups, id, err))
	}
	return nil
}

// DeleteGroup deletes the group record. No cascade is needed: users do not
// reference groups in this data model.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	const op = "deleteGroup"
	if _, err := s.lookup(ctx, scim.KindGroups, id); err != nil {
		return opErr(op, err)
	}
	if err := s.store.Delete(ctx, scim.KindGroups, store.Where{"id": id}); err != nil {
		return opErr(op, normalizeNotFound(scim.KindGroups, id, err))
	}
	return nil
}

// lookup is the existence check run before every mutation.
func (s *Service) lookup(ctx context.Context, kind scim.Kind, id string) (map[string]any, error) {
	doc, err := s.store.FindFirst(ctx, kind, store.Where{"id": id})
	if err != nil {
		return nil, normalizeNotFound(kind, id, err)
	}
	return doc, nil
}

func (s *Service) resolveMembers(ctx context.Context, ids []string) ([]scim.MemberRef, error) {
	refs := make([]scim.MemberRef, 0, len(ids))
	for _, mid := range ids {
		user, err := s.store.FindFirst(ctx, scim.KindUsers, store.Where{"id": mid})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// dangling reference, best-effort model: surface the bare id
				refs = append(refs, scim.MemberRef{Value: mid})
				continue
			}
			return nil, err
		}
		display, _ := user["userName"].(string)
		refs = append(refs, scim.MemberRef{Value: mid, Display: display})
	}
	return refs, nil
}

func (s *Service) invalidate(ctx context.Context, userDoc map[string]any) {
	if name, ok := userDoc["userName"].(string); ok && name != "" {
		_ = s.cache.Invalidate(ctx, name)
	}
}

func page(resources []map[string]any, count int) *Page {
	total := len(resources)
	if count > 0 && count < total {
		resources = resources[:count]
	}
	return &Page{Resources: resources, TotalResults: total}
}

func opErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeNotFound(kind scim.Kind, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return err
}
