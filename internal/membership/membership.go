// Package membership maintains the invariant on group member lists: no
// duplicates, members reference existing users, and a deleted user is pruned
// from every group that listed it.
package membership

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/scimbridge/scimbridge/internal/dotpath"
	"github.com/scimbridge/scimbridge/internal/idcache"
	"github.com/scimbridge/scimbridge/internal/mapping"
	"github.com/scimbridge/scimbridge/internal/scim"
	"github.com/scimbridge/scimbridge/internal/store"
	"github.com/scimbridge/scimbridge/pkg/logger"
)

// MemberNotFoundError reports a membership edit referencing a userName with
// no matching user record.
type MemberNotFoundError struct {
	UserName string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("membership: no user with userName %q", e.UserName)
}

// Engine runs consistency maintenance against the store. Member lists hold
// internal user ids; edits arrive keyed by userName and are resolved through
// the mapper and store (with an optional lookup cache in front).
type Engine struct {
	store  store.Store
	mapper *mapping.Mapper
	cache  idcache.Cache
}

func NewEngine(st store.Store, m *mapping.Mapper, c idcache.Cache) *Engine {
	if c == nil {
		c = idcache.Noop{}
	}
	return &Engine{store: st, mapper: m, cache: c}
}

// ListGroupsFor returns every group whose member list contains userID.
func (e *Engine) ListGroupsFor(ctx context.Context, userID string) ([]map[string]any, error) {
	return e.store.FindMany(ctx, scim.KindGroups, store.Where{"members": userID})
}

// PruneUser removes userID from the member list of every group containing
// it. Run before the user record itself is deleted. Not atomic across
// groups: a fault mid-prune leaves the remaining groups untouched and the
// error is surfaced to the caller.
func (e *Engine) PruneUser(ctx context.Context, userID string) error {
	groups, err := e.ListGroupsFor(ctx, userID)
	if err != nil {
		return err
	}
	for _, group := range groups {
		members := Members(group)
		kept := make([]string, 0, len(members))
		for _, m := range members {
			if m != userID {
				kept = append(kept, m)
			}
		}
		gid, _ := group["id"].(string)
		_, err := e.store.Update(ctx, scim.KindGroups, store.Where{"id": gid}, map[string]any{"members": kept})
		if err != nil {
			return fmt.Errorf("prune %s from group %s: %w", userID, gid, err)
		}
	}
	return nil
}

// ApplyMembershipEdits folds the ordered edits over the group's current
// member list and returns the resulting list. Adds of present members are
// silently ignored, deletes of absent members are no-ops, and an edit naming
// an unknown userName fails with MemberNotFoundError.
func (e *Engine) ApplyMembershipEdits(ctx context.Context, group map[string]any, edits []scim.MemberEdit) ([]string, error) {
	members := Members(group)
	for _, edit := range edits {
		id, err := e.Resolve(ctx, edit.Value)
		if err != nil {
			return nil, err
		}
		if edit.Operation == "delete" {
			kept := members[:0]
			for _, m := range members {
				if m != id {
					kept = append(kept, m)
				}
			}
			members = kept
			continue
		}
		present := false
		for _, m := range members {
			if m == id {
				present = true
				break
			}
		}
		if !present {
			members = append(members, id)
		}
	}
	return members, nil
}

// Resolve maps a userName to the internal user id.
func (e *Engine) Resolve(ctx context.Context, userName string) (string, error) {
	if id, err := e.cache.Get(ctx, userName); err != nil {
		logger.Warnf("id cache lookup failed for %q: %v", userName, err)
	} else if id != "" {
		return id, nil
	}
	doc, err := e.mapper.ToInternal(scim.KindUsers, map[string]any{"userName": userName})
	if err != nil {
		return "", err
	}
	where := store.Where(dotpath.Flatten(doc))
	user, err := e.store.FindFirst(ctx, scim.KindUsers, where)
	if err != nil {
		if err == store.ErrNotFound {
			return "", &MemberNotFoundError{UserName: userName}
		}
		return "", err
	}
	id, _ := user["id"].(string)
	if err := e.cache.Set(ctx, userName, id); err != nil {
		logger.Warnf("id cache store failed for %q: %v", userName, err)
	}
	return id, nil
}

// Members extracts a group's member id list, tolerating the list shapes the
// store implementations produce ([]string, []any, bson.A).
func Members(group map[string]any) []string {
	switch list := group["members"].(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []any:
		return stringList(list)
	case bson.A:
		return stringList(list)
	default:
		return []string{}
	}
}

func stringList(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
