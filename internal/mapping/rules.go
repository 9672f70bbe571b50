package mapping

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/scimbridge/scimbridge/internal/scim"
)

// DefaultRules returns the built-in attribute map: SCIM-shaped flat names on
// the external side, the bridge's nested document schema on the internal
// side. Deployments with a different document layout override this with a
// rules file (see Load).
func DefaultRules() map[scim.Kind][]Rule {
	return map[scim.Kind][]Rule{
		scim.KindUsers: {
			{External: "id", Internal: "id", Type: TypeString},
			{External: "externalId", Internal: "externalId", Type: TypeString},
			{External: "userName", Internal: "userName", Type: TypeString},
			{External: "active", Internal: "active", Type: TypeBoolean},
			{External: "password", Internal: "password", Type: TypeString},
			{External: "name.givenName", Internal: "name.givenName", Type: TypeString},
			{External: "name.familyName", Internal: "name.familyName", Type: TypeString},
			{External: "name.formatted", Internal: "name.formatted", Type: TypeString},
			{External: "emails.work.value", Internal: "attributes.email", Type: TypeString},
			{External: "phoneNumbers.work.value", Internal: "attributes.telephoneNumber", Type: TypeString},
			{External: "phoneNumbers.home.value", Internal: "phoneNumbers.home", Type: TypeString},
			{External: "addresses.work.formatted", Internal: "addresses.work", Type: TypeString},
		},
		scim.KindGroups: {
			{External: "id", Internal: "id", Type: TypeString},
			{External: "externalId", Internal: "externalId", Type: TypeString},
			{External: "displayName", Internal: "displayName", Type: TypeString},
		},
	}
}

// rulesFile is the on-disk override format: one rule list per resource kind.
type rulesFile struct {
	Users  []Rule `json:"users"`
	Groups []Rule `json:"groups"`
}

// Load builds a Mapper from the JSON rules file at path, or from the built-in
// defaults when path is empty. A kind omitted from the file keeps its default
// rule set.
func Load(path string) (*Mapper, error) {
	rules := DefaultRules()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("mapping: read rules file: %w", err)
		}
		var f rulesFile
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("mapping: parse rules file %s: %w", path, err)
		}
		if len(f.Users) > 0 {
			rules[scim.KindUsers] = f.Users
		}
		if len(f.Groups) > 0 {
			rules[scim.KindGroups] = f.Groups
		}
	}
	return New(rules)
}
