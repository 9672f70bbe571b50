package scim

// Kind names a directory resource kind. It doubles as the backing
// collection name in the document store.
type Kind string

const (
	KindUsers  Kind = "users"
	KindGroups Kind = "groups"
)

// Schema URNs used on the wire.
const (
	SchemaUser         = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaGroup        = "urn:ietf:params:scim:schemas:core:2.0:Group"
	SchemaListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	SchemaError        = "urn:ietf:params:scim:api:messages:2.0:Error"
)

// PrimaryName returns the resource's human-readable unique name attribute.
func (k Kind) PrimaryName() string {
	if k == KindGroups {
		return "displayName"
	}
	return "userName"
}

// ListResponse is the SCIM ListResponse envelope.
//
//	{ "schemas":["urn:ietf:params:scim:api:messages:2.0:ListResponse"],
//	  "totalResults":2, "Resources":[...] }
type ListResponse struct {
	Schemas      []string         `json:"schemas"`
	TotalResults int              `json:"totalResults"`
	ItemsPerPage int              `json:"itemsPerPage,omitempty"`
	StartIndex   int              `json:"startIndex,omitempty"`
	Resources    []map[string]any `json:"Resources"`
}

// Error is the SCIM error body.
type Error struct {
	Schemas  []string `json:"schemas"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	Status   string   `json:"status"`
}

// MemberRef is a multi-valued reference attribute entry: a group's "members"
// item or a user's derived "groups" item.
type MemberRef struct {
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
}

// MemberEdit is one entry of a group modify request's members list. Value
// carries the member's userName; Operation is "add" (default, empty means
// add) or "delete".
type MemberEdit struct {
	Value     string `json:"value"`
	Display   string `json:"display,omitempty"`
	Operation string `json:"operation,omitempty"`
}
