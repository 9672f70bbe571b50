package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scimbridge/scimbridge/internal/connector"
	"github.com/scimbridge/scimbridge/internal/dotpath"
	"github.com/scimbridge/scimbridge/internal/mapping"
	"github.com/scimbridge/scimbridge/internal/membership"
	"github.com/scimbridge/scimbridge/internal/query"
	"github.com/scimbridge/scimbridge/internal/scim"
	"github.com/scimbridge/scimbridge/internal/store"
	"github.com/scimbridge/scimbridge/pkg/metrics"
)

// RegisterSCIMRoutes mounts the SCIM v2 resource endpoints on rg (normally
// the authenticated /scim/v2 group).
func RegisterSCIMRoutes(rg *gin.RouterGroup, svc *connector.Service) {
	h := &scimHandlers{svc: svc}

	rg.GET("/Users", h.listUsers)
	rg.GET("/Users/:id", h.getUser)
	rg.POST("/Users", h.createUser)
	rg.PUT("/Users/:id", h.modifyUser)
	rg.PATCH("/Users/:id", h.modifyUser)
	rg.DELETE("/Users/:id", h.deleteUser)

	rg.GET("/Groups", h.listGroups)
	rg.GET("/Groups/:id", h.getGroup)
	rg.POST("/Groups", h.createGroup)
	rg.PUT("/Groups/:id", h.modifyGroup)
	rg.PATCH("/Groups/:id", h.modifyGroup)
	rg.DELETE("/Groups/:id", h.deleteGroup)
}

type scimHandlers struct {
	svc *connector.Service
}

func (h *scimHandlers) listUsers(c *gin.Context) {
	pred := parseFilter(c.Query("filter"))
	page, err := h.svc.GetUsers(c.Request.Context(), pred, countParam(c))
	metrics.RecordOperation("getUsers", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(page, scim.SchemaUser))
}

func (h *scimHandlers) getUser(c *gin.Context) {
	h.getByID(c, scim.KindUsers)
}

func (h *scimHandlers) createUser(c *gin.Context) {
	attrs, _, ok := bindResource(c)
	if !ok {
		return
	}
	ext, err := h.svc.CreateUser(c.Request.Context(), attrs)
	metrics.RecordOperation("createUser", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resource(ext, scim.SchemaUser))
}

func (h *scimHandlers) modifyUser(c *gin.Context) {
	attrs, _, ok := bindResource(c)
	if !ok {
		return
	}
	err := h.svc.ModifyUser(c.Request.Context(), c.Param("id"), attrs)
	metrics.RecordOperation("modifyUser", err)
	if err != nil {
		writeError(c, err)
		return
	}
	h.getByID(c, scim.KindUsers)
}

func (h *scimHandlers) deleteUser(c *gin.Context) {
	err := h.svc.DeleteUser(c.Request.Context(), c.Param("id"))
	metrics.RecordOperation("deleteUser", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *scimHandlers) listGroups(c *gin.Context) {
	pred := parseFilter(c.Query("filter"))
	page, err := h.svc.GetGroups(c.Request.Context(), pred, countParam(c))
	metrics.RecordOperation("getGroups", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse(page, scim.SchemaGroup))
}

func (h *scimHandlers) getGroup(c *gin.Context) {
	h.getByID(c, scim.KindGroups)
}

func (h *scimHandlers) createGroup(c *gin.Context) {
	attrs, _, ok := bindResource(c)
	if !ok {
		return
	}
	ext, err := h.svc.CreateGroup(c.Request.Context(), attrs)
	metrics.RecordOperation("createGroup", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resource(ext, scim.SchemaGroup))
}

func (h *scimHandlers) modifyGroup(c *gin.Context) {
	attrs, edits, ok := bindResource(c)
	if !ok {
		return
	}
	err := h.svc.ModifyGroup(c.Request.Context(), c.Param("id"), attrs, edits)
	metrics.RecordOperation("modifyGroup", err)
	if err != nil {
		writeError(c, err)
		return
	}
	h.getByID(c, scim.KindGroups)
}

func (h *scimHandlers) deleteGroup(c *gin.Context) {
	err := h.svc.DeleteGroup(c.Request.Context(), c.Param("id"))
	metrics.RecordOperation("deleteGroup", err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getByID serves single-resource reads through the list operation with an id
// equality predicate.
func (h *scimHandlers) getByID(c *gin.Context, kind scim.Kind) {
	id := c.Param("id")
	pred := query.Predicate{Attribute: "id", Operator: "eq", Value: id}

	var (
		page *connector.Page
		err  error
	)
	if kind == scim.KindGroups {
		page, err = h.svc.GetGroups(c.Request.Context(), pred, 1)
	} else {
		page, err = h.svc.GetUsers(c.Request.Context(), pred, 1)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if len(page.Resources) == 0 {
		writeError(c, &connector.NotFoundError{Kind: kind, ID: id})
		return
	}
	schema := scim.SchemaUser
	if kind == scim.KindGroups {
		schema = scim.SchemaGroup
	}
	c.JSON(http.StatusOK, resource(page.Resources[0], schema))
}

// bindResource decodes a request body into the flat external attribute map
// plus any group member edits. Nested objects flatten to dotted names;
// read-only and envelope fields are dropped.
func bindResource(c *gin.Context) (map[string]any, []scim.MemberEdit, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		writeSCIMError(c, http.StatusBadRequest, "invalidSyntax", "request body is not valid JSON")
		return nil, nil, false
	}
	edits := memberEdits(body["members"])
	delete(body, "members")
	delete(body, "schemas")
	delete(body, "meta")
	delete(body, "groups")
	return dotpath.Flatten(body), edits, true
}

func memberEdits(v any) []scim.MemberEdit {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	edits := make([]scim.MemberEdit, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := scim.MemberEdit{}
		e.Value, _ = m["value"].(string)
		e.Display, _ = m["display"].(string)
		e.Operation, _ = m["operation"].(string)
		if e.Value != "" {
			edits = append(edits, e)
		}
	}
	return edits
}

func countParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("count"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func resource(ext map[string]any, schema string) map[string]any {
	out := make(map[string]any, len(ext)+1)
	for k, v := range ext {
		out[k] = v
	}
	out["schemas"] = []string{schema}
	return out
}

func listResponse(page *connector.Page, schema string) scim.ListResponse {
	resources := make([]map[string]any, 0, len(page.Resources))
	for _, r := range page.Resources {
		resources = append(resources, resource(r, schema))
	}
	return scim.ListResponse{
		Schemas:      []string{scim.SchemaListResponse},
		TotalResults: page.TotalResults,
		ItemsPerPage: len(resources),
		StartIndex:   1,
		Resources:    resources,
	}
}

// writeError maps the bridge's typed errors onto SCIM error responses.
func writeError(c *gin.Context, err error) {
	var (
		unsupported *query.UnsupportedFilterError
		typeErr     *mapping.TypeError
		memberErr   *membership.MemberNotFoundError
		notFound    *connector.NotFoundError
		duplicate   *store.DuplicateKeyError
		fieldErr    *store.FieldError
	)
	switch {
	case errors.As(err, &unsupported):
		writeSCIMError(c, http.StatusBadRequest, "invalidFilter", unsupported.Error())
	case errors.As(err, &typeErr):
		writeSCIMError(c, http.StatusBadRequest, "invalidValue", typeErr.Error())
	case errors.As(err, &memberErr):
		writeSCIMError(c, http.StatusBadRequest, "invalidValue", memberErr.Error())
	case errors.As(err, &notFound):
		writeSCIMError(c, http.StatusNotFound, "", notFound.Error())
	case errors.As(err, &duplicate):
		writeSCIMError(c, http.StatusConflict, "uniqueness", duplicate.Error())
	case errors.As(err, &fieldErr):
		writeSCIMError(c, http.StatusBadRequest, "invalidValue", fieldErr.Error())
	default:
		writeSCIMError(c, http.StatusInternalServerError, "", "internal error")
	}
}

func writeSCIMError(c *gin.Context, status int, scimType, detail string) {
	c.AbortWithStatusJSON(status, scim.Error{
		Schemas:  []string{scim.SchemaError},
		ScimType: scimType,
		Detail:   detail,
		Status:   strconv.Itoa(status),
	})
}
