package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

type createSchemaRequest struct {
	Name   string `json:"name" binding:"required"`
	Schema string `json:"schema" binding:"required"`
}

type schemaResponse struct {
	Name     string `json:"name"`
	UUID     string `json:"uuid"`
	Versions int    `json:"versions"`
}

// CreateSchema implements POST /datasets/{d}/schemas.
func (h *Handler) CreateSchema(c *gin.Context) {
	var req createSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	data, err := decodeBase64("schema", req.Schema)
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.svc.CreateSchema(c.Request.Context(), c.Param("dataset"), h.author(c), req.Name, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schemaResponse{Name: v.Name, UUID: v.UUID.String(), Versions: v.Version + 1})
}

// ListSchemas implements GET /datasets/{d}/schemas.
func (h *Handler) ListSchemas(c *gin.Context) {
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	after, ok := afterStringCursor(c)
	if !ok {
		respondBadRequest(c, "invalid after cursor")
		return
	}
	infos, err := state.ListSchemaInfos(c.Request.Context(), after, h.pageLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]schemaResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, schemaResponse{Name: info.Name, UUID: info.UUID.String(), Versions: info.Versions})
	}
	c.JSON(http.StatusOK, out)
}

// GetSchemaOrByStatus implements both
// GET /datasets/{d}/schemas/{name} and GET /datasets/{d}/schemas/{status}
// (status in {accepted,pending,deprecated,rejected}); spec.md 6.1 gives
// both shapes the same route pattern, so the param decides which this
// is.
func (h *Handler) GetSchemaOrByStatus(c *gin.Context) {
	param := c.Param("name")
	if status, ok := schemaStatusFromParam(param); ok {
		h.listSchemasByStatus(c, status)
		return
	}
	h.getSchemaByName(c, param)
}

func (h *Handler) getSchemaByName(c *gin.Context, name string) {
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	info, err := state.SchemaInfo(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schemaResponse{Name: info.Name, UUID: info.UUID.String(), Versions: info.Versions})
}

type versionedStatusResponse struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name,omitempty"`
	Version int    `json:"version"`
}

func (h *Handler) listSchemasByStatus(c *gin.Context, status entities.Status) {
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	after, ok := afterCursor(c)
	if !ok {
		respondBadRequest(c, "invalid after cursor")
		return
	}
	rows, err := state.ListStatus(c.Request.Context(), entities.KindSchema, status, after, h.pageLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]versionedStatusResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, versionedStatusResponse{UUID: r.UUID.String(), Name: r.Name, Version: r.Version})
	}
	c.JSON(http.StatusOK, out)
}

// UpdateSchema implements PATCH /datasets/{d}/schemas/{name}.
func (h *Handler) UpdateSchema(c *gin.Context) {
	var req struct {
		Schema string `json:"schema" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	data, err := decodeBase64("schema", req.Schema)
	if err != nil {
		respondError(c, err)
		return
	}
	name := c.Param("name")
	v, err := h.svc.UpdateSchema(c.Request.Context(), c.Param("dataset"), h.author(c), name, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schemaResponse{Name: v.Name, UUID: v.UUID.String(), Versions: v.Version + 1})
}

type schemaDetailResponse struct {
	Schema entities.SchemaVersion `json:"schema"`
	Bytes  string                 `json:"bytes"`
}

// GetSchemaVersion implements GET /datasets/{d}/schemas/{name}/{version}.
func (h *Handler) GetSchemaVersion(c *gin.Context) {
	_, depot, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
		return
	}
	v, err := state.SchemaByName(c.Request.Context(), c.Param("name"), &version)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := depot.Read(c.Request.Context(), entities.VersionedID{UUID: v.UUID, Version: v.Version})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schemaDetailResponse{Schema: v, Bytes: encodeBase64(data)})
}

type versionRefResponse struct {
	UUID    string `json:"uuid"`
	Version int    `json:"version"`
	Name    string `json:"name,omitempty"`
}

// DeprecateSchema implements DELETE /datasets/{d}/schemas/{name}/{version}.
func (h *Handler) DeprecateSchema(c *gin.Context) {
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
		return
	}
	name := c.Param("name")
	v, err := state.SchemaByName(c.Request.Context(), name, &version)
	if err != nil {
		respondError(c, err)
		return
	}
	id := entities.VersionedID{UUID: v.UUID, Version: v.Version}
	if err := h.svc.DeprecateSchema(c.Request.Context(), c.Param("dataset"), h.author(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionRefResponse{UUID: v.UUID.String(), Version: v.Version, Name: name})
}

// RepairSchema implements the supplemented
// POST /datasets/{d}/schemas/{name}/{version}/repair route.
func (h *Handler) RepairSchema(c *gin.Context) {
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
		return
	}
	v, err := state.SchemaByName(c.Request.Context(), c.Param("name"), &version)
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		Bytes string `json:"bytes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	data, err := decodeBase64("bytes", req.Bytes)
	if err != nil {
		respondError(c, err)
		return
	}
	id := entities.VersionedID{UUID: v.UUID, Version: v.Version}
	if err := h.svc.Repair(c.Request.Context(), c.Param("dataset"), entities.KindSchema, id, data); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionRefResponse{UUID: v.UUID.String(), Version: v.Version, Name: v.Name})
}

// schemaStatusFromParam reports whether param names one of the four
// schema statuses spec.md 6.1 enumerates for the status-filtered list
// route.
func schemaStatusFromParam(param string) (entities.Status, bool) {
	switch entities.Status(param) {
	case entities.StatusAccepted, entities.StatusPending, entities.StatusDeprecated, entities.StatusRejected:
		return entities.Status(param), true
	default:
		return "", false
	}
}
