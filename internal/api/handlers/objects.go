package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

type createObjectRequest struct {
	Name     string `json:"name" binding:"required"`
	MimeType string `json:"mimetype" binding:"required"`
	Object   string `json:"object" binding:"required"`
}

type versionResponse struct {
	UUID    string `json:"uuid"`
	Version int    `json:"version"`
}

// CreateObject implements POST /datasets/{d}/objects.
func (h *Handler) CreateObject(c *gin.Context) {
	var req createObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	data, err := decodeBase64("object", req.Object)
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.svc.CreateObject(c.Request.Context(), c.Param("dataset"), h.author(c), req.Name, req.MimeType, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: v.UUID.String(), Version: v.Version})
}

type objectInfoResponse struct {
	UUID     string `json:"uuid"`
	Versions int    `json:"versions"`
}

// ListObjects implements GET /datasets/{d}/objects.
func (h *Handler) ListObjects(c *gin.Context) {
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
	infos, err := state.ListObjectInfos(c.Request.Context(), after, h.pageLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]objectInfoResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, objectInfoResponse{UUID: info.UUID.String(), Versions: info.Versions})
	}
	c.JSON(http.StatusOK, gin.H{"object_infos": out})
}

// GetObjectOrByStatus implements both
// GET /datasets/{d}/objects/{uuid} and GET /datasets/{d}/objects/{status}
// (status in {accepted,pending,deleted,rejected}).
func (h *Handler) GetObjectOrByStatus(c *gin.Context) {
	param := c.Param("uuid")
	if status, ok := objectStatusFromParam(param); ok {
		h.listByStatus(c, entities.KindObject, status)
		return
	}
	id, err := uuid.Parse(param)
	if err != nil {
		respondBadRequest(c, "invalid object uuid")
		return
	}
	h.getObjectInfo(c, id)
}

func (h *Handler) getObjectInfo(c *gin.Context, id uuid.UUID) {
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	info, err := state.ObjectInfo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"object_info": objectInfoResponse{UUID: info.UUID.String(), Versions: info.Versions}})
}

func (h *Handler) listByStatus(c *gin.Context, kind entities.EntityKind, status entities.Status) {
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
	rows, err := state.ListStatus(c.Request.Context(), kind, status, after, h.pageLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]versionResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, versionResponse{UUID: r.UUID.String(), Version: r.Version})
	}
	c.JSON(http.StatusOK, out)
}

// UpdateObject implements PATCH /datasets/{d}/objects/{uuid}.
func (h *Handler) UpdateObject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid object uuid")
		return
	}
	var req createObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	data, err := decodeBase64("object", req.Object)
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.svc.UpdateObject(c.Request.Context(), c.Param("dataset"), h.author(c), id, req.Name, req.MimeType, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: v.UUID.String(), Version: v.Version})
}

type objectDetailResponse struct {
	Object      entities.ObjectVersion    `json:"object"`
	Bytes       string                    `json:"bytes"`
	Events      []string                  `json:"events"`
	Annotations []entities.AnnotationInfo `json:"annotations"`
}

// GetObjectVersion implements GET /datasets/{d}/objects/{uuid}/{version}.
func (h *Handler) GetObjectVersion(c *gin.Context) {
	_, depot, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	objUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid object uuid")
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
		return
	}
	id := entities.VersionedID{UUID: objUUID, Version: version}
	v, err := state.Object(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := depot.Read(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	eventUUIDs, err := state.EventsFor(c.Request.Context(), entities.KindObject, objUUID)
	if err != nil {
		respondError(c, err)
		return
	}
	events := make([]string, 0, len(eventUUIDs))
	for _, eu := range eventUUIDs {
		events = append(events, eu.String())
	}
	annotations, err := state.AnnotationsFor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, objectDetailResponse{Object: v, Bytes: encodeBase64(data), Events: events, Annotations: annotations})
}

// DeleteObject implements DELETE /datasets/{d}/objects/{uuid}/{version}.
func (h *Handler) DeleteObject(c *gin.Context) {
	objUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid object uuid")
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
		return
	}
	id := entities.VersionedID{UUID: objUUID, Version: version}
	if err := h.svc.DeleteObject(c.Request.Context(), c.Param("dataset"), h.author(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: objUUID.String(), Version: version})
}

// RepairObject implements the supplemented
// POST /datasets/{d}/objects/{uuid}/{version}/repair route.
func (h *Handler) RepairObject(c *gin.Context) {
	objUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid object uuid")
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
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
	id := entities.VersionedID{UUID: objUUID, Version: version}
	if err := h.svc.Repair(c.Request.Context(), c.Param("dataset"), entities.KindObject, id, data); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: objUUID.String(), Version: version})
}

func objectStatusFromParam(param string) (entities.Status, bool) {
	switch entities.Status(param) {
	case entities.StatusAccepted, entities.StatusPending, entities.StatusDeleted, entities.StatusRejected:
		return entities.Status(param), true
	default:
		return "", false
	}
}
