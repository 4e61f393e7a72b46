package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/computeheavy/gonk/internal/domain/entities"
)

type schemaRefRequest struct {
	Name    string `json:"name" binding:"required"`
	Version *int   `json:"version"`
}

type createAnnotationRequest struct {
	Schema            schemaRefRequest      `json:"schema" binding:"required"`
	ObjectIdentifiers []entities.VersionedID `json:"object_identifiers" binding:"required"`
	Annotation        string                `json:"annotation" binding:"required"`
}

// CreateAnnotation implements POST /datasets/{d}/annotations.
func (h *Handler) CreateAnnotation(c *gin.Context) {
	var req createAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	data, err := decodeBase64("annotation", req.Annotation)
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.svc.CreateAnnotation(c.Request.Context(), c.Param("dataset"), h.author(c),
		req.Schema.Name, req.Schema.Version, req.ObjectIdentifiers, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: v.UUID.String(), Version: v.Version})
}

type annotationInfoResponse struct {
	UUID     string `json:"uuid"`
	Versions int    `json:"versions"`
}

// ListAnnotations implements GET /datasets/{d}/annotations.
func (h *Handler) ListAnnotations(c *gin.Context) {
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
	infos, err := state.ListAnnotationInfos(c.Request.Context(), after, h.pageLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]annotationInfoResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, annotationInfoResponse{UUID: info.UUID.String(), Versions: info.Versions})
	}
	c.JSON(http.StatusOK, out)
}

// GetAnnotationOrByStatus implements both
// GET /datasets/{d}/annotations/{uuid} and
// GET /datasets/{d}/annotations/{status} (status in
// {accepted,pending,deleted,rejected}).
func (h *Handler) GetAnnotationOrByStatus(c *gin.Context) {
	param := c.Param("uuid")
	if status, ok := objectStatusFromParam(param); ok {
		h.listByStatus(c, entities.KindAnnotation, status)
		return
	}
	id, err := uuid.Parse(param)
	if err != nil {
		respondBadRequest(c, "invalid annotation uuid")
		return
	}
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	info, err := state.AnnotationInfo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotationInfoResponse{UUID: info.UUID.String(), Versions: info.Versions})
}

// UpdateAnnotation implements PATCH /datasets/{d}/annotations/{uuid}.
func (h *Handler) UpdateAnnotation(c *gin.Context) {
	annUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid annotation uuid")
		return
	}
	var req struct {
		Schema            schemaRefRequest       `json:"schema" binding:"required"`
		ObjectIdentifiers []entities.VersionedID `json:"object_identifiers"`
		Annotation        string                 `json:"annotation" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	data, err := decodeBase64("annotation", req.Annotation)
	if err != nil {
		respondError(c, err)
		return
	}
	v, err := h.svc.UpdateAnnotation(c.Request.Context(), c.Param("dataset"), h.author(c),
		annUUID, req.Schema.Name, req.Schema.Version, req.ObjectIdentifiers, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: v.UUID.String(), Version: v.Version})
}

type annotationDetailResponse struct {
	Annotation entities.AnnotationVersion `json:"annotation"`
	Bytes      string                     `json:"bytes"`
	Events     []string                   `json:"events"`
	Objects    []entities.VersionedID     `json:"objects"`
}

// GetAnnotationVersion implements GET /datasets/{d}/annotations/{uuid}/{version}.
func (h *Handler) GetAnnotationVersion(c *gin.Context) {
	_, depot, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	annUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid annotation uuid")
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
		return
	}
	id := entities.VersionedID{UUID: annUUID, Version: version}
	v, err := state.Annotation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := depot.Read(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	eventUUIDs, err := state.EventsFor(c.Request.Context(), entities.KindAnnotation, annUUID)
	if err != nil {
		respondError(c, err)
		return
	}
	events := make([]string, 0, len(eventUUIDs))
	for _, eu := range eventUUIDs {
		events = append(events, eu.String())
	}
	c.JSON(http.StatusOK, annotationDetailResponse{Annotation: v, Bytes: encodeBase64(data), Events: events, Objects: v.ObjectIdentifiers})
}

// DeleteAnnotation implements DELETE /datasets/{d}/annotations/{uuid}/{version}.
func (h *Handler) DeleteAnnotation(c *gin.Context) {
	annUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid annotation uuid")
		return
	}
	version, ok := parsePathInt(c, "version")
	if !ok {
		respondBadRequest(c, "invalid version")
		return
	}
	id := entities.VersionedID{UUID: annUUID, Version: version}
	if err := h.svc.DeleteAnnotation(c.Request.Context(), c.Param("dataset"), h.author(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: annUUID.String(), Version: version})
}

// RepairAnnotation implements the supplemented
// POST /datasets/{d}/annotations/{uuid}/{version}/repair route.
func (h *Handler) RepairAnnotation(c *gin.Context) {
	annUUID, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		respondBadRequest(c, "invalid annotation uuid")
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
	id := entities.VersionedID{UUID: annUUID, Version: version}
	if err := h.svc.Repair(c.Request.Context(), c.Param("dataset"), entities.KindAnnotation, id, data); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versionResponse{UUID: annUUID.String(), Version: version})
}
