package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/computeheavy/gonk/pkg/validation"
)

type createDatasetRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateDataset implements POST /datasets.
func (h *Handler) CreateDataset(c *gin.Context) {
	var req createDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if !validation.ValidateEntityName(req.Name) {
		respondBadRequest(c, "invalid dataset name")
		return
	}
	author := h.author(c)
	if err := h.svc.CreateDataset(c.Request.Context(), req.Name, author); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataset": req.Name})
}

// ListDatasets implements GET /datasets.
func (h *Handler) ListDatasets(c *gin.Context) {
	names, err := h.svc.ListDatasets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": names})
}

// ListOwners implements GET /datasets/{d}/owners.
func (h *Handler) ListOwners(c *gin.Context) {
	_, _, state, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	owners, err := state.Owners(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owners)
}

// AddOwner implements PUT /datasets/{d}/owners/{u}.
func (h *Handler) AddOwner(c *gin.Context) {
	owner := c.Param("owner")
	if owner == "" {
		respondBadRequest(c, "missing owner")
		return
	}
	if err := h.svc.AddOwner(c.Request.Context(), c.Param("dataset"), h.author(c), owner); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": owner})
}

// RemoveOwner implements DELETE /datasets/{d}/owners/{u}.
func (h *Handler) RemoveOwner(c *gin.Context) {
	owner := c.Param("owner")
	if owner == "" {
		respondBadRequest(c, "missing owner")
		return
	}
	if err := h.svc.RemoveOwner(c.Request.Context(), c.Param("dataset"), h.author(c), owner); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": owner})
}
