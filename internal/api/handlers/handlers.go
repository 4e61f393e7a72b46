// Package handlers implements the gin.HandlerFunc methods behind the
// spec.md 6.1 HTTP surface. Every mutating operation goes through
// core.Service, the same boundary the teacher's handlers keep against
// its service layer; read handlers get a dataset's RecordKeeper, Depot
// and State from core.Service.Open and query them directly.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/computeheavy/gonk/internal/api/middleware"
	"github.com/computeheavy/gonk/internal/domain/services/core"
	"github.com/computeheavy/gonk/internal/infrastructure/config"
)

// Handler bundles the core service and the request-shape defaults
// (page size) every route needs.
type Handler struct {
	svc *core.Service
	cfg *config.Config
}

func New(svc *core.Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

func (h *Handler) author(c *gin.Context) string {
	return middleware.Author(c)
}

// pageLimit resolves the ?limit= query param against the configured
// default, per spec.md 6.1 ("default page size ... must be >= 32").
func (h *Handler) pageLimit(c *gin.Context) int {
	limit := h.cfg.DefaultPageSize
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}

// afterCursor resolves the ?after= query param to a uuid.UUID cursor.
// A present-but-malformed cursor is reported as a bad-input 400 by
// the caller, matching spec.md 9(c)'s direction that an unresolvable
// `after` cursor is a validation failure, not silently ignored.
func afterCursor(c *gin.Context) (*uuid.UUID, bool) {
	s := c.Query("after")
	if s == "" {
		return nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// afterStringCursor resolves the ?after= query param for listings
// paginated by a string key (schema names), rather than a uuid.UUID.
func afterStringCursor(c *gin.Context) (*string, bool) {
	s := c.Query("after")
	if s == "" {
		return nil, true
	}
	return &s, true
}

// parsePathInt parses a non-negative integer path parameter (e.g. an
// entity version).
func parsePathInt(c *gin.Context, param string) (int, bool) {
	n, err := strconv.Atoi(c.Param(param))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

