package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListEvents implements GET /datasets/{d}/events.
func (h *Handler) ListEvents(c *gin.Context) {
	rk, _, _, err := h.svc.Open(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	after, ok := afterCursor(c)
	if !ok {
		respondBadRequest(c, "invalid after cursor")
		return
	}
	events, err := rk.Next(c.Request.Context(), after, h.pageLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type eventRefResponse struct {
	UUID string `json:"uuid"`
}

// AcceptEvent implements PUT /datasets/{d}/events/{e}/accept.
func (h *Handler) AcceptEvent(c *gin.Context) {
	eventUUID, err := uuid.Parse(c.Param("event"))
	if err != nil {
		respondBadRequest(c, "invalid event uuid")
		return
	}
	if err := h.svc.AcceptReview(c.Request.Context(), c.Param("dataset"), h.author(c), eventUUID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventRefResponse{UUID: eventUUID.String()})
}

// RejectEvent implements PUT /datasets/{d}/events/{e}/reject.
func (h *Handler) RejectEvent(c *gin.Context) {
	eventUUID, err := uuid.Parse(c.Param("event"))
	if err != nil {
		respondBadRequest(c, "invalid event uuid")
		return
	}
	if err := h.svc.RejectReview(c.Request.Context(), c.Param("dataset"), h.author(c), eventUUID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventRefResponse{UUID: eventUUID.String()})
}
