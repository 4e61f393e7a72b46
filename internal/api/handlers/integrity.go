package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type integrityResponse struct {
	OK          bool  `json:"ok"`
	FirstBadSeq int64 `json:"first_bad_seq"`
}

// GetIntegrity implements the supplemented GET /datasets/{d}/integrity
// route: a synchronous counterpart to the cron-scheduled integrity
// worker, for callers that want an on-demand check.
func (h *Handler) GetIntegrity(c *gin.Context) {
	ok, badSeq, err := h.svc.VerifyIntegrity(c.Request.Context(), c.Param("dataset"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, integrityResponse{OK: ok, FirstBadSeq: badSeq})
}
