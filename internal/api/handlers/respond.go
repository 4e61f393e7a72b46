package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	coreerrors "github.com/computeheavy/gonk/pkg/errors"
)

// errorBody is the JSON shape every failed request responds with.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps a core *errors.Error to the HTTP status spec.md
// 6.1 assigns it. Errors that aren't *errors.Error (a bug, not a
// modeled failure) fall back to 500.
func respondError(c *gin.Context, err error) {
	e := coreerrors.AsError(err)
	if e == nil {
		c.JSON(http.StatusInternalServerError, errorBody{Code: "internal", Message: err.Error()})
		return
	}
	status := http.StatusInternalServerError
	switch {
	case e.Kind == coreerrors.KindValidation && e.Reason == "after":
		// An unresolvable `after` pagination cursor is a malformed
		// request, not a rejected mutation (spec.md 9(c)).
		status = http.StatusBadRequest
	case e.Kind == coreerrors.KindValidation:
		status = http.StatusConflict
	case e.Kind == coreerrors.KindIntegrity:
		status = http.StatusBadRequest
	case e.Kind == coreerrors.KindNotFound:
		status = http.StatusNotFound
	case e.Kind == coreerrors.KindConflict:
		status = http.StatusConflict
	case e.Kind == coreerrors.KindIO:
		status = http.StatusInternalServerError
	}
	c.JSON(status, errorBody{Code: e.Reason, Message: e.Error()})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{Code: "bad_request", Message: message})
}

func decodeBase64(field, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, coreerrors.NewValidationError(field, "not valid base64")
	}
	return b, nil
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
