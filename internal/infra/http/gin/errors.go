package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"habita/internal/domain/shared/fault"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindConflict, fault.KindTransition:
		return http.StatusConflict
	case fault.KindPermission:
		return http.StatusForbidden
	case fault.KindImmutableField:
		return http.StatusUnprocessableEntity
	case fault.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := StatusFor(err)
	body := errorBody{Error: err.Error()}
	if fe, ok := fault.As(err); ok {
		body.Kind = string(fe.Kind)
		body.Field = fe.Field
		body.Error = fe.Message()
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		}
	}
	c.JSON(status, body)
}

// badRequest reports malformed input that never reached the command bus.
func badRequest(c *gin.Context, field string, err error) {
	var fe *fault.Error
	if errors.As(err, &fe) {
		c.JSON(http.StatusBadRequest, errorBody{Error: fe.Message(), Kind: string(fe.Kind), Field: fe.Field})
		return
	}
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: string(fault.KindValidation), Field: field})
}
