package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Call/internal/core"
	"github.com/dkeye/Call/internal/domain"
)

func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// HandleServiceError maps an error category onto a status code.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrConflict):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMemberNameEmpty),
		errors.Is(err, domain.ErrMemberNameTooLong):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unhandled internal error")
		ErrorResponse(c, http.StatusInternalServerError, "an unexpected error occurred")
	}
}
