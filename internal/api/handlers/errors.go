package handlers

import (
	"net/http"

	"github.com/MacJediWizard/tasktracker/internal/comments"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// statusFor maps a comments error kind to an HTTP status.
func statusFor(kind comments.Kind) int {
	switch kind {
	case comments.KindValidation:
		return http.StatusBadRequest
	case comments.KindNotFound:
		return http.StatusNotFound
	case comments.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message}. Internal errors are logged;
// their cause never reaches the client.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	kind := comments.KindOf(err)
	if kind == comments.KindInternal {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Msg("request failed")
	}
	c.JSON(statusFor(kind), gin.H{"error": comments.Message(err)})
}
