package server

import (
	"yaca/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// success is the body of every 2xx API response.
type success struct {
	Name           string `json:"name"`
	Message        string `json:"message"`
	AuthorizedUser string `json:"authorizedUser,omitempty"`
	Payload        any    `json:"payload"`
}

// failure is the body of every error response.
type failure struct {
	Type    apperr.Class `json:"type"`
	Name    apperr.Kind  `json:"name"`
	Message string       `json:"message"`
}

func writeOK(c *gin.Context, status int, body success) {
	c.JSON(status, body)
}

// writeError maps err to its status and envelope. Server-side failures are
// logged here and never leak their cause to the client.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind.Class() == apperr.ServerError {
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), failure{
		Type:    kind.Class(),
		Name:    kind,
		Message: apperr.PublicMessage(err),
	})
}

func badBody() error {
	return apperr.New(apperr.MissingField, "Malformed request body")
}
