package middleware

import (
	"net/http"
	"time"

	"ecoloimp/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Clasificador maps an error to the status and envelope sent to the client.
// handler.Clasificar is the one the router installs.
type Clasificador func(error) (int, *apierror.APIError)

func errorInterno() *apierror.APIError {
	return apierror.WithKind(apierror.KindInternal, "Error interno del servidor")
}

// ErrorHandler logs the errors handlers attach with c.Error, tagged with the
// request id and the kind they were answered with: 5xx at error level, the
// rest at debug. When the handler wrote nothing the classified error becomes
// the response. A nil clasificar answers every error with a bare 500.
func ErrorHandler(clasificar Clasificador) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := http.StatusInternalServerError, errorInterno()
		if clasificar != nil {
			status, body = clasificar(err)
		}

		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Str("kind", string(body.Kind)).
			Err(err).
			Msg("request error")

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(status, body)
		}
	}
}

// Recovery handles panics and converts them into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorInterno())
			}
		}()
		c.Next()
	}
}

// Logger logs each request with method, path, status, latency, and request_id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
