package middlewares

import (
	"net/http"
	"strings"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := c.GetHeader("Content-Type")
			// allow "application/json; charset=utf-8"
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				fail(c, apperr.New("unsupported_media_type",
					http.StatusUnsupportedMediaType,
					"Content-Type must be application/json"))
				return
			}
		}
		c.Next()
	}
}
