package middlewares

import "github.com/gin-gonic/gin"

// gin context keys for the resolved identity.
const (
	ctxPrincipalKey = "auth.principal"
)

// fail records the error for the translator middleware and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
