package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BasicAuth guards the exchange endpoint with HTTP Basic credentials. The
// ERP client authenticates every call; failures answer in the plain-text
// dialect the client parses.
func BasicAuth(username, password string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || !equal(user, username) || !equal(pass, password) {
			c.Header("WWW-Authenticate", `Basic realm="exchange"`)
			c.String(http.StatusUnauthorized, "failure\nauthentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// equal compares strings in constant time
func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
