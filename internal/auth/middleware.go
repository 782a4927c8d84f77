// Package auth implements the single-credential HTTP Basic Auth check
// that sits in front of the control plane.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware validates one basic-auth credential pair. A zero value is
// disabled and passes every request through.
type Middleware struct {
	username string
	password string
	enabled  bool
}

func New(username, password string) *Middleware {
	return &Middleware{username: username, password: password, enabled: username != ""}
}

// GinAuth returns a Gin middleware enforcing basic auth.
func (m *Middleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if !ok || !m.check(user, pass) {
			c.Header("WWW-Authenticate", `Basic realm="process-pastry"`)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": "Authentication required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *Middleware) check(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(m.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password)) == 1
	return userOK && passOK
}
