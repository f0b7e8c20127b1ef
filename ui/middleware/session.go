package middleware

import (
	"log"
	"net/http"

	"github.com/kris96tian/MOFAX-Online/domain/core"

	"github.com/gin-gonic/gin"
)

// SessionCookie holds the browser's session id
const SessionCookie = "mofax_session"

const sessionKey = "mofax.session"

// EnsureSession attaches a session id to every request, issuing a new cookie
// when the browser has none or presents a malformed one
func EnsureSession(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookie)
		sid, parseErr := core.ParseSessionID(raw)
		if err != nil || parseErr != nil {
			if raw != "" {
				log.Printf("[EnsureSession] Replacing malformed session cookie")
			}
			sid = core.NewSessionID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sid.String(), 0, "/", "", secure, true)
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

// SessionID returns the id attached by EnsureSession
func SessionID(c *gin.Context) core.SessionID {
	if v, ok := c.Get(sessionKey); ok {
		if sid, ok := v.(core.SessionID); ok {
			return sid
		}
	}
	return ""
}
