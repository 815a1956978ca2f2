package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ViewerSessionHeader = "X-Viewer-Session"
	ViewerSessionKey    = "viewer_session"
	maxSessionLength    = 128
)

// ViewerSession resolves the per-browser session token used to dedupe view
// counts: header first, then cookie. A browser-session cookie is issued when
// neither is present. The token is not a credential.
func ViewerSession(cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := c.GetHeader(ViewerSessionHeader)
		if session == "" {
			if v, err := c.Cookie(cookieName); err == nil {
				session = v
			}
		}
		if len(session) > maxSessionLength {
			session = ""
		}

		if session == "" {
			session = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cookieName,
				Value:    session,
				Path:     "/",
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		c.Set(ViewerSessionKey, session)
		c.Next()
	}
}

// GetViewerSession returns the resolved session token, or "" when the
// middleware did not run.
func GetViewerSession(c *gin.Context) string {
	return c.GetString(ViewerSessionKey)
}
