package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/padi-analytics/internal/access"
	"github.com/KaramelBytes/padi-analytics/internal/observability"
)

const sessionKey = "padi_session"

// observe records request metrics and logs each request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		observability.RecordHTTP(c.Request.Method, route, c.Writer.Status(), elapsed.Seconds())
		s.logger.Debug("http request",
			"method", c.Request.Method, "route", route,
			"status", c.Writer.Status(), "duration", elapsed)
	}
}

// requireSession resolves the session from the cookie or a bearer token and
// aborts with 401 when there is none.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := sessionID(c)
		if id == "" {
			abortError(c, http.StatusUnauthorized, "login required")
			return
		}
		sess, err := s.sessions.Get(id)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "login required")
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// currentSession returns the session stored by requireSession.
func currentSession(c *gin.Context) *access.Session {
	v, _ := c.Get(sessionKey)
	sess, _ := v.(*access.Session)
	return sess
}

func abortError(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}
