package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedly/schedly/internal/auth"
)

const userIDKey = "userID"

// RequireSession verifies the session cookie and stashes the user ID in
// the request context; requests without a valid session get a 401.
func (s *Server) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.SessionCookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		userID, err := s.sessions.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
