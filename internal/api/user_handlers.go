package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schedly/schedly/internal/auth"
	"github.com/schedly/schedly/internal/repository"
)

// Me returns the signed-in user's profile and connection state.
func (s *Server) Me(c *gin.Context) {
	userID := currentUserID(c)
	ctx := c.Request.Context()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	canvasLinked := true
	if _, err := s.canvasConns.GetByUserID(ctx, userID); err != nil {
		canvasLinked = false
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                user.ID,
		"name":              user.Name,
		"image":             user.Image,
		"hasCompletedSetup": user.HasCompletedSetup,
		"canvasLinked":      canvasLinked,
	})
}

// Logout clears the session cookie.
func (s *Server) Logout(c *gin.Context) {
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
