package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schedly/schedly/internal/models"
	"github.com/schedly/schedly/internal/repository"
)

// CanvasCallback exchanges the Canvas OAuth code and stores the
// resulting credentials against the signed-in user.
func (s *Server) CanvasCallback(c *gin.Context) {
	userID := currentUserID(c)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code"})
		return
	}
	baseURL := c.Query("baseUrl")
	if baseURL == "" {
		baseURL = s.cfg.CanvasBaseURL
	}
	if baseURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing baseUrl"})
		return
	}

	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	redirectURI := scheme + "://" + host + "/api/canvas/callback"

	ctx := c.Request.Context()
	token, err := s.canvasClient.ExchangeCode(ctx, baseURL, code, redirectURI)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	var refreshToken *string
	if token.RefreshToken != "" {
		rt := token.RefreshToken
		refreshToken = &rt
	}
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		exp := token.Expiry
		expiresAt = &exp
	}

	now := time.Now()
	if _, err := s.canvasConns.GetByUserID(ctx, userID); err == nil {
		if err := s.canvasConns.UpdateTokens(ctx, userID, token.AccessToken, refreshToken, expiresAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	} else if err == repository.ErrCanvasNotConnected {
		conn := &models.CanvasConnection{
			ID:           uuid.New().String(),
			UserID:       userID,
			BaseURL:      baseURL,
			AccessToken:  token.AccessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.canvasConns.Create(ctx, conn); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	} else {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Redirect(http.StatusFound, "/dashboard")
}

// CanvasLink runs a full reconciliation for the signed-in user and
// reports how many records were written.
func (s *Server) CanvasLink(c *gin.Context) {
	userID := currentUserID(c)

	synced, err := s.reconciler.SyncUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "numberSynced": synced})
}
