package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CronMultilink runs the reconciliation fleet across every
// setup-complete user. Authenticated by a shared bearer secret rather
// than a session, since it is invoked by the scheduler. Always answers
// 200 so the scheduler does not retry a partially failed run; per-user
// failures are reported in the body.
func (s *Server) CronMultilink(c *gin.Context) {
	if s.cfg.CronSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cron is not configured"})
		return
	}

	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token != s.cfg.CronSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx := c.Request.Context()
	userIDs, err := s.users.ListSyncEligibleIDs(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := s.fleet.Run(ctx, userIDs)
	log.Printf("Cron multilink finished: %d users, %d records written, %d failures",
		result.TotalUsers, result.TotalSynced, len(result.Failures))

	c.JSON(http.StatusOK, result)
}
