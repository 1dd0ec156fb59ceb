// Package api wires the HTTP surface: OAuth callbacks, the sync
// triggers, and the calendar read path.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/schedly/schedly/internal/auth"
	"github.com/schedly/schedly/internal/canvas"
	"github.com/schedly/schedly/internal/config"
	"github.com/schedly/schedly/internal/models"
	"github.com/schedly/schedly/internal/notion"
	"github.com/schedly/schedly/internal/repository"
	"github.com/schedly/schedly/internal/service"
)

// notionConnectionStore is the slice of the Notion connection
// repository the handlers use
type notionConnectionStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.NotionConnection, error)
	Create(ctx context.Context, conn *models.NotionConnection) error
	UpdateTargets(ctx context.Context, userID, parentPageID, calendarDatabaseID string) error
}

type Server struct {
	cfg          *config.Config
	sessions     *auth.SessionManager
	users        *repository.UserRepository
	notionConns  notionConnectionStore
	canvasConns  *repository.CanvasConnectionRepository
	notionClient *notion.Client
	tokens       *notion.TokenStore
	canvasClient *canvas.Client
	reconciler   *service.Reconciler
	fleet        *service.Fleet
}

func NewServer(
	cfg *config.Config,
	sessions *auth.SessionManager,
	users *repository.UserRepository,
	notionConns notionConnectionStore,
	canvasConns *repository.CanvasConnectionRepository,
	notionClient *notion.Client,
	tokens *notion.TokenStore,
	canvasClient *canvas.Client,
	reconciler *service.Reconciler,
	fleet *service.Fleet,
) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		users:        users,
		notionConns:  notionConns,
		canvasConns:  canvasConns,
		notionClient: notionClient,
		tokens:       tokens,
		canvasClient: canvasClient,
		reconciler:   reconciler,
		fleet:        fleet,
	}
}

// Router builds the gin engine with all API routes
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.GET("/notion/callback", s.NotionCallback)
		api.POST("/cron/multilink", s.CronMultilink)

		authed := api.Group("", s.RequireSession())
		{
			authed.GET("/me", s.Me)
			authed.POST("/auth/logout", s.Logout)
			authed.GET("/canvas/callback", s.CanvasCallback)
			authed.POST("/canvas/link", s.CanvasLink)
			authed.POST("/notion/sync", s.NotionSyncTargets)
			authed.GET("/notion/connection", s.NotionConnection)
			authed.GET("/notion/calendar", s.NotionCalendar)
			authed.POST("/notion/tasks", s.NotionCreateTask)
		}
	}

	return r
}
