package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schedly/schedly/internal/auth"
	"github.com/schedly/schedly/internal/dates"
	"github.com/schedly/schedly/internal/models"
	"github.com/schedly/schedly/internal/notion"
	"github.com/schedly/schedly/internal/repository"
)

// NotionCallback exchanges the OAuth authorization code, upserts the
// user and connection records, issues a session cookie and redirects to
// the dashboard.
func (s *Server) NotionCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing code"})
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
	redirectURI := scheme + "://" + host + "/api/notion/callback"

	tokens, err := s.tokens.ExchangeCode(c.Request.Context(), code, redirectURI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	name := tokens.Owner.User.Name
	if name == "" {
		name = "Unknown"
	}
	var image *string
	if tokens.Owner.User.AvatarURL != "" {
		avatar := tokens.Owner.User.AvatarURL
		image = &avatar
	}

	now := time.Now()
	user := &models.User{
		ID:        uuid.New().String(),
		Name:      name,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	var refreshToken *string
	if tokens.RefreshToken != "" {
		rt := tokens.RefreshToken
		refreshToken = &rt
	}
	var expiresAt *time.Time
	if tokens.ExpiresIn > 0 {
		t := now.Add(time.Duration(tokens.ExpiresIn) * time.Second)
		expiresAt = &t
	}
	var workspaceID, botID *string
	if tokens.WorkspaceID != "" {
		workspaceID = &tokens.WorkspaceID
	}
	if tokens.BotID != "" {
		botID = &tokens.BotID
	}

	conn := &models.NotionConnection{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		WorkspaceID:  workspaceID,
		BotID:        botID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.notionConns.Create(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	session, err := s.sessions.Sign(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	c.SetCookie(auth.SessionCookieName, session, int(auth.SessionTTL.Seconds()), "/", "", scheme == "https", true)
	c.Redirect(http.StatusFound, "/dashboard")
}

type syncTargetsRequest struct {
	ParentPageID       string `json:"parentPageId"`
	CalendarDatabaseID string `json:"calendarDatabaseId"`
}

// NotionSyncTargets validates the user's chosen parent page and
// calendar database and persists both. The calendar database must live
// under the parent page and carry the tracked-record schema, and its
// Subject relation must point at a Subjects database with a title.
func (s *Server) NotionSyncTargets(c *gin.Context) {
	userID := currentUserID(c)

	var req syncTargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ParentPageID == "" || req.CalendarDatabaseID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parentPageId and calendarDatabaseId are required"})
		return
	}

	ctx := c.Request.Context()
	err := s.tokens.WithValidToken(ctx, userID, func(token string) error {
		return s.validateTargets(ctx, token, req.ParentPageID, req.CalendarDatabaseID)
	})
	if err != nil {
		var invalid targetValidationError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := s.notionConns.UpdateTargets(ctx, userID, notion.Undash(req.ParentPageID), notion.Undash(req.CalendarDatabaseID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.users.MarkSetupComplete(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) validateTargets(ctx context.Context, token, parentPageID, calendarDatabaseID string) error {
	parentDashed := notion.Dash(parentPageID)

	if _, err := s.notionClient.GetPage(ctx, token, parentDashed); err != nil {
		return err
	}

	db, err := s.notionClient.GetDatabase(ctx, token, calendarDatabaseID)
	if err != nil {
		return err
	}

	parent := db.Parent
	for parentType(parent) == "block_id" {
		blockID, _ := parent["block_id"].(string)
		block, err := s.notionClient.GetBlock(ctx, token, blockID)
		if err != nil {
			return err
		}
		next, _ := block["parent"].(map[string]interface{})
		if next == nil {
			break
		}
		parent = next
	}

	switch parentType(parent) {
	case "workspace":
		return errInvalidTargets("calendar database is in the workspace, not under a page")
	case "page_id":
		pageID, _ := parent["page_id"].(string)
		if notion.Undash(pageID) != notion.Undash(parentDashed) {
			return errInvalidTargets("calendar database is not a child of the provided parent page")
		}
	default:
		return errInvalidTargets("unsupported parent type for calendar database (must be under a page)")
	}

	if err := requirePropType(db.Properties, "Name", "title"); err != nil {
		return err
	}
	if err := requirePropType(db.Properties, "Due Date", "date"); err != nil {
		return err
	}
	if err := requirePropType(db.Properties, "Done", "checkbox"); err != nil {
		return err
	}
	if err := requirePropType(db.Properties, "Description", "rich_text"); err != nil {
		return err
	}
	if err := requirePropType(db.Properties, "Subject", "relation"); err != nil {
		return err
	}

	subjectProp, _ := db.Properties["Subject"].(map[string]interface{})
	rel, _ := subjectProp["relation"].(map[string]interface{})
	subjectDBID, _ := rel["database_id"].(string)
	subjectDB, err := s.notionClient.GetDatabase(ctx, token, subjectDBID)
	if err != nil {
		return err
	}
	if err := requirePropType(subjectDB.Properties, "Name", "title"); err != nil {
		return errInvalidTargets(`missing or incorrect "Name" (title) property in the related Subjects database`)
	}

	return nil
}

func parentType(parent map[string]interface{}) string {
	t, _ := parent["type"].(string)
	return t
}

type targetValidationError string

func errInvalidTargets(msg string) error { return targetValidationError(msg) }

func (e targetValidationError) Error() string { return string(e) }

func requirePropType(props map[string]interface{}, name, wantType string) error {
	prop, ok := props[name].(map[string]interface{})
	if !ok {
		return errInvalidTargets(`missing or incorrect "` + name + `" (` + wantType + `) property`)
	}
	if t, _ := prop["type"].(string); t != wantType {
		return errInvalidTargets(`missing or incorrect "` + name + `" (` + wantType + `) property`)
	}
	return nil
}

// NotionConnection returns the stored sync targets for the dashboard.
// A user without a connection gets empty strings, not an error.
func (s *Server) NotionConnection(c *gin.Context) {
	conn, err := s.notionConns.GetByUserID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotionNotConnected) {
			c.JSON(http.StatusOK, gin.H{"parentPageId": "", "calendarDatabaseId": ""})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	parentPageID, calendarDatabaseID := "", ""
	if conn.ParentPageID != nil {
		parentPageID = *conn.ParentPageID
	}
	if conn.CalendarDatabaseID != nil {
		calendarDatabaseID = *conn.CalendarDatabaseID
	}
	c.JSON(http.StatusOK, gin.H{"parentPageId": parentPageID, "calendarDatabaseId": calendarDatabaseID})
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Time        string `json:"time"`
}

// taskIconURL marks quick tasks apart from synced assignments
const taskIconURL = "https://www.notion.so/icons/checkmark-square_gray.svg"

// NotionCreateTask creates a quick task in the user's Tasks database,
// bootstrapping the database under the stored parent page when absent.
func (s *Server) NotionCreateTask(c *gin.Context) {
	userID := currentUserID(c)

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	ctx := c.Request.Context()
	conn, err := s.notionConns.GetByUserID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if conn.ParentPageID == nil || *conn.ParentPageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Notion targets are not configured"})
		return
	}

	loc, err := time.LoadLocation(s.cfg.SyncTimezone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var page map[string]interface{}
	err = s.tokens.WithValidToken(ctx, userID, func(token string) error {
		db, dbErr := s.notionClient.GetOrCreateTasksDB(ctx, token, *conn.ParentPageID)
		if dbErr != nil {
			return dbErr
		}

		created, createErr := s.notionClient.CreateObject(ctx, token, notion.CreateObjectInput{
			ParentID: db.ID,
			Title:    req.Title,
			Properties: map[string]interface{}{
				"Description": notion.RichTextProp(req.Description),
				"Due Date":    dates.BuildDueDateProp(req.DueDate, req.Time, loc),
				"Done":        notion.CheckboxProp(false),
			},
			Icon: map[string]interface{}{
				"type":     "external",
				"external": map[string]interface{}{"url": taskIconURL},
			},
		})
		page = created
		return createErr
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "page": page})
}

type calendarItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Done        bool   `json:"done"`
	SubjectName string `json:"subjectName"`
}

// NotionCalendar returns the merged day view: tracked assignments plus
// quick tasks, re-filtered client-side by exact local-day membership.
func (s *Server) NotionCalendar(c *gin.Context) {
	userID := currentUserID(c)
	ctx := c.Request.Context()

	conn, err := s.notionConns.GetByUserID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if conn.ParentPageID == nil || conn.CalendarDatabaseID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Notion targets are not configured"})
		return
	}

	tzName := c.Query("tz")
	if tzName == "" {
		tzName = s.cfg.SyncTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timezone"})
		return
	}

	dueDateParam := c.Query("dueDate")

	var items []calendarItem
	err = s.tokens.WithValidToken(ctx, userID, func(token string) error {
		collected, qErr := s.collectCalendar(ctx, token, *conn.ParentPageID, *conn.CalendarDatabaseID, dueDateParam, loc)
		items = collected
		return qErr
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) collectCalendar(ctx context.Context, token, parentPageID, calendarDBID, dueDateParam string, loc *time.Location) ([]calendarItem, error) {
	tasksDB, err := s.notionClient.GetOrCreateTasksDB(ctx, token, parentPageID)
	if err != nil {
		return nil, err
	}

	filter, day, err := s.dayFilter(dueDateParam, loc)
	if err != nil {
		return nil, err
	}

	calendarPages, err := s.notionClient.QueryAllPages(ctx, token, calendarDBID, filter)
	if err != nil {
		return nil, err
	}
	taskPages, err := s.notionClient.QueryAllPages(ctx, token, tasksDB.ID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]calendarItem, 0, len(calendarPages)+len(taskPages))
	for i := range calendarPages {
		page := &calendarPages[i]
		if day != "" && !inDay(page, loc, day) {
			continue
		}
		item := pageToItem(page)
		item.SubjectName = s.subjectName(ctx, token, page)
		items = append(items, item)
	}
	for i := range taskPages {
		page := &taskPages[i]
		if day != "" && !inDay(page, loc, day) {
			continue
		}
		item := pageToItem(page)
		item.SubjectName = "Task"
		items = append(items, item)
	}

	return items, nil
}

func (s *Server) subjectName(ctx context.Context, token string, page *notion.Page) string {
	rels := page.RelationIDs("Subject")
	if len(rels) == 0 {
		return ""
	}
	subject, err := s.notionClient.GetPage(ctx, token, rels[0])
	if err != nil {
		log.Printf("Warning: failed to resolve subject %s: %v", rels[0], err)
		return ""
	}
	return subject.TitleText("Name")
}
