package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedly/schedly/internal/auth"
	"github.com/schedly/schedly/internal/config"
	"github.com/schedly/schedly/internal/models"
	"github.com/schedly/schedly/internal/notion"
	"github.com/schedly/schedly/internal/repository"
)

// fakeConnStore satisfies both the handler-side store and the token
// store's connection interface
type fakeConnStore struct {
	conn *models.NotionConnection
}

func (f *fakeConnStore) GetByUserID(ctx context.Context, userID string) (*models.NotionConnection, error) {
	if f.conn == nil {
		return nil, repository.ErrNotionNotConnected
	}
	return f.conn, nil
}

func (f *fakeConnStore) Create(ctx context.Context, conn *models.NotionConnection) error {
	f.conn = conn
	return nil
}

func (f *fakeConnStore) UpdateTargets(ctx context.Context, userID, parentPageID, calendarDatabaseID string) error {
	f.conn.ParentPageID = &parentPageID
	f.conn.CalendarDatabaseID = &calendarDatabaseID
	return nil
}

func (f *fakeConnStore) UpdateTokens(ctx context.Context, userID string, accessToken string, refreshToken *string, expiresAt *time.Time, workspaceID, botID *string) error {
	f.conn.AccessToken = accessToken
	return nil
}

func handlerServer(conns *fakeConnStore, notionBaseURL string) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{
		cfg:          &config.Config{SyncTimezone: "America/New_York"},
		sessions:     auth.NewSessionManager("test-secret"),
		notionConns:  conns,
		notionClient: notion.NewClient(notionBaseURL),
		tokens:       notion.NewTokenStore(conns, "cid", "csecret", notionBaseURL),
	}
}

func authedRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := s.sessions.Sign("u1")
	require.NoError(t, err)

	r := gin.New()
	group := r.Group("", s.RequireSession())
	group.GET("/api/notion/connection", s.NotionConnection)
	group.POST("/api/notion/tasks", s.NotionCreateTask)

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parentOnlyConn() *fakeConnStore {
	parent := "parentparentparentparentparent12"
	return &fakeConnStore{conn: &models.NotionConnection{
		UserID:       "u1",
		AccessToken:  "tok",
		ParentPageID: &parent,
	}}
}

func TestNotionConnectionReturnsTargets(t *testing.T) {
	parent := "parentparentparentparentparent12"
	calendar := "caldbcaldbcaldbcaldbcaldbcaldb12"
	conns := &fakeConnStore{conn: &models.NotionConnection{
		UserID:             "u1",
		AccessToken:        "tok",
		ParentPageID:       &parent,
		CalendarDatabaseID: &calendar,
	}}
	s := handlerServer(conns, "http://notion.invalid")

	w := authedRequest(t, s, http.MethodGet, "/api/notion/connection", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, parent, resp["parentPageId"])
	assert.Equal(t, calendar, resp["calendarDatabaseId"])
}

func TestNotionConnectionNotConnected(t *testing.T) {
	s := handlerServer(&fakeConnStore{}, "http://notion.invalid")

	w := authedRequest(t, s, http.MethodGet, "/api/notion/connection", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp["parentPageId"])
	assert.Empty(t, resp["calendarDatabaseId"])
}

func TestNotionCreateTaskRequiresTitle(t *testing.T) {
	s := handlerServer(parentOnlyConn(), "http://notion.invalid")

	w := authedRequest(t, s, http.MethodPost, "/api/notion/tasks", `{"description":"no title"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotionCreateTaskRequiresConfiguredTargets(t *testing.T) {
	conns := &fakeConnStore{conn: &models.NotionConnection{UserID: "u1", AccessToken: "tok"}}
	s := handlerServer(conns, "http://notion.invalid")

	w := authedRequest(t, s, http.MethodPost, "/api/notion/tasks", `{"title":"Buy calculator"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotionCreateTaskCreatesPage(t *testing.T) {
	var createBody map[string]interface{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			fmt.Fprint(w, `{"results":[{"object":"database","id":"db-tasks","title":[{"plain_text":"Tasks"}]}]}`)
		case r.URL.Path == "/pages" && r.Method == http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
			fmt.Fprint(w, `{"object":"page","id":"task-page-1"}`)
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer backend.Close()

	s := handlerServer(parentOnlyConn(), backend.URL)

	w := authedRequest(t, s, http.MethodPost, "/api/notion/tasks",
		`{"title":"Buy calculator","description":"for the exam","dueDate":"2026-02-10","time":"15:30"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "task-page-1")

	require.NotNil(t, createBody)
	props, ok := createBody["properties"].(map[string]interface{})
	require.True(t, ok)

	// title synthesized under Name since no explicit title property was passed
	name, ok := props["Name"].(map[string]interface{})
	require.True(t, ok, "Name title property missing")
	require.Contains(t, name, "title")

	done := props["Done"].(map[string]interface{})
	assert.Equal(t, false, done["checkbox"])

	due := props["Due Date"].(map[string]interface{})["date"].(map[string]interface{})
	assert.Equal(t, "2026-02-10T15:30:00", due["start"])
	assert.Equal(t, "America/New_York", due["time_zone"])

	icon, ok := createBody["icon"].(map[string]interface{})
	require.True(t, ok, "icon missing")
	assert.Equal(t, "external", icon["type"])
	external := icon["external"].(map[string]interface{})
	assert.Equal(t, taskIconURL, external["url"])
}

func TestNotionCreateTaskBootstrapsTasksDB(t *testing.T) {
	createdDB := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			fmt.Fprint(w, `{"results":[]}`)
		case r.URL.Path == "/databases" && r.Method == http.MethodPost:
			createdDB = true
			fmt.Fprint(w, `{"object":"database","id":"0a1b2c3d4e5f60718293a4b5c6d7e8f9"}`)
		case strings.HasPrefix(r.URL.Path, "/databases/") && r.Method == http.MethodGet:
			fmt.Fprint(w, `{"object":"database","id":"0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9","title":[{"plain_text":"Tasks"}]}`)
		case r.URL.Path == "/pages" && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"object":"page","id":"task-page-1"}`)
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer backend.Close()

	s := handlerServer(parentOnlyConn(), backend.URL)

	w := authedRequest(t, s, http.MethodPost, "/api/notion/tasks", `{"title":"Buy calculator"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, createdDB, "Tasks database should have been created")
}
