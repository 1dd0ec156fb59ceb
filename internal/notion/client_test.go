package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSetsHeaders(t *testing.T) {
	var gotAuth, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Request(context.Background(), "secret-token", http.MethodGet, "/pages/abc", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, APIVersion, gotVersion)
}

func TestRequestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"object":"error","code":"unauthorized","message":"API token is invalid."}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Request(context.Background(), "bad-token", http.MethodGet, "/users/me", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Body["code"])
	assert.True(t, IsUnauthorized(err))
}

func TestIsUnauthorizedOtherStatus(t *testing.T) {
	err := &APIError{Status: http.StatusNotFound, Body: map[string]interface{}{}}
	assert.False(t, IsUnauthorized(err))
	assert.False(t, IsUnauthorized(errors.New("plain error")))
}

func TestQueryAllPagesFollowsCursor(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		cursor, _ := body["start_cursor"].(string)
		cursors = append(cursors, cursor)

		switch cursor {
		case "":
			fmt.Fprint(w, `{"results":[{"id":"page-1"}],"has_more":true,"next_cursor":"c2"}`)
		case "c2":
			fmt.Fprint(w, `{"results":[{"id":"page-2"},{"id":"page-3"}],"has_more":false,"next_cursor":null}`)
		default:
			t.Errorf("Unexpected cursor %q", cursor)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	pages, err := client.QueryAllPages(context.Background(), "tok", "0a1b2c3d4e5f60718293a4b5c6d7e8f9", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "c2"}, cursors)
	require.Len(t, pages, 3)
	assert.Equal(t, "page-1", pages[0].ID)
	assert.Equal(t, "page-3", pages[2].ID)
}

func TestQueryAllPagesSendsFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		filter, ok := body["filter"].(map[string]interface{})
		require.True(t, ok, "filter missing from query body")
		assert.Equal(t, "Id", filter["property"])

		fmt.Fprint(w, `{"results":[],"has_more":false}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.QueryAllPages(context.Background(), "tok", "0a1b2c3d4e5f60718293a4b5c6d7e8f9", map[string]interface{}{
		"property": "Id",
		"number":   map[string]interface{}{"equals": 42},
	})
	require.NoError(t, err)
}

func TestFindDatabaseByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		fmt.Fprint(w, `{"results":[
			{"object":"database","id":"db-other","title":[{"plain_text":"Tasks Archive"}]},
			{"object":"database","id":"db-tasks","title":[{"plain_text":" Tasks "}]}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	db, err := client.FindDatabase(context.Background(), "tok", "Tasks")
	require.NoError(t, err)
	assert.Equal(t, "db-tasks", db.ID)
}

func TestFindDatabaseNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.FindDatabase(context.Background(), "tok", "Nowhere")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)
}

func TestGetOrCreateTasksDBCreatesWhenMissing(t *testing.T) {
	var createdSchema map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			fmt.Fprint(w, `{"results":[]}`)
		case r.URL.Path == "/databases" && r.Method == http.MethodPost:
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			createdSchema, _ = body["properties"].(map[string]interface{})
			fmt.Fprint(w, `{"object":"database","id":"0a1b2c3d4e5f60718293a4b5c6d7e8f9"}`)
		case r.Method == http.MethodGet:
			fmt.Fprint(w, `{"object":"database","id":"0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9","title":[{"plain_text":"Tasks"}]}`)
		default:
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	db, err := client.GetOrCreateTasksDB(context.Background(), "tok", "parent123parent123parent12345678")
	require.NoError(t, err)

	assert.Equal(t, "Tasks", db.TitleText())
	for _, prop := range []string{"Name", "Description", "Due Date", "Done"} {
		assert.Contains(t, createdSchema, prop)
	}
}
