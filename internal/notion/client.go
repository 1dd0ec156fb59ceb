package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	APIVersion     = "2022-06-28"
)

// ErrDatabaseNotFound is returned by FindDatabase when neither a direct
// ID lookup nor a title search matches. Callers decide whether it is fatal.
var ErrDatabaseNotFound = errors.New("notion database not found")

// APIError carries the HTTP status and parsed error body of a failed
// Notion request. Callers inspect Status to detect auth failures.
type APIError struct {
	Status int
	Body   map[string]interface{}
}

func (e *APIError) Error() string {
	if msg, ok := e.Body["message"].(string); ok && msg != "" {
		return fmt.Sprintf("notion API error (status %d): %s", e.Status, msg)
	}
	return fmt.Sprintf("notion API error (status %d)", e.Status)
}

// IsUnauthorized reports whether err is a Notion 401
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Notion API client. An empty baseURL selects the
// public API endpoint.
func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Request performs an authenticated Notion API call. The API-version
// header is always sent. A non-2xx response yields an *APIError with the
// status and the parsed body (empty map when unparsable). When out is
// non-nil the response body is decoded into it.
func (c *Client) Request(ctx context.Context, token, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody := map[string]interface{}{}
		_ = json.Unmarshal(respBody, &errBody)
		return &APIError{Status: resp.StatusCode, Body: errBody}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// QueryAllPages fetches every page of a database query, following
// next_cursor until has_more is false. The filter is merged with the
// cursor in the POST body; page size is left to provider defaults.
func (c *Client) QueryAllPages(ctx context.Context, token, databaseID string, filter map[string]interface{}) ([]Page, error) {
	var all []Page
	cursor := ""

	for {
		body := map[string]interface{}{}
		if filter != nil {
			body["filter"] = filter
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var page struct {
			Results    []Page  `json:"results"`
			HasMore    bool    `json:"has_more"`
			NextCursor *string `json:"next_cursor"`
		}
		err := c.Request(ctx, token, http.MethodPost, "/databases/"+Dash(databaseID)+"/query", body, &page)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Results...)

		if !page.HasMore || page.NextCursor == nil || *page.NextCursor == "" {
			break
		}
		cursor = *page.NextCursor
	}

	return all, nil
}

// GetPage fetches a single page by ID
func (c *Client) GetPage(ctx context.Context, token, pageID string) (*Page, error) {
	var page Page
	if err := c.Request(ctx, token, http.MethodGet, "/pages/"+Dash(pageID), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetDatabase fetches a single database by ID
func (c *Client) GetDatabase(ctx context.Context, token, databaseID string) (*Database, error) {
	var db Database
	if err := c.Request(ctx, token, http.MethodGet, "/databases/"+Dash(databaseID), nil, &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// GetBlock fetches a single block by ID; used to walk block parents
func (c *Client) GetBlock(ctx context.Context, token, blockID string) (map[string]interface{}, error) {
	var block map[string]interface{}
	if err := c.Request(ctx, token, http.MethodGet, "/blocks/"+Dash(blockID), nil, &block); err != nil {
		return nil, err
	}
	return block, nil
}

// CreatePage creates a page under a database parent
func (c *Client) CreatePage(ctx context.Context, token, databaseID string, properties map[string]interface{}) (*Page, error) {
	body := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": Dash(databaseID)},
		"properties": properties,
	}
	var page Page
	if err := c.Request(ctx, token, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdatePage patches a page's properties in place
func (c *Client) UpdatePage(ctx context.Context, token, pageID string, properties map[string]interface{}) error {
	body := map[string]interface{}{"properties": properties}
	return c.Request(ctx, token, http.MethodPatch, "/pages/"+Dash(pageID), body, nil)
}

// CreateObjectInput describes a page or database to create. AsDatabase
// selects a database under a parent page; otherwise a page under a
// parent database. For pages without an explicit title property, one is
// synthesized from Title.
type CreateObjectInput struct {
	ParentID   string
	AsDatabase bool
	Title      string
	Properties map[string]interface{}
	Icon       map[string]interface{}
}

// CreateObject creates a page or a database per the input
func (c *Client) CreateObject(ctx context.Context, token string, in CreateObjectInput) (map[string]interface{}, error) {
	var body map[string]interface{}
	var path string

	if in.AsDatabase {
		path = "/databases"
		body = map[string]interface{}{
			"parent": map[string]interface{}{
				"type":    "page_id",
				"page_id": Dash(in.ParentID),
			},
			"title": []interface{}{
				map[string]interface{}{
					"type": "text",
					"text": map[string]interface{}{"content": in.Title},
				},
			},
			"properties": in.Properties,
		}
	} else {
		path = "/pages"
		props := in.Properties
		if props == nil {
			props = map[string]interface{}{}
		}
		if !hasTitleProperty(props) {
			props["Name"] = TitleProp(in.Title)
		}
		body = map[string]interface{}{
			"parent":     map[string]interface{}{"database_id": Dash(in.ParentID)},
			"properties": props,
		}
	}

	if in.Icon != nil {
		body["icon"] = in.Icon
	}

	var created map[string]interface{}
	if err := c.Request(ctx, token, http.MethodPost, path, body, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func hasTitleProperty(props map[string]interface{}) bool {
	for _, v := range props {
		if m, ok := v.(map[string]interface{}); ok {
			if _, ok := m["title"]; ok {
				return true
			}
		}
	}
	return false
}

// FindDatabase resolves a database by ID when given something that looks
// like an object ID, otherwise by full-text search scoped to databases,
// returning the first result whose trimmed title exactly equals the
// query. Returns ErrDatabaseNotFound when nothing matches.
func (c *Client) FindDatabase(ctx context.Context, token, nameOrID string) (*Database, error) {
	if IsObjectID(nameOrID) {
		return c.GetDatabase(ctx, token, nameOrID)
	}

	body := map[string]interface{}{
		"query":  nameOrID,
		"filter": map[string]interface{}{"value": "database", "property": "object"},
		"sort":   map[string]interface{}{"direction": "descending", "timestamp": "last_edited_time"},
	}
	var search struct {
		Results []Database `json:"results"`
	}
	if err := c.Request(ctx, token, http.MethodPost, "/search", body, &search); err != nil {
		return nil, err
	}

	for i := range search.Results {
		db := &search.Results[i]
		if db.Object == "database" && strings.TrimSpace(db.TitleText()) == nameOrID {
			return db, nil
		}
	}
	return nil, ErrDatabaseNotFound
}

// TasksDBName is the fixed name of the ancillary quick-tasks database.
const TasksDBName = "Tasks"

// GetOrCreateTasksDB finds the standard Tasks database, creating it
// under parentPageID with its fixed schema when absent.
func (c *Client) GetOrCreateTasksDB(ctx context.Context, token, parentPageID string) (*Database, error) {
	db, err := c.FindDatabase(ctx, token, TasksDBName)
	if err == nil {
		return db, nil
	}
	if !errors.Is(err, ErrDatabaseNotFound) {
		return nil, err
	}

	created, err := c.CreateObject(ctx, token, CreateObjectInput{
		ParentID:   parentPageID,
		AsDatabase: true,
		Title:      TasksDBName,
		Properties: map[string]interface{}{
			"Name":        map[string]interface{}{"title": map[string]interface{}{}},
			"Description": map[string]interface{}{"rich_text": map[string]interface{}{}},
			"Due Date":    map[string]interface{}{"date": map[string]interface{}{}},
			"Done":        map[string]interface{}{"checkbox": map[string]interface{}{}},
		},
	})
	if err != nil {
		return nil, err
	}

	id, _ := created["id"].(string)
	return c.GetDatabase(ctx, token, id)
}
