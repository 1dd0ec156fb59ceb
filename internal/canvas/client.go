package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/schedly/schedly/internal/models"
)

// tokenExpiryMargin mirrors the Notion side: refresh slightly before the
// stored expiry rather than racing it.
const tokenExpiryMargin = 2 * time.Minute

// CredentialStore is the slice of the Canvas connection repository the
// client needs to resolve and refresh per-user credentials.
type CredentialStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.CanvasConnection, error)
	UpdateTokens(ctx context.Context, userID string, accessToken string, refreshToken *string, expiresAt *time.Time) error
}

// Client is a read-only Canvas LMS API client. Credentials come from
// each user's stored connection; there is no shared service token.
type Client struct {
	creds        CredentialStore
	clientID     string
	clientSecret string
	pager        *Pager
	httpClient   *http.Client
}

func NewClient(creds CredentialStore, clientID, clientSecret string) *Client {
	return &Client{
		creds:        creds,
		clientID:     clientID,
		clientSecret: clientSecret,
		pager:        NewPager(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// resolveCredentials loads the user's connection, refreshing the access
// token through the Canvas OAuth endpoint when it is about to expire.
func (c *Client) resolveCredentials(ctx context.Context, userID string) (baseURL, token string, err error) {
	conn, err := c.creds.GetByUserID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	baseURL = strings.TrimRight(conn.BaseURL, "/")
	token = conn.AccessToken

	if conn.RefreshToken != nil && conn.ExpiresAt != nil && time.Until(*conn.ExpiresAt) <= tokenExpiryMargin {
		log.Printf("Canvas token for user %s expires soon, refreshing...", userID)
		token, err = c.refreshToken(ctx, userID, baseURL, *conn.RefreshToken)
		if err != nil {
			return "", "", err
		}
	}

	return baseURL, token, nil
}

// refreshToken exchanges the refresh token at the instance's OAuth
// endpoint and persists the result.
func (c *Client) refreshToken(ctx context.Context, userID, baseURL, refreshToken string) (string, error) {
	conf := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: baseURL + "/login/oauth2/token",
		},
	}

	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	newToken, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh Canvas token: %w", err)
	}

	newRefresh := refreshToken
	if newToken.RefreshToken != "" {
		newRefresh = newToken.RefreshToken
	}

	var expiresAt *time.Time
	if !newToken.Expiry.IsZero() {
		expiresAt = &newToken.Expiry
	}

	if err := c.creds.UpdateTokens(ctx, userID, newToken.AccessToken, &newRefresh, expiresAt); err != nil {
		return "", fmt.Errorf("failed to persist refreshed Canvas tokens: %w", err)
	}

	log.Printf("Canvas token refreshed for user %s", userID)
	return newToken.AccessToken, nil
}

// BaseURL returns the user's Canvas instance URL without a trailing
// slash, for making relative html paths absolute
func (c *Client) BaseURL(ctx context.Context, userID string) (string, error) {
	conn, err := c.creds.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(conn.BaseURL, "/"), nil
}

// FetchAll fetches every page of a collection endpoint
func (c *Client) FetchAll(ctx context.Context, userID, path string, query url.Values) ([]json.RawMessage, error) {
	baseURL, token, err := c.resolveCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	u := baseURL + "/api/v1" + ensureLeadingSlash(path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return c.pager.FetchAll(ctx, u, token)
}

// FetchOne fetches a single resource and decodes it into out
func (c *Client) FetchOne(ctx context.Context, userID, path string, out interface{}) error {
	baseURL, token, err := c.resolveCredentials(ctx, userID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1"+ensureLeadingSlash(path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("canvas API error (status %d): %s", resp.StatusCode, upstreamMessage(body, resp.Status))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ActiveCourses fetches the user's active course list
func (c *Client) ActiveCourses(ctx context.Context, userID string) ([]Course, error) {
	query := url.Values{}
	query.Set("enrollment_state", "active")
	query.Set("per_page", "50")

	raw, err := c.FetchAll(ctx, userID, "/courses", query)
	if err != nil {
		return nil, err
	}

	courses := make([]Course, 0, len(raw))
	for _, r := range raw {
		var course Course
		if err := json.Unmarshal(r, &course); err != nil {
			return nil, fmt.Errorf("failed to parse course: %w", err)
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// PlannerItems fetches the user's planner feed
func (c *Client) PlannerItems(ctx context.Context, userID string) ([]PlannerItem, error) {
	query := url.Values{}
	query.Set("per_page", "50")

	raw, err := c.FetchAll(ctx, userID, "/planner/items", query)
	if err != nil {
		return nil, err
	}

	items := make([]PlannerItem, 0, len(raw))
	for _, r := range raw {
		var item PlannerItem
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("failed to parse planner item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// AssignmentDetail fetches one assignment's full detail, including the
// HTML description absent from planner views
func (c *Client) AssignmentDetail(ctx context.Context, userID string, courseID, assignmentID int64) (*Assignment, error) {
	var assignment Assignment
	path := fmt.Sprintf("/courses/%d/assignments/%d", courseID, assignmentID)
	if err := c.FetchOne(ctx, userID, path, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
