package notion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/schedly/schedly/internal/models"
)

// refreshSafetyMargin is how close to expiry a token may get before a
// proactive refresh kicks in.
const refreshSafetyMargin = 2 * time.Minute

// ConnectionStore is the slice of the connection repository the token
// store needs.
type ConnectionStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.NotionConnection, error)
	UpdateTokens(ctx context.Context, userID string, accessToken string, refreshToken *string, expiresAt *time.Time, workspaceID, botID *string) error
}

// TokenResponse is the OAuth token endpoint's payload for both the
// authorization-code exchange and refreshes.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	WorkspaceID  string `json:"workspace_id"`
	BotID        string `json:"bot_id"`
	Owner        struct {
		User struct {
			Name      string `json:"name"`
			AvatarURL string `json:"avatar_url"`
		} `json:"user"`
	} `json:"owner"`
}

// TokenStore supplies valid Notion access tokens per user, refreshing
// proactively near expiry and reactively after a 401.
type TokenStore struct {
	conns        ConnectionStore
	clientID     string
	clientSecret string
	oauthURL     string
	httpClient   *http.Client
}

// NewTokenStore creates a token store. An empty oauthURL selects the
// public Notion OAuth endpoint.
func NewTokenStore(conns ConnectionStore, clientID, clientSecret, oauthURL string) *TokenStore {
	oauthURL = strings.TrimRight(strings.TrimSpace(oauthURL), "/")
	if oauthURL == "" {
		oauthURL = DefaultBaseURL
	}
	return &TokenStore{
		conns:        conns,
		clientID:     clientID,
		clientSecret: clientSecret,
		oauthURL:     oauthURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ValidToken returns a usable access token for the user. When the stored
// token expires within the safety margin and a refresh token exists, it
// is refreshed and persisted first. A connection without a refresh token
// is returned as-is: the provider is assumed not to expire it.
func (s *TokenStore) ValidToken(ctx context.Context, userID string) (string, error) {
	conn, err := s.conns.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}

	if conn.RefreshToken == nil {
		return conn.AccessToken, nil
	}

	if conn.ExpiresAt != nil && time.Until(*conn.ExpiresAt) <= refreshSafetyMargin {
		log.Printf("Notion token for user %s expires soon, refreshing...", userID)
		return s.refreshAndPersist(ctx, userID, *conn.RefreshToken)
	}

	return conn.AccessToken, nil
}

// WithValidToken runs fn with a valid access token, retrying exactly
// once after a refresh when fn fails with a Notion 401. A second auth
// failure, or any other error, propagates unchanged.
func (s *TokenStore) WithValidToken(ctx context.Context, userID string, fn func(token string) error) error {
	token, err := s.ValidToken(ctx, userID)
	if err != nil {
		return err
	}

	err = fn(token)
	if err == nil || !IsUnauthorized(err) {
		return err
	}

	conn, connErr := s.conns.GetByUserID(ctx, userID)
	if connErr != nil {
		return connErr
	}
	if conn.RefreshToken == nil {
		return err
	}

	log.Printf("Notion call for user %s got 401, refreshing token and retrying once", userID)
	fresh, refreshErr := s.refreshAndPersist(ctx, userID, *conn.RefreshToken)
	if refreshErr != nil {
		return refreshErr
	}

	return fn(fresh)
}

// ExchangeCode swaps an authorization code for a token pair
func (s *TokenStore) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	return s.tokenRequest(ctx, map[string]interface{}{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": redirectURI,
	})
}

// refreshAndPersist exchanges the refresh token and stores the result
// atomically. The previous refresh token is kept when the response omits
// one; expiry is derived from expires_in when present.
func (s *TokenStore) refreshAndPersist(ctx context.Context, userID, refreshToken string) (string, error) {
	resp, err := s.tokenRequest(ctx, map[string]interface{}{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return "", fmt.Errorf("failed to refresh Notion token: %w", err)
	}

	newRefresh := resp.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	var expiresAt *time.Time
	if resp.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	var workspaceID, botID *string
	if resp.WorkspaceID != "" {
		workspaceID = &resp.WorkspaceID
	}
	if resp.BotID != "" {
		botID = &resp.BotID
	}

	if err := s.conns.UpdateTokens(ctx, userID, resp.AccessToken, &newRefresh, expiresAt, workspaceID, botID); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	log.Printf("Notion token refreshed for user %s", userID)
	return resp.AccessToken, nil
}

// tokenRequest posts to the OAuth token endpoint with Basic client
// credentials and a JSON body, which is Notion's contract.
func (s *TokenStore) tokenRequest(ctx context.Context, body map[string]interface{}) (*TokenResponse, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return nil, errors.New("missing Notion OAuth client credentials")
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauthURL+"/oauth/token", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send token request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := map[string]interface{}{}
		_ = json.Unmarshal(respBody, &errBody)
		return nil, &APIError{Status: resp.StatusCode, Body: errBody}
	}

	var tokens TokenResponse
	if err := json.Unmarshal(respBody, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	return &tokens, nil
}
