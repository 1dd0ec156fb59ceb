package canvas

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// OAuthConfig builds the OAuth2 configuration for a Canvas instance.
// Canvas token endpoints speak the standard form-encoded protocol.
func (c *Client) OAuthConfig(baseURL, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  baseURL + "/login/oauth2/auth",
			TokenURL: baseURL + "/login/oauth2/token",
		},
	}
}

// ExchangeCode swaps an authorization code for a token pair at the
// given Canvas instance
func (c *Client) ExchangeCode(ctx context.Context, baseURL, code, redirectURI string) (*oauth2.Token, error) {
	token, err := c.OAuthConfig(baseURL, redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange Canvas code: %w", err)
	}
	return token, nil
}
