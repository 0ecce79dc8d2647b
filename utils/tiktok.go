package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/gadar/bestrong/config"
)

// TikTokClient wraps the Business API: OAuth2 code exchange plus thin proxy
// calls that forward the bearer token and business id and reshape the JSON.
type TikTokClient struct {
	cfg        config.AppConfig
	httpClient *http.Client
}

// NewTikTokClient builds a client from configuration.
func NewTikTokClient(cfg config.AppConfig) *TikTokClient {
	return &TikTokClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// OAuthConfig returns the oauth2 configuration for the authorization-code flow.
func (c *TikTokClient) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.TikTokClientKey,
		ClientSecret: c.cfg.TikTokClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.cfg.TikTokAuthURL,
			TokenURL: c.cfg.TikTokTokenURL,
		},
		RedirectURL: c.cfg.TikTokRedirectBase + "/api/v1/tiktok/callback",
		Scopes:      []string{"video.list", "video.publish", "comment.list", "comment.manage"},
	}
}

// AuthorizeURL builds the consent URL for a fresh state token.
func (c *TikTokClient) AuthorizeURL(state string) string {
	return c.OAuthConfig().AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens.
func (c *TikTokClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return c.OAuthConfig().Exchange(ctx, code)
}

// Do performs a proxy call against the Business API and returns the decoded
// body. Non-2xx responses are surfaced as errors with the upstream message.
func (c *TikTokClient) Do(ctx context.Context, method, path, accessToken, businessID string, query url.Values, payload any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	u := c.cfg.TikTokAPIBaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")
	if businessID != "" {
		req.Header.Set("Business-Id", businessID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tiktok call: %w", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tiktok decode: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := out["message"].(string)
		return out, fmt.Errorf("tiktok upstream %d: %s", resp.StatusCode, msg)
	}
	return out, nil
}

// VerifyEngagement checks that a user actually performed the requested action
// on the target URL. Without configured credentials there is nothing to call,
// so the action is accepted and left for moderation.
func (c *TikTokClient) VerifyEngagement(ctx context.Context, action, targetURL string, account string) (bool, string) {
	if !c.cfg.TikTokEnabled() {
		return true, "accepted without verification"
	}

	q := url.Values{}
	q.Set("action", action)
	q.Set("url", targetURL)
	q.Set("account", account)
	out, err := c.Do(ctx, http.MethodGet, "/engagement/verify/", "", "", q, nil)
	if err != nil {
		return false, "verification unavailable"
	}
	if data, ok := out["data"].(map[string]any); ok {
		if v, ok := data["verified"].(bool); ok && v {
			return true, "action verified"
		}
	}
	return false, "action not detected"
}
