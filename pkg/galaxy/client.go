// Package galaxy is a client for the Galaxy and toolshed HTTP APIs used by
// galaxy-admin.
package galaxy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Client talks to one Galaxy server.
type Client struct {
	transport
}

// Config holds client configuration.
type Config struct {
	URL      string
	APIKey   string
	Email    string
	Password string
	NoVerify bool
	Timeout  time.Duration
}

// NewClient creates a client using cfg.APIKey as-is.
func NewClient(cfg Config) *Client {
	return &Client{transport{
		baseURL:    NormaliseURL(cfg.URL),
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg.Timeout, cfg.NoVerify),
	}}
}

// Connect creates a client, exchanging email and password for an API key
// when no key is given.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c := NewClient(cfg)
	if cfg.APIKey == "" && cfg.Email != "" {
		key, err := c.Login(ctx, cfg.Email, cfg.Password)
		if err != nil {
			return nil, err
		}
		c.apiKey = key
	}
	return c, nil
}

// URL returns the normalised server URL.
func (c *Client) URL() string {
	return c.baseURL
}

// APIKey returns the key used for requests.
func (c *Client) APIKey() string {
	return c.apiKey
}

// Login exchanges an email and password for the user's API key.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/authenticate/baseauth", nil), nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(email, password)

	resp, err := c.do(ctx, req, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var result struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.APIKey == "" {
		return "", &AuthError{URL: c.baseURL, Message: "no API key returned for " + email}
	}
	return result.APIKey, nil
}

// Version returns the server's version information.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.doJSON(ctx, http.MethodGet, "/api/version", nil, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Configuration returns the server's configuration settings.
func (c *Client) Configuration(ctx context.Context) (map[string]interface{}, error) {
	var cfg map[string]interface{}
	if err := c.doJSON(ctx, http.MethodGet, "/api/configuration", nil, nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CurrentUser returns the user owning the API key.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/current", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Version is the response of /api/version.
type Version struct {
	Major string `json:"version_major"`
	Minor string `json:"version_minor"`
}
