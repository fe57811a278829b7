package galaxy

import (
	"context"
	"net/http"
	"net/url"
)

// User is a Galaxy user account.
type User struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	Username           string   `json:"username"`
	QuotaPercent       *float64 `json:"quota_percent,omitempty"`
	TotalDiskUsage     float64  `json:"total_disk_usage"`
	NiceTotalDiskUsage string   `json:"nice_total_disk_usage"`
	Quota              string   `json:"quota,omitempty"`
	QuotaBytes         *int64   `json:"quota_bytes,omitempty"`
	IsAdmin            bool     `json:"is_admin"`
	Active             bool     `json:"active"`
	Deleted            bool     `json:"deleted"`
	Purged             bool     `json:"purged"`
}

// ListUsers lists active users, or deleted ones when deleted is set.
func (c *Client) ListUsers(ctx context.Context, deleted bool) ([]User, error) {
	query := url.Values{}
	if deleted {
		query.Set("deleted", "true")
	}
	var users []User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", query, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ShowUser returns full details of a user, including disk usage and quota.
func (c *Client) ShowUser(ctx context.Context, id string, deleted bool) (*User, error) {
	query := url.Values{}
	if deleted {
		query.Set("deleted", "true")
	}
	var u User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), query, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUser looks up an active user by email.
func (c *Client) FindUser(ctx context.Context, email string) (*User, error) {
	users, err := c.ListUsers(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i], nil
		}
	}
	return nil, &NotFoundError{Kind: "user", Name: email}
}

// CreateUser creates a local user account.
func (c *Client) CreateUser(ctx context.Context, username, email, password string) (*User, error) {
	req := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	var u User
	if err := c.doJSON(ctx, http.MethodPost, "/api/users", nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser marks a user deleted; purge additionally removes their data
// permanently.
func (c *Client) DeleteUser(ctx context.Context, id string, purge bool) error {
	query := url.Values{}
	if purge {
		query.Set("purge", "true")
	}
	return c.doJSON(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), query, nil, nil)
}

// CreateAPIKey generates a new API key for a user.
func (c *Client) CreateAPIKey(ctx context.Context, id string) (string, error) {
	var key string
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/"+url.PathEscape(id)+"/api_key", nil, nil, &key); err != nil {
		return "", err
	}
	return key, nil
}
