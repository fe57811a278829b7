package galaxy

import (
	"context"
	"net/http"
	"net/url"
)

// QuotaSummary is a quota as listed.
type QuotaSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// Quota is the full description of a quota.
type Quota struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Bytes         int64          `json:"bytes"`
	DisplayAmount string         `json:"display_amount"`
	Operation     string         `json:"operation"`
	Default       []QuotaDefault `json:"default"`
	Users         []QuotaUser    `json:"users"`
	Groups        []QuotaGroup   `json:"groups"`
	Deleted       bool           `json:"deleted"`
}

// QuotaDefault marks a quota as the default for a class of users.
type QuotaDefault struct {
	Type string `json:"type"`
}

// QuotaUser associates a user with a quota.
type QuotaUser struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// QuotaGroup associates a group with a quota.
type QuotaGroup struct {
	Group struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"group"`
}

// DefaultFor returns the user class the quota is the default for, or "".
func (q *Quota) DefaultFor() string {
	if len(q.Default) == 0 {
		return ""
	}
	return q.Default[0].Type
}

// UserEmails returns the emails of associated users.
func (q *Quota) UserEmails() []string {
	out := make([]string, 0, len(q.Users))
	for _, u := range q.Users {
		out = append(out, u.User.Email)
	}
	return out
}

// GroupNames returns the names of associated groups.
func (q *Quota) GroupNames() []string {
	out := make([]string, 0, len(q.Groups))
	for _, g := range q.Groups {
		out = append(out, g.Group.Name)
	}
	return out
}

// QuotaRequest creates or updates a quota. For updates, empty fields are
// left unchanged; InUsers and InGroups replace the full membership when
// non-nil, so an empty non-nil slice clears it.
type QuotaRequest struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Amount      string   `json:"amount,omitempty"`
	Operation   string   `json:"operation,omitempty"`
	Default     string   `json:"default,omitempty"`
	InUsers     []string `json:"in_users"`
	InGroups    []string `json:"in_groups"`
}

func quotaPath(id string, deleted bool) string {
	if deleted {
		return "/api/quotas/deleted/" + url.PathEscape(id)
	}
	return "/api/quotas/" + url.PathEscape(id)
}

// ListQuotas lists active quotas, or deleted ones when deleted is set.
func (c *Client) ListQuotas(ctx context.Context, deleted bool) ([]QuotaSummary, error) {
	path := "/api/quotas"
	if deleted {
		path = "/api/quotas/deleted"
	}
	var quotas []QuotaSummary
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &quotas); err != nil {
		return nil, err
	}
	for i := range quotas {
		quotas[i].Deleted = deleted
	}
	return quotas, nil
}

// ShowQuota returns the full quota.
func (c *Client) ShowQuota(ctx context.Context, id string, deleted bool) (*Quota, error) {
	var q Quota
	if err := c.doJSON(ctx, http.MethodGet, quotaPath(id, deleted), nil, nil, &q); err != nil {
		return nil, err
	}
	q.Deleted = deleted
	return &q, nil
}

// FindQuota looks a quota up by name among active and deleted quotas.
func (c *Client) FindQuota(ctx context.Context, name string) (*Quota, error) {
	for _, deleted := range []bool{false, true} {
		quotas, err := c.ListQuotas(ctx, deleted)
		if err != nil {
			return nil, err
		}
		for _, q := range quotas {
			if q.Name == name {
				return c.ShowQuota(ctx, q.ID, deleted)
			}
		}
	}
	return nil, &NotFoundError{Kind: "quota", Name: name}
}

// CreateQuota creates a quota.
func (c *Client) CreateQuota(ctx context.Context, req QuotaRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/quotas", nil, req, nil)
}

// UpdateQuota updates a quota.
func (c *Client) UpdateQuota(ctx context.Context, id string, req QuotaRequest) error {
	return c.doJSON(ctx, http.MethodPut, quotaPath(id, false), nil, req, nil)
}

// DeleteQuota marks a quota deleted.
func (c *Client) DeleteQuota(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, quotaPath(id, false), nil, nil, nil)
}

// UndeleteQuota restores a deleted quota.
func (c *Client) UndeleteQuota(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, quotaPath(id, true)+"/undelete", nil, nil, nil)
}
