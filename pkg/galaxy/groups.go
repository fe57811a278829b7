package galaxy

import (
	"context"
	"net/http"
)

// Group is a Galaxy user group.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListGroups lists user groups.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.doJSON(ctx, http.MethodGet, "/api/groups", nil, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
