package galaxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Toolshed talks to a tool shed. Read-only calls need no API key.
type Toolshed struct {
	transport
}

// NewToolshed creates a tool shed client. url may omit the protocol.
func NewToolshed(url string, timeout time.Duration, noVerify bool) *Toolshed {
	return &Toolshed{transport{
		baseURL:    NormaliseURL(url),
		httpClient: newHTTPClient(timeout, noVerify),
	}}
}

// URL returns the normalised tool shed URL.
func (t *Toolshed) URL() string {
	return t.baseURL
}

// SearchHit is one repository matching a search.
type SearchHit struct {
	Name        string `json:"name"`
	Owner       string `json:"repo_owner_username"`
	Description string `json:"description"`
	Downloads   int    `json:"times_downloaded"`
}

// ShedTool is a tool contained in a repository revision.
type ShedTool struct {
	ID      string `json:"id"`
	GUID    string `json:"guid"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// OrderedInstallableRevisions lists the installable changesets of a
// repository, oldest first.
func (t *Toolshed) OrderedInstallableRevisions(ctx context.Context, owner, name string) ([]string, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("owner", owner)
	var revisions []string
	if err := t.doJSON(ctx, http.MethodGet, "/api/repositories/get_ordered_installable_revisions", query, nil, &revisions); err != nil {
		return nil, err
	}
	return revisions, nil
}

// Search runs a free-text repository search and returns the first page.
func (t *Toolshed) Search(ctx context.Context, q string, pageSize int) ([]SearchHit, error) {
	query := url.Values{}
	query.Set("q", q)
	query.Set("page", "1")
	query.Set("page_size", strconv.Itoa(pageSize))

	var result struct {
		Hits []struct {
			Repository SearchHit `json:"repository"`
		} `json:"hits"`
	}
	if err := t.doJSON(ctx, http.MethodGet, "/api/repositories", query, nil, &result); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, h.Repository)
	}
	return hits, nil
}

// RevisionTools lists the tools defined in one repository revision.
func (t *Toolshed) RevisionTools(ctx context.Context, owner, name, changeset string) ([]ShedTool, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("owner", owner)
	query.Set("changeset_revision", changeset)

	// The response is a three element array: repository, metadata, dependencies.
	var parts []json.RawMessage
	if err := t.doJSON(ctx, http.MethodGet, "/api/repositories/get_repository_revision_install_info", query, nil, &parts); err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("unexpected install info for %s/%s %s", owner, name, changeset)
	}

	var metadata struct {
		ValidTools []ShedTool `json:"valid_tools"`
	}
	if err := json.Unmarshal(parts[1], &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse install info for %s/%s: %w", owner, name, err)
	}
	return metadata.ValidTools, nil
}
