package galaxy

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Repository is an installed tool shed repository revision.
type Repository struct {
	ID                         string          `json:"id"`
	Name                       string          `json:"name"`
	Owner                      string          `json:"owner"`
	ToolShed                   string          `json:"tool_shed"`
	ChangesetRevision          string          `json:"changeset_revision"`
	InstalledChangesetRevision string          `json:"installed_changeset_revision"`
	CtxRev                     string          `json:"ctx_rev"`
	Status                     string          `json:"status"`
	ErrorMessage               string          `json:"error_message"`
	Deleted                    bool            `json:"deleted"`
	ToolShedStatus             *ToolShedStatus `json:"tool_shed_status,omitempty"`
}

// Revision returns the installed changeset. Galaxy keeps the revision asked
// for at install time separately from the one it resolved to.
func (r Repository) Revision() string {
	if r.ChangesetRevision != "" {
		return r.ChangesetRevision
	}
	return r.InstalledChangesetRevision
}

// RevisionNumber returns ctx_rev as an integer, or -1 when unknown.
func (r Repository) RevisionNumber() int {
	n, err := strconv.Atoi(r.CtxRev)
	if err != nil {
		return -1
	}
	return n
}

// RevisionID renders "<ctx_rev>:<changeset>".
func (r Repository) RevisionID() string {
	return r.CtxRev + ":" + r.Revision()
}

// ToolShedStatus is Galaxy's cached view of the repository in the toolshed.
// The flags are strings ("True"/"False") on the wire.
type ToolShedStatus struct {
	LatestInstallableRevision string `json:"latest_installable_revision"`
	RevisionUpdate            string `json:"revision_update"`
	RevisionUpgrade           string `json:"revision_upgrade"`
	RepositoryDeprecated      string `json:"repository_deprecated"`
}

func flag(s string) bool {
	return strings.EqualFold(s, "true")
}

// Latest reports whether the installed revision is the newest installable one.
func (s *ToolShedStatus) Latest() bool { return s != nil && flag(s.LatestInstallableRevision) }

// Update reports whether a newer revision with the same tool versions exists.
func (s *ToolShedStatus) Update() bool { return s != nil && flag(s.RevisionUpdate) }

// Upgrade reports whether a newer revision with changed tool versions exists.
func (s *ToolShedStatus) Upgrade() bool { return s != nil && flag(s.RevisionUpgrade) }

// Deprecated reports whether the toolshed has deprecated the repository.
func (s *ToolShedStatus) Deprecated() bool { return s != nil && flag(s.RepositoryDeprecated) }

// Tool is an installed tool.
type Tool struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Version            string            `json:"version"`
	Description        string            `json:"description"`
	PanelSectionID     string            `json:"panel_section_id"`
	PanelSectionName   string            `json:"panel_section_name"`
	ConfigFile         string            `json:"config_file"`
	ToolShedRepository *ToolShedRepoInfo `json:"tool_shed_repository,omitempty"`
}

// ToolShedRepoInfo identifies the repository a tool was installed from.
type ToolShedRepoInfo struct {
	ToolShed          string `json:"tool_shed"`
	Owner             string `json:"owner"`
	Name              string `json:"name"`
	ChangesetRevision string `json:"changeset_revision"`
}

// PanelElement is a node of the tool panel: a section, a tool or a label.
type PanelElement struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	ModelClass string         `json:"model_class"`
	Version    string         `json:"version,omitempty"`
	Elems      []PanelElement `json:"elems,omitempty"`
}

// Panel element model classes.
const (
	ModelToolSection      = "ToolSection"
	ModelTool             = "Tool"
	ModelToolSectionLabel = "ToolSectionLabel"
)

// InstallRequest asks Galaxy to install a repository revision.
type InstallRequest struct {
	ToolShedURL                   string `json:"tool_shed_url"`
	Name                          string `json:"name"`
	Owner                         string `json:"owner"`
	ChangesetRevision             string `json:"changeset_revision"`
	InstallToolDependencies       bool   `json:"install_tool_dependencies"`
	InstallRepositoryDependencies bool   `json:"install_repository_dependencies"`
	InstallResolverDependencies   bool   `json:"install_resolver_dependencies"`
	ToolPanelSectionID            string `json:"tool_panel_section_id,omitempty"`
	NewToolPanelSectionLabel      string `json:"new_tool_panel_section_label,omitempty"`
}

// UninstallRequest asks Galaxy to deactivate or remove a repository revision.
type UninstallRequest struct {
	ToolShedURL       string
	Name              string
	Owner             string
	ChangesetRevision string
	RemoveFromDisk    bool
}

// ListRepositories lists installed tool shed repositories, one entry per
// installed revision.
func (c *Client) ListRepositories(ctx context.Context) ([]Repository, error) {
	var repos []Repository
	if err := c.doJSON(ctx, http.MethodGet, "/api/tool_shed_repositories", nil, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// InstallRepository starts an asynchronous install.
func (c *Client) InstallRepository(ctx context.Context, req InstallRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/tool_shed_repositories/new/install_repository_revision", nil, req, nil)
}

// UninstallRepository deactivates a repository revision, removing its files
// when RemoveFromDisk is set.
func (c *Client) UninstallRepository(ctx context.Context, req UninstallRequest) error {
	query := url.Values{}
	query.Set("tool_shed_url", req.ToolShedURL)
	query.Set("name", req.Name)
	query.Set("owner", req.Owner)
	query.Set("changeset_revision", req.ChangesetRevision)
	query.Set("remove_from_disk", strconv.FormatBool(req.RemoveFromDisk))
	return c.doJSON(ctx, http.MethodDelete, "/api/tool_shed_repositories", query, nil, nil)
}

// ListTools lists every tool known to the server.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	query := url.Values{}
	query.Set("in_panel", "false")
	var tools []Tool
	if err := c.doJSON(ctx, http.MethodGet, "/api/tools", query, nil, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// ToolPanel returns the tool panel layout.
func (c *Client) ToolPanel(ctx context.Context) ([]PanelElement, error) {
	query := url.Values{}
	query.Set("in_panel", "true")
	var panel []PanelElement
	if err := c.doJSON(ctx, http.MethodGet, "/api/tools", query, nil, &panel); err != nil {
		return nil, err
	}
	return panel, nil
}
