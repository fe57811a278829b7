package galaxytest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// AddShedRepository makes a repository installable from the toolshed with
// the given revisions, oldest first.
func (s *Server) AddShedRepository(owner, name string, revisions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shedRevisions[owner+"/"+name] = revisions
}

// SetShedTools sets the tools defined in one repository revision.
func (s *Server) SetShedTools(owner, name, changeset string, tools ...galaxy.ShedTool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shedTools[owner+"/"+name+"/"+changeset] = tools
}

// AddSearchHit adds a toolshed search result.
func (s *Server) AddSearchHit(h galaxy.SearchHit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchHits = append(s.searchHits, h)
}

// AddInstalled records an already installed repository revision.
func (s *Server) AddInstalled(repo galaxy.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo.ID == "" {
		repo.ID = newID()
	}
	s.repos = append(s.repos, &repoState{Repository: repo})
}

// AddTool adds an installed tool, placing it in the tool panel under its
// section (or at the top level when it has none).
func (s *Server) AddTool(tool galaxy.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addToolLocked(tool)
}

func (s *Server) addToolLocked(tool galaxy.Tool) {
	s.tools = append(s.tools, tool)
	elem := galaxy.PanelElement{ID: tool.ID, Name: tool.Name, ModelClass: galaxy.ModelTool, Version: tool.Version}
	if tool.PanelSectionID == "" {
		s.panel = append(s.panel, elem)
		return
	}
	for i := range s.panel {
		if s.panel[i].ModelClass == galaxy.ModelToolSection && s.panel[i].ID == tool.PanelSectionID {
			s.panel[i].Elems = append(s.panel[i].Elems, elem)
			return
		}
	}
	s.panel = append(s.panel, galaxy.PanelElement{
		ID:         tool.PanelSectionID,
		Name:       tool.PanelSectionName,
		ModelClass: galaxy.ModelToolSection,
		Elems:      []galaxy.PanelElement{elem},
	})
}

// AddPanelLabel adds a label to the top level of the tool panel.
func (s *Server) AddPanelLabel(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = append(s.panel, galaxy.PanelElement{ID: id, Name: text, ModelClass: galaxy.ModelToolSectionLabel})
}

// SetInstallSteps sets the statuses new installs pass through, one per
// poll. The last status is kept.
func (s *Server) SetInstallSteps(steps ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installSteps = steps
}

// Installs returns the install requests received.
func (s *Server) Installs() []galaxy.InstallRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]galaxy.InstallRequest(nil), s.installs...)
}

// Uninstalls returns the uninstall requests received.
func (s *Server) Uninstalls() []galaxy.UninstallRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]galaxy.UninstallRequest(nil), s.uninstalls...)
}

// Repositories returns the installed repositories without advancing
// pending installs.
func (s *Server) Repositories() []galaxy.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]galaxy.Repository, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, r.Repository)
	}
	return out
}

func stripProtocol(u string) string {
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	return strings.TrimRight(u, "/")
}

func (s *Server) listRepositories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]galaxy.Repository, 0, len(s.repos))
	for _, rs := range s.repos {
		out = append(out, rs.Repository)
		if len(rs.steps) > 0 {
			rs.Status = rs.steps[0]
			rs.steps = rs.steps[1:]
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) installRepository(w http.ResponseWriter, r *http.Request) {
	var req galaxy.InstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctxRev := -1
	for i, rev := range s.shedRevisions[req.Owner+"/"+req.Name] {
		if rev == req.ChangesetRevision {
			ctxRev = i
		}
	}
	if ctxRev < 0 {
		writeError(w, http.StatusBadRequest, "Revision "+req.ChangesetRevision+" is not installable")
		return
	}
	s.installs = append(s.installs, req)

	shed := stripProtocol(req.ToolShedURL)
	steps := append([]string(nil), s.installSteps...)
	state := &repoState{
		Repository: galaxy.Repository{
			ID:                         newID(),
			Name:                       req.Name,
			Owner:                      req.Owner,
			ToolShed:                   shed,
			ChangesetRevision:          req.ChangesetRevision,
			InstalledChangesetRevision: req.ChangesetRevision,
			CtxRev:                     strconv.Itoa(ctxRev),
			Status:                     "New",
		},
		steps: steps,
	}
	s.repos = append(s.repos, state)

	sectionID, sectionName := req.ToolPanelSectionID, req.NewToolPanelSectionLabel
	if sectionID != "" {
		for _, e := range s.panel {
			if e.ID == sectionID {
				sectionName = e.Name
			}
		}
	} else if sectionName != "" {
		for _, e := range s.panel {
			if e.ModelClass == galaxy.ModelToolSection && e.Name == sectionName {
				sectionID = e.ID
			}
		}
		if sectionID == "" {
			sectionID = strings.ToLower(strings.ReplaceAll(sectionName, " ", "_"))
		}
	}
	s.addToolLocked(galaxy.Tool{
		ID:               shed + "/repos/" + req.Owner + "/" + req.Name + "/" + req.Name + "/1.0",
		Name:             req.Name,
		Version:          "1.0",
		PanelSectionID:   sectionID,
		PanelSectionName: sectionName,
		ToolShedRepository: &galaxy.ToolShedRepoInfo{
			ToolShed:          shed,
			Owner:             req.Owner,
			Name:              req.Name,
			ChangesetRevision: req.ChangesetRevision,
		},
	})

	writeJSON(w, http.StatusOK, []galaxy.Repository{state.Repository})
}

func (s *Server) uninstallRepository(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := galaxy.UninstallRequest{
		ToolShedURL:       q.Get("tool_shed_url"),
		Name:              q.Get("name"),
		Owner:             q.Get("owner"),
		ChangesetRevision: q.Get("changeset_revision"),
		RemoveFromDisk:    q.Get("remove_from_disk") == "true",
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	shed := stripProtocol(req.ToolShedURL)
	for i, rs := range s.repos {
		if rs.Name != req.Name || rs.Owner != req.Owner || rs.ChangesetRevision != req.ChangesetRevision || rs.ToolShed != shed {
			continue
		}
		s.uninstalls = append(s.uninstalls, req)
		if req.RemoveFromDisk {
			s.repos = append(s.repos[:i], s.repos[i+1:]...)
		} else {
			rs.Status = "Deactivated"
			rs.Deleted = true
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Repository uninstalled"})
		return
	}
	writeError(w, http.StatusNotFound, "Repository not found")
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.URL.Query().Get("in_panel") == "true" {
		writeJSON(w, http.StatusOK, append([]galaxy.PanelElement{}, s.panel...))
		return
	}
	writeJSON(w, http.StatusOK, append([]galaxy.Tool{}, s.tools...))
}
