// Package galaxytest provides an in-memory Galaxy server, which also
// answers the toolshed API, for tests.
package galaxytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// APIKey is the key the fake server accepts.
const APIKey = "test-api-key"

// Server is a fake Galaxy. Set fields with the helper methods before
// issuing requests.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	config    map[string]interface{}
	users     []galaxy.User
	passwords map[string]string
	libraries []galaxy.Library
	folders   map[string][]galaxy.FolderItem
	repos     []*repoState
	tools     []galaxy.Tool
	panel     []galaxy.PanelElement
	quotas    []*galaxy.Quota
	groups    []galaxy.Group

	shedRevisions map[string][]string
	shedTools     map[string][]galaxy.ShedTool
	searchHits    []galaxy.SearchHit

	folderPageSize int

	// installSteps are the statuses a new install reports on successive
	// polls; the last one sticks.
	installSteps []string

	installs   []galaxy.InstallRequest
	uninstalls []galaxy.UninstallRequest
	uploads    []string
}

type repoState struct {
	galaxy.Repository
	steps []string
}

// NewServer starts a fake server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		config:        map[string]interface{}{"brand": "Test", "allow_user_creation": true, "version_major": "23.1"},
		passwords:     map[string]string{},
		folders:       map[string][]galaxy.FolderItem{},
		shedRevisions: map[string][]string{},
		shedTools:     map[string][]galaxy.ShedTool{},
		installSteps:  []string{"Installed"},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func newID() string {
	return uuid.NewString()[:16]
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/api/version", s.getVersion)
	r.Get("/api/authenticate/baseauth", s.baseAuth)

	// Toolshed API, no key required.
	r.Get("/api/repositories", s.searchRepositories)
	r.Get("/api/repositories/get_ordered_installable_revisions", s.orderedRevisions)
	r.Get("/api/repositories/get_repository_revision_install_info", s.installInfo)

	r.Group(func(r chi.Router) {
		r.Use(s.requireKey)

		r.Get("/api/configuration", s.getConfiguration)

		r.Get("/api/users", s.listUsers)
		r.Post("/api/users", s.createUser)
		r.Get("/api/users/current", s.currentUser)
		r.Get("/api/users/{id}", s.showUser)
		r.Delete("/api/users/{id}", s.deleteUser)
		r.Post("/api/users/{id}/api_key", s.createAPIKey)

		r.Get("/api/libraries", s.listLibraries)
		r.Post("/api/libraries", s.createLibrary)
		r.Post("/api/libraries/{id}/contents", s.addLibraryContents)
		r.Get("/api/folders/{id}/contents", s.folderContents)
		r.Post("/api/folders/{id}", s.createFolder)

		r.Get("/api/tool_shed_repositories", s.listRepositories)
		r.Post("/api/tool_shed_repositories/new/install_repository_revision", s.installRepository)
		r.Delete("/api/tool_shed_repositories", s.uninstallRepository)
		r.Get("/api/tools", s.listTools)

		r.Get("/api/quotas", s.listQuotas(false))
		r.Get("/api/quotas/deleted", s.listQuotas(true))
		r.Post("/api/quotas", s.createQuota)
		r.Get("/api/quotas/deleted/{id}", s.showQuota(true))
		r.Post("/api/quotas/deleted/{id}/undelete", s.undeleteQuota)
		r.Get("/api/quotas/{id}", s.showQuota(false))
		r.Put("/api/quotas/{id}", s.updateQuota)
		r.Delete("/api/quotas/{id}", s.deleteQuota)

		r.Get("/api/groups", s.listGroups)
	})

	return r
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != APIKey {
			writeError(w, http.StatusUnauthorized, "Provided API key is not valid.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"err_msg": msg, "err_code": status * 1000})
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, galaxy.Version{Major: "23.1", Minor: "1"})
}

func (s *Server) getConfiguration(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.config)
}

func (s *Server) baseAuth(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	s.mu.Lock()
	want, known := s.passwords[email]
	s.mu.Unlock()
	if !ok || !known || want != password {
		writeError(w, http.StatusUnauthorized, "Invalid password.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"api_key": APIKey})
}

func (s *Server) searchRepositories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type hit struct {
		Repository galaxy.SearchHit `json:"repository"`
		Score      float64          `json:"score"`
	}
	hits := []hit{}
	for _, h := range s.searchHits {
		hits = append(hits, hit{Repository: h, Score: 1})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_results": len(hits),
		"page":          r.URL.Query().Get("page"),
		"page_size":     r.URL.Query().Get("page_size"),
		"hits":          hits,
	})
}

func (s *Server) orderedRevisions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	revs := s.shedRevisions[q.Get("owner")+"/"+q.Get("name")]
	s.mu.Unlock()
	if revs == nil {
		revs = []string{}
	}
	writeJSON(w, http.StatusOK, revs)
}

func (s *Server) installInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("owner") + "/" + q.Get("name") + "/" + q.Get("changeset_revision")
	s.mu.Lock()
	tools, ok := s.shedTools[key]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "No repository revision "+key)
		return
	}
	writeJSON(w, http.StatusOK, []interface{}{
		map[string]string{"name": q.Get("name"), "owner": q.Get("owner")},
		map[string]interface{}{"changeset_revision": q.Get("changeset_revision"), "valid_tools": tools},
		map[string]interface{}{},
	})
}
