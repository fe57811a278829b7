package galaxytest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BV-BRC/galaxy-admin/internal/units"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// AddGroup creates a user group and returns its ID.
func (s *Server) AddGroup(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := galaxy.Group{ID: newID(), Name: name}
	s.groups = append(s.groups, g)
	return g.ID
}

// Quota returns a copy of the named quota, or nil.
func (s *Server) Quota(name string) *galaxy.Quota {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.quotas {
		if q.Name == name {
			c := *q
			return &c
		}
	}
	return nil
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, append([]galaxy.Group{}, s.groups...))
}

func (s *Server) listQuotas(deleted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := []galaxy.QuotaSummary{}
		for _, q := range s.quotas {
			if q.Deleted == deleted {
				out = append(out, galaxy.QuotaSummary{ID: q.ID, Name: q.Name})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) findQuota(id string, deleted bool) *galaxy.Quota {
	for _, q := range s.quotas {
		if q.ID == id && q.Deleted == deleted {
			return q
		}
	}
	return nil
}

func (s *Server) showQuota(deleted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		q := s.findQuota(chi.URLParam(r, "id"), deleted)
		if q == nil {
			writeError(w, http.StatusNotFound, "Quota not found")
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// applyQuota copies request fields onto q, resolving user IDs and group IDs.
func (s *Server) applyQuota(q *galaxy.Quota, req galaxy.QuotaRequest) string {
	if req.Name != "" {
		q.Name = req.Name
	}
	if req.Description != "" {
		q.Description = req.Description
	}
	if req.Operation != "" {
		q.Operation = req.Operation
	}
	if req.Amount != "" {
		if req.Amount == "unlimited" {
			q.Bytes = -1
			q.DisplayAmount = "unlimited"
		} else {
			n, err := units.ParseSize(req.Amount)
			if err != nil {
				return "Invalid amount"
			}
			q.Bytes = n
			q.DisplayAmount = units.FormatSize(n)
		}
	}
	switch req.Default {
	case "":
	case "no":
		q.Default = nil
	default:
		q.Default = []galaxy.QuotaDefault{{Type: req.Default}}
	}
	if req.InUsers != nil {
		q.Users = nil
		for _, id := range req.InUsers {
			found := false
			for _, u := range s.users {
				if u.ID == id {
					var qu galaxy.QuotaUser
					qu.User.ID, qu.User.Email = u.ID, u.Email
					q.Users = append(q.Users, qu)
					found = true
				}
			}
			if !found {
				return "Unknown user " + id
			}
		}
	}
	if req.InGroups != nil {
		q.Groups = nil
		for _, id := range req.InGroups {
			found := false
			for _, g := range s.groups {
				if g.ID == id {
					var qg galaxy.QuotaGroup
					qg.Group.ID, qg.Group.Name = g.ID, g.Name
					q.Groups = append(q.Groups, qg)
					found = true
				}
			}
			if !found {
				return "Unknown group " + id
			}
		}
	}
	return ""
}

func (s *Server) createQuota(w http.ResponseWriter, r *http.Request) {
	var req galaxy.QuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.quotas {
		if q.Name == req.Name {
			writeError(w, http.StatusBadRequest, "Quota names must be unique.")
			return
		}
	}
	if req.Operation == "" {
		req.Operation = "="
	}
	q := &galaxy.Quota{ID: newID()}
	if msg := s.applyQuota(q, req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	s.quotas = append(s.quotas, q)
	writeJSON(w, http.StatusOK, galaxy.QuotaSummary{ID: q.ID, Name: q.Name})
}

func (s *Server) updateQuota(w http.ResponseWriter, r *http.Request) {
	var req galaxy.QuotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.findQuota(chi.URLParam(r, "id"), false)
	if q == nil {
		writeError(w, http.StatusNotFound, "Quota not found")
		return
	}
	if msg := s.applyQuota(q, req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	writeJSON(w, http.StatusOK, "Quota updated")
}

func (s *Server) deleteQuota(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.findQuota(chi.URLParam(r, "id"), false)
	if q == nil {
		writeError(w, http.StatusNotFound, "Quota not found")
		return
	}
	q.Deleted = true
	writeJSON(w, http.StatusOK, "Deleted 1 quota")
}

func (s *Server) undeleteQuota(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.findQuota(chi.URLParam(r, "id"), true)
	if q == nil {
		writeError(w, http.StatusNotFound, "Quota not found")
		return
	}
	q.Deleted = false
	writeJSON(w, http.StatusOK, "Undeleted 1 quota")
}
