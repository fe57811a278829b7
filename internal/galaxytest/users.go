package galaxytest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// AddUser registers an account and returns its ID.
func (s *Server) AddUser(email, username, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := galaxy.User{ID: newID(), Email: email, Username: username, Active: true}
	s.users = append(s.users, u)
	s.passwords[email] = password
	return u.ID
}

// SetUserUsage sets disk usage and quota details shown for a user.
func (s *Server) SetUserUsage(email string, bytes float64, nice, quota string, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].Email == email {
			s.users[i].TotalDiskUsage = bytes
			s.users[i].NiceTotalDiskUsage = nice
			s.users[i].Quota = quota
			p := percent
			s.users[i].QuotaPercent = &p
		}
	}
}

// Users returns a snapshot of all accounts.
func (s *Server) Users() []galaxy.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]galaxy.User, len(s.users))
	copy(out, s.users)
	return out
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	deleted := r.URL.Query().Get("deleted") == "true"
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []galaxy.User{}
	for _, u := range s.users {
		if u.Deleted == deleted {
			out = append(out, galaxy.User{ID: u.ID, Email: u.Email, Username: u.Username, Deleted: u.Deleted, Purged: u.Purged})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.users) == 0 {
		writeJSON(w, http.StatusOK, galaxy.User{ID: "admin", Email: "admin@example.org", Username: "admin", IsAdmin: true})
		return
	}
	writeJSON(w, http.StatusOK, s.users[0])
}

func (s *Server) showUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeError(w, http.StatusNotFound, "User not found")
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, req.Email) {
			writeError(w, http.StatusBadRequest, "Email address exists.")
			return
		}
		if u.Username == req.Username {
			writeError(w, http.StatusBadRequest, "Public name is taken; please choose another.")
			return
		}
	}
	u := galaxy.User{ID: newID(), Email: req.Email, Username: req.Username, Active: true}
	s.users = append(s.users, u)
	s.passwords[req.Email] = req.Password
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	purge := r.URL.Query().Get("purge") == "true"
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].Deleted = true
			s.users[i].Purged = s.users[i].Purged || purge
			writeJSON(w, http.StatusOK, s.users[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "User not found")
}

func (s *Server) createAPIKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "key-"+chi.URLParam(r, "id"))
}
