package galaxytest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// AddLibrary creates a library and returns its ID and root folder ID.
func (s *Server) AddLibrary(name, description string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lib := s.addLibraryLocked(name, description, "")
	return lib.ID, lib.RootFolderID
}

func (s *Server) addLibraryLocked(name, description, synopsis string) galaxy.Library {
	lib := galaxy.Library{
		ID:           newID(),
		Name:         name,
		Description:  description,
		Synopsis:     synopsis,
		RootFolderID: "F" + newID(),
	}
	s.libraries = append(s.libraries, lib)
	s.folders[lib.RootFolderID] = []galaxy.FolderItem{}
	return lib
}

// AddFolder creates a sub-folder and returns its ID.
func (s *Server) AddFolder(parentID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addFolderLocked(parentID, name)
}

func (s *Server) addFolderLocked(parentID, name string) string {
	id := "F" + newID()
	s.folders[parentID] = append(s.folders[parentID], galaxy.FolderItem{ID: id, Name: name, Type: "folder", UpdateTime: "2024-01-02 03:04 PM"})
	s.folders[id] = []galaxy.FolderItem{}
	return id
}

// AddDataset places a dataset in a folder.
func (s *Server) AddDataset(folderID, name string, size int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := newID()
	s.folders[folderID] = append(s.folders[folderID], galaxy.FolderItem{
		ID: id, Name: name, Type: "file", FileExt: "fastqsanger", RawSize: size, UpdateTime: "2024-01-02 03:04 PM",
	})
	return id
}

// Uploads returns the names of files and server paths added to libraries.
func (s *Server) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

// FolderCount counts how many folders exist, including library roots.
func (s *Server) FolderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.folders)
}

func (s *Server) listLibraries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]galaxy.Library{}, s.libraries...)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createLibrary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Synopsis    string `json:"synopsis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter 'name'.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.addLibraryLocked(req.Name, req.Description, req.Synopsis))
}

// SetFolderPageSize caps how many entries one folder contents request
// returns. Zero means no cap.
func (s *Server) SetFolderPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folderPageSize = n
}

func (s *Server) folderContents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	items, ok := s.folders[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Folder not found")
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	if s.folderPageSize > 0 && limit > s.folderPageSize {
		limit = s.folderPageSize
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metadata":        map[string]interface{}{"folder_name": id, "total_rows": len(items)},
		"folder_contents": append([]galaxy.FolderItem{}, items[offset:end]...),
	})
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	parent := chi.URLParam(r, "id")
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter 'name'.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[parent]; !ok {
		writeError(w, http.StatusNotFound, "Folder not found")
		return
	}
	id := s.addFolderLocked(parent, req.Name)
	writeJSON(w, http.StatusOK, galaxy.Folder{ID: id, Name: req.Name, Description: req.Description})
}

func (s *Server) addLibraryContents(w http.ResponseWriter, r *http.Request) {
	var folderID string
	var names []string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		folderID = r.FormValue("folder_id")
		for _, fh := range r.MultipartForm.File["files_0|file_data"] {
			names = append(names, fh.Filename)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		folderID = r.PostFormValue("folder_id")
		for _, p := range strings.Split(r.PostFormValue("filesystem_paths"), "\n") {
			if p = strings.TrimSpace(p); p != "" {
				names = append(names, p+"|"+r.PostFormValue("link_data_only"))
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[folderID]; !ok {
		writeError(w, http.StatusBadRequest, "Invalid folder id")
		return
	}
	out := []galaxy.Dataset{}
	for _, n := range names {
		id := newID()
		s.folders[folderID] = append(s.folders[folderID], galaxy.FolderItem{ID: id, Name: n, Type: "file"})
		s.uploads = append(s.uploads, n)
		out = append(out, galaxy.Dataset{ID: id, Name: n})
	}
	writeJSON(w, http.StatusOK, out)
}
