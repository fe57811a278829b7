package galaxy

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Library is a Galaxy data library.
type Library struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Synopsis     string `json:"synopsis"`
	RootFolderID string `json:"root_folder_id"`
	Deleted      bool   `json:"deleted"`
	CreateTime   string `json:"create_time"`
}

// FolderItem is an entry in a library folder.
type FolderItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	FileExt    string `json:"file_ext,omitempty"`
	FileSize   string `json:"file_size,omitempty"`
	RawSize    int64  `json:"raw_size,omitempty"`
	UpdateTime string `json:"update_time"`
	Deleted    bool   `json:"deleted"`
}

// IsFolder reports whether the item is a sub-folder.
func (f FolderItem) IsFolder() bool {
	return f.Type == "folder"
}

// Folder is a library folder as returned on creation.
type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Dataset is a library dataset created by an upload.
type Dataset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UploadOptions controls how datasets are added to a library.
type UploadOptions struct {
	FileType string
	DBKey    string
	// LinkOnly links server-side files instead of copying them.
	LinkOnly bool
}

func (o UploadOptions) fileType() string {
	if o.FileType == "" {
		return "auto"
	}
	return o.FileType
}

func (o UploadOptions) dbkey() string {
	if o.DBKey == "" {
		return "?"
	}
	return o.DBKey
}

// ListLibraries lists data libraries.
func (c *Client) ListLibraries(ctx context.Context, deleted bool) ([]Library, error) {
	query := url.Values{}
	if deleted {
		query.Set("deleted", "true")
	}
	var libs []Library
	if err := c.doJSON(ctx, http.MethodGet, "/api/libraries", query, nil, &libs); err != nil {
		return nil, err
	}
	return libs, nil
}

// FindLibrary returns the active library with exactly this name.
func (c *Client) FindLibrary(ctx context.Context, name string) (*Library, error) {
	libs, err := c.ListLibraries(ctx, false)
	if err != nil {
		return nil, err
	}
	var found *Library
	for i := range libs {
		if libs[i].Name != name || libs[i].Deleted {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("library name '%s' is ambiguous", name)
		}
		found = &libs[i]
	}
	if found == nil {
		return nil, &NotFoundError{Kind: "library", Name: name}
	}
	return found, nil
}

// CreateLibrary creates a new data library.
func (c *Client) CreateLibrary(ctx context.Context, name, description, synopsis string) (*Library, error) {
	req := map[string]string{
		"name":        name,
		"description": description,
		"synopsis":    synopsis,
	}
	var lib Library
	if err := c.doJSON(ctx, http.MethodPost, "/api/libraries", nil, req, &lib); err != nil {
		return nil, err
	}
	return &lib, nil
}

// folderPageSize is how many folder entries are asked for per request.
const folderPageSize = 500

// FolderContents lists the items directly inside a folder, fetching as
// many pages as the server reports.
func (c *Client) FolderContents(ctx context.Context, folderID string) ([]FolderItem, error) {
	path := "/api/folders/" + url.PathEscape(folderID) + "/contents"
	var items []FolderItem
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(folderPageSize))
		query.Set("offset", strconv.Itoa(len(items)))

		var page struct {
			Metadata struct {
				TotalRows int `json:"total_rows"`
			} `json:"metadata"`
			FolderContents []FolderItem `json:"folder_contents"`
		}
		if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &page); err != nil {
			return nil, err
		}
		items = append(items, page.FolderContents...)
		if len(page.FolderContents) == 0 || len(items) >= page.Metadata.TotalRows {
			return items, nil
		}
	}
}

// CreateFolder creates a sub-folder of parentID.
func (c *Client) CreateFolder(ctx context.Context, parentID, name, description string) (*Folder, error) {
	req := map[string]string{
		"name":        name,
		"description": description,
	}
	var f Folder
	if err := c.doJSON(ctx, http.MethodPost, "/api/folders/"+url.PathEscape(parentID), nil, req, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// UploadFile uploads a local file into a library folder. The file is
// streamed into the request body.
func (c *Client) UploadFile(ctx context.Context, libraryID, folderID, path string, opts UploadOptions) ([]Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(writer, file, folderID, opts))
	}()

	datasets, err := c.postLibraryContents(ctx, libraryID, pr, writer.FormDataContentType())
	// Stops the writer if the request ended before the body was sent.
	pr.Close()
	return datasets, err
}

func writeUpload(writer *multipart.Writer, file *os.File, folderID string, opts UploadOptions) error {
	fields := []struct{ name, value string }{
		{"folder_id", folderID},
		{"create_type", "file"},
		{"upload_option", "upload_file"},
		{"file_type", opts.fileType()},
		{"dbkey", opts.dbkey()},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("files_0|file_data", filepath.Base(file.Name()))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Name(), err)
	}
	return writer.Close()
}

// AddServerPaths adds files that already exist on the Galaxy server.
func (c *Client) AddServerPaths(ctx context.Context, libraryID, folderID string, paths []string, opts UploadOptions) ([]Dataset, error) {
	form := url.Values{}
	form.Set("folder_id", folderID)
	form.Set("create_type", "file")
	form.Set("upload_option", "upload_paths")
	form.Set("filesystem_paths", strings.Join(paths, "\n"))
	form.Set("file_type", opts.fileType())
	form.Set("dbkey", opts.dbkey())
	if opts.LinkOnly {
		form.Set("link_data_only", "link_to_files")
	} else {
		form.Set("link_data_only", "copy_files")
	}

	return c.postLibraryContents(ctx, libraryID, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (c *Client) postLibraryContents(ctx context.Context, libraryID string, body io.Reader, contentType string) ([]Dataset, error) {
	path := "/api/libraries/" + url.PathEscape(libraryID) + "/contents"
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var datasets []Dataset
	if err := c.decode(resp, path, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}
