// Package libraries resolves "Library/folder/sub-folder" paths against the
// data libraries of a Galaxy server.
package libraries

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// PathNotFoundError is returned when a segment of a library path does not
// exist.
type PathNotFoundError struct {
	Path    string
	Segment string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("'%s' not found in library path '%s'", e.Segment, e.Path)
}

// NormaliseFolderPath collapses repeated slashes and strips trailing ones,
// returning "/" for the library root.
func NormaliseFolderPath(p string) string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return "/" + strings.Join(parts, "/")
}

// SplitPath separates the library name from the folder path:
// "Lib/a//b/" gives ("Lib", "/a/b").
func SplitPath(p string) (library, folder string) {
	p = strings.TrimLeft(p, "/")
	library, folder, _ = strings.Cut(p, "/")
	return library, NormaliseFolderPath(folder)
}

func segments(folder string) []string {
	folder = NormaliseFolderPath(folder)
	if folder == "/" {
		return nil
	}
	return strings.Split(folder[1:], "/")
}

// API is the part of the Galaxy API used for library navigation.
type API interface {
	FindLibrary(ctx context.Context, name string) (*galaxy.Library, error)
	FolderContents(ctx context.Context, folderID string) ([]galaxy.FolderItem, error)
}

// Location is a resolved library path.
type Location struct {
	Library  *galaxy.Library
	FolderID string
	Path     string
}

// Resolve walks p one segment at a time from the library root folder.
// Names are matched exactly; nothing is created.
func Resolve(ctx context.Context, api API, p string) (*Location, error) {
	libName, folder := SplitPath(p)
	if libName == "" {
		return nil, fmt.Errorf("no library name in path '%s'", p)
	}
	lib, err := api.FindLibrary(ctx, libName)
	if err != nil {
		var nf *galaxy.NotFoundError
		if errors.As(err, &nf) {
			return nil, &PathNotFoundError{Path: p, Segment: libName}
		}
		return nil, err
	}

	loc := &Location{Library: lib, FolderID: lib.RootFolderID, Path: libName + folder}
	for _, seg := range segments(folder) {
		items, err := api.FolderContents(ctx, loc.FolderID)
		if err != nil {
			return nil, fmt.Errorf("failed to list folder: %w", err)
		}
		next := ""
		for _, item := range items {
			if item.IsFolder() && !item.Deleted && item.Name == seg {
				next = item.ID
				break
			}
		}
		if next == "" {
			return nil, &PathNotFoundError{Path: p, Segment: seg}
		}
		loc.FolderID = next
	}
	return loc, nil
}

// List returns the contents of the folder at p, folders first and then by
// name. The last segment may be a glob pattern, in which case the matching
// items of the parent folder are returned.
func List(ctx context.Context, api API, p string) ([]galaxy.FolderItem, error) {
	libName, folder := SplitPath(p)
	parent, pattern := folder, ""
	if segs := segments(folder); len(segs) > 0 && strings.ContainsAny(segs[len(segs)-1], "*?[") {
		parent = "/" + strings.Join(segs[:len(segs)-1], "/")
		pattern = segs[len(segs)-1]
	}

	loc, err := Resolve(ctx, api, libName+parent)
	if err != nil {
		return nil, err
	}
	items, err := api.FolderContents(ctx, loc.FolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder: %w", err)
	}

	var out []galaxy.FolderItem
	for _, item := range items {
		if item.Deleted {
			continue
		}
		if pattern != "" {
			if ok, _ := path.Match(pattern, item.Name); !ok {
				continue
			}
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].IsFolder() != out[b].IsFolder() {
			return out[a].IsFolder()
		}
		return out[a].Name < out[b].Name
	})
	return out, nil
}

// Creator adds folders.
type Creator interface {
	API
	CreateFolder(ctx context.Context, parentID, name, description string) (*galaxy.Folder, error)
}

// CreateFolder creates the last segment of p inside its parent, which must
// already exist.
func CreateFolder(ctx context.Context, api Creator, p, description string) (*galaxy.Folder, error) {
	libName, folder := SplitPath(p)
	segs := segments(folder)
	if len(segs) == 0 {
		return nil, fmt.Errorf("path '%s' names a library, not a folder", p)
	}
	parent := "/" + strings.Join(segs[:len(segs)-1], "/")
	loc, err := Resolve(ctx, api, libName+parent)
	if err != nil {
		return nil, err
	}

	name := segs[len(segs)-1]
	items, err := api.FolderContents(ctx, loc.FolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder: %w", err)
	}
	for _, item := range items {
		if item.IsFolder() && !item.Deleted && item.Name == name {
			return nil, fmt.Errorf("folder '%s' already exists", NormaliseFolderPath(libName+folder))
		}
	}
	return api.CreateFolder(ctx, loc.FolderID, name, description)
}
